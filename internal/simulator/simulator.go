// Package simulator defines the abstract Simulator Contract (spec §4.F):
// the minimal interface the PMCTS tree needs from a world model, with no
// knowledge of vehicle dynamics, road geometry, or cost internals. Every
// concrete domain (the bundled reference scenario, or a production
// highway model) implements this interface; internal/mcts consumes only
// this package.
package simulator

import "github.com/rgardner/pmcts/internal/cost"

// Particle is an immutable, replayable source of randomness and intent:
// an ordered list of per-vehicle policy choices plus whatever correlated
// noise seeds a concrete Simulator needs to reproduce a rollout bit-for-bit
// (spec §4.F "Particle").
type Particle interface {
	// ID uniquely identifies this particle within one search.
	ID() int
}

// Simulator is the contract the PMCTS tree drives a world model through.
// Every method that advances state returns a new Simulator rather than
// mutating the receiver, mirroring the reference implementation's
// clone-then-mutate style and letting the tree hold many independent
// branches cheaply.
type Simulator interface {
	// Clone returns an independent copy sharing no mutable state with the
	// receiver (spec §4.F "clone").
	Clone() Simulator

	// SetEgoPolicy commits the ego vehicle to policyIndex for the next
	// Advance call (spec §4.F "set_ego_policy").
	SetEgoPolicy(policyIndex int) Simulator

	// BindParticle fixes the non-ego intent policies and replay noise this
	// simulator will use for every subsequent Advance call (spec §4.F
	// "bind_particle").
	BindParticle(p Particle) Simulator

	// Advance steps the world forward by one decision layer of duration
	// layerT, subdivided into sub-steps of size dt, accumulating cost as it
	// goes (spec §4.F "advance").
	Advance(layerT, dt float64) Simulator

	// Cost returns the cost accumulated since the simulator was created
	// (spec §4.F "cost").
	Cost() cost.Accumulator

	// ParticleID returns the id of the particle last bound via
	// BindParticle. The tree uses this to track which particles a node has
	// already seen, independent of any domain-specific particle fields.
	ParticleID() int

	// IsTerminal reports whether no further decision layers remain (spec
	// §4.F "is_terminal").
	IsTerminal() bool
}
