// Package multivehicle wraps a single-vehicle Simulator Contract
// implementation (spec §4.F) with the per-non-ego-vehicle intent
// assignments CFB's branch selector produces (spec §4.E): an ordered
// policy per tracked vehicle plus the scenario's probability, folded into
// an extra Safety cost term and the clone's overall Cost Accumulator
// weight. It leaves the wrapped Simulator's own cost model untouched,
// grounded on how the reference implementation layers road.cost (ego
// planning cost) and the per-car open-loop riskiness table CFB consults
// before ever touching a Road.
package multivehicle

import (
	"math/rand"

	"github.com/rgardner/pmcts/internal/cost"
	"github.com/rgardner/pmcts/internal/simulator"
	"github.com/rgardner/pmcts/internal/simulator/reference"
)

// VehicleCostTable holds a precomputed open-loop riskiness estimate for
// every (carIndex, policyIndex) pair: how costly, in expectation, it is
// for that vehicle to commit to that policy for one horizon step.
// Implements cfb.OpenLoopSimulator directly.
type VehicleCostTable [][]float64

// NewVehicleCostTable builds a random per-(vehicle, policy) cost surface,
// in the same spirit as reference.SampleCostDistribution: a synthetic
// stand-in for the kinematic/IDM rollout spec's Non-goals exclude, scaled
// to roughly the ego tree's own per-step cost magnitudes so CFB's
// riskiness ranking (worst-cost minus best-cost) is meaningful.
func NewVehicleCostTable(nCars, nPolicies int, rng *rand.Rand) VehicleCostTable {
	table := make(VehicleCostTable, nCars)
	for i := range table {
		row := make([]float64, nPolicies)
		for j := range row {
			row[j] = rng.Float64() * 40
		}
		table[i] = row
	}
	return table
}

// SimulateUnderPolicy implements cfb.OpenLoopSimulator: the per-step cost
// scaled by the horizon length, matching a constant-cost open-loop
// rollout (the spec's Non-goals exclude per-step dynamics fidelity here).
func (t VehicleCostTable) SimulateUnderPolicy(carIndex, policyIndex int, horizonSteps int, dt float64) float64 {
	if carIndex < 0 || carIndex >= len(t) {
		return 0
	}
	row := t[carIndex]
	if policyIndex < 0 || policyIndex >= len(row) {
		return 0
	}
	return row[policyIndex] * float64(horizonSteps) * dt
}

// Particle wraps a reference.Particle (the ego's own replayable tree
// noise) with the per-vehicle policy assignment and scenario weight CFB
// produced (spec §3 "Particle": policy choices plus reproducibility
// seeds).
type Particle struct {
	id       int
	Policies map[int]int
	Weight   float64
	Base     reference.Particle
}

// ID implements simulator.Particle.
func (p Particle) ID() int { return p.id }

// NewBindParticle returns a cfb.BindParticle-shaped function that mints
// Particles for one planning run, drawing a fresh ego-tree noise source
// per particle from rng.
func NewBindParticle(rng *rand.Rand) func(policies map[int]int, weight float64, id int) simulator.Particle {
	return func(policies map[int]int, weight float64, id int) simulator.Particle {
		return Particle{
			id:       id,
			Policies: policies,
			Weight:   weight,
			Base:     reference.SampleParticle(id, rng),
		}
	}
}

// Simulator wraps a base simulator.Simulator (the ego's own cost model)
// with the bound particle's non-ego vehicle riskiness, folded in as an
// extra Safety cost term, and the particle's scenario weight applied to
// the clone's overall Cost Accumulator (spec §4.E step 6).
type Simulator struct {
	base     simulator.Simulator
	table    VehicleCostTable
	horizon  int
	dt       float64
	policies map[int]int
	extra    cost.Accumulator
	weight   float32
}

// New wraps base with table, using horizon/dt as the per-Advance
// open-loop window every bound vehicle's riskiness is folded in over.
func New(base simulator.Simulator, table VehicleCostTable, horizon int, dt float64) *Simulator {
	return &Simulator{base: base, table: table, horizon: horizon, dt: dt, extra: cost.Zero(1.0), weight: 1}
}

func (s *Simulator) Clone() simulator.Simulator {
	clone := *s
	clone.base = s.base.Clone()
	clone.policies = cloneIntMap(s.policies)
	return &clone
}

func (s *Simulator) SetEgoPolicy(policyIndex int) simulator.Simulator {
	clone := *s
	clone.base = s.base.SetEgoPolicy(policyIndex)
	return &clone
}

func (s *Simulator) BindParticle(p simulator.Particle) simulator.Simulator {
	mv := p.(Particle)
	clone := *s
	clone.base = s.base.BindParticle(mv.Base)
	clone.policies = mv.Policies
	clone.weight = float32(mv.Weight)
	return &clone
}

// Advance steps the wrapped base simulator, then folds every bound
// vehicle's open-loop riskiness for this layer into the extra Safety
// term.
func (s *Simulator) Advance(layerT, dt float64) simulator.Simulator {
	clone := *s
	clone.base = s.base.Advance(layerT, dt)
	for carIndex, policyIndex := range s.policies {
		c := s.table.SimulateUnderPolicy(carIndex, policyIndex, s.horizon, s.dt)
		clone.extra = clone.extra.Accumulate(cost.Safety, float32(c), float32(dt))
	}
	return &clone
}

// Cost combines the base simulator's own accumulated cost with the
// vehicle-riskiness extra term, then applies the bound particle's
// scenario weight to the total (spec §4.E step 6: "the Cost
// Accumulator's weight set to that scenario's probability").
func (s *Simulator) Cost() cost.Accumulator {
	return s.base.Cost().Add(s.extra).WithWeight(s.weight)
}

func (s *Simulator) ParticleID() int { return s.base.ParticleID() }

func (s *Simulator) IsTerminal() bool { return s.base.IsTerminal() }

func cloneIntMap(m map[int]int) map[int]int {
	if m == nil {
		return nil
	}
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
