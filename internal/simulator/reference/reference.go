// Package reference implements a synthetic scenario oracle used to
// exercise the PMCTS core end-to-end without any vehicle-dynamics model:
// a fixed-depth, fixed-branching-factor tree of two-component Gaussian
// mixture cost distributions, grounded on
// progressive_mcts_run's problem_scenario (spec §6.2 "synthetic scenario
// oracle", spec §8 "end-to-end scenario"). Ground-truth costs come from
// the distributions' means, so a batch harness can compute the true best
// achievable expected cost by brute-force search over the same tree and
// compare it against what PMCTS found.
package reference

import (
	"math/rand"

	"github.com/rgardner/pmcts/internal/cost"
	"github.com/rgardner/pmcts/internal/simulator"
)

// CostDistribution is a two-component Gaussian mixture, clamped to
// [0, 2*mean] of whichever component was selected, matching the reference
// implementation's CostDistribution::from_correlated.
type CostDistribution struct {
	weight1     float64
	mean1, std1 float64
	mean2, std2 float64
}

// NewCostDistribution builds a mixture with mixing weight weight1 for the
// first Gaussian component (mean1, std1) and 1-weight1 for the second.
func NewCostDistribution(weight1, mean1, std1, mean2, std2 float64) CostDistribution {
	return CostDistribution{weight1: weight1, mean1: mean1, std1: std1, mean2: mean2, std2: std2}
}

// SampleCostDistribution draws a random mixture in the same ranges as the
// reference implementation's new_sampled.
func SampleCostDistribution(rng *rand.Rand) CostDistribution {
	return NewCostDistribution(
		rng.Float64(),
		rng.Float64()*100,
		rng.Float64()*100,
		rng.Float64()*100,
		rng.Float64()*100,
	)
}

// Mean returns the mixture's expected value.
func (d CostDistribution) Mean() float64 {
	return d.weight1*d.mean1 + (1-d.weight1)*d.mean2
}

// Sample draws a fresh, non-reproducible cost from the mixture using rng
// directly, independent of any particle.
func (d CostDistribution) Sample(rng *rand.Rand) float64 {
	return d.FromCorrelated(rng.Float64(), rng.NormFloat64(), rng.NormFloat64())
}

// FromCorrelated deterministically maps a particle's (weightChoice, z1,
// z2) triple to a cost draw, clamped to [0, 2*selected-mean].
func (d CostDistribution) FromCorrelated(weightChoice, z1, z2 float64) float64 {
	if weightChoice <= d.weight1 {
		return clamp(d.mean1+z1*d.std1, 0, 2*d.mean1)
	}
	return clamp(d.mean2+z2*d.std2, 0, 2*d.mean2)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Scenario is a node in the fixed-depth, fixed-branching-factor synthetic
// tree. The root (depth 0) carries no distribution; every other node does.
type Scenario struct {
	Distribution CostDistribution
	HasDist      bool
	Children     []*Scenario
	Depth        int
	MaxDepth     int
}

// NewScenario builds a random scenario tree of the given depth and
// per-node branching factor (spec §6.2).
func NewScenario(maxDepth, nActions int, rng *rand.Rand) *Scenario {
	return newScenarioAt(0, maxDepth, nActions, rng)
}

func newScenarioAt(depth, maxDepth, nActions int, rng *rand.Rand) *Scenario {
	s := &Scenario{Depth: depth, MaxDepth: maxDepth}
	if depth > 0 {
		s.Distribution = SampleCostDistribution(rng)
		s.HasDist = true
	}
	if depth < maxDepth {
		s.Children = make([]*Scenario, nActions)
		for i := range s.Children {
			s.Children[i] = newScenarioAt(depth+1, maxDepth, nActions, rng)
		}
	}
	return s
}

// Particle is the synthetic-oracle's replayable randomness source: a
// per-particle weight choice and two independent standard-normal draws
// used by every node's CostDistribution along the path it takes.
type Particle struct {
	id           int
	WeightChoice float64
	GaussianZ1   float64
	GaussianZ2   float64
}

// ID implements simulator.Particle.
func (p Particle) ID() int { return p.id }

// SampleParticle draws a fresh Particle (spec §4.F "Particle").
func SampleParticle(id int, rng *rand.Rand) Particle {
	return Particle{
		id:           id,
		WeightChoice: rng.Float64(),
		GaussianZ1:   rng.NormFloat64(),
		GaussianZ2:   rng.NormFloat64(),
	}
}

// Simulator implements simulator.Simulator against a fixed Scenario tree.
type Simulator struct {
	scenario      *Scenario
	particle      Particle
	pendingPolicy int
	hasPending    bool
	accum         cost.Accumulator
	rng           *rand.Rand
}

// New creates a Simulator rooted at scenario, with a discount factor of 1
// (the synthetic oracle has no time-discounting; that is a domain concern
// left to production Simulators). rng drives the fresh, non-reproducible
// half of each step's cost (CostDistribution.Sample); the other half comes
// from the bound particle through FromCorrelated, so a step's cost is not
// reproducible from the particle alone.
func New(scenario *Scenario, rng *rand.Rand) *Simulator {
	return &Simulator{scenario: scenario, accum: cost.Zero(1.0), rng: rng}
}

func (s *Simulator) Clone() simulator.Simulator {
	clone := *s
	return &clone
}

func (s *Simulator) SetEgoPolicy(policyIndex int) simulator.Simulator {
	clone := *s
	clone.pendingPolicy = policyIndex
	clone.hasPending = true
	return &clone
}

func (s *Simulator) BindParticle(p simulator.Particle) simulator.Simulator {
	clone := *s
	clone.particle = p.(Particle)
	return &clone
}

func (s *Simulator) Advance(layerT, dt float64) simulator.Simulator {
	child := s.scenario.Children[s.pendingPolicy]
	stepCost := child.Distribution.Sample(s.rng) +
		child.Distribution.FromCorrelated(s.particle.WeightChoice, s.particle.GaussianZ1, s.particle.GaussianZ2)

	clone := *s
	clone.scenario = child
	clone.hasPending = false
	clone.accum = clone.accum.Accumulate(cost.Efficiency, float32(stepCost), 1.0)
	return &clone
}

func (s *Simulator) Cost() cost.Accumulator { return s.accum }

func (s *Simulator) ParticleID() int { return s.particle.ID() }

func (s *Simulator) IsTerminal() bool { return len(s.scenario.Children) == 0 }

// ExpectedMarginalCost is a node's distribution-mean estimate of the total
// cost (fresh-noise plus particle-correlated term) a step through it
// contributes in expectation: 2x its distribution's mean, since Advance
// sums one draw of each (spec §6.2 ground truth).
func ExpectedMarginalCost(s *Scenario) float64 {
	if !s.HasDist {
		return 0
	}
	return s.Distribution.Mean() * 2.0
}

// TrueBestChildCost returns this node's own expected marginal cost, and
// the best achievable expected cost (plus the index achieving it) summed
// over any one child and everything reachable below it.
func TrueBestChildCost(s *Scenario) (addCost, bestChildCost float64, bestChildIdx int) {
	addCost = ExpectedMarginalCost(s)
	if len(s.Children) == 0 {
		return addCost, 0, 0
	}
	bestChildCost = -1
	for i, c := range s.Children {
		a, b, _ := TrueBestChildCost(c)
		total := a + b
		if bestChildCost < 0 || total < bestChildCost {
			bestChildCost, bestChildIdx = total, i
		}
	}
	return addCost, bestChildCost, bestChildIdx
}

// TrueBestCost is the ground-truth minimum expected cost achievable below
// scenario (the best child's expected marginal cost plus everything
// reachable under that child; scenario's own marginal cost is not
// included), and the index of the child achieving it: the oracle spec
// §6.2's true_best_cost and chosen_true_cost metrics compare PMCTS's
// search estimate against.
func TrueBestCost(scenario *Scenario) (float64, int) {
	_, bestChildCost, bestChildIdx := TrueBestChildCost(scenario)
	return bestChildCost, bestChildIdx
}
