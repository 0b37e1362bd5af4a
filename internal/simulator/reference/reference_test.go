package reference_test

import (
	"math/rand"
	"testing"

	"github.com/rgardner/pmcts/internal/simulator"
	"github.com/rgardner/pmcts/internal/simulator/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCostDistributionClampsToComponentRange(t *testing.T) {
	d := reference.NewCostDistribution(1.0, 10, 1000, 999, 1)
	// weightChoice 0 always selects component 1; extreme z should clamp to
	// [0, 2*mean1].
	assert.Equal(t, 0.0, d.FromCorrelated(0, -1e9, 0))
	assert.Equal(t, 20.0, d.FromCorrelated(0, 1e9, 0))
}

func TestCostDistributionMeanIsWeightedAverage(t *testing.T) {
	d := reference.NewCostDistribution(0.25, 10, 1, 30, 1)
	assert.InDelta(t, 0.25*10+0.75*30, d.Mean(), 1e-9)
}

func TestScenarioTreeShapeMatchesDepthAndBranching(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	s := reference.NewScenario(2, 3, rng)
	assert.False(t, s.HasDist)
	require.Len(t, s.Children, 3)
	for _, c := range s.Children {
		assert.True(t, c.HasDist)
		require.Len(t, c.Children, 3)
		for _, leaf := range c.Children {
			assert.True(t, leaf.HasDist)
			assert.Empty(t, leaf.Children)
		}
	}
}

func TestSimulatorAdvanceIsTerminalAtMaxDepth(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	scenario := reference.NewScenario(1, 2, rng)
	particle := reference.SampleParticle(0, rng)

	var sim simulator.Simulator = reference.New(scenario, rng)
	assert.False(t, sim.IsTerminal())
	sim = sim.BindParticle(particle)
	sim = sim.SetEgoPolicy(0)
	sim = sim.Advance(1.0, 0.1)
	assert.True(t, sim.IsTerminal())
}

func TestCloneIsIndependent(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	scenario := reference.NewScenario(2, 2, rng)
	particle := reference.SampleParticle(0, rng)

	base := reference.New(scenario, rng).BindParticle(particle)
	clone := base.Clone()

	advanced := base.SetEgoPolicy(0).Advance(1.0, 0.1)
	assert.NotEqual(t, advanced.Cost().Total(), clone.Cost().Total())
}

func TestTrueBestCostIsLowerBoundOfEveryChildsExpectedCost(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	scenario := reference.NewScenario(2, 3, rng)

	best, bestIdx := reference.TrueBestCost(scenario)
	for i, c := range scenario.Children {
		childTotal, _ := reference.TrueBestCost(c)
		childTotal += reference.ExpectedMarginalCost(c)
		assert.GreaterOrEqual(t, childTotal, best-1e-9)
		if i == bestIdx {
			assert.InDelta(t, best, childTotal, 1e-9)
		}
	}
}

func TestTrueBestCostZeroAtLeaf(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	scenario := reference.NewScenario(0, 2, rng)
	got, _ := reference.TrueBestCost(scenario)
	assert.Equal(t, 0.0, got)
}
