package driver_test

import (
	"math/rand"
	"testing"

	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/driver"
	"github.com/rgardner/pmcts/internal/simulator"
	"github.com/rgardner/pmcts/internal/simulator/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunProducesAValidPolicyChoice(t *testing.T) {
	params := config.Default()
	params.SearchDepth = 2
	params.NActions = 4
	params.SamplesN = 50

	rng := rand.New(rand.NewSource(42))
	scenario := reference.NewScenario(params.SearchDepth, params.NActions, rng)

	outcome := driver.Run(
		params,
		func(i int, rng *rand.Rand) simulator.Particle { return reference.SampleParticle(i, rng) },
		func(p simulator.Particle, rng *rand.Rand) simulator.Simulator { return reference.New(scenario, rng) },
		rng,
	)

	assert.GreaterOrEqual(t, outcome.ChosenPolicy, 0)
	assert.Less(t, outcome.ChosenPolicy, params.NActions)
	assert.Greater(t, outcome.StepsTaken, 0)
	require.NotNil(t, outcome.Root)
}

func TestRunRespectsConsistencyHeadroomCeiling(t *testing.T) {
	params := config.Default()
	params.SearchDepth = 2
	params.NActions = 2
	params.SamplesN = 30
	params.MostVisitedBestCostConsistency = true

	rng := rand.New(rand.NewSource(7))
	scenario := reference.NewScenario(params.SearchDepth, params.NActions, rng)

	outcome := driver.Run(
		params,
		func(i int, rng *rand.Rand) simulator.Particle { return reference.SampleParticle(i, rng) },
		func(p simulator.Particle, rng *rand.Rand) simulator.Simulator { return reference.New(scenario, rng) },
		rng,
	)

	maxTrials := params.SamplesN * 12 / 10
	assert.LessOrEqual(t, outcome.StepsTaken, maxTrials*params.SearchDepth)
}

func TestRunWithoutConsistencyStopsExactlyAtSamplesN(t *testing.T) {
	params := config.Default()
	params.SearchDepth = 1
	params.NActions = 2
	params.SamplesN = 25
	params.MostVisitedBestCostConsistency = false

	rng := rand.New(rand.NewSource(9))
	scenario := reference.NewScenario(params.SearchDepth, params.NActions, rng)

	outcome := driver.Run(
		params,
		func(i int, rng *rand.Rand) simulator.Particle { return reference.SampleParticle(i, rng) },
		func(p simulator.Particle, rng *rand.Rand) simulator.Simulator { return reference.New(scenario, rng) },
		rng,
	)

	assert.Equal(t, params.SamplesN*params.SearchDepth, outcome.StepsTaken)
}
