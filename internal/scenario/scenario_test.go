package scenario_test

import (
	"math/rand"
	"testing"

	"github.com/rgardner/pmcts/internal/belief"
	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/driver"
	"github.com/rgardner/pmcts/internal/scenario"
	"github.com/rgardner/pmcts/internal/simulator/multivehicle"
	"github.com/rgardner/pmcts/internal/simulator/reference"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildProducesFactoriesDriverCanRunToCompletion(t *testing.T) {
	params := config.Default()
	params.SearchDepth = 2
	params.NActions = 3
	params.SamplesN = 20
	params.NCars = 3
	params.CFB.UncertaintyThreshold = 1.0 // every vehicle counts as uncertain

	rng := rand.New(rand.NewSource(11))
	tree := reference.NewScenario(params.SearchDepth, params.NActions, rng)
	base := reference.New(tree, rng)

	nPolicies := belief.PolicySet(params.DecelerateVel).Len()
	b := belief.Uniform(params.NCars, nPolicies)
	table := multivehicle.NewVehicleCostTable(params.NCars, nPolicies, rng)
	w := scenario.RandomWorld(params.NCars, rng)

	particleFactory, simFactory := scenario.Build(params, b, w, base, table, rng)

	outcome := driver.Run(params, particleFactory, simFactory, rng)

	assert.GreaterOrEqual(t, outcome.ChosenPolicy, 0)
	assert.Less(t, outcome.ChosenPolicy, params.NActions)
	require.NotNil(t, outcome.Root)
}

func TestBuildFallsBackToMapDefaultsWhenNoVehicleIsUncertain(t *testing.T) {
	params := config.Default()
	params.NCars = 2
	params.CFB.UncertaintyThreshold = -1.0 // nothing ever counts as uncertain

	rng := rand.New(rand.NewSource(12))
	tree := reference.NewScenario(params.SearchDepth, params.NActions, rng)
	base := reference.New(tree, rng)

	nPolicies := belief.PolicySet(params.DecelerateVel).Len()
	b := belief.Uniform(params.NCars, nPolicies)
	table := multivehicle.NewVehicleCostTable(params.NCars, nPolicies, rng)
	w := scenario.RandomWorld(params.NCars, rng)

	particleFactory, _ := scenario.Build(params, b, w, base, table, rng)

	p1 := particleFactory(0, rng)
	p2 := particleFactory(1, rng)
	require.NotEqual(t, p1.ID(), p2.ID())
}
