package config_test

import (
	"testing"

	"github.com/rgardner/pmcts/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCostBoundModeRoundTripsEveryMode(t *testing.T) {
	modes := []config.CostBoundMode{config.Classic, config.Expectimax, config.LowerBound, config.Marginal, config.Same}
	for _, m := range modes {
		parsed, err := config.ParseCostBoundMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestParseCostBoundModeRejectsUnknown(t *testing.T) {
	_, err := config.ParseCostBoundMode("not_a_mode")
	assert.Error(t, err)
}

func TestParseChildSelectionModeRoundTripsEveryMode(t *testing.T) {
	modes := []config.ChildSelectionMode{config.UCB, config.UCBV, config.UCBd, config.KLUCB, config.KLUCBPlus, config.Uniform}
	for _, m := range modes {
		parsed, err := config.ParseChildSelectionMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, parsed)
	}
}

func TestParseChildSelectionModeRejectsUnknown(t *testing.T) {
	_, err := config.ParseChildSelectionMode("bogus")
	assert.Error(t, err)
}

func TestDefaultIsInternallyConsistent(t *testing.T) {
	p := config.Default()
	assert.Greater(t, p.SearchDepth, 0)
	assert.Greater(t, p.NActions, 0)
	assert.Greater(t, p.SamplesN, 0)
	assert.Equal(t, p.BoundMode, p.EffectiveFinalChoiceMode())
}

func TestEffectiveFinalChoiceModeSubstitutesBoundMode(t *testing.T) {
	p := config.Default()
	p.BoundMode = config.Expectimax
	p.FinalChoiceMode = config.Same
	assert.Equal(t, config.Expectimax, p.EffectiveFinalChoiceMode())

	p.FinalChoiceMode = config.Classic
	assert.Equal(t, config.Classic, p.EffectiveFinalChoiceMode())
}

func TestLoadBatchParsesNamedScenarios(t *testing.T) {
	data := []byte(`
scenarios:
  fast:
    search_depth: 2
    n_actions: 3
    samples_n: 50
    bound_mode: expectimax
    selection_mode: klucb
    rng_seed: 42
  slow:
    search_depth: 5
    n_actions: 4
    samples_n: 400
    bound_mode: marginal
    selection_mode: ucb
`)
	batch, err := config.LoadBatch(data)
	require.NoError(t, err)
	require.Len(t, batch.Scenarios, 2)

	fast := batch.Scenarios["fast"]
	assert.Equal(t, 2, fast.SearchDepth)
	assert.Equal(t, config.Expectimax, fast.BoundMode)
	assert.Equal(t, config.KLUCB, fast.SelectionMode)
	assert.Equal(t, uint64(42), fast.RNGSeed)

	slow := batch.Scenarios["slow"]
	assert.Equal(t, config.Marginal, slow.BoundMode)
	assert.Equal(t, config.UCB, slow.SelectionMode)
}

func TestLoadBatchParsesCFBAndBeliefBlocks(t *testing.T) {
	data := []byte(`
scenarios:
  with_cfb:
    search_depth: 3
    n_actions: 4
    samples_n: 100
    bound_mode: marginal
    selection_mode: ucb
    n_cars: 5
    cfb:
      key_vehicle_base_dist: 15
      key_vehicle_dist_time: 1.5
      uncertainty_threshold: 0.25
      max_n_for_cartesian_product: 4
      horizon_steps: 3
      dt: 0.1
    belief:
      different_lane_prob: 0.05
      different_longitudinal_prob: 0.15
      skips_waiting_prob: 0.25
      decelerate_fallback_prob: 0.05
`)
	batch, err := config.LoadBatch(data)
	require.NoError(t, err)

	p := batch.Scenarios["with_cfb"]
	assert.Equal(t, 5, p.NCars)
	assert.Equal(t, 15.0, p.CFB.KeyVehicleBaseDist)
	assert.Equal(t, 4, p.CFB.MaxForCartesianProduct)
	assert.Equal(t, 0.05, p.Belief.DifferentLaneProb)
}

func TestLoadBatchRejectsMalformedYAML(t *testing.T) {
	_, err := config.LoadBatch([]byte("scenarios: [this is not a map"))
	assert.Error(t, err)
}

func TestLoadBatchRejectsUnknownEnumValue(t *testing.T) {
	data := []byte(`
scenarios:
  bad:
    bound_mode: not_a_real_mode
`)
	_, err := config.LoadBatch(data)
	assert.Error(t, err)
}
