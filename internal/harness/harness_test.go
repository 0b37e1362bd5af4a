package harness_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/harness"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func smallParams() config.Params {
	p := config.Default()
	p.SearchDepth = 2
	p.NActions = 3
	p.SamplesN = 40
	return p
}

func TestRunBatchWritesOneResultPerScenario(t *testing.T) {
	sink := harness.NewMemorySink()
	scenarios := []harness.Scenario{
		{Name: "a", Params: smallParams(), Seed: 1},
		{Name: "b", Params: smallParams(), Seed: 2},
		{Name: "c", Params: smallParams(), Seed: 3},
	}

	err := harness.RunBatch(context.Background(), scenarios, sink)
	require.NoError(t, err)

	results := sink.Results()
	require.Len(t, results, 3)

	names := map[string]bool{}
	for _, r := range results {
		names[r.ScenarioName] = true
		assert.NotEmpty(t, r.BatchID)
		assert.Greater(t, r.StepsTaken, 0)
		assert.GreaterOrEqual(t, r.Regret, -1e-6)
	}
	assert.True(t, names["a"] && names["b"] && names["c"])
}

func TestRunBatchAllResultsShareOneBatchID(t *testing.T) {
	sink := harness.NewMemorySink()
	scenarios := []harness.Scenario{
		{Name: "a", Params: smallParams(), Seed: 1},
		{Name: "b", Params: smallParams(), Seed: 2},
	}
	require.NoError(t, harness.RunBatch(context.Background(), scenarios, sink))

	results := sink.Results()
	require.Len(t, results, 2)
	assert.Equal(t, results[0].BatchID, results[1].BatchID)
}

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	var buf bytes.Buffer
	sink := harness.NewCSVSink(&buf)
	scenarios := []harness.Scenario{
		{Name: "a", Params: smallParams(), Seed: 1},
	}
	require.NoError(t, harness.RunBatch(context.Background(), scenarios, sink))

	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "batch_id")
	assert.Contains(t, lines[1], "a")
}

func TestRunBatchWiredThroughCFBProducesAValidResult(t *testing.T) {
	sink := harness.NewMemorySink()
	params := smallParams()
	params.CFB.UncertaintyThreshold = 1.0 // force every key vehicle to count as uncertain

	scenarios := []harness.Scenario{
		{Name: "cfb", Params: params, Seed: 5, UseCFB: true},
	}
	require.NoError(t, harness.RunBatch(context.Background(), scenarios, sink))

	results := sink.Results()
	require.Len(t, results, 1)
	assert.Equal(t, "cfb", results[0].ScenarioName)
	assert.Greater(t, results[0].StepsTaken, 0)
}

func TestRunBatchAbortsOnContextCancellation(t *testing.T) {
	sink := harness.NewMemorySink()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scenarios := []harness.Scenario{
		{Name: "a", Params: smallParams(), Seed: 1},
	}
	err := harness.RunBatch(ctx, scenarios, sink)
	assert.Error(t, err)
}
