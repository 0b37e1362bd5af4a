package mcts

import (
	"math"
	"testing"

	"github.com/rgardner/pmcts/internal/config"
	"github.com/stretchr/testify/assert"
)

func TestComputeSelectionIndexUCBIncreasesWithLessTrials(t *testing.T) {
	p := config.Default()
	p.SelectionMode = config.UCB
	p.UCBConst = 1.0

	// Fewer trials (n) of the same mean cost should produce a larger
	// (less confident, more exploration-worthy) index.
	many := computeSelectionIndex(p, 100, math.Log(100), 50, 10, config.UCB, 0)
	few := computeSelectionIndex(p, 100, math.Log(100), 2, 10, config.UCB, 0)
	assert.Greater(t, few, many)
}

func TestComputeSelectionIndexUniformEqualsTrialCount(t *testing.T) {
	p := config.Default()
	got := computeSelectionIndex(p, 10, math.Log(10), 7, 99, config.Uniform, 0)
	assert.Equal(t, 7.0, got)
}

func TestComputeSelectionIndexKLUCBIsFiniteAndBounded(t *testing.T) {
	p := config.Default()
	p.SelectionMode = config.KLUCB
	p.KLUCBMaxCost = 100
	got := computeSelectionIndex(p, 50, math.Log(50), 10, 30, config.KLUCB, 0)
	assert.True(t, !math.IsNaN(got) && !math.IsInf(got, 0))
}

func TestUpdateExpectedCostPanicsOnSameBoundMode(t *testing.T) {
	n := NewRoot()
	assert.Panics(t, func() { n.UpdateExpectedCost(config.Same) })
}
