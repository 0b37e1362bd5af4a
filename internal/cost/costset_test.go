package cost_test

import (
	"math"
	"testing"

	"github.com/rgardner/pmcts/internal/cost"
	"github.com/stretchr/testify/assert"
)

func TestEmptySetDefaults(t *testing.T) {
	s := cost.NewSet[int]()
	assert.True(t, s.IsEmpty())
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 0.0, s.Mean())
	assert.Equal(t, 0.0, s.StdDev())
	assert.Equal(t, 0.0, s.StdDevOfMean())
}

func TestSingleSampleStdDevSentinel(t *testing.T) {
	s := cost.NewSet[int]()
	s.Push(cost.Sample[int]{Cost: 5})
	assert.Equal(t, 5.0, s.Mean())
	assert.GreaterOrEqual(t, s.StdDev(), 1e12)
	assert.False(t, math.IsInf(s.StdDev(), 0))
}

func TestMeanAndStdDevConverge(t *testing.T) {
	s := cost.NewSet[int]()
	values := []float64{1, 2, 3, 4, 5}
	for _, v := range values {
		s.Push(cost.Sample[int]{Cost: v})
	}
	assert.InDelta(t, 3.0, s.Mean(), 1e-9)
	// population variance of 1..5 is 2.0, std-dev sqrt(2).
	assert.InDelta(t, math.Sqrt(2.0), s.StdDev(), 1e-9)
}

func TestStdDevOfMeanShrinksWithCount(t *testing.T) {
	s := cost.NewSet[int]()
	for i := 0; i < 100; i++ {
		s.Push(cost.Sample[int]{Cost: float64(i % 2)})
	}
	assert.Less(t, s.StdDevOfMean(), s.StdDev())
}

func TestProvenancePreservedInOrder(t *testing.T) {
	s := cost.NewSet[string]()
	s.Push(cost.Sample[string]{Cost: 1, Provenance: "a"})
	s.Push(cost.Sample[string]{Cost: 2, Provenance: "b"})
	all := s.All()
	assert.Equal(t, "a", all[0].Provenance)
	assert.Equal(t, "b", all[1].Provenance)
}
