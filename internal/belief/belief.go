// Package belief implements the per-vehicle categorical belief over intent
// policies (spec §4.D): seeding, the observation-driven update rule, and
// sampling/MAP/uncertainty queries the CFB branch selector and the MCTS
// particle generator consume.
package belief

import (
	"math/rand"

	"github.com/rgardner/pmcts/internal/policy"
)

// LongIntent is the longitudinal-behavior axis used only for belief
// prediction; it is independent from policy.Kind, which tags the full
// intent policy a vehicle commits to.
type LongIntent int

const (
	Maintain LongIntent = iota
	Accelerate
	Decelerate
)

// VehicleObservation is the predicted vs. hypothesized state the update
// rule multiplies priors over, for one non-ego vehicle (spec §4.D update).
type VehicleObservation struct {
	PredictedLane         int
	PredictedLongitudinal LongIntent
	FinishedWaiting       bool
	CurrentLane           int
}

// Observer supplies the per-vehicle predictions the belief update needs.
// Implementations derive these from whatever world-state representation
// the caller's Simulator uses; belief itself stays agnostic to it.
type Observer interface {
	Observe(carIndex int) VehicleObservation
}

// Params are the priors used by Update (spec §4.D): the probability
// penalties applied when a hypothesis disagrees with the prediction, and
// the prior weight given to a lane-change-skips-waiting hypothesis.
type Params struct {
	DifferentLaneProb         float64 `yaml:"different_lane_prob"`
	DifferentLongitudinalProb float64 `yaml:"different_longitudinal_prob"`
	SkipsWaitingProb          float64 `yaml:"skips_waiting_prob"`
	DecelerateFallbackProb    float64 `yaml:"decelerate_fallback_prob"`
}

// DefaultParams returns priors in the same ballpark as the reference
// implementation this package is grounded on.
func DefaultParams() Params {
	return Params{
		DifferentLaneProb:         0.1,
		DifferentLongitudinalProb: 0.2,
		SkipsWaitingProb:          0.2,
		DecelerateFallbackProb:    0.1,
	}
}

// PolicySet returns the fixed, ordered 9-entry set of belief-state policies
// over which every vehicle's belief vector is defined: the cartesian
// product of 2 lanes x {Maintain, Accelerate} x {waiting, not waiting},
// followed by a single Decelerate fallback entry. Both Belief and the CFB
// branch selector (spec §4.E) index policies against this same ordering.
// policy.Policy carries no longitudinal field, so the Maintain and
// Accelerate entries of one (lane, waiting) pair differ only in their id.
func PolicySet(decelerateVel float64) policy.Set {
	set := make(policy.Set, 0, 9)
	id := 0
	for lane := 0; lane < 2; lane++ {
		for range []LongIntent{Maintain, Accelerate} {
			for _, waitForClear := range []bool{false, true} {
				set = append(set, policy.New(id, policy.LaneChange, lane, 0, 0, waitForClear))
				id++
			}
		}
	}
	set = append(set, policy.New(id, policy.OpenLoop, 0, 0, decelerateVel, false))
	return set
}

// Belief is a mapping from vehicle index to a probability vector over
// PolicySet. Row 0 belongs to the ego vehicle and is never changed by
// Update; non-ego car indices start at 1.
type Belief struct {
	perCar [][]float64
}

// New builds a Belief directly from per-car probability rows. Row 0 (ego)
// is skipped by Update but must still be present to keep indices aligned
// with car indices; Sample draws from it like any other row, and
// NPolicies reads its width.
func New(perCar [][]float64) *Belief {
	return &Belief{perCar: perCar}
}

// Uniform seeds a belief with a uniform distribution over nPolicies for
// each of nCars vehicles (spec §4.D "uniform").
func Uniform(nCars, nPolicies int) *Belief {
	b := &Belief{perCar: make([][]float64, nCars)}
	p := 1.0 / float64(nPolicies)
	for i := range b.perCar {
		row := make([]float64, nPolicies)
		for j := range row {
			row[j] = p
		}
		b.perCar[i] = row
	}
	return b
}

func normalize(row []float64) {
	sum := 0.0
	for _, v := range row {
		sum += v
	}
	if sum == 0 {
		return
	}
	for i := range row {
		row[i] /= sum
	}
}

// Update recomputes every non-ego vehicle's belief vector from fresh
// observations, per spec §4.D: multiply per-attribute priors, zero out
// logically impossible combinations (waiting when past the commit point,
// waiting when no lane change is wanted), attenuate the skips-waiting
// branch, then normalize to sum 1.
func (b *Belief) Update(obs Observer, params Params) {
	for carI := 1; carI < len(b.perCar); carI++ {
		o := obs.Observe(carI)
		row := b.perCar[carI]

		idx := 0
		for lane := 0; lane < 2; lane++ {
			for _, longPolicy := range []LongIntent{Maintain, Accelerate} {
				for _, waitForClear := range []bool{false, true} {
					prob := 1.0
					if lane != o.PredictedLane {
						prob *= params.DifferentLaneProb
					}
					if longPolicy != o.PredictedLongitudinal {
						prob *= params.DifferentLongitudinalProb
					}

					wouldLaneChange := o.FinishedWaiting || !waitForClear
					wantsLaneChange := lane != o.CurrentLane
					willLaneChange := wouldLaneChange && wantsLaneChange

					if willLaneChange && waitForClear {
						prob = 0
					}
					if !wantsLaneChange && waitForClear {
						prob = 0
					}
					if wantsLaneChange && !o.FinishedWaiting && !waitForClear {
						prob *= params.SkipsWaitingProb
					}

					row[idx] = prob
					idx++
				}
			}
		}

		if o.PredictedLongitudinal == Decelerate {
			row[idx] = params.DecelerateFallbackProb
		} else {
			row[idx] = params.DecelerateFallbackProb * params.DifferentLongitudinalProb
		}

		normalize(row)
	}
}

// Sample draws one policy index per vehicle, independently, from its
// categorical belief vector (spec §4.D "sample").
func (b *Belief) Sample(rng *rand.Rand) []int {
	choices := make([]int, len(b.perCar))
	for i, row := range b.perCar {
		choices[i] = weightedChoice(row, rng)
	}
	return choices
}

func weightedChoice(weights []float64, rng *rand.Rand) int {
	sum := 0.0
	for _, w := range weights {
		sum += w
	}
	r := rng.Float64() * sum
	acc := 0.0
	for i, w := range weights {
		acc += w
		if r <= acc {
			return i
		}
	}
	return len(weights) - 1
}

// MostLikely returns the argmax policy index for carI, first-encountered
// on ties (spec §4.D "most_likely").
func (b *Belief) MostLikely(carI int) int {
	row := b.perCar[carI]
	best := 0
	for i, v := range row {
		if v > row[best] {
			best = i
		}
	}
	return best
}

// NPolicies returns the width of each car's belief vector, or 0 if the
// belief has no cars.
func (b *Belief) NPolicies() int {
	if len(b.perCar) == 0 {
		return 0
	}
	return len(b.perCar[0])
}

// Get returns the belief mass carI assigns to policyI.
func (b *Belief) Get(carI, policyI int) float64 {
	return b.perCar[carI][policyI]
}

// IsUncertain reports whether the top two policy probabilities for carI
// differ by less than threshold; a vehicle with fewer than two policies is
// never uncertain (spec §4.D "is_uncertain").
func (b *Belief) IsUncertain(carI int, threshold float64) bool {
	row := b.perCar[carI]
	if len(row) < 2 {
		return false
	}
	first, second := -1.0, -1.0
	for _, v := range row {
		switch {
		case v > first:
			second = first
			first = v
		case v > second:
			second = v
		}
	}
	return (first - second) < threshold
}
