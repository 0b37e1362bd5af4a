// Package cost implements the Cost Accumulator (spec §4.A) and the Cost
// Statistics Set (spec §4.B): a fixed vector of additive cost terms with
// time discounting, and an append-only online mean/std-dev tracker tagged
// with an opaque provenance token.
package cost

import "github.com/chewxy/math32"

// Term identifies one of the fixed additive cost terms.
type Term int

const (
	Efficiency Term = iota
	Safety
	Accel
	Steer

	numTerms = int(Steer) + 1
)

// Accumulator is the immutable-by-convention (copied by value) multi-term
// additive cost described in spec §4.A: four terms, a time discount that
// decays as rolls progress, and an external weight used by CFB to fold in
// a scenario's probability.
type Accumulator struct {
	terms          [numTerms]float32
	discount       float32
	discountFactor float32
	weight         float32
}

// Zero is the additive identity: zero terms, discount 1, weight 1.
func Zero(discountFactor float32) Accumulator {
	return Accumulator{discount: 1, discountFactor: discountFactor, weight: 1}
}

// Weight returns the accumulator's scenario weight.
func (a Accumulator) Weight() float32 { return a.weight }

// WithWeight returns a copy with a new weight, used by CFB to tag a cloned
// world with its scenario probability (spec §4.E step 6).
func (a Accumulator) WithWeight(weight float32) Accumulator {
	a.weight = weight
	return a
}

// Term returns the raw (unweighted) accumulated value for a single term.
func (a Accumulator) Term(t Term) float32 { return a.terms[t] }

// Accumulate folds a sub-step's contribution into the given term:
// weight * value * dt * discount, then decays the discount by
// discountFactor^dt, per spec §4.A "Accumulation".
func (a Accumulator) Accumulate(t Term, value, dt float32) Accumulator {
	a.terms[t] += a.weight * value * dt * a.discount
	a.discount *= math32.Pow(a.discountFactor, dt)
	return a
}

// unweightedTotal sums the four raw terms.
func (a Accumulator) unweightedTotal() float32 {
	var sum float32
	for _, v := range a.terms {
		sum += v
	}
	return sum
}

// Total returns the weighted sum of all terms: the scalar ordering key.
func (a Accumulator) Total() float32 {
	return a.weight * a.unweightedTotal()
}

// normalize folds weight into the terms and resets weight/discount to 1,
// the representation arithmetic operations combine under.
func (a Accumulator) normalize() Accumulator {
	out := a
	for i := range out.terms {
		out.terms[i] = a.terms[i] * a.weight
	}
	out.weight = 1
	out.discount = 1
	return out
}

// Add combines two accumulators term-wise after normalizing each by its own
// weight; the discount/discountFactor of the receiver are preserved.
func (a Accumulator) Add(b Accumulator) Accumulator {
	na, nb := a.normalize(), b.normalize()
	var out Accumulator
	for i := range out.terms {
		out.terms[i] = na.terms[i] + nb.terms[i]
	}
	out.discount = a.discount
	out.discountFactor = a.discountFactor
	out.weight = 1
	return out
}

// Sub term-wise subtracts b from a after normalizing each by its own weight.
func (a Accumulator) Sub(b Accumulator) Accumulator {
	na, nb := a.normalize(), b.normalize()
	var out Accumulator
	for i := range out.terms {
		out.terms[i] = na.terms[i] - nb.terms[i]
	}
	out.discount = a.discount
	out.discountFactor = a.discountFactor
	out.weight = 1
	return out
}

// Mul scales every term by a scalar, leaving discount/weight untouched.
func (a Accumulator) Mul(scalar float32) Accumulator {
	out := a
	for i := range out.terms {
		out.terms[i] = a.terms[i] * scalar
	}
	return out
}

// Div scales every term by 1/scalar.
func (a Accumulator) Div(scalar float32) Accumulator {
	return a.Mul(1 / scalar)
}

// Max returns the accumulator with the larger Total(), used to combine
// worst-case costs pointwise across an ensemble (spec §4.A "max").
func (a Accumulator) Max(b Accumulator) Accumulator {
	if a.Total() >= b.Total() {
		return a
	}
	return b
}

// Sum adds an ensemble of accumulators together, for averaging across a
// particle ensemble (spec §4.A "summation").
func Sum(accs ...Accumulator) Accumulator {
	if len(accs) == 0 {
		return Accumulator{discount: 1, discountFactor: 1, weight: 1}
	}
	sum := Accumulator{discount: 1, discountFactor: accs[0].discountFactor, weight: 1}
	for _, a := range accs {
		sum = sum.Add(a)
	}
	return sum
}

// Less orders accumulators by Total(), for use with sort.Slice and friends.
func Less(a, b Accumulator) bool { return a.Total() < b.Total() }
