// Package cfb implements Conditional Focused Branching (spec §4.E): the
// key-vehicle distance filter, the uncertainty filter, open-loop riskiness
// ranking, and bounded top-N cartesian-product joint-scenario enumeration
// that the driver uses to assemble a particle set cheaper than full
// enumeration over every vehicle's belief.
package cfb

import (
	"container/heap"
	"sort"

	"github.com/rgardner/pmcts/internal/belief"
	"github.com/rgardner/pmcts/internal/simulator"
)

// KeyVehicle is a non-ego vehicle within the distance threshold of the ego
// vehicle, tagged with its longitudinal distance.
type KeyVehicle struct {
	CarIndex int
	Distance float64
}

// Params configures the CFB filters and truncation (spec §4.E). YAML tags
// let it be embedded directly in config.Params so a scenario batch file
// configures CFB through the same surface as every other planner knob.
type Params struct {
	KeyVehicleBaseDist     float64 `yaml:"key_vehicle_base_dist"`
	KeyVehicleDistTime     float64 `yaml:"key_vehicle_dist_time"`
	UncertaintyThreshold   float64 `yaml:"uncertainty_threshold"`
	MaxForCartesianProduct int     `yaml:"max_n_for_cartesian_product"`
	HorizonSteps           int     `yaml:"horizon_steps"`
	DT                     float64 `yaml:"dt"`
}

// DefaultParams returns CFB knobs in the same ballpark as the reference
// implementation's CfbParameters defaults.
func DefaultParams() Params {
	return Params{
		KeyVehicleBaseDist:     20.0,
		KeyVehicleDistTime:     2.0,
		UncertaintyThreshold:   0.2,
		MaxForCartesianProduct: 3,
		HorizonSteps:           5,
		DT:                     0.2,
	}
}

// SpeedFloor is the minimum ego velocity used when scaling the
// distance-time term of the key-vehicle threshold, matching the reference
// implementation's clamp against crawling-speed false negatives.
const SpeedFloor = 1.0

// KeyVehicles filters non-ego vehicles to those within
// KeyVehicleBaseDist + max(egoVel, SpeedFloor) * KeyVehicleDistTime of the
// ego vehicle, by absolute longitudinal distance (spec §4.E "key vehicle
// filter"). crashed vehicles are never returned.
func KeyVehicles(p Params, egoVel float64, carDistances []float64, crashed []bool) []KeyVehicle {
	floor := egoVel
	if floor < SpeedFloor {
		floor = SpeedFloor
	}
	threshold := p.KeyVehicleBaseDist + floor*p.KeyVehicleDistTime

	var out []KeyVehicle
	for carI := 1; carI < len(carDistances); carI++ {
		if carI < len(crashed) && crashed[carI] {
			continue
		}
		dx := carDistances[carI]
		if dx < 0 {
			dx = -dx
		}
		if dx <= threshold {
			out = append(out, KeyVehicle{CarIndex: carI, Distance: dx})
		}
	}
	return out
}

// UncertainVehicles narrows key to the subset the belief considers
// uncertain (spec §4.E "uncertainty filter").
func UncertainVehicles(key []KeyVehicle, b *belief.Belief, threshold float64) []KeyVehicle {
	var out []KeyVehicle
	for _, kv := range key {
		if b.IsUncertain(kv.CarIndex, threshold) {
			out = append(out, kv)
		}
	}
	return out
}

// OpenLoopSimulator runs a single-vehicle open-loop rollout under each
// candidate policy and reports the resulting total cost. Implementations
// wrap whatever Simulator Contract (spec §4.F) the caller uses; CFB itself
// never touches vehicle dynamics.
type OpenLoopSimulator interface {
	SimulateUnderPolicy(carIndex, policyIndex int, horizonSteps int, dt float64) float64
}

// RiskinessResult is one key vehicle's open-loop riskiness assessment: the
// spread between its worst-case and best-case open-loop cost across every
// candidate policy.
type RiskinessResult struct {
	CarIndex  int
	Riskiness float64
	Distance  float64
	Costs     []float64
}

// AssessRiskiness runs OpenLoopSimulator for every (vehicle, policy) pair
// and computes each vehicle's riskiness = worst_cost - best_cost (spec
// §4.E "open-loop riskiness").
func AssessRiskiness(p Params, sim OpenLoopSimulator, key []KeyVehicle, nPolicies int) []RiskinessResult {
	results := make([]RiskinessResult, 0, len(key))
	for _, kv := range key {
		costs := make([]float64, nPolicies)
		worst, best := costs[0], costs[0]
		for policyI := 0; policyI < nPolicies; policyI++ {
			c := sim.SimulateUnderPolicy(kv.CarIndex, policyI, p.HorizonSteps, p.DT)
			costs[policyI] = c
			if policyI == 0 || c > worst {
				worst = c
			}
			if policyI == 0 || c < best {
				best = c
			}
		}
		results = append(results, RiskinessResult{
			CarIndex:  kv.CarIndex,
			Riskiness: worst - best,
			Distance:  kv.Distance,
			Costs:     costs,
		})
	}
	return results
}

// RankAndTruncate sorts descending by riskiness then ascending by
// distance, and truncates to at most Params.MaxForCartesianProduct
// entries (spec §4.E "ranking/truncation").
func RankAndTruncate(p Params, results []RiskinessResult) []RiskinessResult {
	sorted := make([]RiskinessResult, len(results))
	copy(sorted, results)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Riskiness != sorted[j].Riskiness {
			return sorted[i].Riskiness > sorted[j].Riskiness
		}
		return sorted[i].Distance < sorted[j].Distance
	})
	if len(sorted) > p.MaxForCartesianProduct {
		sorted = sorted[:p.MaxForCartesianProduct]
	}
	return sorted
}

// Scenario is one joint assignment of policies to a subset of vehicles,
// paired with its joint probability under the belief.
type Scenario struct {
	Probability float64
	Assignment  []VehiclePolicy
}

// VehiclePolicy pins one vehicle to one policy index within a Scenario.
type VehiclePolicy struct {
	CarIndex  int
	PolicyIndex int
}

// heap item and ordering: a standard min-heap on Probability gives O(log n)
// eviction of the current worst-of-top-N scenario, matching the reference
// implementation's BinaryHeap<Reverse<NotNan<f64>>> bound.
type scenarioHeap []Scenario

func (h scenarioHeap) Len() int            { return len(h) }
func (h scenarioHeap) Less(i, j int) bool  { return h[i].Probability < h[j].Probability }
func (h scenarioHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *scenarioHeap) Push(x interface{}) { *h = append(*h, x.(Scenario)) }
func (h *scenarioHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// MostProbableCartesianProduct enumerates the cartesian product of
// carIs x [0, nPolicies) and keeps only the top nScenarios by joint
// probability under belief, maintained via a bounded min-heap rather than
// materializing the full product (spec §4.E "bounded min-heap top-N
// enumeration"; the equivalence-to-full-enumeration property is the
// correctness criterion this function is designed to satisfy).
func MostProbableCartesianProduct(carIs []int, b *belief.Belief, nPolicies, nScenarios int) []Scenario {
	if len(carIs) == 0 || nPolicies == 0 || nScenarios == 0 {
		return nil
	}

	h := &scenarioHeap{}
	heap.Init(h)

	current := make([]int, len(carIs))
	for {
		prob := 1.0
		for i, carI := range carIs {
			prob *= b.Get(carI, current[i])
		}

		assignment := make([]VehiclePolicy, len(carIs))
		for i, carI := range carIs {
			assignment[i] = VehiclePolicy{CarIndex: carI, PolicyIndex: current[i]}
		}
		scenario := Scenario{Probability: prob, Assignment: assignment}

		switch {
		case h.Len() < nScenarios:
			heap.Push(h, scenario)
		case prob > (*h)[0].Probability:
			heap.Pop(h)
			heap.Push(h, scenario)
		}

		if !increment(current, nPolicies) {
			break
		}
	}

	out := make([]Scenario, h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(h).(Scenario)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Probability > out[j].Probability })
	return out
}

// BindParticle constructs a concrete simulator.Particle carrying a
// per-vehicle policy assignment, the scenario's probability, and a unique
// id. CFB depends only on this function type, never on a concrete
// Particle or Simulator implementation, so it stays usable against any
// domain that implements the Simulator Contract (spec §4.F).
type BindParticle func(policies map[int]int, weight float64, id int) simulator.Particle

// WeightedSimulator is one emitted world clone paired with the scenario
// probability CFB assigned it, ready for the driver's trial loop to
// advance (spec §4.E step 6 "emit").
type WeightedSimulator struct {
	Sim         simulator.Simulator
	Probability float64

	// Policies is the per-vehicle assignment the clone was bound with,
	// exposed so a caller driving many trials per scenario (see
	// internal/scenario) can remint a fresh, uniquely-id'd particle for
	// every trial instead of reusing this one clone's id.
	Policies map[int]int
}

// BuildScenarios emits the world clones CFB hands to the driver (spec
// §4.E step 5/6): a base world where every vehicle defaults to its MAP
// belief policy, then one clone per ranked scenario with the retained
// vehicles overridden by that scenario's joint assignment and the clone's
// Cost Accumulator weight set to the scenario's probability. If scenarios
// is empty (no vehicle survived the uncertainty/riskiness filters), a
// single clone at the MAP defaults is emitted with weight 1, matching the
// reference implementation's conditional_focused_branching fallback.
func BuildScenarios(base simulator.Simulator, mapPolicies map[int]int, scenarios []Scenario, bind BindParticle, startID int) []WeightedSimulator {
	if len(scenarios) == 0 {
		policies := cloneIntMap(mapPolicies)
		p := bind(policies, 1.0, startID)
		return []WeightedSimulator{{Sim: base.Clone().BindParticle(p), Probability: 1.0, Policies: policies}}
	}

	out := make([]WeightedSimulator, len(scenarios))
	for i, sc := range scenarios {
		policies := cloneIntMap(mapPolicies)
		for _, vp := range sc.Assignment {
			policies[vp.CarIndex] = vp.PolicyIndex
		}
		p := bind(policies, sc.Probability, startID+i)
		out[i] = WeightedSimulator{Sim: base.Clone().BindParticle(p), Probability: sc.Probability, Policies: policies}
	}
	return out
}

func cloneIntMap(m map[int]int) map[int]int {
	out := make(map[int]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// increment advances current to the next mixed-radix tuple in base
// nPolicies, carry-propagating left to right; it reports false once every
// position has wrapped back to 0 (full product exhausted).
func increment(current []int, nPolicies int) bool {
	for i := range current {
		current[i]++
		if current[i] < nPolicies {
			return true
		}
		current[i] = 0
	}
	return false
}
