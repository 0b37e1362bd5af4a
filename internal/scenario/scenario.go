// Package scenario assembles one planning call's belief update and CFB
// branch selection into the particle/simulator factories internal/driver
// consumes (spec §2 data flow: "belief state -> (D) samples particles ->
// (E) prunes/weights scenarios -> (H) drives (G)"). It is the glue
// between internal/belief, internal/cfb, internal/simulator/multivehicle,
// and internal/driver that a bare harness run otherwise has no reason to
// construct.
package scenario

import (
	"math/rand"

	"github.com/rgardner/pmcts/internal/belief"
	"github.com/rgardner/pmcts/internal/cfb"
	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/driver"
	"github.com/rgardner/pmcts/internal/simulator"
	"github.com/rgardner/pmcts/internal/simulator/multivehicle"
)

// World is the observed traffic state CFB's filters and the belief
// update need for one planning call: the ego's own velocity, every
// vehicle's longitudinal distance from the ego (index 0 is the ego and
// is ignored), which vehicles have crashed, and an Observer belief.Update
// can query for fresh per-vehicle predictions.
type World struct {
	EgoVel       float64
	CarDistances []float64
	Crashed      []bool
	Observer     belief.Observer
}

// RandomWorld synthesizes a World with nCars vehicles (ego included),
// standing in for the real perception/prediction pipeline the spec's
// Non-goals place out of scope, in the same spirit as
// internal/simulator/reference stands in for real vehicle dynamics.
func RandomWorld(nCars int, rng *rand.Rand) World {
	carDistances := make([]float64, nCars)
	crashed := make([]bool, nCars)
	for i := 1; i < nCars; i++ {
		carDistances[i] = rng.Float64() * 80
	}
	return World{
		EgoVel:       10 + rng.Float64()*15,
		CarDistances: carDistances,
		Crashed:      crashed,
		Observer:     randomObserver{rng: rng},
	}
}

type randomObserver struct{ rng *rand.Rand }

func (o randomObserver) Observe(carIndex int) belief.VehicleObservation {
	return belief.VehicleObservation{
		PredictedLane:         o.rng.Intn(2),
		PredictedLongitudinal: belief.LongIntent(o.rng.Intn(3)),
		FinishedWaiting:       o.rng.Float64() < 0.5,
		CurrentLane:           o.rng.Intn(2),
	}
}

// Build runs one belief update and CFB branch selection pass, then
// returns driver-ready factories that replay the resulting weighted
// world clones instead of i.i.d. resampling from a bare oracle (spec §2,
// §4.D, §4.E). base is the ego's own Simulator, freshly rooted for this
// planning call; table is the per-(vehicle,policy) open-loop riskiness
// CFB's ranking step consults.
func Build(params config.Params, b *belief.Belief, w World, base simulator.Simulator, table multivehicle.VehicleCostTable, rng *rand.Rand) (driver.ParticleFactory, driver.SimulatorFactory) {
	b.Update(w.Observer, params.Belief)

	key := cfb.KeyVehicles(params.CFB, w.EgoVel, w.CarDistances, w.Crashed)
	uncertain := cfb.UncertainVehicles(key, b, params.CFB.UncertaintyThreshold)

	mapPolicies := make(map[int]int, len(w.CarDistances)-1)
	for carI := 1; carI < len(w.CarDistances); carI++ {
		mapPolicies[carI] = b.MostLikely(carI)
	}

	var scenarios []cfb.Scenario
	if len(uncertain) > 0 {
		riskiness := cfb.AssessRiskiness(params.CFB, table, uncertain, b.NPolicies())
		ranked := cfb.RankAndTruncate(params.CFB, riskiness)
		carIs := make([]int, len(ranked))
		for i, r := range ranked {
			carIs[i] = r.CarIndex
		}
		scenarios = cfb.MostProbableCartesianProduct(carIs, b, b.NPolicies(), params.SamplesN)
	}

	bind := multivehicle.NewBindParticle(rng)
	mvBase := multivehicle.New(base, table, params.CFB.HorizonSteps, params.CFB.DT)
	weighted := cfb.BuildScenarios(mvBase, mapPolicies, scenarios, bind, 0)

	particleFactory := func(i int, rng *rand.Rand) simulator.Particle {
		w := weighted[i%len(weighted)]
		return bind(w.Policies, w.Probability, i)
	}
	simFactory := func(p simulator.Particle, rng *rand.Rand) simulator.Simulator {
		return mvBase.Clone()
	}

	return particleFactory, simFactory
}
