// Package driver implements the Driver component (spec §4.H): assembling
// a particle per trial, expanding the tree root, running the trial loop
// up to samples_n (plus up to 20% headroom for the most-visited-vs-best-
// cost consistency extension), and extracting the final policy choice.
// Grounded on progressive_mcts_run's run_with_parameters.
package driver

import (
	"math/rand"

	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/mcts"
	"github.com/rgardner/pmcts/internal/simulator"
)

// ParticleFactory produces a fresh, reproducible particle for trial i.
type ParticleFactory func(i int, rng *rand.Rand) simulator.Particle

// SimulatorFactory builds a fresh Simulator bound to particle, rooted at
// whatever world state this run is planning from.
type SimulatorFactory func(particle simulator.Particle, rng *rand.Rand) simulator.Simulator

// Outcome is everything one planning run produced: the chosen policy, the
// tree's own cost estimate for it, and bookkeeping useful to a harness
// measuring search quality (spec §4.H, §6.2).
type Outcome struct {
	ChosenPolicy int
	ChosenCost   float64
	StepsTaken   int
	SumRepeated  int
	Root         *mcts.Node
}

// consistencyHeadroomNumerator/Denominator bound how far past SamplesN the
// most-visited-vs-best-cost consistency extension may run: at most 20%
// more trials (spec §9 Open Question (a) resolution).
const (
	consistencyHeadroomNumerator   = 12
	consistencyHeadroomDenominator = 10
)

// Run drives one full PMCTS planning episode: expands the root, then runs
// trials until SamplesN, extending up to 1.2x SamplesN while the
// most-visited and best-cost policies disagree and
// MostVisitedBestCostConsistency is enabled (spec §4.H, §9).
func Run(params config.Params, particleFactory ParticleFactory, simFactory SimulatorFactory, rng *rand.Rand) Outcome {
	root := mcts.NewRoot()
	root.ExpandChildren(params.NActions)

	stepsTaken := 0
	maxTrials := params.SamplesN * consistencyHeadroomNumerator / consistencyHeadroomDenominator

	for i := 0; ; i++ {
		particle := particleFactory(i, rng)
		sim := simFactory(particle, rng).BindParticle(particle)
		mcts.FindAndRunTrial(root, sim, rng, params, &stepsTaken)

		if i+1 < params.SamplesN {
			continue
		}

		if params.MostVisitedBestCostConsistency && i+1 < maxTrials {
			if root.GetBestPolicyByVisits() != root.GetBestPolicyByCost() {
				continue
			}
		}
		break
	}

	mcts.SetFinalChoiceExpectedValues(params, root)
	chosenPolicy := root.GetBestPolicyByCost()
	chosenCost, ok := root.ExpectedCost()
	if !ok {
		chosenCost = 99999.0
	}

	sumRepeated := 0
	for _, c := range root.Children() {
		sumRepeated += c.NParticlesRepeated()
	}

	return Outcome{
		ChosenPolicy: chosenPolicy,
		ChosenCost:   chosenCost,
		StepsTaken:   stepsTaken,
		SumRepeated:  sumRepeated,
		Root:         root,
	}
}
