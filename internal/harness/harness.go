// Package harness runs a batch of PMCTS scenarios in parallel and
// collects their results (spec §5, §6.2). Grounded on
// progressive_mcts_run's run_parallel_scenarios (rayon fan-out over a
// scenario sweep, one result row per scenario) and parameters_sql's
// insert-one-row-per-run sink, ported to golang.org/x/sync/errgroup and a
// pluggable ResultSink instead of a SQL table.
package harness

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"math/rand"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"

	"github.com/rgardner/pmcts/internal/belief"
	"github.com/rgardner/pmcts/internal/config"
	"github.com/rgardner/pmcts/internal/driver"
	"github.com/rgardner/pmcts/internal/scenario"
	"github.com/rgardner/pmcts/internal/simulator"
	"github.com/rgardner/pmcts/internal/simulator/multivehicle"
	"github.com/rgardner/pmcts/internal/simulator/reference"
)

// RunResult is one scenario's outcome (spec §6.2): what PMCTS chose,
// what it cost, and how that compares to the ground truth the synthetic
// oracle can compute exactly.
type RunResult struct {
	BatchID             string
	ScenarioName        string
	StepsTaken          int
	ChosenCost          float64
	ChosenTrueCost      float64
	TrueBestCost        float64
	Regret              float64
	CostEstimationError float64
	SumRepeated         int
}

// ResultSink receives one RunResult per completed scenario. Implementations
// must be safe for concurrent use: a harness batch writes from many
// goroutines (spec §5 "single-writer" serializes through the sink, not the
// callers).
type ResultSink interface {
	Write(RunResult) error
}

// MemorySink accumulates every result in memory, guarded by a mutex so
// concurrent scenario goroutines can all write to the same sink instance.
type MemorySink struct {
	mu      sync.Mutex
	results []RunResult
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Write(r RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = append(s.results, r)
	return nil
}

// Results returns a snapshot of every result written so far.
func (s *MemorySink) Results() []RunResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RunResult, len(s.results))
	copy(out, s.results)
	return out
}

// CSVSink serializes results to w as they arrive, one row per RunResult,
// serialized through a mutex (spec §5 "single-writer ResultSink").
type CSVSink struct {
	mu     sync.Mutex
	writer *csv.Writer
	header bool
}

func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{writer: csv.NewWriter(w)}
}

func (s *CSVSink) Write(r RunResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.header {
		if err := s.writer.Write([]string{
			"batch_id", "scenario", "steps_taken", "chosen_cost", "chosen_true_cost",
			"true_best_cost", "regret", "cost_estimation_error", "sum_repeated",
		}); err != nil {
			return err
		}
		s.header = true
	}

	row := []string{
		r.BatchID,
		r.ScenarioName,
		fmt.Sprintf("%d", r.StepsTaken),
		fmt.Sprintf("%.6f", r.ChosenCost),
		fmt.Sprintf("%.6f", r.ChosenTrueCost),
		fmt.Sprintf("%.6f", r.TrueBestCost),
		fmt.Sprintf("%.6f", r.Regret),
		fmt.Sprintf("%.6f", r.CostEstimationError),
		fmt.Sprintf("%d", r.SumRepeated),
	}
	if err := s.writer.Write(row); err != nil {
		return err
	}
	s.writer.Flush()
	return s.writer.Error()
}

// Scenario is one named configuration to run (spec §6.2). By default it
// plans against the synthetic scenario oracle directly, i.i.d. resampling
// a fresh particle per trial; when UseCFB is set, it instead drives the
// belief-update -> CFB branch-selection -> weighted-world pipeline (spec
// §2 data flow) via internal/scenario.
type Scenario struct {
	Name   string
	Params config.Params
	Seed   int64
	UseCFB bool
}

// RunBatch runs every scenario concurrently (bounded by the errgroup's
// default unlimited goroutine count, one per scenario, matching the
// reference implementation's per-scenario rayon parallelism), writes each
// RunResult to sink as it completes, and aborts the whole batch if any
// scenario panics or its context is canceled (spec §5 "panic-recovery-
// and-abort-whole-run").
func RunBatch(ctx context.Context, scenarios []Scenario, sink ResultSink) error {
	batchID := uuid.NewString()
	g, ctx := errgroup.WithContext(ctx)

	for _, sc := range scenarios {
		sc := sc
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("scenario %q panicked: %v", sc.Name, r)
				}
			}()

			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			result := runOne(sc)
			result.BatchID = batchID
			klog.V(1).Infof("scenario %q: chosen_cost=%.2f regret=%.2f steps=%d",
				sc.Name, result.ChosenCost, result.Regret, result.StepsTaken)
			return sink.Write(result)
		})
	}

	return g.Wait()
}

// runOne runs a single scenario to completion against a freshly generated
// synthetic scenario tree, then scores the chosen policy against the
// ground truth the oracle can compute exactly (spec §6.2).
func runOne(sc Scenario) RunResult {
	params := sc.Params
	rng := rand.New(rand.NewSource(sc.Seed))
	scenarioTree := reference.NewScenario(params.SearchDepth, params.NActions, rng)

	var particleFactory driver.ParticleFactory
	var simFactory driver.SimulatorFactory

	if sc.UseCFB {
		particleFactory, simFactory = buildCFBFactories(params, scenarioTree, rng)
	} else {
		particleFactory = func(i int, rng *rand.Rand) simulator.Particle {
			return reference.SampleParticle(i, rng)
		}
		simFactory = func(p simulator.Particle, rng *rand.Rand) simulator.Simulator {
			return reference.New(scenarioTree, rng)
		}
	}

	outcome := driver.Run(params, particleFactory, simFactory, rng)

	chosenChild := scenarioTree.Children[outcome.ChosenPolicy]
	chosenContinuation, _ := reference.TrueBestCost(chosenChild)
	chosenTrueCost := reference.ExpectedMarginalCost(chosenChild) + chosenContinuation
	trueBestCost, _ := reference.TrueBestCost(scenarioTree)

	return RunResult{
		ScenarioName:        sc.Name,
		StepsTaken:          outcome.StepsTaken,
		ChosenCost:          outcome.ChosenCost,
		ChosenTrueCost:      chosenTrueCost,
		TrueBestCost:        trueBestCost,
		Regret:              chosenTrueCost - trueBestCost,
		CostEstimationError: absFloat(outcome.ChosenCost - chosenTrueCost),
		SumRepeated:         outcome.SumRepeated,
	}
}

// buildCFBFactories wires one planning call's belief/CFB pipeline (spec
// §2, §4.D, §4.E) against a fresh synthetic traffic World and the ego's
// scenarioTree, via internal/scenario.
func buildCFBFactories(params config.Params, scenarioTree *reference.Scenario, rng *rand.Rand) (driver.ParticleFactory, driver.SimulatorFactory) {
	w := scenario.RandomWorld(params.NCars, rng)
	b := belief.Uniform(params.NCars, belief.PolicySet(params.DecelerateVel).Len())
	table := multivehicle.NewVehicleCostTable(params.NCars, b.NPolicies(), rng)
	base := reference.New(scenarioTree, rng)
	return scenario.Build(params, b, w, base, table, rng)
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
