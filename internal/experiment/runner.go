// Package experiment runs batches of probing simulations concurrently
// and aggregates their outcomes.
package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"channelprober/internal/probing"
	"channelprober/internal/synthetic"
)

// HopTemplate fixes the shape of every target hop in a scenario.
// Balances are still drawn at random per run.
type HopTemplate struct {
	Capacities  []int64
	EnabledDir0 []int
	EnabledDir1 []int
}

// Scenario describes one experiment: a population of target hops and
// how often to probe them. When Template is nil, hops are generated
// synthetically from the capacity and channel-count fields.
type Scenario struct {
	Name string

	// NumHops target hops are probed per run.
	NumHops int

	// Synthetic generation parameters, used when Template is nil.
	NumChannels              int
	MinCapacity              int64
	MaxCapacity              int64
	ProbabilityBidirectional float64

	// Template overrides synthetic generation with a fixed hop shape.
	Template *HopTemplate

	// Jamming enables jamming-enhanced probing after the directional
	// bounds are exhausted.
	Jamming bool

	// Runs is how many times the scenario is repeated with fresh hops.
	Runs int

	// Seed makes the scenario reproducible. Each run derives its own
	// source from Seed and the run index.
	Seed int64
}

// RunResult holds the outcome of one scenario run, probed with both
// amount-selection strategies over identical hop populations.
type RunResult struct {
	Scenario string
	Run      int
	Naive    probing.BatchResult
	Optimal  probing.BatchResult
}

// Report contains all run results plus batch performance metrics.
type Report struct {
	Results       []RunResult
	FailedRuns    int
	Duration      time.Duration
	RunsPerSecond float64
}

// RunnerConfig configures concurrent scenario execution.
type RunnerConfig struct {
	WorkerCount    int // Number of concurrent workers
	ProgressReport int // Report progress every N runs (0 = no reporting)
}

// DefaultRunnerConfig returns defaults sized for a desktop machine.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		WorkerCount:    8,
		ProgressReport: 50,
	}
}

// Runner executes scenario runs on a worker pool. Each run owns its
// hops and its random source, so workers share no mutable state.
type Runner struct {
	workerCount    int
	progressReport int
}

// NewRunner creates a runner with the given configuration.
func NewRunner(config RunnerConfig) *Runner {
	workers := config.WorkerCount
	if workers < 1 {
		workers = 1
	}
	return &Runner{workerCount: workers, progressReport: config.ProgressReport}
}

type runJob struct {
	scenario Scenario
	run      int
}

// Run executes every run of every scenario and collects the results.
// Result order is deterministic (scenario order, then run index)
// regardless of worker scheduling.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) (*Report, error) {
	for _, s := range scenarios {
		if err := validateScenario(s); err != nil {
			return nil, err
		}
	}
	startTime := time.Now()
	totalRuns := 0
	for _, s := range scenarios {
		totalRuns += s.Runs
	}

	jobs := make(chan runJob, totalRuns)
	for _, s := range scenarios {
		for run := 0; run < s.Runs; run++ {
			jobs <- runJob{scenario: s, run: run}
		}
	}
	close(jobs)

	results := make(chan RunResult, totalRuns)
	failures := make(chan error, totalRuns)

	var progressMu sync.Mutex
	var processed int

	var wg sync.WaitGroup
	for i := 0; i < r.workerCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}

				result, err := executeRun(job.scenario, job.run)
				if err != nil {
					failures <- err
					continue
				}
				results <- result

				if r.progressReport > 0 {
					progressMu.Lock()
					processed++
					if processed%r.progressReport == 0 {
						pct := float64(processed) / float64(totalRuns) * 100
						elapsed := time.Since(startTime)
						fmt.Printf("[Runner] Progress: %d/%d (%.1f%%) | Elapsed: %v\n",
							processed, totalRuns, pct, elapsed.Round(time.Second))
					}
					progressMu.Unlock()
				}
			}
		}()
	}

	wg.Wait()
	close(results)
	close(failures)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	report := &Report{Results: make([]RunResult, 0, totalRuns)}
	for result := range results {
		report.Results = append(report.Results, result)
	}
	for range failures {
		report.FailedRuns++
	}
	sortResults(report.Results, scenarios)

	report.Duration = time.Since(startTime)
	if report.Duration > 0 {
		report.RunsPerSecond = float64(len(report.Results)) / report.Duration.Seconds()
	}
	return report, nil
}

func validateScenario(s Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("scenario must have a name")
	}
	if s.NumHops < 1 || s.Runs < 1 {
		return fmt.Errorf("scenario %s: hops and runs must be positive", s.Name)
	}
	if s.Template == nil {
		if s.NumChannels < 1 {
			return fmt.Errorf("scenario %s: channel count must be positive", s.Name)
		}
		if s.MinCapacity < 1 || s.MaxCapacity < s.MinCapacity {
			return fmt.Errorf("scenario %s: invalid capacity range [%d, %d]", s.Name, s.MinCapacity, s.MaxCapacity)
		}
	}
	return nil
}

// executeRun probes one fresh hop population with the naive strategy,
// then regenerates an identically distributed population for the
// optimal strategy. The same seed derivation keeps both populations
// byte-for-byte identical, so the strategies are compared on equal
// ground.
func executeRun(s Scenario, run int) (RunResult, error) {
	naiveHops, err := buildHops(s, run)
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario %s run %d: %w", s.Name, run, err)
	}
	optimalHops, err := buildHops(s, run)
	if err != nil {
		return RunResult{}, fmt.Errorf("scenario %s run %d: %w", s.Name, run, err)
	}
	return RunResult{
		Scenario: s.Name,
		Run:      run,
		Naive:    probing.ProbeHopsIsolated(naiveHops, true, s.Jamming),
		Optimal:  probing.ProbeHopsIsolated(optimalHops, false, s.Jamming),
	}, nil
}

func buildHops(s Scenario, run int) ([]*probing.Hop, error) {
	rnd := rand.New(rand.NewSource(s.Seed + int64(run)*1000003))
	if s.Template != nil {
		hops := make([]*probing.Hop, 0, s.NumHops)
		for len(hops) < s.NumHops {
			hop, err := probing.NewHop(probing.HopConfig{
				Capacities:  s.Template.Capacities,
				EnabledDir0: s.Template.EnabledDir0,
				EnabledDir1: s.Template.EnabledDir1,
				Rand:        rnd,
			})
			if err != nil {
				return nil, err
			}
			hops = append(hops, hop)
		}
		return hops, nil
	}
	return synthetic.GenerateHops(s.NumHops, synthetic.Config{
		MinChannels:              s.NumChannels,
		MaxChannels:              s.NumChannels,
		MinCapacity:              s.MinCapacity,
		MaxCapacity:              s.MaxCapacity,
		ProbabilityBidirectional: s.ProbabilityBidirectional,
		Rand:                     rnd,
	})
}

func sortResults(results []RunResult, scenarios []Scenario) {
	rank := make(map[string]int, len(scenarios))
	for i, s := range scenarios {
		rank[s.Name] = i
	}
	for i := 1; i < len(results); i++ {
		for j := i; j > 0; j-- {
			a, b := results[j-1], results[j]
			if rank[a.Scenario] < rank[b.Scenario] ||
				(rank[a.Scenario] == rank[b.Scenario] && a.Run <= b.Run) {
				break
			}
			results[j-1], results[j] = b, a
		}
	}
}
