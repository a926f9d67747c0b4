package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"channelprober/internal/analysis"
	"channelprober/internal/experiment"
	"channelprober/internal/storage"
)

func main() {
	suite := flag.String("suite", "all", "experiment suite: channels, two-channel, ratios, or all")
	numHops := flag.Int("hops", 20, "target hops per run")
	runs := flag.Int("runs", 10, "runs per scenario")
	maxChannels := flag.Int("max-channels", 5, "largest channel count for the channels suite")
	maxRatio := flag.Int("max-ratio", 10, "largest capacity ratio for the ratios suite")
	jamming := flag.Bool("jamming", false, "enable jamming-enhanced probing in the channels suite")
	workers := flag.Int("workers", experiment.DefaultRunnerConfig().WorkerCount, "concurrent workers")
	seed := flag.Int64("seed", 1, "base random seed")
	persist := flag.Bool("store", false, "persist results to Postgres (DB_* environment variables)")
	flag.Parse()

	var scenarios []experiment.Scenario
	switch *suite {
	case "channels":
		scenarios = experiment.ChannelCountSweep(*maxChannels, *numHops, *runs, *jamming, *seed)
	case "two-channel":
		scenarios = experiment.TwoChannelConfigurations(*numHops, *runs, *seed)
	case "ratios":
		scenarios = experiment.CapacityRatioSweep(*maxRatio, *numHops, *runs, *seed)
	case "all":
		scenarios = append(scenarios, experiment.ChannelCountSweep(*maxChannels, *numHops, *runs, *jamming, *seed)...)
		scenarios = append(scenarios, experiment.TwoChannelConfigurations(*numHops, *runs, *seed)...)
		scenarios = append(scenarios, experiment.CapacityRatioSweep(*maxRatio, *numHops, *runs, *seed)...)
	default:
		log.Fatalf("Unknown suite %q", *suite)
	}

	fmt.Println("=======================================================")
	fmt.Println("CHANNELPROBER - PROBING EXPERIMENTS")
	fmt.Println("=======================================================")
	fmt.Printf("Suite: %s | Scenarios: %d | Hops per run: %d | Runs: %d\n\n",
		*suite, len(scenarios), *numHops, *runs)

	runner := experiment.NewRunner(experiment.RunnerConfig{
		WorkerCount:    *workers,
		ProgressReport: 50,
	})
	report, err := runner.Run(context.Background(), scenarios)
	if err != nil {
		log.Fatalf("Experiment run failed: %v", err)
	}
	if report.FailedRuns > 0 {
		log.Printf("Warning: %d runs failed", report.FailedRuns)
	}

	printReport(scenarios, report)
	fmt.Printf("\nCompleted %d runs in %v (%.1f runs/s)\n",
		len(report.Results), report.Duration.Round(time.Millisecond), report.RunsPerSecond)

	if *persist {
		store, err := storage.NewPostgresStore(storage.Config{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			Database: getEnv("DB_NAME", "probing_db"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		})
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer store.Close()
		ctx := context.Background()
		if err := store.InitSchema(ctx); err != nil {
			log.Fatalf("Failed to initialize schema: %v", err)
		}
		if err := store.InsertRunResults(ctx, report.Results); err != nil {
			log.Fatalf("Failed to store results: %v", err)
		}
		fmt.Printf("Stored %d run results\n", len(report.Results))
	}
}

func printReport(scenarios []experiment.Scenario, report *experiment.Report) {
	grouped := make(map[string][]experiment.RunResult)
	for _, result := range report.Results {
		grouped[result.Scenario] = append(grouped[result.Scenario], result)
	}

	fmt.Printf("%-20s %10s %14s %16s %12s\n",
		"scenario", "gain", "speed naive", "speed optimal", "advantage")
	fmt.Println(strings.Repeat("-", 76))
	for _, s := range scenarios {
		results := grouped[s.Name]
		if len(results) == 0 {
			continue
		}
		var gains, speedsNaive, speedsOptimal []float64
		for _, r := range results {
			gains = append(gains, r.Optimal.GainRatio)
			speedsNaive = append(speedsNaive, r.Naive.ProbingSpeed)
			speedsOptimal = append(speedsOptimal, r.Optimal.ProbingSpeed)
		}
		gain := analysis.Summarize(gains)
		naive := analysis.Summarize(speedsNaive)
		optimal := analysis.Summarize(speedsOptimal)
		fmt.Printf("%-20s %10.3f %14.3f %16.3f %11.1f%%\n",
			s.Name, gain.Mean, naive.Mean, optimal.Mean,
			100*analysis.RelativeAdvantage(naive.Mean, optimal.Mean))
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
