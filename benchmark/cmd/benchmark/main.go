// Command benchmark measures the facecap head's decode and suppression
// stages over synthetic raw outputs.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nvr-ai/go-facecap/benchmark"
	"github.com/nvr-ai/go-facecap/models/postprocess"
)

func main() {
	var (
		configFile    = flag.String("config", "", "Path to benchmark configuration file")
		scenarioFile  = flag.String("scenarios", "", "Path to scenario configuration file")
		outputDir     = flag.String("output", "", "Output directory for results (overrides config)")
		confidence    = flag.Float64("confidence", -1, "Confidence gate override for suppression")
		iou           = flag.Float64("iou", -1, "IoU threshold override for suppression")
		quick         = flag.Bool("quick", false, "Run quick benchmark scenarios")
		comprehensive = flag.Bool("comprehensive", false, "Run comprehensive benchmark scenarios")
		resolutions   = flag.Bool("resolutions", false, "Compare different input resolutions")
		densities     = flag.Bool("densities", false, "Compare candidate densities at 640x640")
		timeout       = flag.Duration("timeout", 30*time.Minute, "Benchmark timeout duration")
	)
	flag.Parse()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	setFlags := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })

	config := benchmark.DefaultConfig()
	if *configFile != "" {
		loaded, err := benchmark.LoadConfig(*configFile)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load config")
		}
		config = loaded
	}
	if *outputDir != "" {
		config.OutputDir = *outputDir
	}
	if *confidence >= 0 {
		config.ConfidenceThreshold = float32(*confidence)
	}
	if *iou >= 0 {
		config.IoUThreshold = float32(*iou)
	}

	runTimeout := *timeout
	if !setFlags["timeout"] && config.TimeoutSeconds > 0 {
		runTimeout = time.Duration(config.TimeoutSeconds) * time.Second
	}

	nms := postprocess.DefaultNMSConfig()
	nms.ConfidenceThreshold = config.ConfidenceThreshold
	nms.IoUThreshold = config.IoUThreshold
	if err := nms.Validate(); err != nil {
		logrus.WithError(err).Fatal("invalid suppression settings")
	}

	runner := benchmark.NewRunner(benchmark.NewRunnerArgs{
		OutputDir:    config.OutputDir,
		NMS:          nms,
		PrintTimings: config.PrintTimings,
	})

	predefined := &benchmark.PredefinedScenarios{}

	if *scenarioFile != "" {
		scenarioSet, err := benchmark.LoadScenarioSet(*scenarioFile)
		if err != nil {
			logrus.WithError(err).Fatal("failed to load scenario file")
		}
		for _, scenario := range scenarioSet.Scenarios {
			runner.AddScenario(scenario)
		}
		fmt.Printf("Loaded %d scenarios from %s\n", len(scenarioSet.Scenarios), *scenarioFile)
	} else {
		if *quick {
			scenarios := predefined.GetQuickScenarios()
			for _, scenario := range scenarios.Scenarios {
				runner.AddScenario(scenario)
			}
			fmt.Printf("Added %d quick scenarios\n", len(scenarios.Scenarios))
		}

		if *comprehensive {
			scenarios := predefined.GetComprehensiveScenarios()
			for _, scenario := range scenarios.Scenarios {
				runner.AddScenario(scenario)
			}
			fmt.Printf("Added %d comprehensive scenarios\n", len(scenarios.Scenarios))
		}

		if *resolutions {
			scenarios := predefined.GetResolutionComparisonScenarios(0.01)
			for _, scenario := range scenarios.Scenarios {
				runner.AddScenario(scenario)
			}
			fmt.Printf("Added %d resolution comparison scenarios\n", len(scenarios.Scenarios))
		}

		if *densities {
			scenarios := predefined.GetDensityComparisonScenarios(benchmark.Resolution{
				Width: 640, Height: 640, Name: "640x640",
			})
			for _, scenario := range scenarios.Scenarios {
				runner.AddScenario(scenario)
			}
			fmt.Printf("Added %d density comparison scenarios\n", len(scenarios.Scenarios))
		}

		// Default to the quick set when nothing specific was requested.
		if !*quick && !*comprehensive && !*resolutions && !*densities {
			scenarios := predefined.GetQuickScenarios()
			for _, scenario := range scenarios.Scenarios {
				runner.AddScenario(scenario)
			}
			fmt.Printf("Added %d default quick scenarios\n", len(scenarios.Scenarios))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	fmt.Println("Starting benchmark execution...")
	start := time.Now()

	if err := runner.RunAllScenarios(ctx); err != nil {
		logrus.WithError(err).Fatal("benchmark execution failed")
	}

	duration := time.Since(start)
	fmt.Printf("Benchmark completed in %v\n", duration)

	results := runner.GetResults()
	fmt.Printf("\n=== BENCHMARK RESULTS SUMMARY ===\n")
	fmt.Printf("Total scenarios: %d\n", len(results))
	fmt.Printf("Results saved to: %s\n", config.OutputDir)

	var bestRate float64
	var bestScenario string
	for _, result := range results {
		if result.RunsPerSecond > bestRate {
			bestRate = result.RunsPerSecond
			bestScenario = result.Scenario.Name
		}
		fmt.Printf("  %s: %.2f runs/s (decode p50 %.3f ms, suppress p50 %.3f ms, %.1f detections)\n",
			result.Scenario.Name,
			result.RunsPerSecond,
			float64(result.DecodeStats.P50.Nanoseconds())/1e6,
			float64(result.SuppressStats.P50.Nanoseconds())/1e6,
			result.AverageDetections)
	}

	if bestScenario != "" {
		fmt.Printf("\nBest performing scenario: %s (%.2f runs/s)\n", bestScenario, bestRate)
	}
}

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", filepath.Base(os.Args[0]))
		fmt.Fprintf(os.Stderr, "Benchmark tool for the face detection head.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(
			os.Stderr,
			"  %s -quick\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -config ./benchmark_config.json -scenarios ./scenarios.json\n",
			filepath.Base(os.Args[0]),
		)
		fmt.Fprintf(
			os.Stderr,
			"  %s -resolutions -densities -output ./results\n",
			filepath.Base(os.Args[0]),
		)
	}
}
