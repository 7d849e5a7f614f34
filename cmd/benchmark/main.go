package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/intellect4all/flashdb/common"
	"github.com/intellect4all/flashdb/common/benchmark"
	"github.com/intellect4all/flashdb/flash"
	"github.com/intellect4all/flashdb/flashdb"
)

func main() {
	quick := flag.Bool("quick", false, "Run quick benchmarks (smaller device, fewer ops)")
	workload := flag.String("workload", "all", "Workload to run (all, or a workload name)")
	ops := flag.Int("ops", 0, "Override the operation count of every workload")
	blockSize := flag.Int("block-size", 0, "Erase block size in bytes (default depends on -quick)")
	blocks := flag.Int("blocks", 0, "Number of erase blocks (default depends on -quick)")
	wearDelta := flag.Int("wear-delta", flashdb.DefaultConfig().WearLevelDelta, "Erase count spread that triggers static wear leveling (negative disables)")
	mode := flag.String("mode", "single", "single: one store setup; compare: wear leveling on vs. off")
	verbose := flag.Bool("v", false, "Log progress")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	var configs []benchmark.Config
	size, count := 64*1024, 256
	if *quick {
		configs = benchmark.QuickWorkloads()
		size, count = 16*1024, 64
	} else {
		configs = benchmark.StandardWorkloads()
	}
	if *blockSize > 0 {
		size = *blockSize
	}
	if *blocks > 0 {
		count = *blocks
	}

	if *ops > 0 {
		for i := range configs {
			configs[i].Ops = *ops
		}
	}

	// Filter workloads if specified
	if *workload != "all" {
		filtered := make([]benchmark.Config, 0)
		for _, config := range configs {
			if config.Name == *workload {
				filtered = append(filtered, config)
			}
		}
		if len(filtered) == 0 {
			fmt.Printf("Unknown workload: %s\n", *workload)
			os.Exit(1)
		}
		configs = filtered
	}

	fmt.Println("Flash Store Benchmark Suite")
	fmt.Println("===========================")
	fmt.Printf("Device: %d blocks x %d bytes\n", count, size)
	fmt.Printf("Mode: %s\n\n", *mode)

	switch *mode {
	case "single":
		results := runBenchmarks(memStore(size, count, *wearDelta, logger), configs, logger)
		printSummaryTable(results)
	case "compare":
		suite := benchmark.NewComparisonSuite()
		suite.SetWorkloads(configs)
		suite.SetLogger(logger)
		results := suite.RunComparison(map[string]benchmark.EngineFactory{
			fmt.Sprintf("wear-delta-%d", *wearDelta): memStore(size, count, *wearDelta, logger),
			"no-wear-leveling":                       memStore(size, count, -1, logger),
		})
		suite.PrintComparisonTable(os.Stdout, results)
	default:
		fmt.Printf("Unknown mode: %s (must be single or compare)\n", *mode)
		os.Exit(1)
	}
}

func memStore(blockSize, blockCount, wearDelta int, logger *slog.Logger) benchmark.EngineFactory {
	return func() (common.StorageEngine, error) {
		config := flashdb.DefaultConfig()
		config.WearLevelDelta = wearDelta
		config.Logger = logger
		s, err := flashdb.Open(flash.NewMemDevice(blockSize, blockCount), config)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}

func runBenchmarks(factory benchmark.EngineFactory, configs []benchmark.Config, logger *slog.Logger) []*benchmark.Result {
	results := make([]*benchmark.Result, 0)

	for _, config := range configs {
		fmt.Printf("\n=== Running: %s ===\n", config.Name)

		engine, err := factory()
		if err != nil {
			fmt.Printf("Failed to open store: %v\n", err)
			os.Exit(1)
		}

		result, err := benchmark.NewBenchmark(engine, config).WithLogger(logger).Run()
		engine.Close()
		if err != nil {
			fmt.Printf("Benchmark failed: %v\n", err)
			continue
		}

		results = append(results, result)
		printResult(result)
	}

	return results
}

func printLatency(title string, l benchmark.LatencyStats) {
	fmt.Printf("\n%s:\n", title)
	fmt.Printf("  Min:  %8s\n", l.Min)
	fmt.Printf("  Mean: %8s\n", l.Mean)
	fmt.Printf("  P50:  %8s\n", l.P50)
	fmt.Printf("  P95:  %8s\n", l.P95)
	fmt.Printf("  P99:  %8s\n", l.P99)
	fmt.Printf("  P999: %8s\n", l.P999)
	fmt.Printf("  Max:  %8s\n", l.Max)
}

func printResult(r *benchmark.Result) {
	fmt.Printf("\n--- Results ---\n")
	fmt.Printf("Throughput: %.0f ops/sec\n", r.OpsPerSec)
	fmt.Printf("Total Ops: %d (writes: %d, reads: %d, store full: %d, errors: %d)\n",
		r.TotalOps, r.WriteOps, r.ReadOps, r.FullOps, r.Errors)

	if r.WriteOps > 0 {
		printLatency("Write Latency", r.WriteLatency)
	}
	if r.ReadOps > 0 {
		printLatency("Read Latency", r.ReadLatency)
	}
	if r.CompactLatency.Count > 0 {
		printLatency("Compress Latency", r.CompactLatency)
	}

	fmt.Printf("\nAmplification:\n")
	fmt.Printf("  Write: %.2fx\n", r.WriteAmplification)
	fmt.Printf("  Space: %.2fx\n", r.SpaceAmplification)
	fmt.Printf("\nWear:\n")
	fmt.Printf("  Erases:      %d\n", r.Erases)
	fmt.Printf("  Erase count: %d..%d\n", r.MinErase, r.MaxErase)
	fmt.Printf("  Free blocks: %d of %d\n", r.EngineStats.FreeBlocks, r.EngineStats.NumBlocks)
}

func printSummaryTable(results []*benchmark.Result) {
	if len(results) == 0 {
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("BENCHMARK SUMMARY")
	fmt.Println(strings.Repeat("=", 80))

	fmt.Printf("\n%-25s %12s %12s %12s %10s %10s\n",
		"Workload", "Throughput", "Write P99", "Read P99", "Write Amp", "Erases")
	fmt.Println(strings.Repeat("-", 86))

	for _, r := range results {
		writeP99 := "N/A"
		if r.WriteOps > 0 {
			writeP99 = r.WriteLatency.P99.String()
		}

		readP99 := "N/A"
		if r.ReadOps > 0 {
			readP99 = r.ReadLatency.P99.String()
		}

		fmt.Printf("%-25s %10.0f/s %12s %12s %9.2fx %10d\n",
			r.Config.Name,
			r.OpsPerSec,
			writeP99,
			readP99,
			r.WriteAmplification,
			r.Erases)
	}
}
