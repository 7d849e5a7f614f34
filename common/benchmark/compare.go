package benchmark

import (
	"fmt"
	"io"
	"log/slog"
	"slices"
	"text/tabwriter"

	"github.com/intellect4all/flashdb/common"
)

// EngineFactory opens a fresh engine on a fresh device. Each workload gets
// its own so that wear and fill level do not leak between runs.
type EngineFactory func() (common.StorageEngine, error)

// ComparisonSuite runs the same workloads against several store setups
// (geometries, wear leveling settings)
type ComparisonSuite struct {
	configs []Config
	logger  *slog.Logger
}

func NewComparisonSuite() *ComparisonSuite {
	return &ComparisonSuite{
		configs: StandardWorkloads(),
		logger:  slog.Default(),
	}
}

// SetWorkloads sets custom workload configurations
func (cs *ComparisonSuite) SetWorkloads(configs []Config) {
	cs.configs = configs
}

func (cs *ComparisonSuite) SetLogger(logger *slog.Logger) {
	cs.logger = logger
}

// StandardWorkloads returns common benchmark scenarios. They are sized for
// a device of 256 blocks of 64 KiB; the live set stays below half of it.
func StandardWorkloads() []Config {
	return []Config{
		{
			Name:            "write-heavy-uniform",
			WorkloadType:    WorkloadWriteHeavy,
			KeyDistribution: DistUniform,
			NumKeys:         20000,
			KeySize:         16,
			ValueSize:       100,
			Ops:             500000,
			PreloadKeys:     10000,
			Seed:            12345,
		},
		{
			Name:            "read-heavy-zipfian",
			WorkloadType:    WorkloadReadHeavy,
			KeyDistribution: DistZipfian,
			NumKeys:         20000,
			KeySize:         16,
			ValueSize:       100,
			Ops:             500000,
			PreloadKeys:     20000,
			Seed:            12345,
		},
		{
			Name:            "balanced-uniform",
			WorkloadType:    WorkloadBalanced,
			KeyDistribution: DistUniform,
			NumKeys:         20000,
			KeySize:         16,
			ValueSize:       100,
			Ops:             500000,
			PreloadKeys:     10000,
			Seed:            12345,
		},
		{
			Name:            "write-only-hot-keys",
			WorkloadType:    WorkloadWriteOnly,
			KeyDistribution: DistLatest,
			NumKeys:         5000,
			KeySize:         16,
			ValueSize:       1000, // Larger values
			Ops:             200000,
			PreloadKeys:     5000,
			CompactEvery:    50000,
			Seed:            12345,
		},
		{
			Name:            "write-heavy-mixed-keys",
			WorkloadType:    WorkloadWriteHeavy,
			KeyDistribution: DistUniform,
			NumKeys:         10000,
			KeySize:         1,
			MaxKeySize:      256, // every length the store accepts
			ValueSize:       100,
			Ops:             300000,
			PreloadKeys:     10000,
			Seed:            12345,
		},
	}
}

// QuickWorkloads returns faster workloads for testing. They fit a device
// of 64 blocks of 16 KiB.
func QuickWorkloads() []Config {
	return []Config{
		{
			Name:            "quick-write-heavy",
			WorkloadType:    WorkloadWriteHeavy,
			KeyDistribution: DistUniform,
			NumKeys:         2000, // 2k keys x 138 bytes = 276 KB of live data
			KeySize:         16,
			ValueSize:       100,
			Ops:             50000,
			PreloadKeys:     1000,
			Seed:            12345,
		},
		{
			Name:            "quick-balanced",
			WorkloadType:    WorkloadBalanced,
			KeyDistribution: DistUniform,
			NumKeys:         2000,
			KeySize:         16,
			ValueSize:       100,
			Ops:             50000,
			PreloadKeys:     2000,
			CompactEvery:    10000,
			Seed:            12345,
		},
		{
			Name:            "quick-read-heavy",
			WorkloadType:    WorkloadReadHeavy,
			KeyDistribution: DistZipfian, // Realistic: some keys accessed more
			NumKeys:         2000,
			KeySize:         16,
			ValueSize:       100,
			Ops:             50000,
			PreloadKeys:     2000, // Need data to read
			Seed:            12345,
		},
		{
			Name:            "quick-mixed-keys",
			WorkloadType:    WorkloadBalanced,
			KeyDistribution: DistLatest,
			NumKeys:         1000, // ~184 bytes per record on average
			KeySize:         1,
			MaxKeySize:      256,
			ValueSize:       32,
			Ops:             30000,
			PreloadKeys:     1000,
			Seed:            12345,
		},
	}
}

// RunComparison runs all workloads against every setup, in name order
func (cs *ComparisonSuite) RunComparison(engines map[string]EngineFactory) map[string][]*Result {
	results := make(map[string][]*Result)

	for _, name := range sortedNames(engines) {
		engineResults := make([]*Result, 0, len(cs.configs))

		for _, config := range cs.configs {
			result, err := cs.runOne(engines[name], config)
			if err != nil {
				cs.logger.Error("workload failed", "engine", name, "workload", config.Name, "err", err)
				engineResults = append(engineResults, nil)
				continue
			}
			engineResults = append(engineResults, result)
		}

		results[name] = engineResults
	}

	return results
}

func (cs *ComparisonSuite) runOne(factory EngineFactory, config Config) (*Result, error) {
	engine, err := factory()
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	return NewBenchmark(engine, config).WithLogger(cs.logger).Run()
}

// PrintComparisonTable prints one table per metric with a column per setup
func (cs *ComparisonSuite) PrintComparisonTable(w io.Writer, results map[string][]*Result) {
	names := sortedNames(results)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	table := func(title string, cell func(r *Result) string) {
		fmt.Fprintf(tw, "\n=== %s ===\n", title)
		fmt.Fprintf(tw, "Workload\t")
		for _, name := range names {
			fmt.Fprintf(tw, "%s\t", name)
		}
		fmt.Fprintln(tw)

		for i, config := range cs.configs {
			fmt.Fprintf(tw, "%s\t", config.Name)
			for _, name := range names {
				if i < len(results[name]) && results[name][i] != nil {
					fmt.Fprintf(tw, "%s\t", cell(results[name][i]))
				} else {
					fmt.Fprintf(tw, "N/A\t")
				}
			}
			fmt.Fprintln(tw)
		}
		tw.Flush()
	}

	table("THROUGHPUT (ops/sec)", func(r *Result) string {
		return fmt.Sprintf("%.0f", r.OpsPerSec)
	})
	table("WRITE P99 LATENCY (μs)", func(r *Result) string {
		if r.WriteOps == 0 {
			return "N/A"
		}
		return fmt.Sprintf("%d", r.WriteLatency.P99.Microseconds())
	})
	table("WRITE AMPLIFICATION", func(r *Result) string {
		return fmt.Sprintf("%.2fx", r.WriteAmplification)
	})
	table("ERASE COUNT SPREAD (min-max)", func(r *Result) string {
		return fmt.Sprintf("%d-%d", r.MinErase, r.MaxErase)
	})
	table("STORE FULL REJECTIONS", func(r *Result) string {
		return fmt.Sprintf("%d", r.FullOps)
	})
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
