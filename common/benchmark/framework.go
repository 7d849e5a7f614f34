package benchmark

import (
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	mrand "math/rand"
	"time"

	"github.com/intellect4all/flashdb/common"
)

// WorkloadType defines the access pattern
type WorkloadType string

const (
	WorkloadWriteHeavy WorkloadType = "write-heavy" // 95% writes
	WorkloadReadHeavy  WorkloadType = "read-heavy"  // 95% reads
	WorkloadBalanced   WorkloadType = "balanced"    // 50/50
	WorkloadReadOnly   WorkloadType = "read-only"   // 100% reads
	WorkloadWriteOnly  WorkloadType = "write-only"  // 100% writes
)

// Config defines a benchmark scenario
type Config struct {
	Name string

	WorkloadType    WorkloadType
	KeyDistribution KeyDistribution

	NumKeys int // Total unique keys in dataset

	// KeySize is the key length in bytes. A MaxKeySize above it spreads
	// key lengths over KeySize..MaxKeySize, each key keeping its own.
	KeySize    int
	MaxKeySize int

	ValueSize int // Bytes

	// Ops is the number of measured operations. The store serves one
	// caller at a time, so a workload is a single sequential stream.
	Ops int

	PreloadKeys int // Keys to load before benchmark starts

	// CompactEvery runs an explicit Compact after that many operations;
	// zero leaves all reclamation to the store.
	CompactEvery int

	Seed int64
}

type Result struct {
	Config Config

	// Throughput
	TotalOps  int64
	WriteOps  int64
	ReadOps   int64
	FullOps   int64 // puts refused with ErrStoreFull
	Errors    int64
	Duration  time.Duration
	OpsPerSec float64

	WriteLatency   LatencyStats
	ReadLatency    LatencyStats
	CompactLatency LatencyStats

	// Amplification
	WriteAmplification float64 // Measured from engine stats
	SpaceAmplification float64

	// Wear
	Erases   int64 // erases during the measured phase
	MinErase uint32
	MaxErase uint32

	// Engine-specific stats
	EngineStats common.Stats
}

type Benchmark struct {
	engine common.StorageEngine
	config Config
	logger *slog.Logger

	// Metrics collection
	writeLatencies   *LatencyHistogram
	readLatencies    *LatencyHistogram
	compactLatencies *LatencyHistogram

	// Counters
	writeCount int64
	readCount  int64
	fullCount  int64
	errorCount int64

	keys   KeySpace
	picker *KeyPicker
	rng    *mrand.Rand
}

func NewBenchmark(engine common.StorageEngine, config Config) *Benchmark {
	keys := NewKeySpace(config.NumKeys, config.KeySize, max(config.KeySize, config.MaxKeySize))
	return &Benchmark{
		engine:           engine,
		config:           config,
		logger:           slog.Default(),
		writeLatencies:   NewLatencyHistogram(config.Ops),
		readLatencies:    NewLatencyHistogram(config.Ops),
		compactLatencies: NewLatencyHistogram(0),
		keys:             keys,
		picker:           NewKeyPicker(keys, config.KeyDistribution, config.Seed),
		rng:              mrand.New(mrand.NewSource(config.Seed)),
	}
}

// WithLogger replaces the progress logger
func (b *Benchmark) WithLogger(logger *slog.Logger) *Benchmark {
	if logger != nil {
		b.logger = logger
	}
	return b
}

// Run executes the benchmark
func (b *Benchmark) Run() (*Result, error) {
	if b.config.Ops <= 0 {
		return nil, fmt.Errorf("benchmark %q: ops must be positive", b.config.Name)
	}

	// Phase 1: Preload data
	if b.config.PreloadKeys > 0 {
		b.logger.Info("preloading", "workload", b.config.Name, "keys", b.config.PreloadKeys)
		if err := b.preload(); err != nil {
			return nil, err
		}
	}

	// Phase 2: Measured run
	b.logger.Info("running", "workload", b.config.Name, "ops", b.config.Ops)
	startStats := b.engine.Stats()
	startTime := time.Now()

	if err := b.runWorkload(); err != nil {
		return nil, err
	}

	duration := time.Since(startTime)
	endStats := b.engine.Stats()

	// Phase 3: Calculate results
	return b.calculateResults(duration, startStats, endStats), nil
}

// preload fills the store with initial data
func (b *Benchmark) preload() error {
	value := make([]byte, b.config.ValueSize)
	rand.Read(value)

	for i := 0; i < b.config.PreloadKeys; i++ {
		key := b.keys.Key(i)
		if err := b.engine.Put(key, value); err != nil {
			return fmt.Errorf("preload key %d: %w", i, err)
		}

		if i > 0 && i%10000 == 0 {
			b.logger.Debug("preload progress", "keys", i)
		}
	}

	return b.engine.Sync()
}

// runWorkload executes the configured number of operations
func (b *Benchmark) runWorkload() error {
	value := make([]byte, b.config.ValueSize)
	rand.Read(value)

	for i := 1; i <= b.config.Ops; i++ {
		if b.shouldWrite() {
			b.doWrite(value)
		} else {
			b.doRead()
		}

		if b.config.CompactEvery > 0 && i%b.config.CompactEvery == 0 {
			start := time.Now()
			if err := b.engine.Compact(); err != nil {
				return fmt.Errorf("compact after %d ops: %w", i, err)
			}
			b.compactLatencies.Record(time.Since(start))
		}
	}

	return b.engine.Sync()
}

// shouldWrite determines if this operation should be a write
func (b *Benchmark) shouldWrite() bool {
	switch b.config.WorkloadType {
	case WorkloadWriteOnly:
		return true
	case WorkloadReadOnly:
		return false
	case WorkloadWriteHeavy:
		return b.rng.Float64() < 0.95
	case WorkloadReadHeavy:
		return b.rng.Float64() < 0.05
	default:
		return b.rng.Float64() < 0.50
	}
}

func (b *Benchmark) doWrite(value []byte) {
	key := b.picker.Next()

	start := time.Now()
	err := b.engine.Put(key, value)
	latency := time.Since(start)

	if errors.Is(err, common.ErrStoreFull) {
		b.fullCount++
		return
	}
	if err != nil {
		b.errorCount++
		return
	}

	b.writeLatencies.Record(latency)
	b.writeCount++
}

func (b *Benchmark) doRead() {
	key := b.picker.Next()

	start := time.Now()
	_, err := b.engine.Get(key)
	latency := time.Since(start)

	if err != nil && !errors.Is(err, common.ErrKeyNotFound) {
		b.errorCount++
		return
	}

	b.readLatencies.Record(latency)
	b.readCount++
}

func (b *Benchmark) calculateResults(duration time.Duration, startStats, endStats common.Stats) *Result {
	totalOps := b.writeCount + b.readCount

	result := &Result{
		Config:    b.config,
		TotalOps:  totalOps,
		WriteOps:  b.writeCount,
		ReadOps:   b.readCount,
		FullOps:   b.fullCount,
		Errors:    b.errorCount,
		Duration:  duration,
		OpsPerSec: float64(totalOps) / duration.Seconds(),

		WriteLatency:   b.writeLatencies.Stats(),
		ReadLatency:    b.readLatencies.Stats(),
		CompactLatency: b.compactLatencies.Stats(),

		// Amplification from engine stats
		WriteAmplification: endStats.WriteAmp,
		SpaceAmplification: endStats.SpaceAmp,

		Erases:   endStats.EraseCount - startStats.EraseCount,
		MinErase: endStats.MinErase,
		MaxErase: endStats.MaxErase,

		EngineStats: endStats,
	}

	return result
}
