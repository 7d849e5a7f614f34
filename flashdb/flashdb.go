// Package flashdb is a log-structured key-value store for raw block-erasable
// flash.
//
// Records are only ever appended. Updating a key appends a newer record with
// a higher sequence number; the in-memory index maps each key to its newest
// committed record and is rebuilt by scanning the device at Open and Check.
// Space held by superseded records is reclaimed by copying live records
// forward and erasing the emptied block, either on demand (Compress) or when
// Put runs out of free blocks.
//
// A Store is meant for one logical caller. Calls are serialized internally,
// but Iterate positions are only meaningful while no Put, Compress or Check
// runs between them.
package flashdb

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/intellect4all/flashdb/common"
	"github.com/intellect4all/flashdb/flash"
)

type Config struct {
	// WearLevelDelta is the erase count spread above which reclamation also
	// moves the coldest block's data. Negative disables it.
	// The spread stays within WearLevelDelta+1.
	WearLevelDelta int

	// Logger receives recovery and reclamation events. Nil discards them.
	Logger *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		WearLevelDelta: 1,
	}
}

var _ common.StorageEngine = (*Store)(nil)

// Store is a handle on one flash device. Open it, use it, Close it.
type Store struct {
	mu sync.Mutex

	dev       flash.Device
	config    Config
	logger    *slog.Logger
	blockSize int

	blocks  []*block
	active  *block
	index   *index
	nextSeq uint64

	// lengths of the records the index points at, length -> count
	sizes map[int]int

	// snapshot behind Iterate positions
	iterKeys []string

	stats struct {
		writeCount      atomic.Int64
		readCount       atomic.Int64
		compactCount    atomic.Int64
		eraseCount      atomic.Int64
		corruptReads    atomic.Int64
		bytesWritten    atomic.Int64
		bytesProgrammed atomic.Int64
	}

	closed bool
}

// Open scans dev and returns a ready store. Interrupted writes found during
// the scan are discarded, so a store opened after power loss returns either
// the old or the new value of a key that was being updated.
func Open(dev flash.Device, config Config) (*Store, error) {
	if dev.BlockCount() < 2+reserveBlocks {
		return nil, fmt.Errorf("flashdb: need at least %d blocks, device has %d", 2+reserveBlocks, dev.BlockCount())
	}
	if dev.BlockSize() < blockHeaderSize+recordSize(1, 0) {
		return nil, fmt.Errorf("flashdb: block size %d too small", dev.BlockSize())
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	s := &Store{
		dev:       dev,
		config:    config,
		logger:    logger,
		blockSize: dev.BlockSize(),
		nextSeq:   1,
	}

	if err := s.rebuild(); err != nil {
		return nil, fmt.Errorf("recovery failed: %w", err)
	}
	return s, nil
}

func (s *Store) Put(key, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(value); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.ErrClosed
	}
	s.iterKeys = nil

	loc, err := s.appendRecord(key, value)
	if err != nil {
		return err
	}
	s.track(string(key), loc)

	s.stats.writeCount.Add(1)
	s.stats.bytesWritten.Add(int64(len(key) + len(value)))
	return nil
}

// Get returns the newest value stored under key. A key whose record fails
// validation on read is reported as ErrKeyNotFound.
func (s *Store) Get(key []byte) ([]byte, error) {
	if validateKey(key) != nil {
		return nil, common.ErrKeyNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, common.ErrClosed
	}
	return s.get(string(key))
}

// GetInto copies the value for key into buf and returns its length. A value
// longer than buf yields ErrBufferTooSmall, which is also ErrKeyNotFound.
func (s *Store) GetInto(key, buf []byte) (int, error) {
	value, err := s.Get(key)
	if err != nil {
		return 0, err
	}
	if len(value) > len(buf) {
		return 0, common.ErrBufferTooSmall
	}
	return copy(buf, value), nil
}

func (s *Store) get(key string) ([]byte, error) {
	loc, ok := s.index.Get(key)
	if !ok {
		return nil, common.ErrKeyNotFound
	}

	rec, err := s.readRecord(loc)
	if err == nil && (string(rec.key) != key || rec.seq != loc.seq) {
		err = fmt.Errorf("%w: record at block %d offset %d belongs elsewhere", common.ErrIntegrity, loc.block, loc.offset)
	}
	if err != nil {
		s.stats.corruptReads.Add(1)
		s.logger.Warn("corrupt record on read",
			"key", key, "block", loc.block, "offset", loc.offset, "err", err)
		return nil, common.ErrKeyNotFound
	}

	s.stats.readCount.Add(1)
	return rec.value, nil
}

// Compress moves all live records into as few blocks as possible and erases
// every other block.
func (s *Store) Compress() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.ErrClosed
	}
	s.iterKeys = nil
	return s.compact()
}

// Compact is Compress under the common.StorageEngine name.
func (s *Store) Compact() error {
	return s.Compress()
}

// Check rebuilds the index and block table from a full scan of the device.
// Call it after an unclean shutdown when the store was not reopened.
func (s *Store) Check() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.ErrClosed
	}
	return s.rebuild()
}

func (s *Store) Sync() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return common.ErrClosed
	}
	if syncer, ok := s.dev.(flash.Syncer); ok {
		return syncer.Sync()
	}
	return nil
}

// Close syncs the device and invalidates the handle. The device itself stays
// open and belongs to the caller.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.iterKeys = nil

	if syncer, ok := s.dev.(flash.Syncer); ok {
		return syncer.Sync()
	}
	return nil
}

func (s *Store) Stats() common.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := common.Stats{
		NumKeys:       int64(s.index.Count()),
		NumBlocks:     len(s.blocks),
		ActiveBlock:   -1,
		CapacityBytes: int64(len(s.blocks)) * int64(s.blockSize-blockHeaderSize),
		WriteCount:    s.stats.writeCount.Load(),
		ReadCount:     s.stats.readCount.Load(),
		CompactCount:  s.stats.compactCount.Load(),
		EraseCount:    s.stats.eraseCount.Load(),
		CorruptReads:  s.stats.corruptReads.Load(),
	}
	if s.active != nil {
		st.ActiveBlock = s.active.id
	}

	for _, b := range s.blocks {
		switch b.state {
		case blockFree:
			st.FreeBlocks++
		case blockFull:
			st.FullBlocks++
		}
		st.LiveBytes += int64(b.live)
		st.UsedBytes += int64(b.used())
	}
	st.MinErase, st.MaxErase = s.eraseSpread()

	// Space Amplification: flash bytes holding records vs. bytes still live
	st.SpaceAmp = 1.0
	if st.LiveBytes > 0 {
		st.SpaceAmp = float64(st.UsedBytes) / float64(st.LiveBytes)
	}

	// Write Amplification: bytes programmed (including reclamation copies)
	// vs. key and value bytes handed to Put
	st.WriteAmp = 1.0
	if written := s.stats.bytesWritten.Load(); written > 0 {
		st.WriteAmp = float64(s.stats.bytesProgrammed.Load()) / float64(written)
	}

	return st
}
