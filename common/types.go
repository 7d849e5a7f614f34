package common

// StorageEngine is the interface the flash store implements
type StorageEngine interface {
	Put(key, value []byte) error

	// Get Returns ErrKeyNotFound if key doesn't exist
	Get(key []byte) ([]byte, error)

	// Close releases the engine; the device stays usable
	Close() error

	// Sync ensures all data is persisted by the device
	Sync() error

	// Stats returns engine statistics
	Stats() Stats

	// Compact consolidates live data into as few blocks as possible
	Compact() error

	// Check rebuilds the in-memory state from a full device scan
	Check() error
}

// Stats contains engine statistics
type Stats struct {
	// Basic counts
	NumKeys       int64
	NumBlocks     int
	FreeBlocks    int
	FullBlocks    int
	ActiveBlock   int // -1 when no block is active
	LiveBytes     int64
	UsedBytes     int64
	CapacityBytes int64

	// Performance metrics
	WriteCount   int64
	ReadCount    int64
	CompactCount int64
	EraseCount   int64
	CorruptReads int64

	// Wear
	MinErase uint32
	MaxErase uint32

	// Amplification factors
	WriteAmp float64 // bytes programmed / bytes written by user
	SpaceAmp float64 // bytes used on flash / live bytes
}

// Iterator walks keys of a snapshot
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}
