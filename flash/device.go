// Package flash abstracts raw block-erasable flash memory.
//
// A Device is split into BlockCount erase blocks of BlockSize bytes. Erased
// bytes read as 0xFF. A byte can be programmed once after each erase of its
// block; programming it again without an erase is a write fault. These are
// the only primitives the store above relies on.
package flash

import (
	"errors"
	"fmt"
)

// Erased is the value every byte of a freshly erased block reads as.
const Erased = 0xFF

var (
	ErrOutOfRange = errors.New("flash access out of range")
	ErrPowerLoss  = errors.New("flash power lost")
)

// Device is the physical layer: read, program and erase on fixed-size blocks.
type Device interface {
	BlockSize() int
	BlockCount() int

	// Read fills p from block starting at offset.
	Read(block, offset int, p []byte) error

	// Program writes p at offset. It fails with common.ErrWriteFault if any
	// target byte was programmed since the block was last erased.
	Program(block, offset int, p []byte) error

	// Erase resets every byte of block to Erased.
	Erase(block int) error
}

// Syncer is implemented by devices that buffer writes.
type Syncer interface {
	Sync() error
}

// Power feeds program and erase operations. Devices that accept a Power use
// it to simulate supply loss: a short program grant leaves a truncated write
// behind and a refused erase leaves the block untouched.
type Power interface {
	Program(n int) int
	Erase() bool
}

func checkRange(d Device, block, offset, n int) error {
	if block < 0 || block >= d.BlockCount() {
		return fmt.Errorf("%w: block %d of %d", ErrOutOfRange, block, d.BlockCount())
	}
	if offset < 0 || n < 0 || offset+n > d.BlockSize() {
		return fmt.Errorf("%w: block %d offset %d length %d", ErrOutOfRange, block, offset, n)
	}
	return nil
}

// IsErased reports whether every byte of p reads as erased flash.
func IsErased(p []byte) bool {
	for _, b := range p {
		if b != Erased {
			return false
		}
	}
	return true
}
