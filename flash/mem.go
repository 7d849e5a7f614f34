package flash

import (
	"fmt"

	"github.com/intellect4all/flashdb/common"
)

// MemDevice is an in-memory flash simulator. It tracks which bytes were
// programmed since the last erase, so it catches reprogramming even when the
// data written happens to be 0xFF.
type MemDevice struct {
	blockSize  int
	blockCount int

	data       []byte
	programmed []uint64 // one bit per byte
	erases     []uint32

	power        Power
	bytesWritten int64
}

// NewMemDevice returns a fully erased device.
func NewMemDevice(blockSize, blockCount int) *MemDevice {
	if blockSize <= 0 || blockCount <= 0 {
		panic(fmt.Sprintf("flash: invalid geometry %dx%d", blockCount, blockSize))
	}
	total := blockSize * blockCount
	d := &MemDevice{
		blockSize:  blockSize,
		blockCount: blockCount,
		data:       make([]byte, total),
		programmed: make([]uint64, (total+63)/64),
		erases:     make([]uint32, blockCount),
	}
	for i := range d.data {
		d.data[i] = Erased
	}
	return d
}

func (d *MemDevice) BlockSize() int  { return d.blockSize }
func (d *MemDevice) BlockCount() int { return d.blockCount }

// SetPower installs a supply model; nil means unlimited power.
func (d *MemDevice) SetPower(p Power) {
	d.power = p
}

func (d *MemDevice) Read(block, offset int, p []byte) error {
	if err := checkRange(d, block, offset, len(p)); err != nil {
		return err
	}
	base := block*d.blockSize + offset
	copy(p, d.data[base:base+len(p)])
	return nil
}

func (d *MemDevice) Program(block, offset int, p []byte) error {
	if err := checkRange(d, block, offset, len(p)); err != nil {
		return err
	}
	base := block*d.blockSize + offset
	for i := range p {
		if d.isProgrammed(base + i) {
			return fmt.Errorf("%w: block %d offset %d", common.ErrWriteFault, block, offset+i)
		}
	}

	n := len(p)
	if d.power != nil {
		n = d.power.Program(len(p))
	}
	for i := 0; i < n; i++ {
		d.data[base+i] = p[i]
		d.setProgrammed(base + i)
	}
	d.bytesWritten += int64(n)

	if n < len(p) {
		return fmt.Errorf("%w: programmed %d of %d bytes at block %d offset %d",
			ErrPowerLoss, n, len(p), block, offset)
	}
	return nil
}

func (d *MemDevice) Erase(block int) error {
	if err := checkRange(d, block, 0, 0); err != nil {
		return err
	}
	if d.power != nil && !d.power.Erase() {
		return fmt.Errorf("%w: erase of block %d", ErrPowerLoss, block)
	}
	base := block * d.blockSize
	for i := base; i < base+d.blockSize; i++ {
		d.data[i] = Erased
		d.programmed[i/64] &^= 1 << (uint(i) % 64)
	}
	d.erases[block]++
	return nil
}

// EraseCount returns how many times block has been erased.
func (d *MemDevice) EraseCount(block int) uint32 {
	return d.erases[block]
}

// Corrupt flips bits in place, bypassing erase-before-write. It models bit
// rot for tests.
func (d *MemDevice) Corrupt(block, offset int, mask byte) {
	d.data[block*d.blockSize+offset] ^= mask
}

// BytesProgrammed returns the total number of bytes programmed so far.
func (d *MemDevice) BytesProgrammed() int64 {
	return d.bytesWritten
}

func (d *MemDevice) isProgrammed(i int) bool {
	return d.programmed[i/64]&(1<<(uint(i)%64)) != 0
}

func (d *MemDevice) setProgrammed(i int) {
	d.programmed[i/64] |= 1 << (uint(i) % 64)
}
