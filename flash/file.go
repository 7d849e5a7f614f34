package flash

import (
	"bytes"
	"fmt"
	"os"
	"sync"

	"github.com/intellect4all/flashdb/common"
)

// FileDevice keeps a flash image in a regular file. Erase-before-write is
// checked by value: a program fails if any target byte is not 0xFF.
type FileDevice struct {
	path       string
	blockSize  int
	blockCount int

	mu     sync.RWMutex
	file   *os.File
	closed bool
}

// OpenFile opens the image at path, creating an erased one if the file is
// missing or empty. An existing image must match the requested geometry.
func OpenFile(path string, blockSize, blockCount int) (*FileDevice, error) {
	if blockSize <= 0 || blockCount <= 0 {
		return nil, fmt.Errorf("flash: invalid geometry %dx%d", blockCount, blockSize)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, err
	}

	stat, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to stat image %s: %w", path, err)
	}

	d := &FileDevice{
		path:       path,
		blockSize:  blockSize,
		blockCount: blockCount,
		file:       file,
	}

	want := int64(blockSize) * int64(blockCount)
	switch stat.Size() {
	case want:
	case 0:
		for b := 0; b < blockCount; b++ {
			if err := d.fill(b); err != nil {
				file.Close()
				return nil, err
			}
		}
		if err := file.Sync(); err != nil {
			file.Close()
			return nil, err
		}
	default:
		file.Close()
		return nil, fmt.Errorf("flash: image %s is %d bytes, geometry needs %d", path, stat.Size(), want)
	}

	return d, nil
}

func (d *FileDevice) BlockSize() int  { return d.blockSize }
func (d *FileDevice) BlockCount() int { return d.blockCount }

func (d *FileDevice) Read(block, offset int, p []byte) error {
	if err := checkRange(d, block, offset, len(p)); err != nil {
		return err
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return fmt.Errorf("flash: image %s closed", d.path)
	}

	_, err := d.file.ReadAt(p, d.pos(block, offset))
	return err
}

func (d *FileDevice) Program(block, offset int, p []byte) error {
	if err := checkRange(d, block, offset, len(p)); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("flash: image %s closed", d.path)
	}

	current := make([]byte, len(p))
	if _, err := d.file.ReadAt(current, d.pos(block, offset)); err != nil {
		return err
	}
	if !IsErased(current) {
		return fmt.Errorf("%w: block %d offset %d", common.ErrWriteFault, block, offset)
	}

	_, err := d.file.WriteAt(p, d.pos(block, offset))
	return err
}

func (d *FileDevice) Erase(block int) error {
	if err := checkRange(d, block, 0, 0); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return fmt.Errorf("flash: image %s closed", d.path)
	}
	return d.fill(block)
}

func (d *FileDevice) Sync() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return nil
	}
	return d.file.Sync()
}

func (d *FileDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	if err := d.file.Sync(); err != nil {
		d.file.Close()
		return err
	}
	return d.file.Close()
}

func (d *FileDevice) fill(block int) error {
	erased := bytes.Repeat([]byte{Erased}, d.blockSize)
	_, err := d.file.WriteAt(erased, d.pos(block, 0))
	return err
}

func (d *FileDevice) pos(block, offset int) int64 {
	return int64(block)*int64(d.blockSize) + int64(offset)
}
