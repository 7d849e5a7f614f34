package flashdb

import (
	"fmt"

	"github.com/intellect4all/flashdb/common"
)

// appendRecord writes a new record for key under the next sequence number and
// returns where it landed. The index is left to the caller.
func (s *Store) appendRecord(key, value []byte) (location, error) {
	size := recordSize(len(key), len(value))
	if blockHeaderSize+size > s.blockSize {
		return location{}, fmt.Errorf("%w: %d byte record, %d byte blocks", common.ErrRecordTooLarge, size, s.blockSize)
	}

	if !s.admit(string(key), size) {
		return location{}, fmt.Errorf("%w: no room for %d more live bytes", common.ErrStoreFull, size)
	}
	if err := s.makeRoom(size); err != nil {
		return location{}, err
	}

	// A sequence number is spent even if the program fails, so a torn
	// record never shares one with a later record.
	seq := s.nextSeq
	s.nextSeq++

	loc, err := s.program(encodeRecord(key, value, seq))
	if err != nil {
		return location{}, err
	}
	loc.seq = seq
	return loc, nil
}

// admit reports whether the live set, with key's record replaced by one of
// size bytes, could still be packed so that the reserve and one more block
// stay FREE. Packing fills every block but the last beyond the usable space
// minus the largest record, and any two neighbours beyond one block, so
// either bound is enough. A write that does not grow the live set always
// passes.
func (s *Store) admit(key string, size int) bool {
	live, largest, prevLen := size, size, 0
	for _, b := range s.blocks {
		live += b.live
	}
	if prev, ok := s.index.Get(key); ok {
		live -= prev.length
		prevLen = prev.length
	}
	for length, n := range s.sizes {
		if length == prevLen {
			n--
		}
		if n > 0 && length > largest {
			largest = length
		}
	}

	usable := s.blockSize - blockHeaderSize
	spare := len(s.blocks) - reserveBlocks
	limit := max((spare-1)*(usable-largest), spare/2*usable)
	return live <= limit
}

// makeRoom leaves an active block with at least size free bytes. When no
// FREE block beyond the reserve is left it reclaims once and retries.
func (s *Store) makeRoom(size int) error {
	if s.fits(size) {
		return nil
	}
	s.seal()
	if s.activate(reserveBlocks) {
		return nil
	}

	if err := s.reclaim(size); err != nil {
		return err
	}
	if s.fits(size) {
		return nil
	}
	s.seal()
	if s.activate(reserveBlocks) {
		return nil
	}
	return common.ErrStoreFull
}

// program appends an encoded record to the active block: everything but the
// commit marker first, then the marker.
func (s *Store) program(buf []byte) (location, error) {
	b := s.active
	offset := b.cursor
	split := len(buf) - commitSize

	if err := s.dev.Program(b.id, offset, buf[:split]); err != nil {
		s.fault(b, offset, err)
		return location{}, err
	}
	if err := s.dev.Program(b.id, offset+split, buf[split:]); err != nil {
		s.fault(b, offset, err)
		return location{}, err
	}

	b.cursor += len(buf)
	s.stats.bytesProgrammed.Add(int64(len(buf)))

	return location{
		block:  b.id,
		offset: offset,
		length: len(buf),
	}, nil
}

// fault retires a block whose tail may hold a partial record.
func (s *Store) fault(b *block, offset int, err error) {
	s.logger.Warn("program failed, sealing block",
		"block", b.id, "offset", offset, "err", err)
	b.cursor = s.blockSize
	b.state = blockFull
	if s.active == b {
		s.active = nil
	}
}

func (s *Store) readRecord(loc location) (record, error) {
	buf := make([]byte, loc.length)
	if err := s.dev.Read(loc.block, loc.offset, buf); err != nil {
		return record{}, err
	}
	return decodeRecord(buf)
}
