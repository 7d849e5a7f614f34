package flashdb

import (
	"errors"
	"fmt"

	"github.com/intellect4all/flashdb/flash"
)

// rebuild scans every block and replaces the index, the block table and the
// sequence counter with what the device actually holds.
func (s *Store) rebuild() error {
	n := s.dev.BlockCount()
	blocks := make([]*block, n)
	idx := newIndex()
	lastSeq := make([]uint64, n)

	var maxSeq uint64
	var maxErase uint32
	var records, torn int
	unformatted := make([]*block, 0)
	headless := make([]*block, 0)

	for id := 0; id < n; id++ {
		b := &block{id: id, cursor: blockHeaderSize}
		blocks[id] = b

		header := make([]byte, blockHeaderSize)
		if err := s.dev.Read(id, 0, header); err != nil {
			return err
		}
		eraseCount, headerErr := decodeBlockHeader(header)
		if headerErr == nil {
			b.eraseCount = eraseCount
			maxErase = max(maxErase, eraseCount)
		}

		// Records carry their own checksums, so they are scanned even when
		// the block header is damaged.
		end, clean, err := s.scanBlock(id, func(rec record, loc location) {
			records++
			idx.Offer(string(rec.key), loc)
			maxSeq = max(maxSeq, rec.seq)
			lastSeq[id] = max(lastSeq[id], rec.seq)
		})
		if err != nil {
			return err
		}

		if headerErr != nil {
			if end == blockHeaderSize {
				unformatted = append(unformatted, b)
				continue
			}
			// Sealed until reclamation erases it and writes a fresh header.
			s.logger.Warn("keeping records of block with invalid header",
				"block", id, "err", headerErr)
			b.state = blockFull
			b.cursor = s.blockSize
			headless = append(headless, b)
			continue
		}

		switch {
		case !clean:
			torn++
			s.logger.Warn("discarding torn tail", "block", id, "offset", end)
			b.state = blockFull
			b.cursor = s.blockSize
		case end == blockHeaderSize:
			b.state = blockFree
		default:
			b.state = blockActive
			b.cursor = end
		}
	}

	// Blocks without a valid header were caught between erase and header
	// program, were never formatted, or suffered bit rot in the header.
	// Their true erase count is lost; the highest count seen is the safe
	// guess.
	for _, b := range headless {
		b.eraseCount = maxErase
	}
	for _, b := range unformatted {
		if err := s.format(b, maxErase); err != nil {
			return err
		}
	}

	sizes := make(map[int]int)
	for _, loc := range idx.entries {
		blocks[loc.block].live += loc.length
		sizes[loc.length]++
	}

	// Only one block keeps taking appends: the one written last.
	var active *block
	for _, b := range blocks {
		if b.state != blockActive {
			continue
		}
		if active == nil || lastSeq[b.id] > lastSeq[active.id] {
			if active != nil {
				active.state = blockFull
			}
			active = b
		} else {
			b.state = blockFull
		}
	}

	s.blocks = blocks
	s.active = active
	s.index = idx
	s.sizes = sizes
	s.nextSeq = max(s.nextSeq, maxSeq+1)
	s.iterKeys = nil

	s.restoreReserve()

	s.logger.Info("recovered flash store",
		"blocks", n, "records", records, "keys", idx.Count(),
		"torn", torn, "formatted", len(unformatted), "headless", len(headless),
		"free", s.freeCount())
	return nil
}

// scanBlock decodes records from the start of block until the log ends. It
// reports the offset where scanning stopped and whether everything from there
// to the end of the block is still erased. A record that fails validation
// ends the scan: appends are sequential, so nothing valid follows it.
func (s *Store) scanBlock(id int, fn func(record, location)) (int, bool, error) {
	offset := blockHeaderSize
	header := make([]byte, recordHeaderSize)

	for offset+recordOverhead <= s.blockSize {
		if err := s.dev.Read(id, offset, header); err != nil {
			return offset, false, err
		}
		keySize, valueSize, err := parseRecordHeader(header)
		if errors.Is(err, errErased) {
			break
		}
		if err != nil {
			return offset, false, nil
		}

		size := recordSize(keySize, valueSize)
		if offset+size > s.blockSize {
			return offset, false, nil
		}

		buf := make([]byte, size)
		if err := s.dev.Read(id, offset, buf); err != nil {
			return offset, false, err
		}
		rec, err := decodeRecord(buf)
		if err != nil {
			return offset, false, nil
		}

		fn(rec, location{block: id, offset: offset, length: size, seq: rec.seq})
		offset += size
	}

	rest := make([]byte, s.blockSize-offset)
	if err := s.dev.Read(id, offset, rest); err != nil {
		return offset, false, err
	}
	return offset, flash.IsErased(rest), nil
}

// format gives a headerless block a header, erasing it first unless it is
// already blank.
func (s *Store) format(b *block, eraseCount uint32) error {
	buf := make([]byte, s.blockSize)
	if err := s.dev.Read(b.id, 0, buf); err != nil {
		return err
	}

	b.eraseCount = eraseCount
	if !flash.IsErased(buf) {
		s.logger.Warn("re-erasing block with invalid header", "block", b.id)
		if err := s.dev.Erase(b.id); err != nil {
			return fmt.Errorf("format block %d: %w", b.id, err)
		}
		b.eraseCount++
		s.stats.eraseCount.Add(1)
	}

	if err := s.dev.Program(b.id, 0, encodeBlockHeader(b.eraseCount)); err != nil {
		return fmt.Errorf("format block %d: %w", b.id, err)
	}
	b.state = blockFree
	b.cursor = blockHeaderSize
	return nil
}

// restoreReserve brings back a FREE block after a crash in the middle of a
// reclamation consumed the reserve. Only moves that need no extra block are
// possible here.
func (s *Store) restoreReserve() {
	for s.freeCount() < reserveBlocks {
		victim := s.pickVictim()
		if victim == nil {
			s.logger.Warn("no free block and nothing to reclaim")
			return
		}
		if victim.live > 0 && (s.active == nil || s.active.cursor+victim.live > s.blockSize) {
			s.logger.Warn("no free block and no room to reclaim", "block", victim.id)
			return
		}
		if err := s.evacuate(victim); err != nil {
			s.logger.Warn("reserve reclamation failed", "block", victim.id, "err", err)
			return
		}
	}
}
