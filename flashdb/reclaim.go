package flashdb

import (
	"fmt"
	"sort"
	"time"

	"github.com/intellect4all/flashdb/common"
)

// reclaim evacuates blocks until a size byte record can be appended, either
// into the active block or into a FREE block beyond the reserve. Put calls it
// when it runs out of FREE blocks.
func (s *Store) reclaim(size int) error {
	if err := s.levelWear(); err != nil {
		return err
	}

	for range s.blocks {
		if s.hasRoom(size) {
			return nil
		}
		victim := s.pickVictim()
		if victim == nil {
			break
		}
		if err := s.evacuate(victim); err != nil {
			return err
		}
	}
	if s.hasRoom(size) {
		return nil
	}

	// Garbage is too scattered for single moves to free a block. Repacking
	// everything always ends with a spare block for an admitted live set.
	s.logger.Debug("repacking all blocks", "size", size)
	if _, err := s.pack(); err != nil {
		return err
	}
	if !s.hasRoom(size) {
		return common.ErrStoreFull
	}
	return nil
}

func (s *Store) hasRoom(size int) bool {
	return s.fits(size) || s.freeCount() > reserveBlocks
}

// pickVictim returns the sealed block that is cheapest to evacuate: fewest
// live bytes, then lowest wear. Blocks without garbage are never picked.
func (s *Store) pickVictim() *block {
	var best *block
	for _, b := range s.blocks {
		if b.state != blockFull || b.garbage() <= 0 {
			continue
		}
		if best == nil ||
			b.live < best.live ||
			(b.live == best.live && b.eraseCount < best.eraseCount) {
			best = b
		}
	}
	return best
}

// levelWear moves the data of the least worn sealed block once the erase
// count spread exceeds the configured delta, so that cold data does not keep
// a fresh block out of rotation.
func (s *Store) levelWear() error {
	if s.config.WearLevelDelta < 0 || s.freeCount() == 0 {
		return nil
	}
	lo, hi := s.eraseSpread()
	if int(hi-lo) <= s.config.WearLevelDelta {
		return nil
	}

	var coldest *block
	for _, b := range s.blocks {
		if b.state != blockFull {
			continue
		}
		if coldest == nil || b.eraseCount < coldest.eraseCount {
			coldest = b
		}
	}
	if coldest == nil || int(hi-coldest.eraseCount) <= s.config.WearLevelDelta {
		return nil
	}

	s.logger.Debug("wear leveling",
		"block", coldest.id, "erases", coldest.eraseCount, "max", hi)
	return s.evacuate(coldest)
}

// evacuate copies every live record out of b, keeping sequence numbers, and
// erases b once nothing live remains in it.
func (s *Store) evacuate(b *block) error {
	if b == s.active {
		s.seal()
	}

	for _, key := range s.index.InBlock(b.id) {
		loc, _ := s.index.Get(key)
		if err := s.relocate(key, loc); err != nil {
			return err
		}
	}

	if b.live != 0 {
		return fmt.Errorf("flashdb: block %d still holds %d live bytes after evacuation", b.id, b.live)
	}

	// A sealed block that never took a record is already clean.
	if b.cursor == blockHeaderSize {
		b.state = blockFree
		return nil
	}
	return s.eraseBlock(b)
}

// relocate copies one live record verbatim into the active block. Its
// sequence number travels with it, so a crash before the source is erased
// leaves two identical copies rather than two competing versions.
func (s *Store) relocate(key string, loc location) error {
	buf := make([]byte, loc.length)
	if err := s.dev.Read(loc.block, loc.offset, buf); err != nil {
		return err
	}
	if _, err := decodeRecord(buf); err != nil {
		s.stats.corruptReads.Add(1)
		s.logger.Warn("dropping corrupt record during reclamation",
			"key", key, "block", loc.block, "offset", loc.offset, "err", err)
		s.untrack(key)
		return nil
	}

	if !s.fits(len(buf)) {
		s.seal()
		if !s.activate(0) {
			return common.ErrStoreFull
		}
	}

	newLoc, err := s.program(buf)
	if err != nil {
		return err
	}
	newLoc.seq = loc.seq
	s.track(key, newLoc)
	return nil
}

// pack evacuates every block that holds anything, packing live records into
// the least worn FREE blocks. It returns how many blocks it emptied.
func (s *Store) pack() (int, error) {
	s.seal()

	sources := make([]*block, 0, len(s.blocks))
	for _, b := range s.blocks {
		if b.state != blockFree {
			sources = append(sources, b)
		}
	}
	// Blocks holding only garbage go first so they are back in the FREE
	// pool before any copying needs a destination.
	sort.SliceStable(sources, func(i, j int) bool {
		return sources[i].live < sources[j].live
	})

	for _, b := range sources {
		if b.state == blockFree {
			continue
		}
		if err := s.evacuate(b); err != nil {
			return 0, fmt.Errorf("compaction of block %d: %w", b.id, err)
		}
	}
	return len(sources), nil
}

// compact packs the device, then rescans it.
func (s *Store) compact() error {
	start := time.Now()

	sources, err := s.pack()
	if err != nil {
		return err
	}
	if err := s.rebuild(); err != nil {
		return err
	}

	s.stats.compactCount.Add(1)
	s.logger.Info("compaction finished",
		"sources", sources, "keys", s.index.Count(),
		"free", s.freeCount(), "took", time.Since(start))
	return nil
}
