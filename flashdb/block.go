package flashdb

type blockState uint8

const (
	blockFree   blockState = iota // erased, header only
	blockActive                   // receiving appends
	blockFull                     // sealed until reclaimed
)

func (s blockState) String() string {
	switch s {
	case blockFree:
		return "free"
	case blockActive:
		return "active"
	case blockFull:
		return "full"
	default:
		return "unknown"
	}
}

// reserveBlocks FREE blocks are kept back from user appends so that
// reclamation always has somewhere to copy live records.
const reserveBlocks = 1

// block is the in-memory view of one erase block
type block struct {
	id         int
	state      blockState
	eraseCount uint32
	cursor     int // next programmable offset
	live       int // bytes of records the index points at
}

func (b *block) used() int {
	return b.cursor - blockHeaderSize
}

// garbage is space taken by superseded or torn records.
func (b *block) garbage() int {
	return b.used() - b.live
}

func (s *Store) freeCount() int {
	n := 0
	for _, b := range s.blocks {
		if b.state == blockFree {
			n++
		}
	}
	return n
}

// activate makes the lowest-wear FREE block the active block, as long as
// more than keep FREE blocks exist.
func (s *Store) activate(keep int) bool {
	var best *block
	free := 0
	for _, b := range s.blocks {
		if b.state != blockFree {
			continue
		}
		free++
		if best == nil || b.eraseCount < best.eraseCount {
			best = b
		}
	}
	if free <= keep {
		return false
	}

	best.state = blockActive
	s.active = best
	return true
}

// seal retires the active block; its erased tail stays unused until the
// block is reclaimed.
func (s *Store) seal() {
	if s.active == nil {
		return
	}
	s.active.state = blockFull
	s.active = nil
}

func (s *Store) fits(size int) bool {
	return s.active != nil && s.active.cursor+size <= s.blockSize
}

// eraseSpread returns the lowest and highest erase counts on the device.
func (s *Store) eraseSpread() (uint32, uint32) {
	if len(s.blocks) == 0 {
		return 0, 0
	}
	lo, hi := s.blocks[0].eraseCount, s.blocks[0].eraseCount
	for _, b := range s.blocks[1:] {
		lo = min(lo, b.eraseCount)
		hi = max(hi, b.eraseCount)
	}
	return lo, hi
}

// eraseBlock erases b and programs a fresh header carrying its new erase
// count.
func (s *Store) eraseBlock(b *block) error {
	if err := s.dev.Erase(b.id); err != nil {
		return err
	}
	b.eraseCount++
	s.stats.eraseCount.Add(1)

	if err := s.dev.Program(b.id, 0, encodeBlockHeader(b.eraseCount)); err != nil {
		// Without a header the block is unusable until the next scan.
		b.state = blockFull
		b.cursor = s.blockSize
		b.live = 0
		return err
	}

	b.state = blockFree
	b.cursor = blockHeaderSize
	b.live = 0
	return nil
}
