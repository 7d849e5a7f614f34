package flashdb

import "sort"

// location of a record on flash
type location struct {
	block  int
	offset int
	length int
	seq    uint64
}

// index maps each key to its newest committed record
type index struct {
	entries map[string]location
}

func newIndex() *index {
	return &index{
		entries: make(map[string]location),
	}
}

func (ix *index) Get(key string) (location, bool) {
	loc, exists := ix.entries[key]
	return loc, exists
}

// Put overwrites the entry for key and returns the one it replaced.
func (ix *index) Put(key string, loc location) (location, bool) {
	prev, existed := ix.entries[key]
	ix.entries[key] = loc
	return prev, existed
}

// Offer keeps loc only if it is newer than the current entry. Equal sequence
// numbers keep the entry already there.
func (ix *index) Offer(key string, loc location) bool {
	if prev, exists := ix.entries[key]; exists && prev.seq >= loc.seq {
		return false
	}
	ix.entries[key] = loc
	return true
}

func (ix *index) Delete(key string) bool {
	_, existed := ix.entries[key]
	delete(ix.entries, key)
	return existed
}

func (ix *index) Count() int {
	return len(ix.entries)
}

// Keys returns every key in ascending order.
func (ix *index) Keys() []string {
	keys := make([]string, 0, len(ix.entries))
	for key := range ix.entries {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// InBlock returns the keys whose records live in block, in written order.
func (ix *index) InBlock(block int) []string {
	keys := make([]string, 0)
	for key, loc := range ix.entries {
		if loc.block == block {
			keys = append(keys, key)
		}
	}
	sort.Slice(keys, func(i, j int) bool {
		return ix.entries[keys[i]].offset < ix.entries[keys[j]].offset
	})
	return keys
}

// track points key at loc and moves the live byte accounting with it.
func (s *Store) track(key string, loc location) {
	if prev, existed := s.index.Put(key, loc); existed {
		s.blocks[prev.block].live -= prev.length
		s.dropSize(prev.length)
	}
	s.blocks[loc.block].live += loc.length
	s.sizes[loc.length]++
}

// untrack forgets key, typically because its only record is unreadable.
func (s *Store) untrack(key string) {
	if loc, exists := s.index.Get(key); exists {
		s.blocks[loc.block].live -= loc.length
		s.dropSize(loc.length)
		s.index.Delete(key)
	}
}

func (s *Store) dropSize(length int) {
	if s.sizes[length]--; s.sizes[length] <= 0 {
		delete(s.sizes, length)
	}
}
