package flashdb

import (
	"errors"

	"github.com/intellect4all/flashdb/common"
)

// Iterate walks the key set without holding any state on the caller's side
// beyond a position. Position 0 takes a fresh snapshot of the keys and
// returns the first; pass the returned next position to get the following
// one. ok is false once the snapshot is exhausted. Put, Compress and Check
// drop the snapshot, after which only a new walk from 0 returns keys.
func (s *Store) Iterate(position int) (key string, next int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", position, false
	}
	if position == 0 {
		s.iterKeys = s.index.Keys()
	}
	if position < 0 || position >= len(s.iterKeys) {
		return "", position, false
	}
	return s.iterKeys[position], position + 1, true
}

// Iterator walks a snapshot of the keys taken when it was created and loads
// each value as it goes. Keys that disappear or fail validation in between
// are skipped.
type Iterator struct {
	s     *Store
	keys  []string
	pos   int
	key   []byte
	value []byte
	err   error
}

var _ common.Iterator = (*Iterator)(nil)

func (s *Store) NewIterator() *Iterator {
	s.mu.Lock()
	defer s.mu.Unlock()

	it := &Iterator{s: s, pos: -1}
	if !s.closed {
		it.keys = s.index.Keys()
	}
	return it
}

func (it *Iterator) Next() bool {
	if it.err != nil {
		return false
	}
	for it.pos+1 < len(it.keys) {
		it.pos++
		key := it.keys[it.pos]

		value, err := it.s.Get([]byte(key))
		if errors.Is(err, common.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			it.err = err
			return false
		}
		it.key = []byte(key)
		it.value = value
		return true
	}
	it.key, it.value = nil, nil
	return false
}

func (it *Iterator) Key() []byte {
	return it.key
}

func (it *Iterator) Value() []byte {
	return it.value
}

func (it *Iterator) Error() error {
	return it.err
}

func (it *Iterator) Close() error {
	it.keys = nil
	it.key, it.value = nil, nil
	return nil
}
