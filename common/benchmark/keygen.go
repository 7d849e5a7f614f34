package benchmark

import (
	"math"
	mrand "math/rand"
	"strconv"
)

// KeyDistribution defines how keys are accessed
type KeyDistribution string

const (
	DistUniform    KeyDistribution = "uniform"    // All keys equally likely
	DistZipfian    KeyDistribution = "zipfian"    // a few keys take most accesses
	DistSequential KeyDistribution = "sequential" // 0, 1, 2, ... wrapping around
	DistLatest     KeyDistribution = "latest"     // mostly the highest numbered keys
)

// keyLimit is the longest key the flash store accepts.
const keyLimit = 256

// fillAlphabet pads keys past their number. It holds no NUL and nothing
// outside ASCII, and no '.'.
const fillAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ"

// KeySpace names keys 0..numKeys-1. Key n is n in base 36, then a '.' and
// filler up to its length. Base 36 digits never include '.', so distinct
// numbers give distinct keys whatever their lengths.
type KeySpace struct {
	numKeys int
	minLen  int
	maxLen  int
}

// NewKeySpace spreads key lengths over [minLen, maxLen], clamped to what
// the store accepts. A key whose number is longer than its drawn length
// keeps the number.
func NewKeySpace(numKeys, minLen, maxLen int) KeySpace {
	minLen = min(max(minLen, 1), keyLimit)
	return KeySpace{
		numKeys: max(numKeys, 1),
		minLen:  minLen,
		maxLen:  min(max(maxLen, minLen), keyLimit),
	}
}

func (ks KeySpace) NumKeys() int {
	return ks.numKeys
}

// Len returns the length of key n. It depends on n alone, so rewriting a key
// never changes its size.
func (ks KeySpace) Len(n int) int {
	span := uint64(ks.maxLen - ks.minLen + 1)
	drawn := ks.minLen + int(mix(uint64(n))%span)
	return max(drawn, digits36(n))
}

func (ks KeySpace) Key(n int) []byte {
	size := ks.Len(n)
	key := strconv.AppendInt(make([]byte, 0, size), int64(n), 36)
	if len(key) < size {
		key = append(key, '.')
	}
	for len(key) < size {
		key = append(key, fillAlphabet[(n+len(key))%len(fillAlphabet)])
	}
	return key
}

func digits36(n int) int {
	d := 1
	for n >= 36 {
		n /= 36
		d++
	}
	return d
}

// mix is the splitmix64 finalizer
func mix(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// KeyPicker draws keys from a KeySpace following a distribution. It is not
// safe for concurrent use.
type KeyPicker struct {
	space KeySpace
	next  func() int
}

func NewKeyPicker(space KeySpace, distribution KeyDistribution, seed int64) *KeyPicker {
	rng := mrand.New(mrand.NewSource(seed))
	n := space.numKeys
	p := &KeyPicker{space: space}

	switch distribution {
	case DistZipfian:
		zipf := mrand.NewZipf(rng, 1.1, 1, uint64(n-1))
		p.next = func() int { return int(zipf.Uint64()) }

	case DistSequential:
		i := -1
		p.next = func() int {
			i = (i + 1) % n
			return i
		}

	case DistLatest:
		// half normal below the newest key, most draws in the top tenth
		window := float64(max(n/10, 1))
		p.next = func() int {
			offset := int(math.Abs(rng.NormFloat64()) * window)
			return max(n-1-offset, 0)
		}

	default:
		p.next = func() int { return rng.Intn(n) }
	}

	return p
}

// Next returns the key for the next operation
func (p *KeyPicker) Next() []byte {
	return p.space.Key(p.next())
}
