package crosstab

import (
	"math"

	xtaberrors "github.com/tamirms/crosstab/errors"
	intbits "github.com/tamirms/crosstab/internal/bits"
)

const (
	// minBuckets is the smallest bucket array allocated. Power of two so the
	// probe sequence can use masking instead of modulo.
	minBuckets = 16

	// maxID is the largest assignable combination id. Bucket slots store ids
	// directly with 0 reserved as the empty sentinel, so the full uint32
	// range above zero is usable.
	maxID = math.MaxUint32
)

// store is the authoritative key->(id,count) hash table.
//
// Layout follows the index-stable arena design: an open-addressing bucket
// array holds ids for O(1) lookup, while the keys themselves live in an
// append-only flattened arena ordered by ascending id. Counts sit in a
// parallel array indexed by id-1. The arena doubles as the deterministic
// export order, so no sort is ever needed and growth only reallocates the
// bucket array, never the stored keys.
type store struct {
	codec  *keyCodec
	keyLen int

	// buckets is always a power of two. A slot holds 0 (empty) or an id.
	buckets []uint32
	mask    uint64

	// Arena, indexed by id-1. keys is flattened with stride keyLen.
	keys   []int64
	counts []float64
}

func newStore(codec *keyCodec, capacityHint int) *store {
	nb := intbits.NextPow2(uint64(max(minBuckets, capacityHint*4/3)))
	s := &store{
		codec:   codec,
		keyLen:  codec.keyLen,
		buckets: make([]uint32, nb),
		mask:    nb - 1,
	}
	if capacityHint > 0 {
		s.keys = make([]int64, 0, capacityHint*codec.keyLen)
		s.counts = make([]float64, 0, capacityHint)
	}
	return s
}

// size returns the number of distinct keys stored (== current max id).
func (s *store) size() int {
	return len(s.counts)
}

// key returns the arena-backed canonical key for an id. The returned slice
// aliases the arena; callers must not modify or retain it across updates.
func (s *store) key(id uint32) []int64 {
	off := (int(id) - 1) * s.keyLen
	return s.keys[off : off+s.keyLen]
}

// update applies incr to key, assigning the next sequential id on first
// occurrence. Amortized O(1): one probe sequence, plus an arena append and
// occasional bucket-array doubling on miss.
func (s *store) update(key []int64, incr float64) (uint32, error) {
	if s.shouldGrow() {
		s.grow()
	}

	h := s.codec.hash(key)
	idx := h & s.mask
	for {
		id := s.buckets[idx]
		if id == 0 {
			return s.insert(idx, key, incr)
		}
		if keysEqual(s.key(id), key) {
			s.counts[id-1] += incr
			return id, nil
		}
		idx = (idx + 1) & s.mask
	}
}

// lookup returns the id and count for key without mutating the table.
func (s *store) lookup(key []int64) (uint32, float64, bool) {
	h := s.codec.hash(key)
	idx := h & s.mask
	for {
		id := s.buckets[idx]
		if id == 0 {
			return 0, 0, false
		}
		if keysEqual(s.key(id), key) {
			return id, s.counts[id-1], true
		}
		idx = (idx + 1) & s.mask
	}
}

// insert registers a new key at the probed empty slot. Ids are gap-free and
// reflect first-seen order: the arena append position determines the id.
func (s *store) insert(idx uint64, key []int64, incr float64) (uint32, error) {
	if uint64(s.size()) >= maxID {
		return 0, xtaberrors.ErrTooManyCombinations
	}
	s.keys = append(s.keys, key...)
	s.counts = append(s.counts, incr)
	id := uint32(s.size())
	s.buckets[idx] = id
	return id, nil
}

// shouldGrow reports whether the next insertion could push the load factor
// past 3/4. Growing before probing keeps the probe loop free of capacity
// checks.
func (s *store) shouldGrow() bool {
	return uint64(s.size()+1)*4 > uint64(len(s.buckets))*3
}

// grow doubles the bucket array and rehashes every stored key from the
// arena. Entry order, ids, and counts are untouched.
func (s *store) grow() {
	nb := uint64(len(s.buckets)) * 2
	s.buckets = make([]uint32, nb)
	s.mask = nb - 1

	n := s.size()
	for id := uint32(1); id <= uint32(n); id++ {
		h := s.codec.hash(s.key(id))
		idx := h & s.mask
		for s.buckets[idx] != 0 {
			idx = (idx + 1) & s.mask
		}
		s.buckets[idx] = id
	}
}
