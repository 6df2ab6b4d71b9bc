package crosstab

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/zeebo/xxh3"

	xtaberrors "github.com/tamirms/crosstab/errors"
	intbits "github.com/tamirms/crosstab/internal/bits"
)

// Truncation bounds: float64 values at or beyond ±2^63 cannot be converted to
// int64 (the conversion result is implementation-defined in Go), so they are
// rejected rather than truncated. 2^63 is exactly representable as a float64.
const (
	maxTruncatable = float64(1 << 63) // exclusive upper bound
	minTruncatable = -float64(1 << 63)
)

// truncate converts a single numeric value to its canonical integer form,
// discarding the fractional part (truncation toward zero, the semantics of
// Go's float-to-int conversion).
func truncate(v float64) (int64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, xtaberrors.ErrNonFiniteValue
	}
	if v >= maxTruncatable || v < minTruncatable {
		return 0, xtaberrors.ErrValueOutOfRange
	}
	return int64(v), nil
}

// keyCodec normalizes caller-supplied numeric vectors into canonical integer
// keys and defines the hash used for bucket placement. Two inputs map to the
// same key iff their truncated integer sequences are element-wise equal.
type keyCodec struct {
	keyLen int
	seed   uint64

	// packBuf is reused across hash computations to avoid a per-update
	// allocation. One little-endian uint64 per key element.
	packBuf []byte
}

func newKeyCodec(keyLen int, seed uint64) *keyCodec {
	return &keyCodec{
		keyLen:  keyLen,
		seed:    seed,
		packBuf: make([]byte, keyLen*8),
	}
}

// normalize truncates src into dst. dst must have length keyLen; src length
// is validated here so callers get a single DimensionMismatch surface.
func (c *keyCodec) normalize(dst []int64, src []float64) error {
	if len(src) != c.keyLen {
		return fmt.Errorf("%w: got %d values, key length is %d",
			xtaberrors.ErrDimensionMismatch, len(src), c.keyLen)
	}
	for i, v := range src {
		iv, err := truncate(v)
		if err != nil {
			return fmt.Errorf("%w (element %d: %v)", err, i, v)
		}
		dst[i] = iv
	}
	return nil
}

// normalizeStrided truncates one combination read from a flat slice at
// positions base, base+stride, base+2*stride, ... into dst.
//
// Values are assumed pre-validated (see validateValues); the conversion here
// cannot fail.
func (c *keyCodec) normalizeStrided(dst []int64, data []float64, base, stride int) {
	for i := range dst {
		dst[i] = int64(data[base+i*stride])
	}
}

// hash computes the bucket hash for a canonical key. Each element is packed
// little-endian into a reusable buffer and the whole buffer is hashed with
// seeded xxHash3. Equal keys always hash identically; packing fixed-width
// integers avoids the collision-prone digit-concatenation approach.
//
// Single-variable tables skip the packing step: a seeded SplitMix64 round is
// already a full-entropy hash of one element.
func (c *keyCodec) hash(key []int64) uint64 {
	if c.keyLen == 1 {
		return intbits.Mix64(uint64(key[0]) ^ c.seed)
	}
	for i, v := range key {
		binary.LittleEndian.PutUint64(c.packBuf[i*8:], uint64(v))
	}
	return xxh3.HashSeed(c.packBuf, c.seed)
}

// keysEqual reports element-wise equality of two canonical keys of the same
// length.
func keysEqual(a, b []int64) bool {
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
