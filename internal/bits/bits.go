// Package bits provides low-level bit manipulation primitives.
package bits

import "math/bits"

// FastRange32 maps a 64-bit hash uniformly to [0, n) returning uint32.
// Uses the "fastrange" technique: multiply and take high bits.
// This is the standard way to map hashes to ranges without modulo bias.
func FastRange32(hash uint64, n uint32) uint32 {
	if n == 0 {
		return 0
	}
	hi, _ := bits.Mul64(hash, uint64(n))
	return uint32(hi)
}

// Mix64 applies the SplitMix64 finalizer to x. Being composed of odd-constant
// multiplications and xor-shifts, it is a bijection on uint64: distinct inputs
// always produce distinct outputs, and low-entropy inputs (small category
// codes) are diffused across all 64 bits.
func Mix64(x uint64) uint64 {
	x ^= x >> 30
	x *= 0xbf58476d1ce4e5b9
	x ^= x >> 27
	x *= 0x94d049bb133111eb
	x ^= x >> 31
	return x
}

// NextPow2 returns the smallest power of two >= n, with a floor of 1.
// Saturates at 2^63 to avoid overflow for absurd inputs.
func NextPow2(n uint64) uint64 {
	if n <= 1 {
		return 1
	}
	lz := bits.LeadingZeros64(n - 1)
	if lz == 0 {
		return 1 << 63
	}
	return 1 << (64 - lz)
}
