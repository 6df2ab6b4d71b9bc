//go:build !linux

package crosstab

// madviseSequential is a no-op on non-Linux platforms.
// MADV_SEQUENTIAL semantics vary; the ingest path does not depend on it.
func madviseSequential(data []byte) {
	// No-op
}
