//go:build linux

package crosstab

import "golang.org/x/sys/unix"

// madviseSequential hints to the kernel that the mapped region will be read
// sequentially, enabling readahead during chunked ingestion.
// Best-effort: errors are silently ignored.
func madviseSequential(data []byte) {
	if len(data) == 0 {
		return
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
}
