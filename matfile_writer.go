package crosstab

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"

	xtaberrors "github.com/tamirms/crosstab/errors"
)

// WriteMatrixFile writes m (observations x variables, row-major) to path in
// the matrix file format understood by OpenMatrixFile, using the given
// element encoding.
//
// For ElemInt32, every element must be integral and within int32 range;
// fractional or out-of-range values fail the write before any data is
// committed. ElemFloat64 stores elements verbatim.
//
// Writing streams through a buffered writer while a running xxHash64 digest
// accumulates the data checksum; the header is written last, once the
// checksum is known.
func WriteMatrixFile(path string, m *Matrix, kind ElemKind) error {
	if kind != ElemInt32 && kind != ElemFloat64 {
		return fmt.Errorf("%w: got %d", xtaberrors.ErrInvalidElemKind, kind)
	}
	if err := m.checkBacking(); err != nil {
		return err
	}
	if kind == ElemInt32 {
		if err := validateInt32(m.Data); err != nil {
			return err
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix file: %w", err)
	}

	if err := writeMatrixData(file, m, kind); err != nil {
		return errors.Join(err, file.Close(), os.Remove(path))
	}
	if err := file.Close(); err != nil {
		return errors.Join(fmt.Errorf("close matrix file: %w", err), os.Remove(path))
	}
	return nil
}

// validateInt32 rejects elements that cannot round-trip through int32.
func validateInt32(data []float64) error {
	for i, v := range data {
		iv, err := truncate(v)
		if err != nil {
			return fmt.Errorf("%w (matrix element %d: %v)", err, i, v)
		}
		if float64(iv) != v || iv < math.MinInt32 || iv > math.MaxInt32 {
			return fmt.Errorf("%w: element %d (%v) is not an int32",
				xtaberrors.ErrValueOutOfRange, i, v)
		}
	}
	return nil
}

func writeMatrixData(file *os.File, m *Matrix, kind ElemKind) error {
	// Reserve the header region; it is filled in after the data checksum is
	// complete.
	if _, err := file.Seek(matHeaderSize, io.SeekStart); err != nil {
		return fmt.Errorf("seek past header: %w", err)
	}

	bw := bufio.NewWriter(file)
	digest := xxhash.New()
	w := io.MultiWriter(bw, digest)

	var scratch [8]byte
	for _, v := range m.Data {
		if kind == ElemInt32 {
			binary.LittleEndian.PutUint32(scratch[:4], uint32(int32(v)))
			if _, err := w.Write(scratch[:4]); err != nil {
				return fmt.Errorf("write data: %w", err)
			}
		} else {
			binary.LittleEndian.PutUint64(scratch[:8], math.Float64bits(v))
			if _, err := w.Write(scratch[:8]); err != nil {
				return fmt.Errorf("write data: %w", err)
			}
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush data: %w", err)
	}

	header := &matHeader{
		Kind:         kind,
		Rows:         uint64(m.Rows),
		Cols:         uint64(m.Cols),
		DataChecksum: digest.Sum64(),
	}
	if _, err := file.WriteAt(header.marshal(), 0); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	return nil
}
