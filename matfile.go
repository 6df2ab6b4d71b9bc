package crosstab

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/cespare/xxhash/v2"
	"github.com/edsrzf/mmap-go"

	xtaberrors "github.com/tamirms/crosstab/errors"
)

// ElemKind identifies the on-disk element encoding of a matrix file.
type ElemKind uint8

const (
	// ElemInt32 stores each element as a little-endian int32. The natural
	// choice for category grids, at half the size of float64.
	ElemInt32 ElemKind = 1

	// ElemFloat64 stores each element as a little-endian IEEE-754 float64.
	ElemFloat64 ElemKind = 2
)

const (
	// matMagic is "XTB1" read as a little-endian uint32.
	matMagic = uint32(0x31425458)

	// matVersion is the current matrix file format version.
	matVersion = uint16(0x0001)

	// matHeaderSize is the exact size of the serialized header.
	matHeaderSize = 40
)

// matHeader is the 40-byte matrix file header.
//
// Layout:
//
//	Offset  Size  Field           Type
//	0       4     Magic           0x31425458 ("XTB1")
//	4       2     Version         0x0001
//	6       1     ElemKind        uint8 (1=int32, 2=float64)
//	7       1     Reserved        byte (zero)
//	8       8     Rows            uint64_le (observations)
//	16      8     Cols            uint64_le (variables)
//	24      8     DataChecksum    uint64_le (xxHash64 of data region)
//	32      8     HeaderChecksum  uint64_le (xxHash64 of bytes 0-31)
//
// The data region follows immediately: Rows*Cols elements, row-major
// (observation-major), little-endian.
type matHeader struct {
	Kind         ElemKind
	Rows         uint64
	Cols         uint64
	DataChecksum uint64
}

func (h *matHeader) elemSize() int {
	if h.Kind == ElemInt32 {
		return 4
	}
	return 8
}

// marshal serializes the header, computing the header checksum over the
// first 32 bytes.
func (h *matHeader) marshal() []byte {
	buf := make([]byte, matHeaderSize)
	binary.LittleEndian.PutUint32(buf[0:4], matMagic)
	binary.LittleEndian.PutUint16(buf[4:6], matVersion)
	buf[6] = byte(h.Kind)
	binary.LittleEndian.PutUint64(buf[8:16], h.Rows)
	binary.LittleEndian.PutUint64(buf[16:24], h.Cols)
	binary.LittleEndian.PutUint64(buf[24:32], h.DataChecksum)
	binary.LittleEndian.PutUint64(buf[32:40], xxhash.Sum64(buf[:32]))
	return buf
}

// unmarshalMatHeader parses and validates a header, including its checksum.
func unmarshalMatHeader(buf []byte) (*matHeader, error) {
	if len(buf) < matHeaderSize {
		return nil, xtaberrors.ErrTruncatedFile
	}
	if binary.LittleEndian.Uint32(buf[0:4]) != matMagic {
		return nil, xtaberrors.ErrInvalidMagic
	}
	if got := binary.LittleEndian.Uint64(buf[32:40]); got != xxhash.Sum64(buf[:32]) {
		return nil, fmt.Errorf("%w: header", xtaberrors.ErrChecksumFailed)
	}
	if v := binary.LittleEndian.Uint16(buf[4:6]); v != matVersion {
		return nil, fmt.Errorf("%w: got version %d", xtaberrors.ErrInvalidVersion, v)
	}
	h := &matHeader{
		Kind:         ElemKind(buf[6]),
		Rows:         binary.LittleEndian.Uint64(buf[8:16]),
		Cols:         binary.LittleEndian.Uint64(buf[16:24]),
		DataChecksum: binary.LittleEndian.Uint64(buf[24:32]),
	}
	if h.Kind != ElemInt32 && h.Kind != ElemFloat64 {
		return nil, fmt.Errorf("%w: got %d", xtaberrors.ErrInvalidElemKind, buf[6])
	}
	return h, nil
}

// MatrixFile is a read-only memory-mapped matrix of observations. It lets a
// Table ingest grids far larger than RAM: the file is mapped, the kernel is
// hinted for sequential access, and chunked ingestion walks it without ever
// materializing the full matrix.
//
// A MatrixFile is safe for concurrent reads but Close must not race with
// any other method.
type MatrixFile struct {
	mmap   mmap.MMap
	data   []byte // data region (past header)
	header *matHeader
	closed bool
}

// OpenMatrixFile opens and memory-maps a matrix file for reading. The header
// checksum is verified at open; data integrity can be verified separately
// with Verify.
func OpenMatrixFile(path string) (*MatrixFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix file: %w", err)
	}
	defer file.Close()

	stat, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat matrix file: %w", err)
	}
	if stat.Size() < matHeaderSize {
		return nil, xtaberrors.ErrTruncatedFile
	}

	mm, err := mmap.Map(file, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("mmap matrix file: %w", err)
	}

	f := &MatrixFile{mmap: mm}
	header, err := unmarshalMatHeader(mm)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}

	elems := header.Rows * header.Cols
	if (header.Cols != 0 && elems/header.Cols != header.Rows) ||
		elems > (uint64(math.MaxInt64)-matHeaderSize)/uint64(header.elemSize()) {
		return nil, errors.Join(xtaberrors.ErrMatrixTooLarge, f.Close())
	}
	want := uint64(matHeaderSize) + elems*uint64(header.elemSize())
	if uint64(len(mm)) < want {
		return nil, errors.Join(xtaberrors.ErrTruncatedFile, f.Close())
	}

	f.header = header
	f.data = mm[matHeaderSize:want]

	// We only ever walk the data front to back.
	madviseSequential(f.data)
	return f, nil
}

// NumObs returns the number of observations (rows) in the file.
func (f *MatrixFile) NumObs() int {
	return int(f.header.Rows)
}

// NumVars returns the number of variables per observation (columns).
func (f *MatrixFile) NumVars() int {
	return int(f.header.Cols)
}

// Kind returns the on-disk element encoding.
func (f *MatrixFile) Kind() ElemKind {
	return f.header.Kind
}

// Verify recomputes the data checksum and compares it against the header.
// O(file size); intended for use after transfer or before long ingests.
func (f *MatrixFile) Verify() error {
	if f.closed {
		return xtaberrors.ErrFileClosed
	}
	if xxhash.Sum64(f.data) != f.header.DataChecksum {
		return fmt.Errorf("%w: data region", xtaberrors.ErrChecksumFailed)
	}
	return nil
}

// Close unmaps the file. After Close returns, no methods may be called.
func (f *MatrixFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	f.data = nil
	if f.mmap != nil {
		if err := f.mmap.Unmap(); err != nil {
			return fmt.Errorf("unmap matrix file: %w", err)
		}
		f.mmap = nil
	}
	return nil
}

// readObs decodes observation i into dst (length NumVars).
func (f *MatrixFile) readObs(dst []float64, i int) {
	cols := int(f.header.Cols)
	if f.header.Kind == ElemInt32 {
		off := i * cols * 4
		for c := 0; c < cols; c++ {
			dst[c] = float64(int32(binary.LittleEndian.Uint32(f.data[off+c*4:])))
		}
		return
	}
	off := i * cols * 8
	for c := 0; c < cols; c++ {
		dst[c] = math.Float64frombits(binary.LittleEndian.Uint64(f.data[off+c*8:]))
	}
}

// defaultChunkRows is the observation chunk size for file ingestion when the
// caller does not specify one. 64Ki observations keeps the decode buffer a
// few MiB at typical key lengths while amortizing per-chunk overhead.
const defaultChunkRows = 1 << 16

// UpdateFromFile ingests every observation of f, broadcasting incr to each,
// and returns the number of observations processed. Decoding and updating
// proceed in chunks of chunkRows observations (<= 0 selects a default), with
// ctx checked between chunks, so ingestion of very large files can be
// cancelled.
//
// Unlike the in-memory bulk operations, a value error (non-finite float64
// element) or cancellation aborts between chunks: observations from fully
// processed chunks remain applied. Ids are not returned; aggregate use is
// assumed at this scale.
func (t *Table) UpdateFromFile(ctx context.Context, f *MatrixFile, incr float64, chunkRows int) (int64, error) {
	if f.closed {
		return 0, xtaberrors.ErrFileClosed
	}
	if f.NumVars() != t.keyLen {
		return 0, fmt.Errorf("%w: file has %d variables, key length is %d",
			xtaberrors.ErrDimensionMismatch, f.NumVars(), t.keyLen)
	}
	if chunkRows <= 0 {
		chunkRows = defaultChunkRows
	}

	numObs := f.NumObs()
	chunk := NewMatrix(chunkRows, t.keyLen)

	var processed int64
	for start := 0; start < numObs; start += chunkRows {
		select {
		case <-ctx.Done():
			return processed, ctx.Err()
		default:
		}

		end := start + chunkRows
		if end > numObs {
			end = numObs
			chunk = &Matrix{
				Rows: end - start,
				Cols: t.keyLen,
				Data: chunk.Data[:(end-start)*t.keyLen],
			}
		}
		for i := start; i < end; i++ {
			f.readObs(chunk.Data[(i-start)*t.keyLen:(i-start+1)*t.keyLen], i)
		}
		if _, err := t.UpdateFromMatrixByRow(chunk, incr); err != nil {
			return processed, fmt.Errorf("chunk at observation %d: %w", start, err)
		}
		processed += int64(end - start)
	}
	return processed, nil
}
