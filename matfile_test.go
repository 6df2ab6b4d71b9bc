package crosstab

import (
	"context"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/cespare/xxhash/v2"

	xtaberrors "github.com/tamirms/crosstab/errors"
)

// writeTestMatrixFile writes m to a temp file and returns its path.
func writeTestMatrixFile(t *testing.T, m *Matrix, kind ElemKind) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.xtb")
	if err := WriteMatrixFile(path, m, kind); err != nil {
		t.Fatalf("WriteMatrixFile failed: %v", err)
	}
	return path
}

// TestMatrixFileRoundTrip verifies that ingesting from a file produces the
// same table as ingesting the source matrix directly, for both encodings.
func TestMatrixFileRoundTrip(t *testing.T) {
	for _, kind := range []ElemKind{ElemInt32, ElemFloat64} {
		name := "int32"
		if kind == ElemFloat64 {
			name = "float64"
		}
		t.Run(name, func(t *testing.T) {
			rng := newTestRNG(t)
			m := randomCategoryMatrix(rng, 2500, 3, 9)
			path := writeTestMatrixFile(t, m, kind)

			f, err := OpenMatrixFile(path)
			if err != nil {
				t.Fatalf("OpenMatrixFile failed: %v", err)
			}
			defer func() { _ = f.Close() }()

			if f.NumObs() != 2500 || f.NumVars() != 3 {
				t.Fatalf("dims = %dx%d, want 2500x3", f.NumObs(), f.NumVars())
			}
			if f.Kind() != kind {
				t.Errorf("Kind = %d, want %d", f.Kind(), kind)
			}
			if err := f.Verify(); err != nil {
				t.Fatalf("Verify failed: %v", err)
			}

			direct := mustNew(t, 3)
			if _, err := direct.UpdateFromMatrixByRow(m, 1); err != nil {
				t.Fatal(err)
			}

			fromFile := mustNew(t, 3)
			processed, err := fromFile.UpdateFromFile(context.Background(), f, 1, 0)
			if err != nil {
				t.Fatalf("UpdateFromFile failed: %v", err)
			}
			if processed != 2500 {
				t.Errorf("processed = %d, want 2500", processed)
			}
			if !dataFramesEqual(direct.DataFrame(), fromFile.DataFrame()) {
				t.Error("file ingest produced a different table than direct ingest")
			}
		})
	}
}

// TestMatrixFileChunkSizes verifies chunk boundaries do not affect results.
func TestMatrixFileChunkSizes(t *testing.T) {
	rng := newTestRNG(t)
	m := randomCategoryMatrix(rng, 1000, 2, 5)
	path := writeTestMatrixFile(t, m, ElemInt32)

	var want *DataFrame
	for _, chunk := range []int{1, 7, 333, 1000, 5000} {
		f, err := OpenMatrixFile(path)
		if err != nil {
			t.Fatal(err)
		}
		tab := mustNew(t, 2)
		if _, err := tab.UpdateFromFile(context.Background(), f, 1, chunk); err != nil {
			t.Fatalf("chunk %d: %v", chunk, err)
		}
		_ = f.Close()

		df := tab.DataFrame()
		if want == nil {
			want = df
		} else if !dataFramesEqual(want, df) {
			t.Errorf("chunk size %d changed the tabulation", chunk)
		}
	}
}

// TestMatrixFileNegativeValues verifies int32 files preserve negative
// categories (nodata codes are commonly negative).
func TestMatrixFileNegativeValues(t *testing.T) {
	m := &Matrix{Rows: 2, Cols: 2, Data: []float64{-9999, 4, -9999, 4}}
	path := writeTestMatrixFile(t, m, ElemInt32)

	f, err := OpenMatrixFile(path)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()

	tab := mustNew(t, 2)
	if _, err := tab.UpdateFromFile(context.Background(), f, 1, 0); err != nil {
		t.Fatal(err)
	}
	checkDataFrame(t, tab, []tableRow{{1, 2, []int64{-9999, 4}}})
}

// TestWriteMatrixFileInt32Rejection verifies fractional and out-of-range
// values fail an int32 write and leave no file behind.
func TestWriteMatrixFileInt32Rejection(t *testing.T) {
	dir := t.TempDir()

	cases := []struct {
		name string
		val  float64
	}{
		{"fractional", 1.5},
		{"too_large", 3e9},
		{"too_small", -3e9},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			path := filepath.Join(dir, c.name+".xtb")
			m := &Matrix{Rows: 1, Cols: 2, Data: []float64{1, c.val}}
			if err := WriteMatrixFile(path, m, ElemInt32); !errors.Is(err, xtaberrors.ErrValueOutOfRange) {
				t.Fatalf("err = %v, want ErrValueOutOfRange", err)
			}
			if _, err := os.Stat(path); !os.IsNotExist(err) {
				t.Error("failed write left a file behind")
			}
		})
	}
}

// TestOpenMatrixFileValidation covers magic, checksum, version, kind, and
// truncation failures.
func TestOpenMatrixFileValidation(t *testing.T) {
	m := &Matrix{Rows: 4, Cols: 2, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}}

	// corrupt mutates a freshly written file and asserts the open error.
	corrupt := func(t *testing.T, mutate func(buf []byte), wantErr error) {
		t.Helper()
		path := writeTestMatrixFile(t, m, ElemInt32)
		buf, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		mutate(buf)
		if err := os.WriteFile(path, buf, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenMatrixFile(path); !errors.Is(err, wantErr) {
			t.Fatalf("err = %v, want %v", err, wantErr)
		}
	}

	// resealHeader recomputes the header checksum after a deliberate header
	// edit, so the edit itself is what gets rejected.
	resealHeader := func(buf []byte) {
		binary.LittleEndian.PutUint64(buf[32:40], xxhash.Sum64(buf[:32]))
	}

	t.Run("bad_magic", func(t *testing.T) {
		corrupt(t, func(buf []byte) {
			buf[0] ^= 0xFF
		}, xtaberrors.ErrInvalidMagic)
	})

	t.Run("header_corruption", func(t *testing.T) {
		corrupt(t, func(buf []byte) {
			buf[10] ^= 0xFF // rows field; header checksum now stale
		}, xtaberrors.ErrChecksumFailed)
	})

	t.Run("bad_version", func(t *testing.T) {
		corrupt(t, func(buf []byte) {
			binary.LittleEndian.PutUint16(buf[4:6], 0x00FF)
			resealHeader(buf)
		}, xtaberrors.ErrInvalidVersion)
	})

	t.Run("bad_elem_kind", func(t *testing.T) {
		corrupt(t, func(buf []byte) {
			buf[6] = 99
			resealHeader(buf)
		}, xtaberrors.ErrInvalidElemKind)
	})

	t.Run("oversized_dims", func(t *testing.T) {
		corrupt(t, func(buf []byte) {
			binary.LittleEndian.PutUint64(buf[8:16], 1<<62)
			binary.LittleEndian.PutUint64(buf[16:24], 1<<62)
			resealHeader(buf)
		}, xtaberrors.ErrMatrixTooLarge)
	})

	t.Run("truncated_data", func(t *testing.T) {
		path := writeTestMatrixFile(t, m, ElemInt32)
		buf, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, buf[:len(buf)-4], 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenMatrixFile(path); !errors.Is(err, xtaberrors.ErrTruncatedFile) {
			t.Fatalf("err = %v, want ErrTruncatedFile", err)
		}
	})

	t.Run("truncated_header", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "tiny.xtb")
		if err := os.WriteFile(path, []byte("XTB1"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := OpenMatrixFile(path); !errors.Is(err, xtaberrors.ErrTruncatedFile) {
			t.Fatalf("err = %v, want ErrTruncatedFile", err)
		}
	})
}

// TestMatrixFileDataCorruption verifies Open succeeds on corrupted data (the
// header is intact) but Verify catches it.
func TestMatrixFileDataCorruption(t *testing.T) {
	m := &Matrix{Rows: 4, Cols: 2, Data: []float64{1, 2, 3, 4, 5, 6, 7, 8}}
	path := writeTestMatrixFile(t, m, ElemInt32)

	buf, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	buf[matHeaderSize+3] ^= 0xFF
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		t.Fatal(err)
	}

	f, err := OpenMatrixFile(path)
	if err != nil {
		t.Fatalf("Open rejected data-only corruption: %v", err)
	}
	defer func() { _ = f.Close() }()

	if err := f.Verify(); !errors.Is(err, xtaberrors.ErrChecksumFailed) {
		t.Errorf("Verify: err = %v, want ErrChecksumFailed", err)
	}
}

// TestUpdateFromFileErrors covers dimension mismatch, closed files, and
// cancellation.
func TestUpdateFromFileErrors(t *testing.T) {
	rng := newTestRNG(t)
	m := randomCategoryMatrix(rng, 100, 3, 4)
	path := writeTestMatrixFile(t, m, ElemInt32)

	t.Run("dimension_mismatch", func(t *testing.T) {
		f, err := OpenMatrixFile(path)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = f.Close() }()

		tab := mustNew(t, 2) // file has 3 variables
		if _, err := tab.UpdateFromFile(context.Background(), f, 1, 0); !errors.Is(err, xtaberrors.ErrDimensionMismatch) {
			t.Fatalf("err = %v, want ErrDimensionMismatch", err)
		}
		if tab.Len() != 0 {
			t.Errorf("Len() = %d, want 0", tab.Len())
		}
	})

	t.Run("closed_file", func(t *testing.T) {
		f, err := OpenMatrixFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Fatal(err)
		}
		if err := f.Close(); err != nil {
			t.Errorf("second Close: %v, want nil", err)
		}

		tab := mustNew(t, 3)
		if _, err := tab.UpdateFromFile(context.Background(), f, 1, 0); !errors.Is(err, xtaberrors.ErrFileClosed) {
			t.Fatalf("err = %v, want ErrFileClosed", err)
		}
		if err := f.Verify(); !errors.Is(err, xtaberrors.ErrFileClosed) {
			t.Errorf("Verify on closed file: err = %v, want ErrFileClosed", err)
		}
	})

	t.Run("cancelled_context", func(t *testing.T) {
		f, err := OpenMatrixFile(path)
		if err != nil {
			t.Fatal(err)
		}
		defer func() { _ = f.Close() }()

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		tab := mustNew(t, 3)
		processed, err := tab.UpdateFromFile(ctx, f, 1, 10)
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("err = %v, want context.Canceled", err)
		}
		if processed != 0 {
			t.Errorf("processed = %d with pre-cancelled context, want 0", processed)
		}
	})
}
