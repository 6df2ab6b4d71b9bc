package crosstab

import (
	"fmt"

	xtaberrors "github.com/tamirms/crosstab/errors"
)

// Matrix is a dense row-major float64 matrix. Data holds Rows*Cols elements
// with element (r, c) at Data[r*Cols+c].
type Matrix struct {
	Rows, Cols int
	Data       []float64
}

// NewMatrix allocates a zero-filled rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	return &Matrix{
		Rows: rows,
		Cols: cols,
		Data: make([]float64, rows*cols),
	}
}

// At returns element (r, c).
func (m *Matrix) At(r, c int) float64 {
	return m.Data[r*m.Cols+c]
}

// Set assigns element (r, c).
func (m *Matrix) Set(r, c int, v float64) {
	m.Data[r*m.Cols+c] = v
}

// Transpose returns a newly allocated transpose of m.
func (m *Matrix) Transpose() *Matrix {
	t := NewMatrix(m.Cols, m.Rows)
	for r := 0; r < m.Rows; r++ {
		for c := 0; c < m.Cols; c++ {
			t.Data[c*m.Rows+r] = m.Data[r*m.Cols+c]
		}
	}
	return t
}

// checkBacking validates that the backing slice agrees with the declared
// dimensions. A Matrix with inconsistent shape is rejected before any
// element is read.
func (m *Matrix) checkBacking() error {
	if len(m.Data) != m.Rows*m.Cols {
		return fmt.Errorf("%w: backing slice has %d elements for %dx%d matrix",
			xtaberrors.ErrDimensionMismatch, len(m.Data), m.Rows, m.Cols)
	}
	return nil
}

// validateValues checks every element for finiteness and int64 range before
// ingestion starts. Running the scan up front makes bulk updates atomic: a
// bad value fails the whole call with the table untouched, never after a
// prefix of the matrix has already been applied.
func validateValues(data []float64) error {
	for i, v := range data {
		if _, err := truncate(v); err != nil {
			return fmt.Errorf("%w (matrix element %d: %v)", err, i, v)
		}
	}
	return nil
}

// matrixView describes how to walk one combination per observation through a
// flat data slice: observation j starts at base j*step and its keyLen
// elements are stride apart. Both bulk orientations reduce to a view, so a
// single ingest loop serves both and the update algorithm exists once.
type matrixView struct {
	data   []float64
	n      int // number of observations
	step   int // offset between consecutive observations
	stride int // offset between elements within one observation
}

// UpdateFromMatrix applies one update per column of m, broadcasting incr to
// each. The matrix holds one variable per row and one observation per
// column, so m.Rows must equal KeyLen. Returns the assigned ids in column
// order (not deduplicated, not sorted).
//
// The call is atomic: dimensions and all values are validated before any
// update is applied.
func (t *Table) UpdateFromMatrix(m *Matrix, incr float64) ([]uint32, error) {
	if m.Rows != t.keyLen {
		return nil, fmt.Errorf("%w: matrix has %d rows, key length is %d",
			xtaberrors.ErrDimensionMismatch, m.Rows, t.keyLen)
	}
	return t.updateView(matrixView{
		data:   m.Data,
		n:      m.Cols,
		step:   1,
		stride: m.Cols,
	}, m, incr)
}

// UpdateFromMatrixByRow applies one update per row of m, broadcasting incr
// to each. The matrix holds one observation per row and one variable per
// column, so m.Cols must equal KeyLen. Returns the assigned ids in row
// order.
//
// Feeding the transpose of a by-column matrix through this method produces a
// table state and id sequence identical to UpdateFromMatrix on the original.
func (t *Table) UpdateFromMatrixByRow(m *Matrix, incr float64) ([]uint32, error) {
	if m.Cols != t.keyLen {
		return nil, fmt.Errorf("%w: matrix has %d columns, key length is %d",
			xtaberrors.ErrDimensionMismatch, m.Cols, t.keyLen)
	}
	return t.updateView(matrixView{
		data:   m.Data,
		n:      m.Rows,
		step:   t.keyLen,
		stride: 1,
	}, m, incr)
}

// updateView runs the shared ingest loop over a validated orientation view.
func (t *Table) updateView(v matrixView, m *Matrix, incr float64) ([]uint32, error) {
	if err := m.checkBacking(); err != nil {
		return nil, err
	}
	if err := validateValues(v.data); err != nil {
		return nil, err
	}

	ids := make([]uint32, v.n)
	for j := 0; j < v.n; j++ {
		t.codec.normalizeStrided(t.scratch, v.data, j*v.step, v.stride)
		id, err := t.store.update(t.scratch, incr)
		if err != nil {
			return nil, err
		}
		ids[j] = id
	}
	return ids, nil
}
