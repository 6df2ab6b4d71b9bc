package crosstab

// DataFrame is a column-oriented snapshot of a Table, ordered by ascending
// id. All slices are freshly allocated at snapshot time and share no storage
// with the table, so subsequent updates never invalidate a snapshot and a
// snapshot never reflects them.
type DataFrame struct {
	ID    []uint32  // assigned ids, 1..N with no gaps
	Count []float64 // accumulated counts, parallel to ID
	Names []string  // variable display names, length KeyLen
	Vars  [][]int64 // one column per variable, each parallel to ID
}

// NumRow returns the number of rows (distinct combinations) in the snapshot.
func (df *DataFrame) NumRow() int {
	return len(df.ID)
}

// DataFrame returns a snapshot of the table's current contents: one row per
// distinct combination, ordered by ascending id, with the id, the
// accumulated count, and the combination's integer values in original
// positional order. The table is not modified.
func (t *Table) DataFrame() *DataFrame {
	n := t.store.size()
	df := &DataFrame{
		ID:    make([]uint32, n),
		Count: make([]float64, n),
		Names: t.VarNames(),
		Vars:  make([][]int64, t.keyLen),
	}
	for v := range df.Vars {
		df.Vars[v] = make([]int64, n)
	}

	// The arena is already in id order; a single pass fills every column.
	for i := 0; i < n; i++ {
		df.ID[i] = uint32(i + 1)
		df.Count[i] = t.store.counts[i]
		key := t.store.keys[i*t.keyLen : (i+1)*t.keyLen]
		for v, kv := range key {
			df.Vars[v][i] = kv
		}
	}
	return df
}

// AsMatrix returns the snapshot as an N x (KeyLen+2) matrix with columns
// id, count, then the key values under their variable positions. Rows are
// ordered by ascending id. Equivalent to DataFrame with every column
// widened to float64.
func (t *Table) AsMatrix() *Matrix {
	n := t.store.size()
	m := NewMatrix(n, t.keyLen+2)
	for i := 0; i < n; i++ {
		row := m.Data[i*m.Cols : (i+1)*m.Cols]
		row[0] = float64(i + 1)
		row[1] = t.store.counts[i]
		key := t.store.keys[i*t.keyLen : (i+1)*t.keyLen]
		for v, kv := range key {
			row[2+v] = float64(kv)
		}
	}
	return m
}
