package crosstab

import (
	"encoding/binary"
	"hash/fnv"
	"math/rand/v2"
	"testing"
)

// Named seeds for deterministic reproduction.
const (
	testSeed1 = 0x1234567890ABCDEF
	testSeed2 = 0xFEDCBA9876543210
)

// newTestRNG returns a PCG seeded from the test name, so every test gets a
// deterministic but distinct random stream.
func newTestRNG(t testing.TB) *rand.Rand {
	t.Helper()
	h := fnv.New128a()
	h.Write([]byte(t.Name()))
	sum := h.Sum(nil)
	s1 := binary.LittleEndian.Uint64(sum[:8])
	s2 := binary.LittleEndian.Uint64(sum[8:])
	return rand.New(rand.NewPCG(testSeed1^s1, testSeed2^s2))
}

// mustNew creates a Table or fails the test.
func mustNew(t testing.TB, keyLen int, opts ...Option) *Table {
	t.Helper()
	tab, err := New(keyLen, opts...)
	if err != nil {
		t.Fatalf("New(%d) failed: %v", keyLen, err)
	}
	return tab
}

// mustUpdate applies a single update or fails the test.
func mustUpdate(t testing.TB, tab *Table, values []float64, incr float64) uint32 {
	t.Helper()
	id, err := tab.Update(values, incr)
	if err != nil {
		t.Fatalf("Update(%v, %v) failed: %v", values, incr, err)
	}
	return id
}

// randomCategoryMatrix generates an observations x vars matrix of integer
// category values in [0, cats).
func randomCategoryMatrix(rng *rand.Rand, obs, vars, cats int) *Matrix {
	m := NewMatrix(obs, vars)
	for i := range m.Data {
		m.Data[i] = float64(rng.IntN(cats))
	}
	return m
}

// tableRow is one expected row of the tabulation, for readable assertions.
type tableRow struct {
	id    uint32
	count float64
	key   []int64
}

// checkDataFrame asserts that the table's DataFrame matches the expected
// rows exactly, in order.
func checkDataFrame(t testing.TB, tab *Table, want []tableRow) {
	t.Helper()
	df := tab.DataFrame()
	if df.NumRow() != len(want) {
		t.Fatalf("DataFrame has %d rows, want %d", df.NumRow(), len(want))
	}
	for i, w := range want {
		if df.ID[i] != w.id {
			t.Errorf("row %d: id = %d, want %d", i, df.ID[i], w.id)
		}
		if df.Count[i] != w.count {
			t.Errorf("row %d: count = %v, want %v", i, df.Count[i], w.count)
		}
		for v, kv := range w.key {
			if df.Vars[v][i] != kv {
				t.Errorf("row %d: var %d = %d, want %d", i, v, df.Vars[v][i], kv)
			}
		}
	}
}

// dataFramesEqual reports whether two snapshots have identical contents.
func dataFramesEqual(a, b *DataFrame) bool {
	if len(a.ID) != len(b.ID) || len(a.Vars) != len(b.Vars) {
		return false
	}
	for i := range a.ID {
		if a.ID[i] != b.ID[i] || a.Count[i] != b.Count[i] {
			return false
		}
	}
	for v := range a.Vars {
		for i := range a.Vars[v] {
			if a.Vars[v][i] != b.Vars[v][i] {
				return false
			}
		}
	}
	return true
}
