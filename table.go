package crosstab

import (
	"fmt"

	xtaberrors "github.com/tamirms/crosstab/errors"
)

// Table tabulates how often each distinct combination of integer category
// values occurs across a stream of observations. Each distinct combination
// receives a sequential id (1, 2, 3, ...) in first-seen order and a running
// count; memory is proportional to the number of distinct combinations, not
// to the number of observations processed, so arbitrarily long streams can
// be tabulated through repeated bounded-size bulk updates.
//
// Usage:
//
//	tab, err := crosstab.New(3, crosstab.WithVarNames([]string{"landuse", "soil", "zone"}))
//	if err != nil { return err }
//
//	for chunk := range chunks {
//	    if _, err := tab.UpdateFromMatrixByRow(chunk, 1); err != nil { return err }
//	}
//	df := tab.DataFrame()
//
// Thread Safety: a Table is NOT safe for concurrent use. All operations,
// including exports, must be serialized by the caller.
type Table struct {
	keyLen   int
	varNames []string
	codec    *keyCodec
	store    *store

	// scratch holds the normalized key between codec and store; reused to
	// keep single-key updates allocation-free.
	scratch []int64
}

// Stats holds table statistics.
type Stats struct {
	NumCombinations int     // distinct combinations stored (== current max id)
	TotalWeight     float64 // sum of all counts
	NumBuckets      int     // current bucket array size
	LoadFactor      float64 // NumCombinations / NumBuckets
	SizeBytes       int64   // approximate resident size of buckets + arena
}

// New creates an empty Table for combinations of keyLen integer values.
// keyLen is fixed for the table's lifetime. Variable names default to
// V1..V{keyLen} unless overridden with WithVarNames.
func New(keyLen int, opts ...Option) (*Table, error) {
	if keyLen <= 0 {
		return nil, fmt.Errorf("%w: got %d", xtaberrors.ErrKeyLenInvalid, keyLen)
	}

	cfg := defaultTableConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	if cfg.varNames != nil && len(cfg.varNames) != keyLen {
		return nil, fmt.Errorf("%w: got %d names for key length %d",
			xtaberrors.ErrVarNamesMismatch, len(cfg.varNames), keyLen)
	}

	names := cfg.varNames
	if names == nil {
		names = make([]string, keyLen)
		for i := range names {
			names[i] = fmt.Sprintf("V%d", i+1)
		}
	}

	codec := newKeyCodec(keyLen, cfg.seed)
	return &Table{
		keyLen:   keyLen,
		varNames: names,
		codec:    codec,
		store:    newStore(codec, cfg.capacity),
		scratch:  make([]int64, keyLen),
	}, nil
}

// Update applies incr to the combination given by values and returns its id.
// values must have exactly KeyLen elements; each is truncated toward zero.
// A first-seen combination is assigned the next sequential id with its count
// set to incr; a known combination keeps its id and accumulates incr.
//
// incr is an unconstrained additive scalar: negative and zero increments are
// accepted and applied as-is, with no floor on the resulting count.
//
// On error the table is unchanged.
func (t *Table) Update(values []float64, incr float64) (uint32, error) {
	if err := t.codec.normalize(t.scratch, values); err != nil {
		return 0, err
	}
	return t.store.update(t.scratch, incr)
}

// Lookup returns the id and current count for the combination given by
// values without modifying the table. Returns ErrNotFound if the
// combination has never been seen.
func (t *Table) Lookup(values []float64) (uint32, float64, error) {
	if err := t.codec.normalize(t.scratch, values); err != nil {
		return 0, 0, err
	}
	id, count, ok := t.store.lookup(t.scratch)
	if !ok {
		return 0, 0, xtaberrors.ErrNotFound
	}
	return id, count, nil
}

// Len returns the number of distinct combinations stored.
func (t *Table) Len() int {
	return t.store.size()
}

// KeyLen returns the fixed combination length.
func (t *Table) KeyLen() int {
	return t.keyLen
}

// VarNames returns a copy of the variable display names.
func (t *Table) VarNames() []string {
	names := make([]string, len(t.varNames))
	copy(names, t.varNames)
	return names
}

// Stats returns current table statistics. O(n) in the number of distinct
// combinations (sums the counts).
func (t *Table) Stats() Stats {
	var total float64
	for _, c := range t.store.counts {
		total += c
	}
	n := t.store.size()
	nb := len(t.store.buckets)
	return Stats{
		NumCombinations: n,
		TotalWeight:     total,
		NumBuckets:      nb,
		LoadFactor:      float64(n) / float64(nb),
		SizeBytes: int64(nb)*4 + // buckets
			int64(len(t.store.keys))*8 + // key arena
			int64(len(t.store.counts))*8, // counts
	}
}
