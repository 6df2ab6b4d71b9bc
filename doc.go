// Package crosstab implements a combination-counting hash table for
// cross-tabulating aligned categorical data layers.
//
// A Table ingests fixed-length integer vectors (one combination per
// observation, e.g. one value per raster layer at a pixel position) and
// maintains, for each distinct combination ever seen, a sequential id
// assigned in first-occurrence order and a running occurrence count. Memory
// is proportional to the number of distinct combinations, not to the number
// of observations, so billion-cell overlays can be tabulated through
// repeated bounded-size bulk updates.
//
// # Basic Usage
//
// Single updates:
//
//	tab, err := crosstab.New(2)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	id, err := tab.Update([]float64{4, 7}, 1) // id == 1
//
// Bulk ingestion from a matrix (one observation per row):
//
//	ids, err := tab.UpdateFromMatrixByRow(m, 1)
//
// Exporting the tabulation, ordered by id:
//
//	df := tab.DataFrame()
//	for i := range df.ID {
//	    fmt.Println(df.ID[i], df.Count[i])
//	}
//
// # Package Structure
//
//   - Public API: table.go (New, Update, Lookup), matrix.go (bulk ingest),
//     dataframe.go (DataFrame, AsMatrix)
//   - Configuration: table_options.go (Option, With* functions)
//   - Core: store.go (bucket array + id-ordered key arena), key.go (truncation,
//     packing, hashing)
//   - Out-of-core ingest: matfile.go, matfile_writer.go (memory-mapped raw
//     matrix files)
//   - Platform: madvise_*.go (OS-specific read hints)
package crosstab
