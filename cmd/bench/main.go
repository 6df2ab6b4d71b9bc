// Bench is a benchmarking tool for measuring crosstab ingest throughput and
// memory usage on synthetic categorical data.
//
// Usage:
//
//	go run ./cmd/bench -obs 10000000 -layers 3 -cats 32
//
// Flags:
//
//	-obs      Number of observations to ingest (default: 10,000,000)
//	-layers   Number of aligned data layers, i.e. key length (default: 3)
//	-cats     Distinct category values per layer (default: 32)
//	-chunk    Observations per bulk-update chunk (default: 65536)
//	-seed     Data generation seed (default: 1)
//	-matfile  Stage data through a memory-mapped matrix file (default: false)
//	-producers Concurrent chunk generators; table updates stay serialized (default: 2)
package main

import (
	"context"
	"encoding/binary"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/spaolacci/murmur3"
	"golang.org/x/sync/errgroup"

	"github.com/tamirms/crosstab"
	intbits "github.com/tamirms/crosstab/internal/bits"
)

// getMaxRSS returns the maximum resident set size in bytes.
// Uses getrusage(RUSAGE_SELF) which tracks peak RSS since process start.
func getMaxRSS() uint64 {
	var rusage syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &rusage); err != nil {
		return 0
	}
	// On macOS, MaxRss is in bytes. On Linux, it's in kilobytes.
	maxRSS := uint64(rusage.Maxrss)
	if runtime.GOOS == "linux" {
		maxRSS *= 1024 // Convert KB to bytes on Linux
	}
	return maxRSS
}

// categoryValue derives a deterministic pseudo-random category for the given
// observation and layer. Murmur3 gives a stable stream across runs and
// producer goroutines for any seed; FastRange32 maps the hash onto the
// category range without modulo bias.
func categoryValue(obs int64, layer, numLayers, cats int, seed uint32) float64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(obs)*uint64(numLayers)+uint64(layer))
	return float64(intbits.FastRange32(murmur3.Sum64WithSeed(buf[:], seed), uint32(cats)))
}

// fillChunk generates observations [start, end) into m (end-start rows).
func fillChunk(m *crosstab.Matrix, start, end int64, layers, cats int, seed uint32) {
	for i := start; i < end; i++ {
		row := m.Data[(i-start)*int64(layers) : (i-start+1)*int64(layers)]
		for l := range row {
			row[l] = categoryValue(i, l, layers, cats, seed)
		}
	}
}

func main() {
	obsFlag := flag.Int64("obs", 10_000_000, "number of observations")
	layersFlag := flag.Int("layers", 3, "number of aligned layers (key length)")
	catsFlag := flag.Int("cats", 32, "distinct categories per layer")
	chunkFlag := flag.Int("chunk", 1<<16, "observations per chunk")
	seedFlag := flag.Uint("seed", 1, "data generation seed")
	matfileFlag := flag.Bool("matfile", false, "stage data through a matrix file")
	producersFlag := flag.Int("producers", 2, "concurrent chunk generators")
	flag.Parse()

	numObs := *obsFlag
	layers := *layersFlag
	cats := *catsFlag
	chunkRows := *chunkFlag
	seed := uint32(*seedFlag)

	tab, err := crosstab.New(layers, crosstab.WithCapacity(pow(cats, layers)))
	if err != nil {
		fmt.Printf("New failed: %v\n", err)
		os.Exit(1)
	}

	baselineRSS := getMaxRSS()
	start := time.Now()

	if *matfileFlag {
		err = runMatfile(tab, numObs, layers, cats, chunkRows, seed)
	} else {
		err = runPipeline(tab, numObs, layers, cats, chunkRows, seed, *producersFlag)
	}
	if err != nil {
		fmt.Printf("Ingest failed: %v\n", err)
		os.Exit(1)
	}

	elapsed := time.Since(start)
	stats := tab.Stats()

	fmt.Printf("\n")
	fmt.Printf("Observations:      %d\n", numObs)
	fmt.Printf("Layers:            %d (x %d categories)\n", layers, cats)
	fmt.Printf("Distinct combos:   %d\n", stats.NumCombinations)
	fmt.Printf("Total weight:      %.0f\n", stats.TotalWeight)
	fmt.Printf("Table size:        %.2f MiB (load factor %.2f)\n",
		float64(stats.SizeBytes)/(1<<20), stats.LoadFactor)
	fmt.Printf("Ingest time:       %.2f sec\n", elapsed.Seconds())
	fmt.Printf("Throughput:        %.2f M obs/sec\n",
		float64(numObs)/elapsed.Seconds()/1_000_000)
	fmt.Printf("Peak RSS delta:    %.2f MiB\n",
		float64(getMaxRSS()-baselineRSS)/(1<<20))
}

// runPipeline ingests generated chunks. Producers run on an errgroup and
// feed a channel; all table updates happen on this goroutine, since Table is
// single-writer by contract.
func runPipeline(tab *crosstab.Table, numObs int64, layers, cats, chunkRows int, seed uint32, producers int) error {
	type job struct {
		start, end int64
	}
	jobs := make(chan job, producers)
	chunks := make(chan *crosstab.Matrix, producers)

	g, _ := errgroup.WithContext(context.Background())
	for p := 0; p < producers; p++ {
		g.Go(func() error {
			for j := range jobs {
				m := crosstab.NewMatrix(int(j.end-j.start), layers)
				fillChunk(m, j.start, j.end, layers, cats, seed)
				chunks <- m
			}
			return nil
		})
	}
	go func() {
		for start := int64(0); start < numObs; start += int64(chunkRows) {
			end := start + int64(chunkRows)
			if end > numObs {
				end = numObs
			}
			jobs <- job{start, end}
		}
		close(jobs)
		_ = g.Wait()
		close(chunks)
	}()

	// Note: with more than one producer, chunk arrival order (and hence id
	// assignment) varies run to run. The aggregates reported here are
	// order-invariant.
	err := consumeChunks(chunks, func(m *crosstab.Matrix) error {
		_, err := tab.UpdateFromMatrixByRow(m, 1)
		return err
	})
	if werr := g.Wait(); err == nil {
		err = werr
	}
	return err
}

// consumeChunks ingests chunks until the channel closes. On ingest failure it
// keeps draining the channel in the background so blocked producers can
// finish and their errgroup can wind down.
func consumeChunks(chunks <-chan *crosstab.Matrix, ingest func(*crosstab.Matrix) error) error {
	for m := range chunks {
		if err := ingest(m); err != nil {
			go func() {
				for range chunks {
				}
			}()
			return err
		}
	}
	return nil
}

// runMatfile stages the synthetic data through an int32 matrix file and
// ingests it with UpdateFromFile, exercising the mmap path.
func runMatfile(tab *crosstab.Table, numObs int64, layers, cats, chunkRows int, seed uint32) error {
	tmpDir, err := os.MkdirTemp("", "crosstab-bench-")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(tmpDir) }()
	path := filepath.Join(tmpDir, "bench.xtb")

	m := crosstab.NewMatrix(int(numObs), layers)
	fillChunk(m, 0, numObs, layers, cats, seed)
	fmt.Println("Writing matrix file...")
	if err := crosstab.WriteMatrixFile(path, m, crosstab.ElemInt32); err != nil {
		return err
	}
	m = nil
	runtime.GC()

	f, err := crosstab.OpenMatrixFile(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	fmt.Println("Ingesting from matrix file...")
	_, err = tab.UpdateFromFile(context.Background(), f, 1, chunkRows)
	return err
}

// pow is integer exponentiation, saturating well below overflow for the
// capacity hint.
func pow(base, exp int) int {
	r := 1
	for i := 0; i < exp; i++ {
		if r > 1<<30/max(base, 1) {
			return 1 << 30
		}
		r *= base
	}
	return r
}
