// bench_slo.go - SLO benchmark for search, stats, and correction latency.
// Run: go run ./scripts/bench [--db path] [--iterations N]
//
// Loads the latest saved guide from a real database and generates a JSON
// report with p50/p95/p99 latencies for each command.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/hurttlocker/redline/internal/embed"
	"github.com/hurttlocker/redline/internal/index"
	"github.com/hurttlocker/redline/internal/pipeline"
	"github.com/hurttlocker/redline/internal/store"
)

type BenchResult struct {
	Command    string  `json:"command"`
	Iterations int     `json:"iterations"`
	P50Ms      float64 `json:"p50_ms"`
	P95Ms      float64 `json:"p95_ms"`
	P99Ms      float64 `json:"p99_ms"`
	MinMs      float64 `json:"min_ms"`
	MaxMs      float64 `json:"max_ms"`
	MeanMs     float64 `json:"mean_ms"`
	Pass       bool    `json:"pass"`
	SLOMs      float64 `json:"slo_ms"`
}

type BenchReport struct {
	GeneratedAt string        `json:"generated_at"`
	DBPath      string        `json:"db_path"`
	GuideName   string        `json:"guide_name"`
	Rules       int           `json:"rules"`
	Chunks      int           `json:"chunks"`
	Results     []BenchResult `json:"results"`
	AllPass     bool          `json:"all_pass"`
}

// sampleDoc is the fixed correction workload; the content only matters in
// that it resembles report prose, not in what the guide does with it.
const sampleDoc = `The patient was enrolled in phase ii of the study and received 100mg of the study drug once daily.

During the follow-up visit, a side effect was reported and the dose was reduced to 50mg.`

func main() {
	dbPath := flag.String("db", "", "Path to redline.db (default: ~/.redline/redline.db)")
	iterations := flag.Int("iterations", 20, "Number of iterations per benchmark")
	outFile := flag.String("out", "", "Output JSON file (default: stdout)")
	flag.Parse()

	st, err := store.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening store: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()

	guide, err := st.LatestGuide(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "No saved guides in %s (run 'redline ingest <guide>' first): %v\n", st.Path(), err)
		os.Exit(1)
	}
	snap, err := st.LoadSnapshot(ctx, guide.ID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading guide %q: %v\n", guide.Name, err)
		os.Exit(1)
	}

	// Query vectors must come from the embedder that produced the stored ones.
	embCfg, err := embed.Resolve(guide.EmbedSpec, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resolving embedder %q: %v\n", guide.EmbedSpec, err)
		os.Exit(1)
	}
	embedder, err := embed.New(embCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating embedder: %v\n", err)
		os.Exit(1)
	}
	ix, err := index.Restore(embedder, snap)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error restoring index: %v\n", err)
		os.Exit(1)
	}
	p := pipeline.New(embedder, pipeline.Options{})
	p.Restore(guide.Name, ix)

	report := BenchReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		DBPath:      st.Path(),
		GuideName:   guide.Name,
		Rules:       guide.Rules,
		Chunks:      guide.Chunks,
		AllPass:     true,
	}

	fmt.Fprintf(os.Stderr, "Redline SLO Benchmark\n")
	fmt.Fprintf(os.Stderr, "  DB: %s\n", st.Path())
	fmt.Fprintf(os.Stderr, "  Guide: %q (%d rules, %d chunks)\n", guide.Name, guide.Rules, guide.Chunks)
	fmt.Fprintf(os.Stderr, "  Iterations: %d\n\n", *iterations)

	// Benchmark queries (representative correction workload)
	searchQueries := []string{
		"adverse event during treatment",
		"patient enrollment criteria",
		"dose modification schedule",
		"protocol deviation reporting",
		"informed consent documentation",
		"concomitant medication listing",
		"screening visit assessments",
		"serious adverse event narrative",
	}

	// 1. Search benchmark
	searchTimes := benchmarkSearch(ctx, p, searchQueries, *iterations)
	searchResult := computeResult("search", searchTimes, 500)
	report.Results = append(report.Results, searchResult)
	if !searchResult.Pass {
		report.AllPass = false
	}

	// 2. Stats benchmark
	statsTimes := benchmarkStats(ctx, st, *iterations)
	statsResult := computeResult("stats", statsTimes, 500)
	report.Results = append(report.Results, statsResult)
	if !statsResult.Pass {
		report.AllPass = false
	}

	// 3. Snapshot load benchmark
	loadTimes := benchmarkSnapshotLoad(ctx, st, guide.ID, *iterations)
	loadResult := computeResult("snapshot_load", loadTimes, 2000)
	report.Results = append(report.Results, loadResult)
	if !loadResult.Pass {
		report.AllPass = false
	}

	// 4. Correction benchmark
	correctTimes := benchmarkCorrect(ctx, p, *iterations)
	correctResult := computeResult("correct", correctTimes, 2000)
	report.Results = append(report.Results, correctResult)
	if !correctResult.Pass {
		report.AllPass = false
	}

	// Print results
	for _, r := range report.Results {
		status := "✅ PASS"
		if !r.Pass {
			status = "❌ FAIL"
		}
		fmt.Fprintf(os.Stderr, "  %s: p50=%.1fms p95=%.1fms p99=%.1fms (SLO: %.0fms) %s\n",
			r.Command, r.P50Ms, r.P95Ms, r.P99Ms, r.SLOMs, status)
	}

	if report.AllPass {
		fmt.Fprintf(os.Stderr, "\n✅ All SLOs met\n")
	} else {
		fmt.Fprintf(os.Stderr, "\n❌ Some SLOs missed\n")
	}

	// Output JSON
	jsonBytes, _ := json.MarshalIndent(report, "", "  ")
	if *outFile != "" {
		os.WriteFile(*outFile, jsonBytes, 0644)
		fmt.Fprintf(os.Stderr, "\nReport written to %s\n", *outFile)
	} else {
		fmt.Println(string(jsonBytes))
	}
}

func benchmarkSearch(ctx context.Context, p *pipeline.Pipeline, queries []string, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		q := queries[i%len(queries)]
		start := time.Now()
		_, _ = p.Search(ctx, q, 10)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkStats(ctx context.Context, st *store.Store, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = st.Stats(ctx)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkSnapshotLoad(ctx context.Context, st *store.Store, guideID int64, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = st.LoadSnapshot(ctx, guideID)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func benchmarkCorrect(ctx context.Context, p *pipeline.Pipeline, iterations int) []float64 {
	var times []float64
	for i := 0; i < iterations; i++ {
		start := time.Now()
		_, _ = p.CorrectDocument(ctx, sampleDoc)
		times = append(times, float64(time.Since(start).Microseconds())/1000.0)
	}
	return times
}

func computeResult(name string, times []float64, sloMs float64) BenchResult {
	sort.Float64s(times)
	n := len(times)
	if n == 0 {
		return BenchResult{Command: name, SLOMs: sloMs}
	}

	sum := 0.0
	for _, t := range times {
		sum += t
	}

	p95 := times[int(float64(n)*0.95)]
	return BenchResult{
		Command:    name,
		Iterations: n,
		P50Ms:      times[n/2],
		P95Ms:      p95,
		P99Ms:      times[int(float64(n)*0.99)],
		MinMs:      times[0],
		MaxMs:      times[n-1],
		MeanMs:     sum / float64(n),
		SLOMs:      sloMs,
		Pass:       p95 <= sloMs,
	}
}
