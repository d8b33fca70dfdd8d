package main

import (
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/mattn/go-isatty"

	"github.com/kass/charge-planner/pkg/matcher"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/partition"
	"github.com/kass/charge-planner/pkg/rtree"
	"github.com/kass/charge-planner/pkg/synth"
)

type BenchmarkResult struct {
	Stage         string
	Iterations    int
	TotalDuration time.Duration
	AvgDuration   time.Duration
	MinDuration   time.Duration
	MaxDuration   time.Duration
	OpsPerSec     float64
	Output        int
}

var bounds = models.BoundingBox{
	Min: models.Coord{X: 0, Y: 0},
	Max: models.Coord{X: 10000, Y: 10000},
}

func main() {
	var (
		stage         = flag.String("t", "all", "Stage: partition, kmeans, match, nearest, all")
		numPoints     = flag.Int("n", 100000, "Number of demand points")
		numFacilities = flag.Int("f", 2000, "Number of facilities")
		iterations    = flag.Int("iter", 5, "Iterations per stage")
		workers       = flag.Int("w", runtime.NumCPU(), "Number of concurrent workers")
		threshold     = flag.Float64("threshold", partition.DefaultThreshold, "Bisection demand threshold")
		capacity      = flag.Int("capacity", 0, "Facility capacity (0 = minimum feasible)")
		numQueries    = flag.Int("q", 10000, "Number of nearest queries")
		k             = flag.Int("k", 10, "Number of nearest neighbors")
		seed          = flag.Int64("seed", 1, "Random seed")
	)
	flag.Parse()

	opts := synth.Options{Seed: *seed, Bounds: bounds, Hotspots: 12, Workers: *workers}
	log.Printf("Generating %d demand points and %d facilities...\n", *numPoints, *numFacilities)
	demand := synth.Demand(*numPoints, opts)
	facilities := synth.Facilities(*numFacilities, opts)

	index, err := rtree.Build(facilities)
	if err != nil {
		log.Fatalf("Failed to build facility index: %v", err)
	}

	bisector := partition.Bisector{Threshold: *threshold, Workers: *workers}
	bubbles, err := bisector.Partition(demand)
	if err != nil {
		log.Fatalf("Failed to partition demand: %v", err)
	}
	if *capacity <= 0 {
		*capacity = matcher.MinimumCapacity(len(bubbles), len(facilities))
	}

	var results []BenchmarkResult
	run := func(name string) bool { return *stage == "all" || *stage == name }

	if run("partition") {
		results = append(results, benchmark("partition", *iterations, func() (int, error) {
			b, err := bisector.Partition(demand)
			return len(b), err
		}))
	}
	if run("kmeans") {
		km := partition.KMeans{WeightPerCluster: 10 * *threshold, MaxIterations: 20, Seed: *seed}
		results = append(results, benchmark("kmeans", *iterations, func() (int, error) {
			b, err := km.Partition(demand)
			return len(b), err
		}))
	}
	if run("match") {
		m := matcher.New(index, *capacity)
		results = append(results, benchmark("match", *iterations, func() (int, error) {
			r, err := m.Match(bubbles)
			if err != nil {
				return 0, err
			}
			return len(r.Entries()), nil
		}))
	}
	if run("nearest") {
		results = append(results, benchmarkNearest(index, *numQueries, *workers, *k, *seed))
	}
	if len(results) == 0 {
		log.Fatalf("Unknown stage: %s", *stage)
	}

	fmt.Println("\n=== Benchmark Results ===")
	fmt.Printf("Demand points: %d, bubbles: %d, facilities: %d, capacity: %d\n",
		len(demand), len(bubbles), len(facilities), *capacity)
	for _, r := range results {
		fmt.Printf("\n%s\n", r.Stage)
		fmt.Printf("  Iterations: %d\n", r.Iterations)
		fmt.Printf("  Total Duration: %v\n", r.TotalDuration)
		fmt.Printf("  Average Duration: %v\n", r.AvgDuration)
		fmt.Printf("  Min Duration: %v\n", r.MinDuration)
		fmt.Printf("  Max Duration: %v\n", r.MaxDuration)
		fmt.Printf("  Ops/Second: %.2f\n", r.OpsPerSec)
		fmt.Printf("  Output size: %d\n", r.Output)
	}
	fmt.Printf("\nWorkers Used: %d\n", *workers)
	fmt.Printf("CPU Cores: %d\n", runtime.NumCPU())
}

// benchmark runs fn iterations times, reporting progress on terminals.
func benchmark(name string, iterations int, fn func() (int, error)) BenchmarkResult {
	bar := newProgress(name)
	durations := make([]time.Duration, 0, iterations)
	var output int

	start := time.Now()
	for i := 0; i < iterations; i++ {
		t := time.Now()
		n, err := fn()
		if err != nil {
			log.Fatalf("%s failed: %v", name, err)
		}
		durations = append(durations, time.Since(t))
		output = n
		bar(float64(i+1) / float64(iterations))
	}
	return summarize(name, durations, time.Since(start), output)
}

func benchmarkNearest(index *rtree.FacilityIndex, numQueries, workers, k int, seed int64) BenchmarkResult {
	var (
		totalResults int
		durations    []time.Duration
		mu           sync.Mutex
	)

	r := rand.New(rand.NewSource(seed))
	queries := make([]models.Coord, numQueries)
	for i := range queries {
		queries[i] = models.Coord{
			X: bounds.Min.X + r.Float64()*(bounds.Max.X-bounds.Min.X),
			Y: bounds.Min.Y + r.Float64()*(bounds.Max.Y-bounds.Min.Y),
		}
	}

	startTime := time.Now()

	// Worker pool
	queryCh := make(chan models.Coord, numQueries)
	var wg sync.WaitGroup

	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			local := make([]time.Duration, 0, numQueries/workers+1)
			found := 0
			for q := range queryCh {
				queryStart := time.Now()
				found += len(index.KNearest(q, k))
				local = append(local, time.Since(queryStart))
			}

			mu.Lock()
			durations = append(durations, local...)
			totalResults += found
			mu.Unlock()
		}()
	}

	for _, q := range queries {
		queryCh <- q
	}
	close(queryCh)

	wg.Wait()
	return summarize("nearest", durations, time.Since(startTime), totalResults)
}

func summarize(name string, durations []time.Duration, total time.Duration, output int) BenchmarkResult {
	if len(durations) == 0 {
		return BenchmarkResult{Stage: name}
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}
	return BenchmarkResult{
		Stage:         name,
		Iterations:    len(durations),
		TotalDuration: total,
		AvgDuration:   sum / time.Duration(len(durations)),
		MinDuration:   slices.Min(durations),
		MaxDuration:   slices.Max(durations),
		OpsPerSec:     float64(len(durations)) / total.Seconds(),
		Output:        output,
	}
}

// newProgress returns a progress callback drawing a bar on terminals and
// doing nothing otherwise.
func newProgress(label string) func(percent float64) {
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		return func(float64) {}
	}

	bar := progress.New(progress.WithDefaultGradient(), progress.WithWidth(40))
	return func(percent float64) {
		fmt.Fprintf(os.Stderr, "\r%-10s %s", label, bar.ViewAs(percent))
		if percent >= 1 {
			fmt.Fprintln(os.Stderr)
		}
	}
}
