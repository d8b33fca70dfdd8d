// Package synth generates synthetic demand, facility and station data for
// demos and benchmarks.
package synth

import (
	"fmt"
	"math/rand"
	"runtime"
	"sync"

	"github.com/kass/charge-planner/pkg/models"
)

// Options controls generation. Equal options always give equal data,
// whatever the number of workers.
type Options struct {
	Seed   int64
	Bounds models.BoundingBox
	// Hotspots is the number of demand clusters. Zero spreads demand
	// uniformly.
	Hotspots int
	// MaxWeight bounds the weight of a demand point.
	MaxWeight float64
	Workers   int
}

// chunk is the number of points generated from one derived seed.
const chunk = 4096

// Demand generates n demand points. With hotspots, most points fall near
// one of the hotspot centres and weigh more the closer they are.
func Demand(n int, opts Options) []models.DemandPoint {
	centres := hotspots(opts)
	maxWeight := opts.MaxWeight
	if maxWeight <= 0 {
		maxWeight = 5
	}
	w := opts.Bounds.Max.X - opts.Bounds.Min.X
	h := opts.Bounds.Max.Y - opts.Bounds.Min.Y
	spread := 0.05 * max(w, h)

	points := make([]models.DemandPoint, n)
	generate(n, opts, 1, func(r *rand.Rand, i int) {
		if len(centres) == 0 || r.Intn(5) == 0 {
			c := uniform(r, opts.Bounds)
			points[i] = models.DemandPoint{X: c.X, Y: c.Y, Weight: r.Float64() * maxWeight / 2}
			return
		}

		c := centres[r.Intn(len(centres))]
		dx, dy := r.NormFloat64()*spread, r.NormFloat64()*spread
		p := clamp(models.Coord{X: c.X + dx, Y: c.Y + dy}, opts.Bounds)
		closeness := 1.0
		if spread > 0 {
			closeness = 1 / (1 + (dx*dx+dy*dy)/(spread*spread))
		}
		points[i] = models.DemandPoint{X: p.X, Y: p.Y, Weight: maxWeight * closeness * r.Float64()}
	})
	return points
}

// Facilities generates n uniformly placed facilities with ids "P1".."Pn".
func Facilities(n int, opts Options) []models.Facility {
	facilities := make([]models.Facility, n)
	generate(n, opts, 2, func(r *rand.Rand, i int) {
		c := uniform(r, opts.Bounds)
		facilities[i] = models.Facility{ID: fmt.Sprintf("P%d", i+1), X: c.X, Y: c.Y}
	})
	return facilities
}

// Stations generates n uniformly placed existing stations.
func Stations(n int, opts Options) []models.Coord {
	stations := make([]models.Coord, n)
	generate(n, opts, 3, func(r *rand.Rand, i int) {
		stations[i] = uniform(r, opts.Bounds)
	})
	return stations
}

// generate calls fill for every index in [0, n). Indices are split into
// fixed chunks, each with its own generator seeded from the options seed,
// the stream and the chunk number, and the chunks are spread over workers.
func generate(n int, opts Options, stream int64, fill func(r *rand.Rand, i int)) {
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	chunks := make(chan int, (n+chunk-1)/chunk)
	for start := 0; start < n; start += chunk {
		chunks <- start
	}
	close(chunks)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for start := range chunks {
				r := rand.New(rand.NewSource(opts.Seed*1_000_003 + stream*7919 + int64(start/chunk)))
				for i := start; i < min(start+chunk, n); i++ {
					fill(r, i)
				}
			}
		}()
	}
	wg.Wait()
}

func hotspots(opts Options) []models.Coord {
	r := rand.New(rand.NewSource(opts.Seed))
	centres := make([]models.Coord, opts.Hotspots)
	for i := range centres {
		centres[i] = uniform(r, opts.Bounds)
	}
	return centres
}

func uniform(r *rand.Rand, b models.BoundingBox) models.Coord {
	return clamp(models.Coord{
		X: b.Min.X + r.Float64()*(b.Max.X-b.Min.X),
		Y: b.Min.Y + r.Float64()*(b.Max.Y-b.Min.Y),
	}, b)
}

func clamp(c models.Coord, b models.BoundingBox) models.Coord {
	return models.Coord{
		X: min(max(c.X, b.Min.X), b.Max.X),
		Y: min(max(c.Y, b.Min.Y), b.Max.Y),
	}
}
