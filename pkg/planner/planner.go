// Package planner runs the full placement pipeline: partition demand into
// bubbles, drop bubbles an existing station already serves, pick the
// per-facility capacity and match the remaining bubbles to facilities.
package planner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/config"
	"github.com/kass/charge-planner/pkg/dataio"
	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/matcher"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/partition"
	"github.com/kass/charge-planner/pkg/rtree"
)

const geographic = "geographic"

// Input is everything one planning run consumes.
type Input struct {
	Demand     []models.DemandPoint
	Facilities []models.Facility
	// Stations are existing charging stations. Bubbles containing one are
	// dropped when skip_served is set.
	Stations []models.Coord
}

// Result is the outcome of one planning run.
type Result struct {
	RunID     string
	Strategy  string
	Threshold float64
	Capacity  int
	// Bubbles are the bubbles that were matched, in partition order.
	Bubbles    []models.Bubble
	Served     int
	Facilities []models.Facility
	Assignment *models.AssignmentResult
	CreatedAt  time.Time
}

// Planner wires the configured strategy, filter and matcher together.
type Planner struct {
	cfg *config.Config
	log *zap.Logger
}

// New creates a planner for cfg.
func New(cfg *config.Config) *Planner {
	return &Planner{
		cfg: cfg,
		log: zap.L().With(zap.String("component", "planner")),
	}
}

// NewStrategy builds the partition strategy named in cfg.
func NewStrategy(cfg config.PartitionConfig) (partition.Strategy, error) {
	switch cfg.Strategy {
	case partition.StrategyBisect, "":
		return partition.Bisector{Threshold: cfg.Threshold, Workers: cfg.Workers}, nil
	case partition.StrategyKMeans:
		return partition.KMeans{
			WeightPerCluster: cfg.KMeans.WeightPerCluster,
			MaxIterations:    cfg.KMeans.MaxIterations,
			Seed:             cfg.KMeans.Seed,
		}, nil
	default:
		return nil, eris.Errorf("planner: unknown strategy %q", cfg.Strategy)
	}
}

// Partition splits demand into bubbles with the configured strategy.
func (p *Planner) Partition(demand []models.DemandPoint) ([]models.Bubble, error) {
	strategy, err := NewStrategy(p.cfg.Partition)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	bubbles, err := strategy.Partition(demand)
	if err != nil {
		return nil, eris.Wrap(err, "planner: partition demand")
	}

	p.log.Info("partitioned demand",
		zap.String("strategy", p.strategyName()),
		zap.Int("points", len(demand)),
		zap.Int("bubbles", len(bubbles)),
		zap.Duration("took", time.Since(start)),
	)
	return bubbles, nil
}

// Match assigns bubbles to facilities. The capacity is resolved against the
// bubble and facility counts first.
func (p *Planner) Match(bubbles []models.Bubble, facilities []models.Facility) (*models.AssignmentResult, error) {
	index, err := rtree.Build(facilities)
	if err != nil {
		return nil, eris.Wrap(err, "planner: build facility index")
	}

	capacity := p.ResolveCapacity(len(bubbles), index.Len())
	result, err := matcher.New(index, capacity).Match(bubbles)
	if err != nil {
		return nil, eris.Wrap(err, "planner: match bubbles")
	}

	p.log.Info("matched bubbles",
		zap.Int("bubbles", result.Total()),
		zap.Int("capacity", capacity),
		zap.Int("facilities_used", len(result.Entries())),
		zap.Int("facilities", index.Len()),
	)
	return result, nil
}

// ResolveCapacity returns the configured capacity, raised to the minimum
// feasible capacity when auto_capacity is set.
func (p *Planner) ResolveCapacity(bubbles, facilities int) int {
	capacity := p.cfg.Match.Capacity
	if !p.cfg.Match.AutoCapacity {
		return capacity
	}

	minimum := matcher.MinimumCapacity(bubbles, facilities)
	if capacity < minimum {
		p.log.Warn("raising capacity to fit all bubbles",
			zap.Int("configured", capacity),
			zap.Int("capacity", minimum),
		)
		return minimum
	}
	return capacity
}

// Plan runs the whole pipeline. Empty demand fails with
// models.ErrEmptyInput; ctx is checked between stages.
func (p *Planner) Plan(ctx context.Context, in Input) (*Result, error) {
	if len(in.Demand) == 0 {
		return nil, models.ErrEmptyInput
	}

	bubbles, err := p.Partition(in.Demand)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "planner: after partition")
	}

	served := 0
	if p.cfg.Match.SkipServed && len(in.Stations) > 0 {
		bubbles, served = FilterServed(bubbles, in.Stations)
		p.log.Info("dropped served bubbles",
			zap.Int("stations", len(in.Stations)),
			zap.Int("served", served),
			zap.Int("remaining", len(bubbles)),
		)
	}
	if err := ctx.Err(); err != nil {
		return nil, eris.Wrap(err, "planner: after served filter")
	}

	assignment, err := p.Match(bubbles, in.Facilities)
	if err != nil {
		return nil, err
	}

	return &Result{
		RunID:      uuid.NewString(),
		Strategy:   p.strategyName(),
		Threshold:  p.cfg.Partition.Threshold,
		Capacity:   assignment.Capacity,
		Bubbles:    bubbles,
		Served:     served,
		Facilities: in.Facilities,
		Assignment: assignment,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

func (p *Planner) strategyName() string {
	if p.cfg.Partition.Strategy == "" {
		return partition.StrategyBisect
	}
	return p.cfg.Partition.Strategy
}

// Report turns the result into its written form. With geographic
// coordinates (x = longitude, y = latitude) every pairing also carries the
// haversine distance in kilometres.
func (r *Result) Report(coordinates string) (dataio.Report, error) {
	entries := r.Assignment.Entries()
	located := make(map[string]models.Coord, len(entries))
	for _, e := range entries {
		located[e.FacilityID] = models.Coord{X: e.X, Y: e.Y}
	}

	pairings := make([]dataio.ReportPairing, len(r.Assignment.Pairings))
	for i, pr := range r.Assignment.Pairings {
		rep, err := geometry.Representative(r.Bubbles[pr.BubbleIndex])
		if err != nil {
			return dataio.Report{}, eris.Wrapf(err, "planner: bubble %d", pr.BubbleIndex)
		}
		pairings[i] = dataio.ReportPairing{
			BubbleIndex: pr.BubbleIndex,
			FacilityID:  pr.FacilityID,
			Location:    rep,
			Distance:    pr.Distance,
		}
		if coordinates == geographic {
			pairings[i].DistanceKm = rtree.GeoDistance(rep, located[pr.FacilityID])
		}
	}

	return dataio.Report{
		RunID:      r.RunID,
		Strategy:   r.Strategy,
		Threshold:  r.Threshold,
		Capacity:   r.Capacity,
		Bubbles:    len(r.Bubbles),
		Facilities: entries,
		Pairings:   pairings,
	}, nil
}
