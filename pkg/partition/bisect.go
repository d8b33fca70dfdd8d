package partition

import (
	"math"
	"sort"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
)

// Bisector is the recursive spatial bisection strategy.
//
// A set of more than one point is sorted along its wider axis (x on ties) and
// cut into two halves, the first half taking the extra point when the count
// is odd. When both halves weigh strictly less than Threshold the whole,
// undivided set becomes one bubble; otherwise each half is partitioned in
// turn, left before right. A single point always becomes a bubble.
type Bisector struct {
	// Threshold is the demand bound. With zero no pair of halves is ever
	// below it, so every point ends up in its own bubble.
	Threshold float64
	// Workers > 1 partitions independent subtrees concurrently. The output
	// order is identical to the sequential one.
	Workers int
}

// NewBisector creates a sequential bisector with the given threshold.
func NewBisector(threshold float64) Bisector {
	return Bisector{Threshold: threshold}
}

// Partition splits points into bubbles. The input slice is not modified.
func (b Bisector) Partition(points []models.DemandPoint) ([]models.Bubble, error) {
	threshold, err := b.threshold()
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return []models.Bubble{}, nil
	}

	owned := make([]models.DemandPoint, len(points))
	copy(owned, points)

	if b.Workers > 1 {
		return b.partitionParallel(owned, threshold)
	}
	return bisect(owned, threshold, make([]models.Bubble, 0, len(points)/2+1))
}

func (b Bisector) threshold() (float64, error) {
	if b.Threshold < 0 || math.IsNaN(b.Threshold) {
		return 0, eris.Errorf("partition: invalid threshold %g", b.Threshold)
	}
	return b.Threshold, nil
}

// bisect appends the bubbles of points to acc and returns the extended slice.
func bisect(points []models.DemandPoint, threshold float64, acc []models.Bubble) ([]models.Bubble, error) {
	leaf, left, right, err := splitOnce(points, threshold)
	if err != nil {
		return acc, err
	}
	if leaf != nil {
		return append(acc, *leaf), nil
	}
	if acc, err = bisect(left, threshold, acc); err != nil {
		return acc, err
	}
	return bisect(right, threshold, acc)
}

// splitOnce runs one step of the bisection. It either returns the bubble the
// set stops at, or the two halves to recurse into. points is sorted in place.
func splitOnce(points []models.DemandPoint, threshold float64) (*models.Bubble, []models.DemandPoint, []models.DemandPoint, error) {
	if len(points) == 1 {
		bubble, err := geometry.NewBubble(points)
		if err != nil {
			return nil, nil, nil, eris.Wrap(err, "partition: single point bubble")
		}
		return &bubble, nil, nil, nil
	}

	sortAlongWiderAxis(points)

	mid := (len(points) + 1) / 2
	left, right := points[:mid], points[mid:]
	leftWeight, rightWeight := totalWeight(left), totalWeight(right)

	if leftWeight < threshold && rightWeight < threshold {
		bubble, err := geometry.NewBubble(points)
		if err != nil {
			return nil, nil, nil, eris.Wrapf(err, "partition: bubble of %d points", len(points))
		}
		return &bubble, nil, nil, nil
	}

	if ce := zap.L().Check(zap.DebugLevel, "split"); ce != nil {
		ce.Write(
			zap.String("component", "partition"),
			zap.Int("points", len(points)),
			zap.Float64("left_weight", leftWeight),
			zap.Float64("right_weight", rightWeight),
		)
	}
	return nil, left, right, nil
}

// sortAlongWiderAxis stable-sorts points by x, or by y when the y extent is
// strictly larger.
func sortAlongWiderAxis(points []models.DemandPoint) {
	minX, maxX := points[0].X, points[0].X
	minY, maxY := points[0].Y, points[0].Y
	for _, p := range points[1:] {
		minX, maxX = min(minX, p.X), max(maxX, p.X)
		minY, maxY = min(minY, p.Y), max(maxY, p.Y)
	}

	if maxY-minY > maxX-minX {
		sort.SliceStable(points, func(i, j int) bool { return points[i].Y < points[j].Y })
		return
	}
	sort.SliceStable(points, func(i, j int) bool { return points[i].X < points[j].X })
}

// subtree is a node of the split tree identified by its path from the root,
// one "L" or "R" per level.
type subtree struct {
	path    string
	points  []models.DemandPoint
	bubbles []models.Bubble
}

// partitionParallel expands the top of the split tree until there are enough
// independent subtrees to keep the workers busy, partitions those
// concurrently, and reassembles everything in split path order. Paths of
// distinct nodes with no ancestor relation compare in depth-first order.
func (b Bisector) partitionParallel(points []models.DemandPoint, threshold float64) ([]models.Bubble, error) {
	var done []subtree
	pending := []subtree{{path: "", points: points}}

	for len(pending) > 0 && len(pending) < b.Workers {
		var next []subtree
		for _, node := range pending {
			leaf, left, right, err := splitOnce(node.points, threshold)
			if err != nil {
				return nil, err
			}
			if leaf != nil {
				done = append(done, subtree{path: node.path, bubbles: []models.Bubble{*leaf}})
				continue
			}
			next = append(next,
				subtree{path: node.path + "L", points: left},
				subtree{path: node.path + "R", points: right},
			)
		}
		pending = next
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(b.Workers)
	for _, node := range pending {
		node := node
		g.Go(func() error {
			bubbles, err := bisect(node.points, threshold, nil)
			if err != nil {
				return eris.Wrapf(err, "partition: subtree %q", node.path)
			}
			mu.Lock()
			done = append(done, subtree{path: node.path, bubbles: bubbles})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(done, func(i, j int) bool { return done[i].path < done[j].path })

	out := make([]models.Bubble, 0, len(points)/2+1)
	for _, node := range done {
		out = append(out, node.bubbles...)
	}
	return out, nil
}
