package partition

import (
	"math"
	"math/rand"
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
)

// Default k-means settings.
const (
	DefaultWeightPerCluster = 10.0
	DefaultMaxIterations    = 100
)

// KMeans clusters demand points by location. The number of clusters is the
// total demand divided by WeightPerCluster, rounded down and clamped to
// [1, len(points)]. Seeding is k-means++ driven by Seed, so equal inputs
// always give equal bubbles.
type KMeans struct {
	WeightPerCluster float64
	MaxIterations    int
	Seed             int64
}

// Partition clusters points and returns one bubble per non-empty cluster, in
// cluster order. Points inside a bubble keep their input order.
func (km KMeans) Partition(points []models.DemandPoint) ([]models.Bubble, error) {
	if len(points) == 0 {
		return []models.Bubble{}, nil
	}
	perCluster := km.WeightPerCluster
	if perCluster == 0 {
		perCluster = DefaultWeightPerCluster
	}
	if perCluster < 0 {
		return nil, eris.Errorf("partition: negative weight per cluster %g", perCluster)
	}
	maxIter := km.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}

	k := clusterCount(totalWeight(points), perCluster, len(points))
	coords := make([][]float64, len(points))
	for i, p := range points {
		coords[i] = []float64{p.X, p.Y}
	}

	centers := seedCenters(coords, k, rand.New(rand.NewSource(km.Seed)))
	labels, iterations := lloyd(coords, centers, maxIter)

	zap.L().Debug("kmeans converged",
		zap.String("component", "partition"),
		zap.Int("clusters", k),
		zap.Int("iterations", iterations),
	)

	members := make([][]models.DemandPoint, k)
	for i, label := range labels {
		members[label] = append(members[label], points[i])
	}

	bubbles := make([]models.Bubble, 0, k)
	for c, group := range members {
		if len(group) == 0 {
			continue
		}
		bubble, err := geometry.NewBubble(group)
		if err != nil {
			return nil, eris.Wrapf(err, "partition: cluster %d", c)
		}
		bubbles = append(bubbles, bubble)
	}
	return bubbles, nil
}

func clusterCount(total, perCluster float64, n int) int {
	k := int(math.Floor(total / perCluster))
	if k < 1 {
		k = 1
	}
	if k > n {
		k = n
	}
	return k
}

// seedCenters picks k initial centers with k-means++: each next center is
// drawn with probability proportional to its squared distance from the
// nearest center chosen so far.
func seedCenters(coords [][]float64, k int, rng *rand.Rand) [][]float64 {
	centers := make([][]float64, 0, k)
	centers = append(centers, clone(coords[rng.Intn(len(coords))]))

	d2 := make([]float64, len(coords))
	cum := make([]float64, len(coords))
	for len(centers) < k {
		last := centers[len(centers)-1]
		for i, c := range coords {
			d := floats.Distance(c, last, 2)
			if len(centers) == 1 || d*d < d2[i] {
				d2[i] = d * d
			}
		}

		floats.CumSum(cum, d2)
		total := cum[len(cum)-1]
		if total == 0 {
			// Every point coincides with a center already.
			centers = append(centers, clone(coords[rng.Intn(len(coords))]))
			continue
		}
		target := rng.Float64() * total
		idx := sort.SearchFloat64s(cum, target)
		for idx < len(cum)-1 && d2[idx] == 0 {
			idx++
		}
		centers = append(centers, clone(coords[idx]))
	}
	return centers
}

// lloyd refines centers in place and returns the final label of each point
// and the number of iterations run.
func lloyd(coords, centers [][]float64, maxIter int) ([]int, int) {
	labels := make([]int, len(coords))
	for i := range labels {
		labels[i] = -1
	}
	dist := make([]float64, len(centers))
	sizes := make([]int, len(centers))

	iter := 0
	for iter < maxIter {
		iter++
		changed := false
		for i, c := range coords {
			for j, center := range centers {
				dist[j] = floats.Distance(c, center, 2)
			}
			if label := floats.MinIdx(dist); label != labels[i] {
				labels[i] = label
				changed = true
			}
		}
		if !changed {
			break
		}

		// Empty clusters keep their previous center.
		for j := range centers {
			sizes[j] = 0
		}
		sums := make([][]float64, len(centers))
		for i, label := range labels {
			if sums[label] == nil {
				sums[label] = make([]float64, len(coords[i]))
			}
			floats.Add(sums[label], coords[i])
			sizes[label]++
		}
		for j, sum := range sums {
			if sizes[j] == 0 {
				continue
			}
			floats.Scale(1/float64(sizes[j]), sum)
			centers[j] = sum
		}
	}
	return labels, iter
}

func clone(s []float64) []float64 {
	out := make([]float64, len(s))
	copy(out, s)
	return out
}
