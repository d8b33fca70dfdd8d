// Package partition groups weighted demand points into bubbles.
//
// Two strategies are provided. Bisector splits the point set recursively
// along its wider axis until both candidate halves fall under a demand
// threshold. KMeans clusters the points and turns every non-empty cluster
// into a bubble. Both produce the same bubble shape taxonomy.
package partition

import (
	"github.com/kass/charge-planner/pkg/models"
)

// Strategy names accepted by configuration.
const (
	StrategyBisect = "bisect"
	StrategyKMeans = "kmeans"
)

// DefaultThreshold is the demand threshold configuration starts from.
const DefaultThreshold = 8.0

// Strategy partitions a demand set into bubbles. The returned bubbles cover
// every input point exactly once.
type Strategy interface {
	Partition(points []models.DemandPoint) ([]models.Bubble, error)
}

var (
	_ Strategy = Bisector{}
	_ Strategy = KMeans{}
)

func totalWeight(points []models.DemandPoint) float64 {
	var sum float64
	for _, p := range points {
		sum += p.Weight
	}
	return sum
}
