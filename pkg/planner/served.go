package planner

import (
	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/rtree"
)

// FilterServed drops every bubble that already contains one of the
// stations and returns the kept bubbles in order with the number dropped.
// Candidates come from an index over the bubbles' bounding boxes; the exact
// containment test runs only on those.
func FilterServed(bubbles []models.Bubble, stations []models.Coord) ([]models.Bubble, int) {
	if len(bubbles) == 0 || len(stations) == 0 {
		return bubbles, 0
	}

	boxes := make([]models.BoundingBox, len(bubbles))
	for i, b := range bubbles {
		boxes[i] = models.BoundsOf(b.Shape)
	}
	index := rtree.NewBoundsIndex(boxes)

	served := make([]bool, len(bubbles))
	for _, s := range stations {
		for _, i := range index.Containing(s) {
			if !served[i] && geometry.Contains(bubbles[i], s) {
				served[i] = true
			}
		}
	}

	kept := make([]models.Bubble, 0, len(bubbles))
	for i, b := range bubbles {
		if !served[i] {
			kept = append(kept, b)
		}
	}
	return kept, len(bubbles) - len(kept)
}
