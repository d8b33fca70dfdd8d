// Package rtree provides the static facility index used for nearest-facility
// search, plus a bounding box index used to find regions around a point.
// Both are backed by an R-tree.
package rtree

import (
	"math"
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/rotisserie/eris"

	"github.com/kass/charge-planner/pkg/models"
)

const (
	tolerance   = 1e-6
	minChildren = 25
	maxChildren = 50
	dimensions  = 2
	earthRadius = 6371.0 // km
)

// facilityItem wraps a facility to implement rtreego.Spatial
type facilityItem struct {
	facility models.Facility
	seq      int
	rect     rtreego.Rect
}

func (f *facilityItem) Bounds() rtreego.Rect {
	return f.rect
}

// Neighbor is one ranked result of a nearest-facility query.
type Neighbor struct {
	Facility models.Facility
	Distance float64
	// Seq is the facility's position in the slice the index was built from.
	Seq int
}

// FacilityIndex is an immutable nearest-neighbour index over facilities.
// It is safe for concurrent use.
type FacilityIndex struct {
	tree       *rtreego.Rtree
	facilities []models.Facility
}

// Build indexes the facilities. Facility order is kept and breaks distance
// ties in queries. Facility ids must be unique.
func Build(facilities []models.Facility) (*FacilityIndex, error) {
	if len(facilities) == 0 {
		return nil, models.ErrIndexBuild
	}

	owned := make([]models.Facility, len(facilities))
	copy(owned, facilities)

	items := make([]rtreego.Spatial, len(owned))
	seen := make(map[string]int, len(owned))
	for i, f := range owned {
		if math.IsNaN(f.X) || math.IsNaN(f.Y) || math.IsInf(f.X, 0) || math.IsInf(f.Y, 0) {
			return nil, eris.Wrapf(models.ErrIndexBuild, "facility %q has no valid location", f.ID)
		}
		if first, ok := seen[f.ID]; ok {
			return nil, eris.Wrapf(models.ErrIndexBuild, "duplicate facility id %q at positions %d and %d", f.ID, first, i)
		}
		seen[f.ID] = i
		items[i] = &facilityItem{
			facility: f,
			seq:      i,
			rect:     rtreego.Point{f.X, f.Y}.ToRect(tolerance),
		}
	}

	return &FacilityIndex{
		tree:       rtreego.NewTree(dimensions, minChildren, maxChildren, items...),
		facilities: owned,
	}, nil
}

// Len returns the number of indexed facilities.
func (ix *FacilityIndex) Len() int {
	return len(ix.facilities)
}

// Facilities returns the indexed facilities in insertion order.
func (ix *FacilityIndex) Facilities() []models.Facility {
	out := make([]models.Facility, len(ix.facilities))
	copy(out, ix.facilities)
	return out
}

// KNearest returns up to k facilities closest to p, ordered by ascending
// Euclidean distance and then by insertion order. Fewer than k results
// means the index is exhausted.
//
// The tree ranks candidates by distance to their bounding rectangles, so the
// query window is widened until no facility outside it can beat the k-th
// exact distance.
func (ix *FacilityIndex) KNearest(p models.Coord, k int) []Neighbor {
	if k <= 0 {
		return nil
	}
	if k > len(ix.facilities) {
		k = len(ix.facilities)
	}

	query := rtreego.Point{p.X, p.Y}
	var neighbors []Neighbor
	for n := k; ; n *= 2 {
		if n > len(ix.facilities) {
			n = len(ix.facilities)
		}
		results := ix.tree.NearestNeighbors(n, query)

		neighbors = neighbors[:0]
		for _, r := range results {
			item := r.(*facilityItem)
			neighbors = append(neighbors, Neighbor{
				Facility: item.facility,
				Distance: math.Hypot(item.facility.X-p.X, item.facility.Y-p.Y),
				Seq:      item.seq,
			})
		}
		sortNeighbors(neighbors)

		if len(results) < n || n == len(ix.facilities) {
			break
		}
		// Anything the tree left out is at least as far as its last rectangle.
		last := results[len(results)-1].(*facilityItem)
		if rectDistance(p, last.rect) > neighbors[k-1].Distance {
			break
		}
	}

	if len(neighbors) > k {
		neighbors = neighbors[:k]
	}
	return neighbors
}

// Nearest returns the single closest facility to p.
func (ix *FacilityIndex) Nearest(p models.Coord) Neighbor {
	return ix.KNearest(p, 1)[0]
}

func sortNeighbors(neighbors []Neighbor) {
	sort.Slice(neighbors, func(i, j int) bool {
		if neighbors[i].Distance != neighbors[j].Distance {
			return neighbors[i].Distance < neighbors[j].Distance
		}
		return neighbors[i].Seq < neighbors[j].Seq
	})
}

// rectDistance is the Euclidean distance from p to the closest point of r.
func rectDistance(p models.Coord, r rtreego.Rect) float64 {
	axis := func(v float64, i int) float64 {
		lo := r.PointCoord(i)
		hi := lo + r.LengthsCoord(i)
		switch {
		case v < lo:
			return lo - v
		case v > hi:
			return v - hi
		default:
			return 0
		}
	}
	return math.Hypot(axis(p.X, 0), axis(p.Y, 1))
}

// Distance calculates the Haversine distance between two points in kilometers
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// GeoDistance returns the Haversine distance in kilometers between two
// coordinates holding longitude in X and latitude in Y.
func GeoDistance(a, b models.Coord) float64 {
	return Distance(a.Y, a.X, b.Y, b.X)
}
