package models

import "fmt"

// Coord is a planar (or projected) coordinate.
type Coord struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// DemandPoint is one spatial cell with its estimated demand.
type DemandPoint struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Weight float64 `json:"weight"`
}

// Coord returns the location of the demand point.
func (p DemandPoint) Coord() Coord {
	return Coord{X: p.X, Y: p.Y}
}

// Facility is a candidate site (e.g. a parking space) demand can be assigned to.
type Facility struct {
	ID string  `json:"id"`
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
}

// Coord returns the location of the facility.
func (f Facility) Coord() Coord {
	return Coord{X: f.X, Y: f.Y}
}

// BoundingBox represents a rectangular area defined by two corners
type BoundingBox struct {
	Min Coord
	Max Coord
}

// Contains reports whether c lies inside or on the edge of the box.
func (b BoundingBox) Contains(c Coord) bool {
	return c.X >= b.Min.X && c.X <= b.Max.X && c.Y >= b.Min.Y && c.Y <= b.Max.Y
}

// BoundsOf returns the bounding box of the given coordinates.
func BoundsOf(coords []Coord) BoundingBox {
	if len(coords) == 0 {
		return BoundingBox{}
	}
	b := BoundingBox{Min: coords[0], Max: coords[0]}
	for _, c := range coords[1:] {
		b.Min.X = min(b.Min.X, c.X)
		b.Min.Y = min(b.Min.Y, c.Y)
		b.Max.X = max(b.Max.X, c.X)
		b.Max.Y = max(b.Max.Y, c.Y)
	}
	return b
}

// ShapeKind tags the variant of a Bubble.
type ShapeKind int

const (
	SinglePoint ShapeKind = iota + 1
	Segment
	Polygon
)

func (k ShapeKind) String() string {
	switch k {
	case SinglePoint:
		return "point"
	case Segment:
		return "segment"
	case Polygon:
		return "polygon"
	default:
		return fmt.Sprintf("ShapeKind(%d)", int(k))
	}
}

// KindForCount classifies a point count into a shape kind. Counts below one
// have no shape and return 0.
func KindForCount(n int) ShapeKind {
	switch {
	case n <= 0:
		return 0
	case n == 1:
		return SinglePoint
	case n == 2:
		return Segment
	default:
		return Polygon
	}
}

// Bubble is a region grouping a subset of demand points.
//
// Shape holds the geometry: the single point, the two segment endpoints, or
// the convex hull ring in hull order (closing vertex not repeated). A polygon
// built from collinear or coincident points keeps Kind == Polygon but may
// carry fewer than three effective vertices.
type Bubble struct {
	Kind   ShapeKind     `json:"kind"`
	Shape  []Coord       `json:"shape"`
	Points []DemandPoint `json:"points,omitempty"`
}

// Demand returns the summed weight of the bubble's points.
func (b Bubble) Demand() float64 {
	var sum float64
	for _, p := range b.Points {
		sum += p.Weight
	}
	return sum
}

// Pairing records which facility a bubble was assigned to.
type Pairing struct {
	BubbleIndex int     `json:"bubble_index" yaml:"bubble_index"`
	FacilityID  string  `json:"facility_id" yaml:"facility_id"`
	Distance    float64 `json:"distance" yaml:"distance"`
}

// AssignmentEntry is one reporting row of an AssignmentResult.
type AssignmentEntry struct {
	FacilityID string  `json:"facility_id" yaml:"facility_id"`
	X          float64 `json:"x" yaml:"x"`
	Y          float64 `json:"y" yaml:"y"`
	Count      int     `json:"count" yaml:"count"`
}

// AssignmentResult holds per-facility counts produced by one matching run.
// Facilities that received nothing are omitted from Entries.
type AssignmentResult struct {
	Capacity int       `json:"capacity" yaml:"capacity"`
	Pairings []Pairing `json:"pairings" yaml:"pairings"`

	entries []AssignmentEntry
	byID    map[string]int
}

// NewAssignmentResult builds a result from ordered entries and pairings.
func NewAssignmentResult(capacity int, entries []AssignmentEntry, pairings []Pairing) *AssignmentResult {
	r := &AssignmentResult{
		Capacity: capacity,
		Pairings: pairings,
		byID:     make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if e.Count == 0 {
			continue
		}
		r.byID[e.FacilityID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

// Entries returns the non-zero facility counts in facility insertion order.
func (r *AssignmentResult) Entries() []AssignmentEntry {
	out := make([]AssignmentEntry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Count returns the number of bubbles assigned to the facility, zero if none.
func (r *AssignmentResult) Count(facilityID string) int {
	i, ok := r.byID[facilityID]
	if !ok {
		return 0
	}
	return r.entries[i].Count
}

// Total returns the number of assigned bubbles.
func (r *AssignmentResult) Total() int {
	return len(r.Pairings)
}
