// Package geometry reduces demand point groups to shapes and representative
// points. Everything here is pure; nothing keeps state between calls.
package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"

	"github.com/kass/charge-planner/pkg/models"
)

// Reduce classifies points by count and returns the point that stands in for
// the whole group during nearest-facility search.
func Reduce(points []models.Coord) (models.Coord, models.ShapeKind, error) {
	kind := models.KindForCount(len(points))
	if kind == 0 {
		return models.Coord{}, 0, models.ErrDegenerateGeometry
	}

	var shape []models.Coord
	switch kind {
	case models.SinglePoint, models.Segment:
		shape = points
	case models.Polygon:
		shape = Hull(points)
	}

	rep, err := representative(shape)
	if err != nil {
		return models.Coord{}, 0, err
	}
	return rep, kind, nil
}

// NewBubble builds a bubble owning the given points. The slice is copied.
func NewBubble(points []models.DemandPoint) (models.Bubble, error) {
	kind := models.KindForCount(len(points))
	if kind == 0 {
		return models.Bubble{}, models.ErrDegenerateGeometry
	}

	owned := make([]models.DemandPoint, len(points))
	copy(owned, points)

	coords := make([]models.Coord, len(points))
	for i, p := range points {
		coords[i] = p.Coord()
	}

	b := models.Bubble{Kind: kind, Points: owned}
	if kind == models.Polygon {
		b.Shape = Hull(coords)
	} else {
		b.Shape = coords
	}
	return b, nil
}

// Representative returns the representative point of a bubble.
func Representative(b models.Bubble) (models.Coord, error) {
	switch b.Kind {
	case models.SinglePoint:
		if len(b.Shape) != 1 {
			return models.Coord{}, eris.Errorf("geometry: point bubble with %d vertices", len(b.Shape))
		}
		return b.Shape[0], nil
	case models.Segment:
		if len(b.Shape) != 2 {
			return models.Coord{}, eris.Errorf("geometry: segment bubble with %d vertices", len(b.Shape))
		}
		return midpoint(b.Shape[0], b.Shape[1]), nil
	case models.Polygon:
		return representative(b.Shape)
	default:
		return models.Coord{}, eris.Errorf("geometry: unknown bubble kind %d", int(b.Kind))
	}
}

// Hull returns the convex hull of points in hull order, without repeating the
// closing vertex. Rings wind clockwise starting from the lowest point (least
// x among ties), so WKT consumers wanting counter-clockwise exterior rings
// must reverse them. Coincident points are merged first; collinear input yields
// the two extreme points and a single distinct point yields itself.
func Hull(points []models.Coord) []models.Coord {
	unique := dedupe(points)
	if len(unique) <= 2 {
		return unique
	}
	if lo, hi, ok := collinearExtremes(unique); ok {
		return []models.Coord{lo, hi}
	}

	flat := make([]float64, 0, 2*len(unique))
	for _, c := range unique {
		flat = append(flat, c.X, c.Y)
	}

	switch g := xy.ConvexHullFlat(geom.XY, flat).(type) {
	case *geom.Polygon:
		ring := g.LinearRing(0).Coords()
		return fromGeomCoords(ring[:len(ring)-1])
	case *geom.LineString:
		return fromGeomCoords(g.Coords())
	case *geom.Point:
		return []models.Coord{{X: g.X(), Y: g.Y()}}
	default:
		return unique
	}
}

// Contains reports whether c lies in or on the bubble.
func Contains(b models.Bubble, c models.Coord) bool {
	switch len(b.Shape) {
	case 0:
		return false
	case 1:
		return b.Shape[0] == c
	case 2:
		return xy.IsOnLine(geom.XY, geom.Coord{c.X, c.Y}, flatCoords(b.Shape, false))
	default:
		return xy.IsPointInRing(geom.XY, geom.Coord{c.X, c.Y}, flatCoords(b.Shape, true))
	}
}

// representative picks an interior point of a hull shape. The area centroid
// of a convex ring always lies strictly inside it.
func representative(shape []models.Coord) (models.Coord, error) {
	switch len(shape) {
	case 0:
		return models.Coord{}, models.ErrDegenerateGeometry
	case 1:
		return shape[0], nil
	case 2:
		return midpoint(shape[0], shape[1]), nil
	}

	ring := flatCoords(shape, true)
	poly := geom.NewPolygonFlat(geom.XY, ring, []int{len(ring)})
	c := xy.PolygonsCentroid(poly)
	return models.Coord{X: c[0], Y: c[1]}, nil
}

// collinearExtremes reports whether all points lie on one line and, if so,
// returns its two lexicographically extreme points. The radial sort inside
// the Graham scan is not stable for fully collinear input.
func collinearExtremes(points []models.Coord) (models.Coord, models.Coord, bool) {
	lo, hi := points[0], points[0]
	for _, p := range points[1:] {
		if p.X < lo.X || (p.X == lo.X && p.Y < lo.Y) {
			lo = p
		}
		if p.X > hi.X || (p.X == hi.X && p.Y > hi.Y) {
			hi = p
		}
	}
	for _, p := range points {
		cross := (hi.X-lo.X)*(p.Y-lo.Y) - (hi.Y-lo.Y)*(p.X-lo.X)
		if cross != 0 {
			return lo, hi, false
		}
	}
	return lo, hi, true
}

func midpoint(a, b models.Coord) models.Coord {
	return models.Coord{X: (a.X + b.X) / 2, Y: (a.Y + b.Y) / 2}
}

func dedupe(points []models.Coord) []models.Coord {
	seen := make(map[models.Coord]struct{}, len(points))
	out := make([]models.Coord, 0, len(points))
	for _, p := range points {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func flatCoords(coords []models.Coord, closed bool) []float64 {
	flat := make([]float64, 0, 2*len(coords)+2)
	for _, c := range coords {
		flat = append(flat, c.X, c.Y)
	}
	if closed && len(coords) > 0 {
		flat = append(flat, coords[0].X, coords[0].Y)
	}
	return flat
}

func fromGeomCoords(coords []geom.Coord) []models.Coord {
	out := make([]models.Coord, len(coords))
	for i, c := range coords {
		out[i] = models.Coord{X: c[0], Y: c[1]}
	}
	return out
}
