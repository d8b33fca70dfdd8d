package geometry

import (
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/wkt"

	"github.com/kass/charge-planner/pkg/models"
)

// ToGeom converts a bubble's shape to a go-geom geometry. Polygons whose hull
// collapsed to fewer than three vertices come out as lines or points.
func ToGeom(b models.Bubble) (geom.T, error) {
	switch len(b.Shape) {
	case 0:
		return nil, models.ErrDegenerateGeometry
	case 1:
		return geom.NewPointFlat(geom.XY, flatCoords(b.Shape, false)), nil
	case 2:
		return geom.NewLineStringFlat(geom.XY, flatCoords(b.Shape, false)), nil
	default:
		ring := flatCoords(b.Shape, true)
		return geom.NewPolygonFlat(geom.XY, ring, []int{len(ring)}), nil
	}
}

// FromGeom converts a point, two-vertex line string or polygon back into a
// bubble shape. The bubble carries no demand points.
func FromGeom(g geom.T) (models.Bubble, error) {
	switch t := g.(type) {
	case *geom.Point:
		return models.Bubble{
			Kind:  models.SinglePoint,
			Shape: []models.Coord{{X: t.X(), Y: t.Y()}},
		}, nil
	case *geom.LineString:
		if t.NumCoords() != 2 {
			return models.Bubble{}, eris.Errorf("geometry: line string with %d vertices is not a segment", t.NumCoords())
		}
		return models.Bubble{Kind: models.Segment, Shape: fromGeomCoords(t.Coords())}, nil
	case *geom.Polygon:
		if t.NumLinearRings() == 0 {
			return models.Bubble{}, models.ErrDegenerateGeometry
		}
		ring := t.LinearRing(0).Coords()
		if len(ring) > 1 && ring[0].Equal(geom.XY, ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		if len(ring) == 0 {
			return models.Bubble{}, models.ErrDegenerateGeometry
		}
		return models.Bubble{Kind: models.Polygon, Shape: fromGeomCoords(ring)}, nil
	default:
		return models.Bubble{}, eris.Errorf("geometry: unsupported geometry %T", g)
	}
}

// MarshalWKT encodes the bubble shape as WKT.
func MarshalWKT(b models.Bubble) (string, error) {
	g, err := ToGeom(b)
	if err != nil {
		return "", err
	}
	s, err := wkt.Marshal(g)
	if err != nil {
		return "", eris.Wrap(err, "geometry: marshal wkt")
	}
	return s, nil
}

// UnmarshalWKT decodes a bubble shape from WKT.
func UnmarshalWKT(s string) (models.Bubble, error) {
	g, err := wkt.Unmarshal(s)
	if err != nil {
		return models.Bubble{}, eris.Wrapf(err, "geometry: unmarshal wkt %q", s)
	}
	return FromGeom(g)
}
