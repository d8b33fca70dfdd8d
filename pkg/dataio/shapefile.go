package dataio

import (
	"os"
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
)

const idFieldLength = 64

// ReadFacilitiesShapefile reads facilities from an ESRI shapefile. Points are
// used as is; polylines and polygons are reduced to an interior point of
// their vertices. The ID attribute, when present and set, names the facility;
// otherwise the 1-based record number does.
func ReadFacilitiesShapefile(path string) ([]models.Facility, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataio: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	idField := -1
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), "id") {
			idField = i
			break
		}
	}

	var facilities []models.Facility
	var skipped int
	for reader.Next() {
		n, shape := reader.Shape()

		loc, ok := shapeLocation(shape)
		if !ok {
			skipped++
			continue
		}

		id := ""
		if idField >= 0 {
			id = strings.TrimSpace(strings.TrimRight(reader.Attribute(idField), "\x00"))
		}
		if id == "" {
			id = strconv.Itoa(n + 1)
		}
		facilities = append(facilities, models.Facility{ID: id, X: loc.X, Y: loc.Y})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "dataio: read shapefile %s", path)
	}

	if skipped > 0 {
		zap.L().Debug("dataio: skipped shapefile records",
			zap.String("path", path),
			zap.Int("skipped", skipped),
		)
	}
	return facilities, nil
}

func shapeLocation(shape shp.Shape) (models.Coord, bool) {
	var points []shp.Point
	switch s := shape.(type) {
	case *shp.Point:
		return models.Coord{X: s.X, Y: s.Y}, true
	case *shp.PolyLine:
		points = s.Points
	case *shp.Polygon:
		points = s.Points
	case *shp.MultiPoint:
		points = s.Points
	default:
		return models.Coord{}, false
	}

	coords := make([]models.Coord, len(points))
	for i, p := range points {
		coords[i] = models.Coord{X: p.X, Y: p.Y}
	}
	rep, _, err := geometry.Reduce(coords)
	return rep, err == nil
}

// WriteFacilitiesShapefile writes facilities as a point shapefile with an ID
// attribute.
func WriteFacilitiesShapefile(path string, facilities []models.Facility) error {
	base := strings.TrimSuffix(path, ".shp")
	w, err := shp.Create(base+".shp", shp.POINT)
	if err != nil {
		return eris.Wrapf(err, "dataio: create shapefile %s", path)
	}

	if err := w.SetFields([]shp.Field{shp.StringField("ID", idFieldLength)}); err != nil {
		w.Close()
		return eris.Wrap(err, "dataio: set shapefile fields")
	}
	for _, f := range facilities {
		row := w.Write(&shp.Point{X: f.X, Y: f.Y})
		if err := w.WriteAttribute(int(row), 0, f.ID); err != nil {
			w.Close()
			return eris.Wrapf(err, "dataio: write id of facility %s", f.ID)
		}
	}
	w.Close()

	// go-shp v0.1.1 names the attribute table "<base>dbf" without the dot.
	if err := os.Rename(base+"dbf", base+".dbf"); err != nil {
		return eris.Wrap(err, "dataio: move shapefile attribute table")
	}
	return nil
}
