package dataio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"math"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
)

// ReadFacilitiesCSV reads facilities from a CSV with x and y columns and an
// optional id column. Rows without an id get their 1-based row number.
func ReadFacilitiesCSV(r io.Reader) ([]models.Facility, error) {
	t, err := readTable(r, "x", "y")
	if err != nil {
		return nil, err
	}

	facilities := make([]models.Facility, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		f := models.Facility{ID: t.value(row, "id")}
		if f.ID == "" {
			f.ID = strconv.Itoa(i + 1)
		}
		if f.X, err = t.float(row, line, "x"); err != nil {
			return nil, err
		}
		if f.Y, err = t.float(row, line, "y"); err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, nil
}

// WriteFacilitiesCSV writes facilities with an id,x,y header.
func WriteFacilitiesCSV(w io.Writer, facilities []models.Facility) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"id", "x", "y"}); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, f := range facilities {
		if err := cw.Write([]string{f.ID, formatFloat(f.X), formatFloat(f.Y)}); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// ReadFacilitiesGeoJSON reads facilities from a GeoJSON FeatureCollection.
//
// Each feature is reduced to one location: points as is, line strings at half
// their length, anything else at the interior point of its vertices. When
// access is non-empty only features whose "access" property is one of its
// values are kept. The feature id, else the "id" property, else the 1-based
// feature position becomes the facility id.
func ReadFacilitiesGeoJSON(r io.Reader, access []string) ([]models.Facility, error) {
	var fc geojson.FeatureCollection
	if err := json.NewDecoder(r).Decode(&fc); err != nil {
		return nil, eris.Wrap(err, "geojson: decode feature collection")
	}

	facilities := make([]models.Facility, 0, len(fc.Features))
	var filtered, empty int
	for i, feature := range fc.Features {
		if len(access) > 0 && !hasAccess(feature.Properties, access) {
			filtered++
			continue
		}
		if feature.Geometry == nil || feature.Geometry.Empty() {
			empty++
			continue
		}

		loc, err := locate(feature.Geometry)
		if err != nil {
			return nil, eris.Wrapf(err, "geojson: feature %d", i+1)
		}
		facilities = append(facilities, models.Facility{
			ID: featureID(feature, i),
			X:  loc.X,
			Y:  loc.Y,
		})
	}

	if filtered > 0 || empty > 0 {
		zap.L().Debug("dataio: skipped geojson features",
			zap.Int("filtered_by_access", filtered),
			zap.Int("without_geometry", empty),
		)
	}
	return facilities, nil
}

// ReadFacilitiesFile reads facilities from a .csv, .geojson/.json or .shp
// file. The access filter applies to GeoJSON only.
func ReadFacilitiesFile(path string, access []string) ([]models.Facility, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return openFile(path, ReadFacilitiesCSV)
	case ".geojson", ".json":
		return openFile(path, func(r io.Reader) ([]models.Facility, error) {
			return ReadFacilitiesGeoJSON(r, access)
		})
	case ".shp":
		return ReadFacilitiesShapefile(path)
	default:
		return nil, eris.Errorf("dataio: unsupported facility file %s", path)
	}
}

// WriteFacilitiesFile writes facilities as CSV or, for a .shp path, as a
// point shapefile.
func WriteFacilitiesFile(path string, facilities []models.Facility) error {
	if strings.EqualFold(filepath.Ext(path), ".shp") {
		return WriteFacilitiesShapefile(path, facilities)
	}
	return createFile(path, func(w io.Writer) error { return WriteFacilitiesCSV(w, facilities) })
}

func hasAccess(properties map[string]interface{}, access []string) bool {
	v, ok := properties["access"].(string)
	return ok && slices.Contains(access, v)
}

func featureID(f *geojson.Feature, i int) string {
	if f.ID != "" {
		return f.ID
	}
	switch v := f.Properties["id"].(type) {
	case string:
		if v != "" {
			return v
		}
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strconv.Itoa(i + 1)
}

// locate reduces a geometry to the location a facility is placed at.
func locate(g geom.T) (models.Coord, error) {
	switch t := g.(type) {
	case *geom.Point:
		return models.Coord{X: t.X(), Y: t.Y()}, nil
	case *geom.LineString:
		return alongLine(t.Coords()), nil
	case *geom.GeometryCollection:
		return models.Coord{}, eris.New("geometry collections are not supported")
	}

	flat := g.FlatCoords()
	stride := g.Stride()
	coords := make([]models.Coord, 0, len(flat)/stride)
	for i := 0; i+1 < len(flat); i += stride {
		coords = append(coords, models.Coord{X: flat[i], Y: flat[i+1]})
	}
	rep, _, err := geometry.Reduce(coords)
	return rep, err
}

// alongLine returns the point at half the length of a line string.
func alongLine(coords []geom.Coord) models.Coord {
	if len(coords) == 1 {
		return models.Coord{X: coords[0][0], Y: coords[0][1]}
	}

	var total float64
	for i := 1; i < len(coords); i++ {
		total += math.Hypot(coords[i][0]-coords[i-1][0], coords[i][1]-coords[i-1][1])
	}

	half := total / 2
	for i := 1; i < len(coords); i++ {
		a, b := coords[i-1], coords[i]
		seg := math.Hypot(b[0]-a[0], b[1]-a[1])
		if seg > 0 && half <= seg {
			f := half / seg
			return models.Coord{X: a[0] + f*(b[0]-a[0]), Y: a[1] + f*(b[1]-a[1])}
		}
		half -= seg
	}
	last := coords[len(coords)-1]
	return models.Coord{X: last[0], Y: last[1]}
}
