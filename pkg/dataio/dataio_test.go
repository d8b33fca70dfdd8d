package dataio

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"

	"github.com/kass/charge-planner/pkg/models"
)

func TestReadDemandCSV(t *testing.T) {
	t.Run("columns in any order", func(t *testing.T) {
		input := "weight,x,y\n5,0,0\n2.5, 1.5,-3\n0,7,7\n"
		points, err := ReadDemandCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []models.DemandPoint{
			{X: 0, Y: 0, Weight: 5},
			{X: 1.5, Y: -3, Weight: 2.5},
			{X: 7, Y: 7, Weight: 0},
		}, points)
	})

	t.Run("byte order mark", func(t *testing.T) {
		input := "\uFEFFx,y,weight\n1,2,3\n"
		points, err := ReadDemandCSV(strings.NewReader(input))
		require.NoError(t, err)
		assert.Equal(t, []models.DemandPoint{{X: 1, Y: 2, Weight: 3}}, points)
	})

	testCases := []struct {
		name    string
		input   string
		message string
	}{
		{"missing column", "x,y\n1,2\n", `missing column "weight"`},
		{"negative weight", "x,y,weight\n1,2,-1\n", "line 2: negative weight"},
		{"not a number", "x,y,weight\n1,2,3\n1,abc,3\n", "line 3"},
		{"nan", "x,y,weight\nNaN,2,3\n", "non-finite"},
		{"empty file", "", "missing header"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadDemandCSV(strings.NewReader(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.message)
		})
	}
}

func TestDemandFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demand.csv")
	points := []models.DemandPoint{{X: 1.25, Y: 2, Weight: 3}, {X: -4, Y: 0.5, Weight: 0}}

	require.NoError(t, WriteDemandFile(path, points))
	got, err := ReadDemandFile(path)
	require.NoError(t, err)
	assert.Equal(t, points, got)

	_, err = ReadDemandFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestReadStationsCSV(t *testing.T) {
	stations, err := ReadStationsCSV(strings.NewReader("X,Y,name\n1,2,a\n3,4,b\n"))
	require.NoError(t, err)
	assert.Equal(t, []models.Coord{{X: 1, Y: 2}, {X: 3, Y: 4}}, stations)

	path := filepath.Join(t.TempDir(), "stations.csv")
	require.NoError(t, WriteStationsFile(path, stations))
	again, err := ReadStationsFile(path)
	require.NoError(t, err)
	assert.Equal(t, stations, again)
}

func TestReadFacilitiesCSV(t *testing.T) {
	facilities, err := ReadFacilitiesCSV(strings.NewReader("id,x,y\nP1,1,2\n,3,4\n"))
	require.NoError(t, err)
	assert.Equal(t, []models.Facility{
		{ID: "P1", X: 1, Y: 2},
		{ID: "2", X: 3, Y: 4},
	}, facilities)

	var buf bytes.Buffer
	require.NoError(t, WriteFacilitiesCSV(&buf, facilities))
	again, err := ReadFacilitiesCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, facilities, again)
}

const parkingGeoJSON = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "id": "p1", "geometry": {"type": "Point", "coordinates": [1, 2]}, "properties": {"access": "yes"}},
    {"type": "Feature", "geometry": {"type": "LineString", "coordinates": [[0, 0], [4, 0]]}, "properties": {"access": "customers", "id": 7}},
    {"type": "Feature", "geometry": {"type": "Polygon", "coordinates": [[[0, 0], [2, 0], [2, 2], [0, 2], [0, 0]]]}, "properties": {"access": "electric_vehicle"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [9, 9]}, "properties": {"access": "private"}},
    {"type": "Feature", "geometry": {"type": "Point", "coordinates": [8, 8]}, "properties": null},
    {"type": "Feature", "geometry": null, "properties": {"access": "yes"}}
  ]
}`

func TestReadFacilitiesGeoJSON(t *testing.T) {
	t.Run("access filter", func(t *testing.T) {
		facilities, err := ReadFacilitiesGeoJSON(strings.NewReader(parkingGeoJSON), []string{"yes", "electric_vehicle", "customers"})
		require.NoError(t, err)
		require.Len(t, facilities, 3)

		assert.Equal(t, models.Facility{ID: "p1", X: 1, Y: 2}, facilities[0])
		assert.Equal(t, models.Facility{ID: "7", X: 2, Y: 0}, facilities[1])
		assert.Equal(t, "3", facilities[2].ID)
		assert.InDelta(t, 1.0, facilities[2].X, 1e-9)
		assert.InDelta(t, 1.0, facilities[2].Y, 1e-9)
	})

	t.Run("no filter", func(t *testing.T) {
		facilities, err := ReadFacilitiesGeoJSON(strings.NewReader(parkingGeoJSON), nil)
		require.NoError(t, err)

		ids := make([]string, len(facilities))
		for i, f := range facilities {
			ids[i] = f.ID
		}
		assert.Equal(t, []string{"p1", "7", "3", "4", "5"}, ids)
	})

	t.Run("not a feature collection", func(t *testing.T) {
		_, err := ReadFacilitiesGeoJSON(strings.NewReader(`{"type": "Feature"}`), nil)
		assert.Error(t, err)
	})
}

func TestAlongLine(t *testing.T) {
	// An L-shaped line of total length 10 has its midpoint on the corner.
	line := []geom.Coord{{0, 0}, {5, 0}, {5, 5}}
	assert.Equal(t, models.Coord{X: 5, Y: 0}, alongLine(line))
	assert.Equal(t, models.Coord{X: 1, Y: 1}, alongLine([]geom.Coord{{1, 1}}))
}

func TestFacilitiesShapefileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parking.shp")
	facilities := []models.Facility{
		{ID: "north", X: 10.5, Y: 60.25},
		{ID: "", X: 11, Y: 59},
		{ID: "south", X: 10.75, Y: 59.5},
	}

	require.NoError(t, WriteFacilitiesFile(path, facilities))
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		_, err := os.Stat(strings.TrimSuffix(path, ".shp") + ext)
		require.NoError(t, err, ext)
	}

	got, err := ReadFacilitiesFile(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Facility{
		{ID: "north", X: 10.5, Y: 60.25},
		{ID: "2", X: 11, Y: 59},
		{ID: "south", X: 10.75, Y: 59.5},
	}, got)
}

func TestReadFacilitiesFileDispatch(t *testing.T) {
	dir := t.TempDir()

	geo := filepath.Join(dir, "parking.geojson")
	require.NoError(t, os.WriteFile(geo, []byte(parkingGeoJSON), 0644))
	facilities, err := ReadFacilitiesFile(geo, []string{"yes"})
	require.NoError(t, err)
	assert.Len(t, facilities, 1)

	csvPath := filepath.Join(dir, "parking.csv")
	require.NoError(t, WriteFacilitiesFile(csvPath, facilities))
	facilities, err = ReadFacilitiesFile(csvPath, nil)
	require.NoError(t, err)
	assert.Equal(t, []models.Facility{{ID: "p1", X: 1, Y: 2}}, facilities)

	_, err = ReadFacilitiesFile(filepath.Join(dir, "parking.kml"), nil)
	assert.Error(t, err)
}

func TestBubblesRoundTrip(t *testing.T) {
	bubbles := []models.Bubble{
		{
			Kind:   models.Polygon,
			Shape:  []models.Coord{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 0, Y: 3}},
			Points: []models.DemandPoint{{X: 0, Y: 0, Weight: 1}, {X: 4, Y: 0, Weight: 2}, {X: 0, Y: 3, Weight: 3}},
		},
		{
			// Collinear polygon: the hull is a segment but the tag stays.
			Kind:   models.Polygon,
			Shape:  []models.Coord{{X: 0, Y: 0}, {X: 2, Y: 0}},
			Points: []models.DemandPoint{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}},
		},
		{Kind: models.Segment, Shape: []models.Coord{{X: 1, Y: 1}, {X: 2, Y: 2}}},
		{Kind: models.SinglePoint, Shape: []models.Coord{{X: 5, Y: 5}}},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteBubblesCSV(&buf, bubbles))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "hull,kind,points,demand", lines[0])
	assert.Equal(t, `"POLYGON ((0 0, 4 0, 0 3, 0 0))",polygon,3,6`, lines[1])
	assert.Equal(t, "POINT (5 5),point,0,0", lines[4])

	got, err := ReadBubblesCSV(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(bubbles))
	for i := range bubbles {
		assert.Equal(t, bubbles[i].Kind, got[i].Kind, "bubble %d", i)
		assert.Equal(t, bubbles[i].Shape, got[i].Shape, "bubble %d", i)
		assert.Empty(t, got[i].Points)
	}
}

func TestReadBubblesHullOnly(t *testing.T) {
	got, err := ReadBubblesCSV(strings.NewReader("hull\n\"LINESTRING (0 0, 2 2)\"\n"))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.Segment, got[0].Kind)

	_, err = ReadBubblesCSV(strings.NewReader("hull\nnonsense\n"))
	assert.Error(t, err)
}

func testReport() Report {
	return Report{
		RunID:     "run-1",
		Strategy:  "bisect",
		Threshold: 8,
		Capacity:  2,
		Bubbles:   3,
		Facilities: []models.AssignmentEntry{
			{FacilityID: "F1", X: 0, Y: 0, Count: 2},
			{FacilityID: "F2", X: 10, Y: 0, Count: 1},
		},
		Pairings: []ReportPairing{
			{BubbleIndex: 0, FacilityID: "F1", Location: models.Coord{X: 1}, Distance: 1},
			{BubbleIndex: 1, FacilityID: "F1", Location: models.Coord{X: 2}, Distance: 2},
			{BubbleIndex: 2, FacilityID: "F2", Location: models.Coord{X: 3}, Distance: 7, DistanceKm: 0.5},
		},
	}
}

func TestWriteReport(t *testing.T) {
	t.Run("csv", func(t *testing.T) {
		var buf bytes.Buffer
		require.NoError(t, WriteReport(&buf, FormatCSV, testReport()))
		assert.Equal(t, "facility_id,x,y,count\nF1,0,0,2\nF2,10,0,1\n", buf.String())
	})

	for _, format := range []string{FormatJSON, FormatYAML} {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteReport(&buf, format, testReport()))

			got, err := ReadReport(&buf, format)
			require.NoError(t, err)
			assert.Equal(t, testReport(), got)
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		assert.Error(t, WriteReport(&bytes.Buffer{}, "xml", testReport()))
		_, err := ReadReport(strings.NewReader(""), FormatCSV)
		assert.Error(t, err)
	})
}

func TestWriteReportFile(t *testing.T) {
	dir := t.TempDir()

	path, err := WriteReportFile(dir, "charging_points", FormatYAML, testReport())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "charging_points.yaml"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "facility_id: F1")
}
