package dataio

import (
	"encoding/csv"
	"io"
	"math"

	"github.com/rotisserie/eris"

	"github.com/kass/charge-planner/pkg/models"
)

// ReadDemandCSV reads demand points from a CSV with x, y and weight columns,
// in any order. Row order is kept. Negative or non-finite values are
// rejected.
func ReadDemandCSV(r io.Reader) ([]models.DemandPoint, error) {
	t, err := readTable(r, "x", "y", "weight")
	if err != nil {
		return nil, err
	}

	points := make([]models.DemandPoint, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var p models.DemandPoint
		if p.X, err = t.float(row, line, "x"); err != nil {
			return nil, err
		}
		if p.Y, err = t.float(row, line, "y"); err != nil {
			return nil, err
		}
		if p.Weight, err = t.float(row, line, "weight"); err != nil {
			return nil, err
		}
		if !finite(p.X) || !finite(p.Y) || !finite(p.Weight) {
			return nil, eris.Errorf("csv: line %d: non-finite value", line)
		}
		if p.Weight < 0 {
			return nil, eris.Errorf("csv: line %d: negative weight %g", line, p.Weight)
		}
		points = append(points, p)
	}
	return points, nil
}

// ReadDemandFile reads a demand CSV from disk.
func ReadDemandFile(path string) ([]models.DemandPoint, error) {
	return openFile(path, ReadDemandCSV)
}

// WriteDemandCSV writes demand points with an x,y,weight header.
func WriteDemandCSV(w io.Writer, points []models.DemandPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y", "weight"}); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, p := range points {
		if err := cw.Write([]string{formatFloat(p.X), formatFloat(p.Y), formatFloat(p.Weight)}); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteDemandFile writes a demand CSV to disk.
func WriteDemandFile(path string, points []models.DemandPoint) error {
	return createFile(path, func(w io.Writer) error { return WriteDemandCSV(w, points) })
}

// ReadStationsCSV reads existing charging station locations from a CSV with
// x and y columns.
func ReadStationsCSV(r io.Reader) ([]models.Coord, error) {
	t, err := readTable(r, "x", "y")
	if err != nil {
		return nil, err
	}

	stations := make([]models.Coord, 0, len(t.rows))
	for i, row := range t.rows {
		line := i + 2
		var c models.Coord
		if c.X, err = t.float(row, line, "x"); err != nil {
			return nil, err
		}
		if c.Y, err = t.float(row, line, "y"); err != nil {
			return nil, err
		}
		stations = append(stations, c)
	}
	return stations, nil
}

// ReadStationsFile reads a stations CSV from disk.
func ReadStationsFile(path string) ([]models.Coord, error) {
	return openFile(path, ReadStationsCSV)
}

// WriteStationsCSV writes station locations with an x,y header.
func WriteStationsCSV(w io.Writer, stations []models.Coord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"x", "y"}); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, c := range stations {
		if err := cw.Write([]string{formatFloat(c.X), formatFloat(c.Y)}); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteStationsFile writes a stations CSV to disk.
func WriteStationsFile(path string, stations []models.Coord) error {
	return createFile(path, func(w io.Writer) error { return WriteStationsCSV(w, stations) })
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
