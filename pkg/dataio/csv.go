// Package dataio reads planner inputs and writes planner outputs: demand and
// facility tables, GeoJSON and shapefile facility layers, existing stations,
// bubble hulls as WKT and assignment reports.
package dataio

import (
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// table is a CSV file read fully into memory with a header lookup.
type table struct {
	columns map[string]int
	rows    [][]string
}

// readTable reads a headed CSV and checks that every required column is
// present. Header names are matched case-insensitively.
func readTable(r io.Reader, required ...string) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // allow variable fields
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, eris.New("csv: missing header")
	}
	if err != nil {
		return nil, eris.Wrap(err, "csv: read header")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\uFEFF")))
		columns[name] = i
	}
	for _, name := range required {
		if _, ok := columns[name]; !ok {
			return nil, eris.Errorf("csv: missing column %q", name)
		}
	}

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csv: read rows")
	}
	return &table{columns: columns, rows: rows}, nil
}

func (t *table) has(column string) bool {
	_, ok := t.columns[column]
	return ok
}

// value returns the trimmed cell of row in column, or "" if the row is short.
func (t *table) value(row []string, column string) string {
	i, ok := t.columns[column]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) float(row []string, line int, column string) (float64, error) {
	s := t.value(row, column)
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, eris.Wrapf(err, "csv: line %d: column %s", line, column)
	}
	return v, nil
}

// openFile opens path for reading and hands it to fn.
func openFile[T any](path string, fn func(io.Reader) (T, error)) (T, error) {
	var zero T
	f, err := os.Open(path)
	if err != nil {
		return zero, eris.Wrapf(err, "dataio: open %s", path)
	}
	defer f.Close()

	v, err := fn(f)
	if err != nil {
		return zero, eris.Wrapf(err, "dataio: read %s", path)
	}
	return v, nil
}

// createFile creates path and hands it to fn.
func createFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "dataio: create %s", path)
	}
	if err := fn(f); err != nil {
		f.Close()
		return eris.Wrapf(err, "dataio: write %s", path)
	}
	if err := f.Close(); err != nil {
		return eris.Wrapf(err, "dataio: close %s", path)
	}
	return nil
}

func formatInt(v int) string {
	return strconv.Itoa(v)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
