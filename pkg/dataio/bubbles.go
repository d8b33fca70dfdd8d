package dataio

import (
	"encoding/csv"
	"io"

	"github.com/rotisserie/eris"

	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/models"
)

// WriteBubblesCSV writes one WKT shape per bubble under a "hull" header, in
// bubble order, followed by the kind and the demand of each bubble.
func WriteBubblesCSV(w io.Writer, bubbles []models.Bubble) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"hull", "kind", "points", "demand"}); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for i, b := range bubbles {
		hull, err := geometry.MarshalWKT(b)
		if err != nil {
			return eris.Wrapf(err, "csv: bubble %d", i)
		}
		row := []string{hull, b.Kind.String(), formatInt(len(b.Points)), formatFloat(b.Demand())}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}

// WriteBubblesFile writes a bubbles CSV to disk.
func WriteBubblesFile(path string, bubbles []models.Bubble) error {
	return createFile(path, func(w io.Writer) error { return WriteBubblesCSV(w, bubbles) })
}

// ReadBubblesCSV reads bubble shapes back from a CSV with a "hull" column.
// The bubbles carry no demand points. A "kind" column, when present, keeps a
// polygon whose hull collapsed to a line or point tagged as a polygon.
func ReadBubblesCSV(r io.Reader) ([]models.Bubble, error) {
	t, err := readTable(r, "hull")
	if err != nil {
		return nil, err
	}

	bubbles := make([]models.Bubble, 0, len(t.rows))
	for i, row := range t.rows {
		b, err := geometry.UnmarshalWKT(t.value(row, "hull"))
		if err != nil {
			return nil, eris.Wrapf(err, "csv: line %d", i+2)
		}
		if t.has("kind") && t.value(row, "kind") == models.Polygon.String() {
			b.Kind = models.Polygon
		}
		bubbles = append(bubbles, b)
	}
	return bubbles, nil
}

// ReadBubblesFile reads a bubbles CSV from disk.
func ReadBubblesFile(path string) ([]models.Bubble, error) {
	return openFile(path, ReadBubblesCSV)
}
