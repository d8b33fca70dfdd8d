package dataio

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/kass/charge-planner/pkg/models"
)

// Report formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Report is the outcome of one planning run as written to disk.
type Report struct {
	RunID      string                   `json:"run_id,omitempty" yaml:"run_id,omitempty"`
	Strategy   string                   `json:"strategy,omitempty" yaml:"strategy,omitempty"`
	Threshold  float64                  `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Capacity   int                      `json:"capacity" yaml:"capacity"`
	Bubbles    int                      `json:"bubbles" yaml:"bubbles"`
	Facilities []models.AssignmentEntry `json:"facilities" yaml:"facilities"`
	Pairings   []ReportPairing          `json:"pairings" yaml:"pairings"`
}

// ReportPairing is one bubble to facility assignment. DistanceKm is set
// only for geographic coordinates.
type ReportPairing struct {
	BubbleIndex int          `json:"bubble_index" yaml:"bubble_index"`
	FacilityID  string       `json:"facility_id" yaml:"facility_id"`
	Location    models.Coord `json:"location" yaml:"location"`
	Distance    float64      `json:"distance" yaml:"distance"`
	DistanceKm  float64      `json:"distance_km,omitempty" yaml:"distance_km,omitempty"`
}

// WriteReport writes the report in the given format. CSV carries only the
// per-facility counts.
func WriteReport(w io.Writer, format string, report Report) error {
	switch format {
	case FormatCSV:
		return writeReportCSV(w, report)
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(report), "report: encode json")
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return eris.Wrap(err, "report: encode yaml")
		}
		return eris.Wrap(enc.Close(), "report: close yaml encoder")
	default:
		return eris.Errorf("report: unknown format %q", format)
	}
}

// WriteReportFile writes the report to dir/name.<format> and returns the
// path written.
func WriteReportFile(dir, name, format string, report Report) (string, error) {
	path := filepath.Join(dir, name+"."+format)
	err := createFile(path, func(w io.Writer) error { return WriteReport(w, format, report) })
	return path, err
}

// ReadReport decodes a JSON or YAML report.
func ReadReport(r io.Reader, format string) (Report, error) {
	var report Report
	switch format {
	case FormatJSON:
		if err := json.NewDecoder(r).Decode(&report); err != nil {
			return report, eris.Wrap(err, "report: decode json")
		}
	case FormatYAML:
		if err := yaml.NewDecoder(r).Decode(&report); err != nil {
			return report, eris.Wrap(err, "report: decode yaml")
		}
	default:
		return report, eris.Errorf("report: cannot read format %q", format)
	}
	return report, nil
}

func writeReportCSV(w io.Writer, report Report) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"facility_id", "x", "y", "count"}); err != nil {
		return eris.Wrap(err, "csv: write header")
	}
	for _, e := range report.Facilities {
		row := []string{e.FacilityID, formatFloat(e.X), formatFloat(e.Y), formatInt(e.Count)}
		if err := cw.Write(row); err != nil {
			return eris.Wrap(err, "csv: write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "csv: flush")
}
