package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kass/charge-planner/pkg/dataio"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/planner"
	"github.com/kass/charge-planner/pkg/store"
)

var (
	demandFile     string
	facilitiesFile string
	stationsFile   string
	bubblesFile    string
	outputDir      string
	noStore        bool
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Partition demand, drop served bubbles and assign facilities",
	Long: `Runs the whole pipeline and writes bubbles.csv and the assignment report to
the output directory. The run is recorded in the run store.`,
	RunE: runPlan,
}

var partitionCmd = &cobra.Command{
	Use:   "partition",
	Short: "Partition demand into bubbles",
	Long:  `Partitions demand with the configured strategy and writes the bubbles as WKT.`,
	RunE:  runPartition,
}

var matchCmd = &cobra.Command{
	Use:   "match",
	Short: "Assign previously written bubbles to facilities",
	Long:  `Reads a bubbles CSV written by partition and assigns every bubble to a facility.`,
	RunE:  runMatch,
}

func init() {
	for _, cmd := range []*cobra.Command{planCmd, partitionCmd} {
		cmd.Flags().StringVarP(&demandFile, "demand", "d", "", "Demand CSV (x,y,weight)")
		_ = cmd.MarkFlagRequired("demand")
	}
	for _, cmd := range []*cobra.Command{planCmd, matchCmd} {
		cmd.Flags().StringVarP(&facilitiesFile, "facilities", "f", "", "Facilities (.csv, .geojson or .shp)")
		_ = cmd.MarkFlagRequired("facilities")
	}
	for _, cmd := range []*cobra.Command{planCmd, partitionCmd, matchCmd} {
		cmd.Flags().StringVarP(&outputDir, "out", "o", "", "Output directory (default output.dir)")
	}

	planCmd.Flags().StringVarP(&stationsFile, "stations", "s", "", "Existing stations CSV (x,y)")
	planCmd.Flags().BoolVar(&noStore, "no-store", false, "Do not record the run")

	matchCmd.Flags().StringVarP(&bubblesFile, "bubbles", "b", "", "Bubbles CSV written by partition")
	_ = matchCmd.MarkFlagRequired("bubbles")
}

func outDir() (string, error) {
	dir := outputDir
	if dir == "" {
		dir = cfg.Output.Dir
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", eris.Wrapf(err, "create output directory %s", dir)
	}
	return dir, nil
}

func runPlan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	in, err := readInput()
	if err != nil {
		return err
	}

	result, err := planner.New(cfg).Plan(ctx, in)
	if err != nil {
		return err
	}

	report, err := result.Report(cfg.Output.Coordinates)
	if err != nil {
		return err
	}

	dir, err := outDir()
	if err != nil {
		return err
	}
	if err := dataio.WriteBubblesFile(filepath.Join(dir, "bubbles.csv"), result.Bubbles); err != nil {
		return err
	}
	reportPath, err := dataio.WriteReportFile(dir, "assignments", cfg.Output.Format, report)
	if err != nil {
		return err
	}

	if !noStore && cfg.Store.Path != "" {
		if err := recordRun(ctx, result); err != nil {
			return err
		}
	}

	printSummary("Plan complete", []stat{
		{"Run", result.RunID},
		{"Demand points", len(in.Demand)},
		{"Bubbles matched", len(result.Bubbles)},
		{"Bubbles already served", result.Served},
		{"Capacity", result.Capacity},
		{"Facilities used", len(report.Facilities)},
		{"Report", reportPath},
		{"Took", time.Since(start).Round(time.Millisecond)},
	})
	return nil
}

func readInput() (planner.Input, error) {
	var in planner.Input
	var err error

	if in.Demand, err = dataio.ReadDemandFile(demandFile); err != nil {
		return in, err
	}
	if in.Facilities, err = dataio.ReadFacilitiesFile(facilitiesFile, cfg.Match.AccessValues); err != nil {
		return in, err
	}
	if stationsFile != "" {
		if in.Stations, err = dataio.ReadStationsFile(stationsFile); err != nil {
			return in, err
		}
	}

	zap.L().Info("read input",
		zap.Int("demand", len(in.Demand)),
		zap.Int("facilities", len(in.Facilities)),
		zap.Int("stations", len(in.Stations)),
	)
	return in, nil
}

func recordRun(ctx context.Context, result *planner.Result) error {
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := st.Migrate(ctx); err != nil {
		return err
	}
	_, err = st.CreateRun(ctx, store.Run{
		ID:         result.RunID,
		Strategy:   result.Strategy,
		Threshold:  result.Threshold,
		Capacity:   result.Capacity,
		Bubbles:    len(result.Bubbles),
		Facilities: len(result.Facilities),
		CreatedAt:  result.CreatedAt,
		Entries:    result.Assignment.Entries(),
	})
	return err
}

func runPartition(cmd *cobra.Command, args []string) error {
	demand, err := dataio.ReadDemandFile(demandFile)
	if err != nil {
		return err
	}

	bubbles, err := planner.New(cfg).Partition(demand)
	if err != nil {
		return err
	}

	dir, err := outDir()
	if err != nil {
		return err
	}
	path := filepath.Join(dir, "bubbles.csv")
	if err := dataio.WriteBubblesFile(path, bubbles); err != nil {
		return err
	}

	counts := make(map[models.ShapeKind]int)
	for _, b := range bubbles {
		counts[b.Kind]++
	}
	printSummary("Partition complete", []stat{
		{"Demand points", len(demand)},
		{"Bubbles", len(bubbles)},
		{"Points", counts[models.SinglePoint]},
		{"Segments", counts[models.Segment]},
		{"Polygons", counts[models.Polygon]},
		{"Output", path},
	})
	return nil
}

func runMatch(cmd *cobra.Command, args []string) error {
	bubbles, err := dataio.ReadBubblesFile(bubblesFile)
	if err != nil {
		return err
	}
	facilities, err := dataio.ReadFacilitiesFile(facilitiesFile, cfg.Match.AccessValues)
	if err != nil {
		return err
	}

	assignment, err := planner.New(cfg).Match(bubbles, facilities)
	if err != nil {
		return err
	}

	result := &planner.Result{
		Capacity:   assignment.Capacity,
		Bubbles:    bubbles,
		Facilities: facilities,
		Assignment: assignment,
	}
	report, err := result.Report(cfg.Output.Coordinates)
	if err != nil {
		return err
	}

	dir, err := outDir()
	if err != nil {
		return err
	}
	reportPath, err := dataio.WriteReportFile(dir, "assignments", cfg.Output.Format, report)
	if err != nil {
		return err
	}

	printSummary("Match complete", []stat{
		{"Bubbles", len(bubbles)},
		{"Capacity", assignment.Capacity},
		{"Facilities used", len(report.Facilities)},
		{"Report", reportPath},
	})
	return nil
}
