package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/kass/charge-planner/pkg/dataio"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/rtree"
	"github.com/kass/charge-planner/pkg/store"
)

var (
	indexFile    string
	queryX       float64
	queryY       float64
	numNeighbors int
	outputJSON   bool
	runsLimit    int
)

var nearestCmd = &cobra.Command{
	Use:   "nearest",
	Short: "List the facilities nearest to a coordinate",
	Long: `Builds a facility index from --facilities, or loads a saved one from --index,
and prints the k nearest facilities to (--x, --y). With both flags set the index
built from --facilities is saved to --index.`,
	RunE: runNearest,
}

var runsCmd = &cobra.Command{
	Use:   "runs [run-id]",
	Short: "List recorded runs or show one run",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRuns,
}

func init() {
	nearestCmd.Flags().StringVarP(&facilitiesFile, "facilities", "f", "", "Facilities (.csv, .geojson or .shp)")
	nearestCmd.Flags().StringVarP(&indexFile, "index", "i", "", "Facility index snapshot (.gob)")
	nearestCmd.Flags().Float64Var(&queryX, "x", 0, "Query x (longitude for geographic data)")
	nearestCmd.Flags().Float64Var(&queryY, "y", 0, "Query y (latitude for geographic data)")
	nearestCmd.Flags().IntVarP(&numNeighbors, "neighbors", "k", 5, "Number of nearest facilities")
	nearestCmd.Flags().BoolVar(&outputJSON, "json", false, "Output results as JSON")

	runsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Number of runs to list")
	runsCmd.Flags().BoolVar(&outputJSON, "json", false, "Output as JSON")
}

func loadIndex() (*rtree.FacilityIndex, error) {
	switch {
	case facilitiesFile != "":
		facilities, err := dataio.ReadFacilitiesFile(facilitiesFile, cfg.Match.AccessValues)
		if err != nil {
			return nil, err
		}
		index, err := rtree.Build(facilities)
		if err != nil {
			return nil, err
		}
		if indexFile != "" {
			if err := index.SaveToFile(indexFile); err != nil {
				return nil, err
			}
		}
		return index, nil
	case indexFile != "":
		return rtree.LoadFromFile(indexFile)
	default:
		return nil, eris.New("nearest requires --facilities or --index")
	}
}

// nearestResult is one line of nearest output.
type nearestResult struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Distance   float64 `json:"distance"`
	DistanceKm float64 `json:"distance_km,omitempty"`
}

func runNearest(cmd *cobra.Command, args []string) error {
	index, err := loadIndex()
	if err != nil {
		return err
	}

	p := models.Coord{X: queryX, Y: queryY}
	neighbors := index.KNearest(p, numNeighbors)

	results := make([]nearestResult, len(neighbors))
	for i, n := range neighbors {
		results[i] = nearestResult{
			Rank:     i + 1,
			ID:       n.Facility.ID,
			X:        n.Facility.X,
			Y:        n.Facility.Y,
			Distance: n.Distance,
		}
		if cfg.Output.Coordinates == "geographic" {
			results[i].DistanceKm = rtree.GeoDistance(p, n.Facility.Coord())
		}
	}

	if outputJSON {
		return printJSON(results)
	}

	for _, r := range results {
		line := fmt.Sprintf("%d. %s: (%.6f, %.6f) - %.4f", r.Rank, r.ID, r.X, r.Y, r.Distance)
		if r.DistanceKm > 0 {
			line += fmt.Sprintf(" (%.2f km)", r.DistanceKm)
		}
		fmt.Println(line)
	}
	return nil
}

func runRuns(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := store.Open(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		return err
	}

	if len(args) == 1 {
		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(run)
		}
		printSummary("Run "+run.ID, runStats(*run))
		for _, e := range run.Entries {
			fmt.Printf("  %s (%.6f, %.6f): %d\n", e.FacilityID, e.X, e.Y, e.Count)
		}
		return nil
	}

	runs, err := st.ListRuns(ctx, runsLimit)
	if err != nil {
		return err
	}
	if outputJSON {
		return printJSON(runs)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded in", cfg.Store.Path)
		return nil
	}
	for _, r := range runs {
		fmt.Printf("%s  %s  %-7s threshold=%g capacity=%d bubbles=%d facilities=%d\n",
			r.ID, r.CreatedAt.Format("2006-01-02 15:04:05"), r.Strategy,
			r.Threshold, r.Capacity, r.Bubbles, r.Facilities)
	}
	return nil
}

func runStats(r store.Run) []stat {
	return []stat{
		{"Created", r.CreatedAt.Format("2006-01-02 15:04:05")},
		{"Strategy", r.Strategy},
		{"Threshold", r.Threshold},
		{"Capacity", r.Capacity},
		{"Bubbles", r.Bubbles},
		{"Facilities", r.Facilities},
		{"Facilities used", len(r.Entries)},
	}
}

func printJSON(v any) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return eris.Wrap(encoder.Encode(v), "encode json")
}
