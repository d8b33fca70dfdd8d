package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"

	"github.com/kass/charge-planner/pkg/dataio"
	"github.com/kass/charge-planner/pkg/geometry"
	"github.com/kass/charge-planner/pkg/matcher"
	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/partition"
	"github.com/kass/charge-planner/pkg/rtree"
)

func main() {
	// Example 1: four collinear points of weight 5 with threshold 8
	fmt.Println("=== Partition (threshold 8) ===")
	demand := []models.DemandPoint{
		{X: 0, Y: 0, Weight: 5},
		{X: 1, Y: 0, Weight: 5},
		{X: 2, Y: 0, Weight: 5},
		{X: 3, Y: 0, Weight: 5},
	}

	bubbles, err := partition.NewBisector(8).Partition(demand)
	if err != nil {
		log.Fatal(err)
	}
	for i, b := range bubbles {
		wkt, err := geometry.MarshalWKT(b)
		if err != nil {
			log.Fatal(err)
		}
		rep, _ := geometry.Representative(b)
		fmt.Printf("  %d. %-8s %s, demand %.0f, representative (%.1f, %.1f)\n",
			i, b.Kind, wkt, b.Demand(), rep.X, rep.Y)
	}

	// Example 2: capacity 1 spills the second bubble to the farther facility
	fmt.Println("\n=== Match (capacity 1) ===")
	index, err := rtree.Build([]models.Facility{
		{ID: "F1", X: 0, Y: 0},
		{ID: "F2", X: 10, Y: 0},
	})
	if err != nil {
		log.Fatal(err)
	}

	spill := []models.Bubble{
		{Kind: models.SinglePoint, Shape: []models.Coord{{X: 1, Y: 0}}},
		{Kind: models.SinglePoint, Shape: []models.Coord{{X: 2, Y: 0}}},
	}
	result, err := matcher.New(index, 1).Match(spill)
	if err != nil {
		log.Fatal(err)
	}
	for _, p := range result.Pairings {
		fmt.Printf("  bubble %d -> %s (distance %.1f)\n", p.BubbleIndex, p.FacilityID, p.Distance)
	}
	for _, e := range result.Entries() {
		fmt.Printf("  %s: %d\n", e.FacilityID, e.Count)
	}

	// Example 3: a third bubble finds both facilities full
	fmt.Println("\n=== Capacity exhausted ===")
	third := append(spill, models.Bubble{Kind: models.SinglePoint, Shape: []models.Coord{{X: 3, Y: 0}}})
	_, err = matcher.New(index, 1).Match(third)

	var exhausted *models.CapacityExhaustedError
	if eris.As(err, &exhausted) {
		fmt.Printf("  failed at bubble %d: %v\n", exhausted.BubbleIndex, err)
		fmt.Printf("  minimum feasible capacity: %d\n", matcher.MinimumCapacity(len(third), index.Len()))
	}

	// Save the index and the report
	fmt.Println("\n=== Saving ===")
	dir, err := os.MkdirTemp("", "charge-planner-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	snapshot := filepath.Join(dir, "facilities.gob")
	if err := index.SaveToFile(snapshot); err != nil {
		log.Fatal(err)
	}
	loaded, err := rtree.LoadFromFile(snapshot)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("  index reloaded with %d facilities\n", loaded.Len())

	path, err := dataio.WriteReportFile(dir, "assignments", dataio.FormatYAML, dataio.Report{
		Capacity:   result.Capacity,
		Bubbles:    len(spill),
		Facilities: result.Entries(),
	})
	if err != nil {
		log.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	fmt.Print(string(data))
}
