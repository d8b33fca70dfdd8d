package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kass/charge-planner/pkg/models"
	"github.com/kass/charge-planner/pkg/rtree"
)

func main() {
	var (
		indexFile = flag.String("i", "data/facilities.gob", "Facility index snapshot")
		x         = flag.Float64("x", 0, "Query x (longitude for geographic data)")
		y         = flag.Float64("y", 0, "Query y (latitude for geographic data)")
		k         = flag.Int("k", 10, "Number of nearest facilities")
		geo       = flag.Bool("geo", false, "Coordinates are lon/lat; print distances in km")
		// Output format
		outputJSON = flag.Bool("json", false, "Output results as JSON")
	)
	flag.Parse()

	log.Printf("Loading index from %s...\n", *indexFile)
	index, err := rtree.LoadFromFile(*indexFile)
	if err != nil {
		log.Fatalf("Failed to load index: %v", err)
	}
	log.Printf("Index loaded with %d facilities\n", index.Len())

	p := models.Coord{X: *x, Y: *y}
	results := index.KNearest(p, *k)
	log.Printf("Found %d nearest facilities\n", len(results))

	if *outputJSON {
		encoder := json.NewEncoder(os.Stdout)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(results); err != nil {
			log.Fatalf("Failed to encode results: %v", err)
		}
		return
	}

	for i, n := range results {
		if *geo {
			fmt.Printf("%d. %s: (%.6f, %.6f) - %.2f km\n",
				i+1, n.Facility.ID, n.Facility.X, n.Facility.Y, rtree.GeoDistance(p, n.Facility.Coord()))
		} else {
			fmt.Printf("%d. %s: (%.6f, %.6f) - %.4f\n",
				i+1, n.Facility.ID, n.Facility.X, n.Facility.Y, n.Distance)
		}
	}
}
