package main

import (
	"context"
	"flag"
	"log"
	"time"

	"github.com/kass/charge-planner/pkg/config"
	"github.com/kass/charge-planner/pkg/dataio"
	"github.com/kass/charge-planner/pkg/postgis"
)

func main() {
	var (
		configFile     = flag.String("c", "", "Config file (default ./planner.yaml if present)")
		demandFile     = flag.String("demand", "", "Demand CSV (x,y,weight)")
		facilitiesFile = flag.String("facilities", "", "Facilities (.csv, .geojson or .shp)")
		noIndex        = flag.Bool("no-index", false, "Skip creating spatial indexes")
	)
	flag.Parse()

	if *demandFile == "" && *facilitiesFile == "" {
		log.Fatal("Nothing to load: pass -demand and/or -facilities")
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := config.InitLogger(cfg.Log); err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx := context.Background()
	db, err := postgis.Open(ctx, cfg.Postgis.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to PostGIS: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to init schema: %v", err)
	}

	if *demandFile != "" {
		demand, err := dataio.ReadDemandFile(*demandFile)
		if err != nil {
			log.Fatalf("Failed to read demand: %v", err)
		}
		start := time.Now()
		if err := db.BulkInsertDemand(ctx, demand); err != nil {
			log.Fatalf("Failed to insert demand: %v", err)
		}
		elapsed := time.Since(start)
		log.Printf("Loaded %d demand points in %v (%.0f rows/sec)\n",
			len(demand), elapsed, float64(len(demand))/elapsed.Seconds())
	}

	if *facilitiesFile != "" {
		facilities, err := dataio.ReadFacilitiesFile(*facilitiesFile, cfg.Match.AccessValues)
		if err != nil {
			log.Fatalf("Failed to read facilities: %v", err)
		}
		start := time.Now()
		if err := db.BulkInsertFacilities(ctx, facilities); err != nil {
			log.Fatalf("Failed to insert facilities: %v", err)
		}
		elapsed := time.Since(start)
		log.Printf("Loaded %d facilities in %v (%.0f rows/sec)\n",
			len(facilities), elapsed, float64(len(facilities))/elapsed.Seconds())
	}

	if !*noIndex {
		if err := db.CreateSpatialIndexes(ctx); err != nil {
			log.Fatalf("Failed to create spatial indexes: %v", err)
		}
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		log.Fatalf("Failed to read stats: %v", err)
	}
	for _, key := range []string{"database_size", "facilities_rows", "facilities_size", "demand_rows", "demand_size"} {
		log.Printf("%s: %v\n", key, stats[key])
	}
}
