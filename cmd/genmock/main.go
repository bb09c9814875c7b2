// Command genmock writes a deterministic synthetic data directory: one .dly
// file per station, a matching ghcnd-stations.txt inventory and a yield table.
// Pointing DATA_DIR at the output lets the pipeline run offline.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock -start 1950 -end 1979
package main

import (
	"bytes"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/couchcryptid/maize-yield-etl/internal/adapter/ghcnd"
	"github.com/couchcryptid/maize-yield-etl/internal/config"
	"github.com/couchcryptid/maize-yield-etl/internal/mockdata"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	defaults := mockdata.DefaultOptions()
	out := flag.String("out", "", "output directory")
	stations := flag.String("stations", strings.Join(config.DefaultStationIDs, ","), "comma-separated station IDs")
	start := flag.Int("start", defaults.StartYear, "first year")
	end := flag.Int("end", defaults.EndYear, "last year")
	seed := flag.Uint64("seed", defaults.Seed, "random seed")
	sparse := flag.Int("sparse-every", defaults.SparseEvery, "make every Nth station-month sparse (0 disables)")
	yieldFile := flag.String("yield-file", "yields.csv", "yield table file name")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *start > *end {
		return fmt.Errorf("-start %d is after -end %d", *start, *end)
	}
	if err := os.MkdirAll(*out, 0o755); err != nil {
		return err
	}

	opts := mockdata.Options{StartYear: *start, EndYear: *end, Seed: *seed, SparseEvery: *sparse}
	ids := strings.Split(*stations, ",")

	for _, id := range ids {
		id = strings.TrimSpace(id)
		var buf bytes.Buffer
		if err := mockdata.WriteStation(&buf, mockdata.Station(opts, id)); err != nil {
			return fmt.Errorf("generate %s: %w", id, err)
		}
		if err := os.WriteFile(filepath.Join(*out, id+".dly"), buf.Bytes(), 0o644); err != nil {
			return err
		}
		log.Printf("%s: %d bytes", id, buf.Len())
	}

	var inv bytes.Buffer
	if err := mockdata.WriteInventory(&inv, mockdata.Inventory(opts, ids)); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(*out, ghcnd.StationsFile), inv.Bytes(), 0o644); err != nil {
		return err
	}

	var yields bytes.Buffer
	records := mockdata.Yields(opts)
	if err := mockdata.WriteYields(&yields, records); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(*out, *yieldFile), yields.Bytes(), 0o644); err != nil {
		return err
	}

	log.Printf("wrote %d stations and %d yield years to %s", len(ids), len(records), *out)
	return nil
}
