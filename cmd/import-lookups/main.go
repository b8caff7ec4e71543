package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/unklstewy/flightwall/internal/db"
	"github.com/unklstewy/flightwall/pkg/config"
)

// Lookup Importer
// Loads airline and aircraft display names into the reference store.
//
// Sources are local files or http(s) URLs, either JSON objects of code to
// name or OpenTravelData tables, e.g.:
// https://raw.githubusercontent.com/opentraveldata/opentraveldata/master/opentraveldata/optd_airlines.csv
// https://raw.githubusercontent.com/opentraveldata/opentraveldata/master/opentraveldata/optd_aircraft.csv

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	airlinesSrc := flag.String("airlines", "", "Airline names file or URL")
	aircraftSrc := flag.String("aircraft", "", "Aircraft type names file or URL")
	format := flag.String("format", FormatJSON, "Source format: json or optd")
	dryRun := flag.Bool("dry-run", false, "Parse sources and print counts without writing")
	flag.Parse()

	if *airlinesSrc == "" && *aircraftSrc == "" {
		log.Fatal("Nothing to import: pass -airlines and/or -aircraft")
	}
	if *format != FormatJSON && *format != FormatOPTD {
		log.Fatalf("Unknown format %q", *format)
	}

	log.Println("===========================================")
	log.Println("  Lookup Importer")
	log.Println("===========================================")

	ctx := context.Background()

	imports := []struct {
		table db.Table
		src   string
		cols  optdColumns
	}{
		{db.TableAirlines, *airlinesSrc, optdAirlines},
		{db.TableAircraft, *aircraftSrc, optdAircraft},
	}

	tables := make(map[db.Table]map[string]string)
	for _, imp := range imports {
		if imp.src == "" {
			continue
		}
		names, err := load(ctx, imp.src, *format, imp.cols)
		if err != nil {
			log.Fatalf("Failed to load %s: %v", imp.table, err)
		}
		log.Printf("✓ Parsed %d %s entries from %s", len(names), imp.table, imp.src)
		tables[imp.table] = names
	}

	if *dryRun {
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Println("Connecting to database...")
	database, err := db.Connect(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	log.Println("✓ Database connected")

	if err := database.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("✓ Schema initialized")

	repo := db.NewLookupRepository(database)
	for _, imp := range imports {
		names, ok := tables[imp.table]
		if !ok {
			continue
		}
		n, err := repo.Upsert(ctx, imp.table, names)
		if err != nil {
			log.Fatalf("Failed to import %s: %v", imp.table, err)
		}
		log.Printf("✓ Imported %d %s entries", n, imp.table)
	}

	stats, err := database.GetStats(ctx)
	if err != nil {
		log.Printf("Warning: failed to read table counts: %v", err)
		return
	}
	for table, count := range stats {
		log.Printf("%s: %d rows", table, count)
	}
}

// load reads one source in the given format.
func load(ctx context.Context, src, format string, cols optdColumns) (map[string]string, error) {
	r, err := open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	if format == FormatOPTD {
		return ParseOPTD(r, cols)
	}
	return ParseJSON(r)
}

func open(ctx context.Context, src string) (io.ReadCloser, error) {
	if !strings.HasPrefix(src, "http://") && !strings.HasPrefix(src, "https://") {
		return os.Open(src)
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return nil, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

// cancelBody releases the download context when the body is closed.
type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
