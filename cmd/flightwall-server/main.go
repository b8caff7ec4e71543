// Flightwall producer service.
// Runs the fetch loop and, when enabled, serves the REST and WebSocket API.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	"github.com/unklstewy/flightwall/internal/app"
	"github.com/unklstewy/flightwall/internal/auth"
	"github.com/unklstewy/flightwall/internal/display"
	"github.com/unklstewy/flightwall/internal/pipeline"
	"github.com/unklstewy/flightwall/pkg/config"
	"github.com/unklstewy/flightwall/pkg/logger"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	once := flag.Bool("once", false, "Run a single pass, print the result and exit")
	hashPassword := flag.Bool("hash-password", false, "Read a password from stdin and print its bcrypt hash")
	flag.Parse()

	if *hashPassword {
		if err := printHash(os.Stdin, os.Stdout); err != nil {
			log.Fatalf("Failed to hash password: %v", err)
		}
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := app.NewLogger(cfg.Logging, false)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		zl.Fatal("failed to start", logger.Error(err))
	}
	defer a.Close()

	if *once {
		res := a.Collector.RunOnce(ctx)
		printResult(os.Stdout, res, display.Units{
			AltitudeFeet: cfg.Display.AltitudeFeet,
			SpeedKts:     cfg.Display.SpeedKts,
		})
		if !res.OK() {
			os.Exit(1)
		}
		return
	}

	zl.Info("flightwall server starting",
		logger.String("config", *configPath),
		logger.Bool("api", a.API != nil))

	if err := a.Run(ctx); err != nil {
		zl.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
	zl.Info("flightwall server stopped")
}

// printHash reads one password and writes its bcrypt hash. On a terminal the
// password is read without echo.
func printHash(in *os.File, out io.Writer) error {
	var password string
	if term.IsTerminal(int(in.Fd())) {
		fmt.Fprint(os.Stderr, "Password: ")
		raw, err := term.ReadPassword(int(in.Fd()))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return err
		}
		password = string(raw)
	} else {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && err != io.EOF {
			return err
		}
		password = strings.TrimRight(line, "\r\n")
	}
	if password == "" {
		return fmt.Errorf("empty password")
	}

	hash, err := auth.NewService(auth.Config{}).HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, hash)
	return nil
}

// printResult writes a pass result as two tables: positions, then enriched
// flights.
func printResult(out io.Writer, res pipeline.Result, units display.Units) {
	if res.Err != nil {
		fmt.Fprintf(out, "Pass failed: %v\n", res.Err)
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "POSITIONS (%d)\n", len(res.Positions))
	fmt.Fprintln(w, "ICAO24\tCALLSIGN\tCOUNTRY\tALTITUDE\tSPEED\tDIST\tBEARING")
	for _, p := range res.Positions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ICAO24, p.Callsign, p.OriginCountry,
			units.Altitude(p.BaroAltitude), units.Speed(p.Velocity),
			display.Distance(p.DistanceKm), display.Bearing(p.BearingDeg))
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "FLIGHTS (%d)\n", len(res.Flights))
	fmt.Fprintln(w, "IDENT\tAIRLINE\tAIRCRAFT\tROUTE\tFROM\tTO")
	for _, f := range res.Flights {
		_, model := display.MakerModel(f.AircraftType, f.AircraftDisplayName)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			f.Ident, display.AirlineName(f), model, f.Route(),
			f.Origin.DisplayCity(), f.Destination.DisplayCity())
	}
	w.Flush()

	fmt.Fprintf(out, "\nPass %s: %d fresh lookups in %s\n", res.PassID, res.Enriched, res.Duration.Round(time.Millisecond))
}
