package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/unklstewy/flightwall/internal/app"
	"github.com/unklstewy/flightwall/pkg/config"
	"github.com/unklstewy/flightwall/pkg/logger"
)

var (
	// Version information (set by build flags)
	version = "dev"
	commit  = "unknown"
)

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	cols := flag.Int("cols", 16, "Wall panel width in characters")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("flightwall-board version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := app.NewLogger(cfg.Logging, true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	go func() {
		if err := a.Run(ctx); err != nil {
			zl.Error("producer stopped", logger.Error(err))
		}
	}()

	if err := NewBoard(a, *cols).Run(ctx); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}
