// Package app wires configuration into a running producer: position source,
// enricher, pipeline, handoff and collector, plus the optional reference
// store, weather client and HTTP API.
package app

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/unklstewy/flightwall/internal/api"
	"github.com/unklstewy/flightwall/internal/auth"
	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/db"
	"github.com/unklstewy/flightwall/internal/display"
	"github.com/unklstewy/flightwall/internal/enrich"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/internal/pipeline"
	"github.com/unklstewy/flightwall/pkg/config"
	"github.com/unklstewy/flightwall/pkg/coordinates"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
	"github.com/unklstewy/flightwall/pkg/opensky"
	"github.com/unklstewy/flightwall/pkg/weather"
)

// App is a fully wired producer.
type App struct {
	Config *config.Config
	Logger *logger.Logger

	Flights   *handoff.Latest[flightaware.FlightMetadata]
	Pipeline  *pipeline.Pipeline
	Collector *collector.Collector
	Names     *enrich.Resolver

	// Weather and API are nil when disabled
	Weather *weather.Client
	API     *api.Server

	location *time.Location
	store    *db.DB
}

// NewLogger builds the process logger from the logging section. Terminal
// UIs pass tui so that entries go to the log file only.
func NewLogger(cfg config.LoggingConfig, tui bool) (*logger.Logger, error) {
	lc := logger.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSizeMB:  cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAgeDays: cfg.MaxAgeDays,
	}
	if tui {
		lc.DisableStdout = true
		if lc.File == "" {
			lc.File = "logs/flightwall.log"
		}
	}
	return logger.New(lc)
}

// Center returns the geofence centre from the location section.
func Center(cfg config.LocationConfig) coordinates.Geographic {
	return coordinates.Geographic{Latitude: cfg.Latitude, Longitude: cfg.Longitude}
}

// New validates cfg and builds the producer. The reference store is optional:
// when it cannot be reached the embedded name tables are used alone.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = logger.OrNop(log)

	loc, err := time.LoadLocation(cfg.Display.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("failed to load time zone: %w", err)
	}

	a := &App{
		Config:   cfg,
		Logger:   log,
		Flights:  handoff.New[flightaware.FlightMetadata](),
		Names:    enrich.NewResolver(enrich.DefaultAirlineTable(), enrich.DefaultAircraftTable()),
		location: loc,
	}

	if cfg.Database.Enabled {
		a.openStore(ctx)
	}

	tokens := opensky.NewTokenManager(opensky.TokenConfig{
		TokenURL:     cfg.OpenSky.TokenURL,
		ClientID:     cfg.OpenSky.ClientID,
		ClientSecret: cfg.OpenSky.ClientSecret,
		Timeout:      time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		InsecureTLS:  cfg.OpenSky.InsecureTLS,
	}, log)

	positions := opensky.NewClient(opensky.Config{
		BaseURL:     cfg.OpenSky.BaseURL,
		Timeout:     time.Duration(cfg.OpenSky.TimeoutSeconds) * time.Second,
		InsecureTLS: cfg.OpenSky.InsecureTLS,
	}, tokens, log)

	provider := flightaware.NewClient(flightaware.Config{
		BaseURL:         cfg.FlightAware.BaseURL,
		APIKey:          cfg.FlightAware.APIKey,
		RequestsPerHour: cfg.FlightAware.RequestsPerHour,
		Timeout:         time.Duration(cfg.FlightAware.TimeoutSeconds) * time.Second,
		InsecureTLS:     cfg.FlightAware.InsecureTLS,
	}, log)

	var enrichOpts []enrich.Option
	if a.store != nil {
		enrichOpts = append(enrichOpts, enrich.WithNameStore(storeNames{repo: db.NewLookupRepository(a.store)}))
	}
	enricher := enrich.NewEnricher(provider, enrich.NewCache(cfg.Fetch.CacheTTL()), a.Names, log, enrichOpts...)

	a.Pipeline = pipeline.New(pipeline.Config{
		Center:        Center(cfg.Location),
		RadiusKm:      cfg.Location.RadiusKm,
		PerPassBudget: cfg.Fetch.PerPassBudget,
	}, positions, enricher, log)

	a.Collector = collector.New(collector.Config{
		Interval:      cfg.Fetch.Interval(),
		PublishWait:   cfg.Fetch.PublishTimeout(),
		StatsInterval: 5 * time.Minute,
	}, a.Pipeline, a.Flights, log)

	if cfg.Weather.Enabled {
		a.Weather = weather.NewClient(weather.Config{
			BaseURL:  cfg.Weather.BaseURL,
			Location: Center(cfg.Location),
			Refresh:  time.Duration(cfg.Weather.RefreshMinutes) * time.Minute,
		}, log)
	}

	if cfg.Server.Enabled {
		opts := api.Options{
			Flights:   a.Flights,
			Collector: a.Collector,
			Auth: auth.NewService(auth.Config{
				JWTSecret:         cfg.Server.JWTSecret,
				TokenDuration:     cfg.Server.TokenDuration(),
				AdminUser:         cfg.Server.AdminUser,
				AdminPasswordHash: cfg.Server.AdminPasswordHash,
			}),
			AllowedOrigins: cfg.Server.AllowedOrigins,
			ReadWait:       cfg.Fetch.ReadTimeout(),
		}
		// Assigned only when set so the interfaces stay nil.
		if a.Weather != nil {
			opts.Weather = a.Weather
		}
		if a.store != nil {
			opts.Names = a
			opts.Store = a
		}
		a.API = api.New(opts, log)
	}

	log.Info("producer configured",
		logger.String("location", cfg.Location.Name),
		logger.Float64("latitude", cfg.Location.Latitude),
		logger.Float64("longitude", cfg.Location.Longitude),
		logger.Float64("radius_km", cfg.Location.RadiusKm),
		logger.Duration("interval", cfg.Fetch.Interval()),
		logger.Int("per_pass_budget", cfg.Fetch.PerPassBudget),
		logger.Bool("reference_store", a.store != nil),
		logger.Bool("weather", a.Weather != nil),
		logger.Bool("api", a.API != nil))

	return a, nil
}

func (a *App) openStore(ctx context.Context) {
	log := a.Logger.Named("db")

	store, err := db.ReconnectWithRetry(ctx, a.Config.Database, 3, time.Second, a.Logger)
	if err != nil {
		log.Warn("reference store unavailable, using embedded name tables", logger.Error(err))
		return
	}
	if err := store.InitSchema(ctx); err != nil {
		log.Warn("reference schema failed, using embedded name tables", logger.Error(err))
		store.Close()
		return
	}
	a.store = store

	if _, err := a.ReloadNames(ctx); err != nil {
		log.Warn("initial name reload failed", logger.Error(err))
	}
}

// ReloadNames merges the reference store's tables over the current ones and
// returns the number of entries merged.
func (a *App) ReloadNames(ctx context.Context) (int, error) {
	if a.store == nil {
		return 0, fmt.Errorf("reference store is not configured")
	}

	repo := db.NewLookupRepository(a.store)
	var airlines, aircraft map[string]string
	err := db.WithRetry(ctx, func() error {
		var err error
		if airlines, err = repo.Load(ctx, db.TableAirlines); err != nil {
			return err
		}
		aircraft, err = repo.Load(ctx, db.TableAircraft)
		return err
	}, 2)
	if err != nil {
		return 0, err
	}

	n := a.Names.Airlines().Merge(airlines) + a.Names.Aircraft().Merge(aircraft)
	a.Logger.Info("name tables reloaded",
		logger.Int("airlines", len(airlines)),
		logger.Int("aircraft", len(aircraft)),
		logger.Int("merged", n),
		logger.Int("airlines_total", a.Names.Airlines().Len()),
		logger.Int("aircraft_total", a.Names.Aircraft().Len()))
	return n, nil
}

// storeNames serves codes missing from the name tables out of the reference
// store, so entries imported after the last reload show up without one.
type storeNames struct {
	repo *db.LookupRepository
}

func (s storeNames) LookupAirlines(ctx context.Context, codes []string) (map[string]string, error) {
	return s.repo.Lookup(ctx, db.TableAirlines, codes)
}

func (s storeNames) LookupAircraft(ctx context.Context, codes []string) (map[string]string, error) {
	return s.repo.Lookup(ctx, db.TableAircraft, codes)
}

// StoreHealthy reports whether the reference store answers a query.
func (a *App) StoreHealthy(ctx context.Context) bool {
	return db.HealthCheck(ctx, a.store)
}

// Location returns the display time zone.
func (a *App) Location() *time.Location {
	return a.location
}

// WallConfig returns the display settings for a wall with cols columns.
func (a *App) WallConfig(cols int) display.WallConfig {
	return display.WallConfig{
		Columns:       cols,
		CycleInterval: a.Config.Display.Cycle(),
		Units: display.Units{
			AltitudeFeet: a.Config.Display.AltitudeFeet,
			SpeedKts:     a.Config.Display.SpeedKts,
		},
		Location: a.location,
	}
}

// NewReader returns a handoff reader for one consumer.
func (a *App) NewReader() *handoff.Reader[flightaware.FlightMetadata] {
	return a.Flights.NewReader(a.Config.Fetch.ReadTimeout())
}

// CurrentWeather returns the latest reading, or nil when weather is disabled
// or has never been fetched.
func (a *App) CurrentWeather(ctx context.Context) *weather.Reading {
	if a.Weather == nil {
		return nil
	}
	reading, err := a.Weather.Current(ctx)
	if reading.FetchedAt.IsZero() {
		if err != nil {
			a.Logger.Debug("weather unavailable", logger.Error(err))
		}
		return nil
	}
	return &reading
}

// Run starts the collector and, when enabled, the HTTP API, and blocks until
// ctx is done or the API fails.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Collector.Run(ctx)
		return nil
	})

	if a.API != nil {
		g.Go(func() error {
			return a.API.ListenAndServe(ctx, a.Config.Server.Addr())
		})
	}

	return g.Wait()
}

// Close releases the reference store connection.
func (a *App) Close() error {
	if a.store != nil {
		return a.store.Close()
	}
	return nil
}
