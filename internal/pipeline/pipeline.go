// Package pipeline composes one fetch pass: positions inside the geofence,
// then metadata for the flights among them.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/unklstewy/flightwall/internal/enrich"
	"github.com/unklstewy/flightwall/pkg/adsb"
	"github.com/unklstewy/flightwall/pkg/coordinates"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
)

// Enricher resolves metadata for a pass. *enrich.Enricher implements it.
type Enricher interface {
	Enrich(ctx context.Context, positions []adsb.PositionRecord, budget int) ([]flightaware.FlightMetadata, int)
}

var _ Enricher = (*enrich.Enricher)(nil)

// Config is the geofence and budget for every pass.
type Config struct {
	Center        coordinates.Geographic
	RadiusKm      float64
	PerPassBudget int
}

// Result is the outcome of one pass. When Err is set the pass failed at the
// position stage and Positions and Flights are empty.
type Result struct {
	PassID    uuid.UUID
	StartedAt time.Time
	Duration  time.Duration

	Positions []adsb.PositionRecord
	Flights   []flightaware.FlightMetadata

	// Enriched is the number of fresh provider calls made
	Enriched int

	Err error
}

// OK reports whether the pass produced a publishable result.
func (r Result) OK() bool { return r.Err == nil }

// Pipeline runs fetch passes.
type Pipeline struct {
	cfg       Config
	positions adsb.PositionSource
	enricher  Enricher
	logger    *logger.Logger
}

// New creates a pipeline. log may be nil.
func New(cfg Config, positions adsb.PositionSource, enricher Enricher, log *logger.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		positions: positions,
		enricher:  enricher,
		logger:    logger.OrNop(log).Named("pipeline"),
	}
}

// Fetch runs one pass. A position failure is returned in Result.Err with
// empty lists; it is never a partial result.
func (p *Pipeline) Fetch(ctx context.Context) Result {
	res := Result{
		PassID:    uuid.New(),
		StartedAt: time.Now(),
		Positions: []adsb.PositionRecord{},
		Flights:   []flightaware.FlightMetadata{},
	}
	log := p.logger.With(logger.String("pass_id", res.PassID.String()))

	positions, err := p.positions.FetchPositions(ctx, p.cfg.Center, p.cfg.RadiusKm)
	if err != nil {
		res.Err = err
		res.Duration = time.Since(res.StartedAt)

		fields := []logger.Field{logger.Error(err), logger.Duration("duration", res.Duration)}
		if fe, ok := fetcherr.Details(err); ok {
			fields = append(fields,
				logger.String("op", fe.Op),
				logger.String("endpoint", fe.Endpoint),
				logger.Int("status", fe.Status))
		}
		log.Warn("position fetch failed, pass aborted", fields...)
		return res
	}

	if positions != nil {
		res.Positions = positions
	}
	res.Flights, res.Enriched = p.enricher.Enrich(ctx, positions, p.cfg.PerPassBudget)
	res.Duration = time.Since(res.StartedAt)

	if err := ctx.Err(); err != nil {
		res.Err = err
		log.Info("pass cancelled", logger.Int("flights", len(res.Flights)))
		return res
	}

	log.Info("pass complete",
		logger.Int("positions", len(res.Positions)),
		logger.Int("flights", len(res.Flights)),
		logger.Int("enriched", res.Enriched),
		logger.Duration("duration", res.Duration))

	return res
}
