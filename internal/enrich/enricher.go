package enrich

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/unklstewy/flightwall/pkg/adsb"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
)

// MetadataProvider resolves one identifier. *flightaware.Client implements it.
type MetadataProvider interface {
	GetFlightInfo(ctx context.Context, ident string) (flightaware.FlightMetadata, error)
}

// NameStore looks up names the tables lack. Codes with no entry are absent
// from the result.
type NameStore interface {
	LookupAirlines(ctx context.Context, codes []string) (map[string]string, error)
	LookupAircraft(ctx context.Context, codes []string) (map[string]string, error)
}

// Enricher resolves metadata for the positions of a fetch pass.
type Enricher struct {
	provider MetadataProvider
	cache    *Cache
	names    *Resolver
	store    NameStore
	now      func() time.Time
	logger   *logger.Logger
}

// Option configures an Enricher.
type Option func(*Enricher)

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(e *Enricher) { e.now = now }
}

// WithNameStore consults store for codes missing from the name tables after
// each fresh provider call. Names found are merged into the tables.
func WithNameStore(store NameStore) Option {
	return func(e *Enricher) { e.store = store }
}

// NewEnricher creates an enricher. A nil cache gets DefaultCacheTTL, a nil
// resolver uses the embedded name tables, and log may be nil.
func NewEnricher(provider MetadataProvider, cache *Cache, names *Resolver, log *logger.Logger, opts ...Option) *Enricher {
	if cache == nil {
		cache = NewCache(DefaultCacheTTL)
	}
	if names == nil {
		names = NewResolver(DefaultAirlineTable(), DefaultAircraftTable())
	}
	e := &Enricher{
		provider: provider,
		cache:    cache,
		names:    names,
		now:      time.Now,
		logger:   logger.OrNop(log).Named("enrich"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Cache returns the enrichment cache.
func (e *Enricher) Cache() *Cache { return e.cache }

// Enrich resolves metadata for positions in input order and returns the
// included flights plus the number of fresh provider calls made.
//
// Each identifier is attempted at most once per call. Cache hits are free;
// a fresh call is made only while fewer than budget calls succeeded so far.
// Identifiers that fail or fall outside the budget are left out and retried
// on a later pass.
func (e *Enricher) Enrich(ctx context.Context, positions []adsb.PositionRecord, budget int) ([]flightaware.FlightMetadata, int) {
	pass := newFetchPass(budget)

	if pruned := e.cache.Prune(e.now()); pruned > 0 {
		e.logger.Debug("cache pruned", logger.Int("removed", pruned), logger.Int("remaining", e.cache.Len()))
	}

	flights := make([]flightaware.FlightMetadata, 0, len(positions))
	for _, pos := range positions {
		if ctx.Err() != nil {
			e.logger.Debug("enrichment cancelled", logger.Error(ctx.Err()))
			break
		}

		callsign := strings.TrimSpace(pos.Callsign)
		if !pass.claim(callsign) {
			continue
		}

		meta, ok := e.resolve(ctx, callsign, pass)
		if !ok {
			continue
		}

		// Live metrics always come from the current position
		meta.BaroAltitudeM = pos.BaroAltitude
		meta.VelocityMps = pos.Velocity
		meta.DistanceKm = pos.DistanceKm
		meta.BearingDeg = pos.BearingDeg

		var strategy string
		meta, strategy = e.names.Apply(meta, callsign)
		if strategy == "" {
			e.logger.Debug("no airline name", logger.String("ident", callsign))
		} else {
			e.logger.Debug("airline resolved",
				logger.String("ident", callsign),
				logger.String("strategy", strategy),
				logger.String("airline", meta.AirlineDisplayName))
		}
		flights = append(flights, meta)
	}

	e.logger.Info("enrichment pass complete",
		logger.Int("positions", len(positions)),
		logger.Int("flights", len(flights)),
		logger.Int("fresh_calls", pass.fresh),
		logger.Int("cache_hits", pass.hits),
		logger.Int("deferred", pass.deferred),
		logger.Int("failed", pass.failed))

	return flights, pass.fresh
}

// resolve serves callsign from the cache or the provider.
func (e *Enricher) resolve(ctx context.Context, callsign string, pass *fetchPass) (flightaware.FlightMetadata, bool) {
	if meta, ok := e.cache.Lookup(callsign, e.now()); ok {
		pass.hits++
		return meta, true
	}

	if !pass.allowFresh() {
		pass.deferred++
		e.logger.Debug("ident deferred",
			logger.String("ident", callsign),
			logger.Error(fetcherr.New(fetcherr.ErrBudgetExceeded, "enrich", nil).WithIdent(callsign)))
		return flightaware.FlightMetadata{}, false
	}

	meta, err := e.provider.GetFlightInfo(ctx, callsign)
	if err != nil {
		pass.failed++
		e.logFailure(callsign, err)
		return flightaware.FlightMetadata{}, false
	}

	pass.fresh++
	e.cache.Store(callsign, meta, e.now())
	if e.store != nil {
		e.backfill(ctx, meta, callsign)
	}
	return meta, true
}

// backfill merges store names for the codes of meta the tables lack. A
// store failure only costs the names; the flight is still shown.
func (e *Enricher) backfill(ctx context.Context, meta flightaware.FlightMetadata, callsign string) {
	airlines, aircraft := e.names.MissingCodes(meta, callsign)

	merged := 0
	if len(airlines) > 0 {
		names, err := e.store.LookupAirlines(ctx, airlines)
		if err != nil {
			e.logger.Warn("airline lookup in store failed", logger.Strings("codes", airlines), logger.Error(err))
		} else {
			merged += e.names.Airlines().Merge(names)
		}
	}
	if len(aircraft) > 0 {
		names, err := e.store.LookupAircraft(ctx, aircraft)
		if err != nil {
			e.logger.Warn("aircraft lookup in store failed", logger.Strings("codes", aircraft), logger.Error(err))
		} else {
			merged += e.names.Aircraft().Merge(names)
		}
	}

	if merged > 0 {
		e.logger.Debug("names backfilled from store",
			logger.String("ident", callsign),
			logger.Int("merged", merged))
	}
}

func (e *Enricher) logFailure(callsign string, err error) {
	fields := []logger.Field{logger.String("ident", callsign), logger.Error(err)}
	if fe, ok := fetcherr.Details(err); ok {
		fields = append(fields, logger.String("endpoint", fe.Endpoint), logger.Int("status", fe.Status))
	}
	if rle, ok := adsb.IsRateLimitError(err); ok {
		fields = append(fields, logger.Duration("retry_after", rle.RetryAfter))
	}

	switch {
	case errors.Is(err, fetcherr.ErrNotFound), errors.Is(err, fetcherr.ErrBudgetExceeded):
		e.logger.Debug("ident not resolved", fields...)
	default:
		e.logger.Warn("metadata lookup failed", fields...)
	}
}

// fetchPass is the state of one Enrich call.
type fetchPass struct {
	budget int
	seen   map[string]struct{}

	fresh    int
	hits     int
	deferred int
	failed   int
}

func newFetchPass(budget int) *fetchPass {
	return &fetchPass{budget: budget, seen: make(map[string]struct{})}
}

// claim marks ident as processed. It returns false for empty identifiers and
// for ones already claimed in this pass.
func (p *fetchPass) claim(ident string) bool {
	key := cacheKey(ident)
	if key == "" {
		return false
	}
	if _, dup := p.seen[key]; dup {
		return false
	}
	p.seen[key] = struct{}{}
	return true
}

func (p *fetchPass) allowFresh() bool {
	return p.fresh < p.budget
}
