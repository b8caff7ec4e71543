// Package collector runs the producer loop: a fetch pass every interval, the
// result published to the handoff for the display consumers.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/internal/pipeline"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
)

// Fetcher runs one pass. *pipeline.Pipeline implements it.
type Fetcher interface {
	Fetch(ctx context.Context) pipeline.Result
}

// Config controls the loop timing.
type Config struct {
	// Interval between scheduled passes (default: 30 seconds)
	Interval time.Duration

	// PublishWait bounds the wait for the handoff lock (default: 200ms)
	PublishWait time.Duration

	// StatsInterval between summary log lines; zero disables them
	StatsInterval time.Duration
}

// Stats tracks collection statistics.
type Stats struct {
	Passes        int       `json:"passes"`
	Failures      int       `json:"failures"`
	Dropped       int       `json:"dropped_publishes"`
	TotalFresh    int       `json:"total_fresh_calls"`
	LastPassAt    time.Time `json:"last_pass_at"`
	LastSuccessAt time.Time `json:"last_success_at"`
	LastError     string    `json:"last_error,omitempty"`
	LastErrorKind string    `json:"last_error_kind,omitempty"`
	LastPositions int       `json:"last_positions"`
	LastFlights   int       `json:"last_flights"`
	LastEnriched  int       `json:"last_enriched"`
	LastDuration  string    `json:"last_duration"`
}

// Collector manages the fetch loop.
type Collector struct {
	cfg     Config
	fetcher Fetcher
	latest  *handoff.Latest[flightaware.FlightMetadata]
	logger  *logger.Logger

	trigger chan struct{}

	mu    sync.RWMutex
	stats Stats
}

// New creates a collector that publishes into latest. log may be nil.
func New(cfg Config, fetcher Fetcher, latest *handoff.Latest[flightaware.FlightMetadata], log *logger.Logger) *Collector {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Second
	}
	if cfg.PublishWait <= 0 {
		cfg.PublishWait = handoff.DefaultPublishWait
	}
	return &Collector{
		cfg:     cfg,
		fetcher: fetcher,
		latest:  latest,
		logger:  logger.OrNop(log).Named("collector"),
		trigger: make(chan struct{}, 1),
	}
}

// Run performs a pass immediately, then one per interval, until ctx is done.
// Trigger requests an extra pass; the interval restarts after it.
func (c *Collector) Run(ctx context.Context) {
	c.logger.Info("collector started", logger.Duration("interval", c.cfg.Interval))

	c.RunOnce(ctx)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	var statsC <-chan time.Time
	if c.cfg.StatsInterval > 0 {
		statsTicker := time.NewTicker(c.cfg.StatsInterval)
		defer statsTicker.Stop()
		statsC = statsTicker.C
	}

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("collector stopped", logger.Error(ctx.Err()))
			return
		case <-ticker.C:
			c.RunOnce(ctx)
		case <-c.trigger:
			c.logger.Info("manual refresh requested")
			c.RunOnce(ctx)
			ticker.Reset(c.cfg.Interval)
		case <-statsC:
			c.logStats()
		}
	}
}

// Trigger requests an immediate pass. Requests made while one is pending
// are coalesced. It never blocks.
func (c *Collector) Trigger() bool {
	select {
	case c.trigger <- struct{}{}:
		return true
	default:
		return false
	}
}

// RunOnce performs a single pass and publishes its flights. A failed pass
// leaves the published list untouched.
func (c *Collector) RunOnce(ctx context.Context) (res pipeline.Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("panic in fetch pass, will retry next cycle", logger.Any("panic", r))
			res = pipeline.Result{Err: fmt.Errorf("panic in fetch pass: %v", r)}
			c.record(res, false)
		}
	}()

	res = c.fetcher.Fetch(ctx)
	if !res.OK() {
		c.record(res, false)
		return res
	}

	published := c.latest.Publish(res.Flights, c.cfg.PublishWait)
	if !published {
		c.logger.Warn("handoff busy, update dropped",
			logger.String("pass_id", res.PassID.String()),
			logger.Duration("wait", c.cfg.PublishWait))
	}
	c.record(res, published)
	return res
}

func (c *Collector) record(res pipeline.Result, published bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := &c.stats
	s.Passes++
	s.LastPassAt = time.Now()
	s.LastDuration = res.Duration.Round(time.Millisecond).String()

	if res.Err != nil {
		s.Failures++
		s.LastError = res.Err.Error()
		s.LastErrorKind = ""
		if kind := fetcherr.KindOf(res.Err); kind != nil {
			s.LastErrorKind = kind.Error()
		}
		return
	}

	s.TotalFresh += res.Enriched
	s.LastPositions = len(res.Positions)
	s.LastFlights = len(res.Flights)
	s.LastEnriched = res.Enriched
	if !published {
		s.Dropped++
		return
	}
	s.LastSuccessAt = s.LastPassAt
	s.LastError = ""
	s.LastErrorKind = ""
}

// Stats returns a copy of the current statistics.
func (c *Collector) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stats
}

func (c *Collector) logStats() {
	s := c.Stats()
	c.logger.Info("stats",
		logger.Int("passes", s.Passes),
		logger.Int("failures", s.Failures),
		logger.Int("dropped", s.Dropped),
		logger.Int("fresh_calls", s.TotalFresh),
		logger.Int("flights", s.LastFlights),
		logger.Time("last_success", s.LastSuccessAt))
}
