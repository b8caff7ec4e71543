// Package flightaware provides a client for the FlightAware AeroAPI v4.
//
// Only the flight lookup endpoint is used: it resolves an identifier to its
// operator, aircraft type and route. Requests are metered with a token bucket
// so a misconfigured budget cannot burn through the monthly quota.
//
// API Documentation: https://www.flightaware.com/aeroapi/portal/documentation
package flightaware

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/flightwall/pkg/adsb"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/logger"
)

const (
	// BaseURL is the FlightAware AeroAPI v4 base URL
	BaseURL = "https://aeroapi.flightaware.com/aeroapi"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second
)

var (
	errMissingAPIKey = errors.New("api key is not configured")
	errQuotaReached  = errors.New("hourly request quota reached")
)

// Client represents a FlightAware AeroAPI client.
type Client struct {
	apiKey      string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
	baseURL     string
	logger      *logger.Logger
}

// Config contains configuration for the FlightAware client.
type Config struct {
	// BaseURL overrides the AeroAPI root (default: BaseURL)
	BaseURL string

	APIKey string

	// RequestsPerHour caps outgoing lookups. Zero disables the limiter.
	RequestsPerHour int

	Timeout time.Duration

	// InsecureTLS disables certificate verification. Development only.
	InsecureTLS bool

	// HTTPClient overrides the client built from Timeout/InsecureTLS
	HTTPClient *http.Client
}

// NewClient creates a new FlightAware AeroAPI client. log may be nil.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		if cfg.InsecureTLS {
			transport := http.DefaultTransport.(*http.Transport).Clone()
			transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
			cfg.HTTPClient.Transport = transport
		}
	}

	// Convert requests per hour to a token bucket (burst of 1)
	var limiter *rate.Limiter
	if cfg.RequestsPerHour > 0 {
		requestsPerSecond := float64(cfg.RequestsPerHour) / 3600.0
		limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}

	return &Client{
		apiKey:      cfg.APIKey,
		httpClient:  cfg.HTTPClient,
		rateLimiter: limiter,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		logger:      logger.OrNop(log).Named("aeroapi"),
	}
}

// GetFlightInfo resolves ident via GET /flights/{ident} and returns the first
// (most recent) flight.
//
// Errors are classified with fetcherr: a missing key is ErrAuth, 404 or an
// empty result is ErrNotFound, other statuses are ErrTransport, and a body
// that does not decode is ErrParse. When the hourly quota is spent the call
// fails with ErrBudgetExceeded without touching the network.
func (c *Client) GetFlightInfo(ctx context.Context, ident string) (FlightMetadata, error) {
	ident = strings.TrimSpace(ident)
	endpoint := fmt.Sprintf("%s/flights/%s", c.baseURL, url.PathEscape(ident))

	fail := func(kind error, cause error) (FlightMetadata, error) {
		return FlightMetadata{}, fetcherr.New(kind, "flight-info", cause).WithIdent(ident).WithEndpoint(endpoint)
	}

	if c.apiKey == "" {
		return fail(fetcherr.ErrAuth, errMissingAPIKey)
	}

	if c.rateLimiter != nil {
		// The producer never waits on the quota; the ident is retried next pass
		r := c.rateLimiter.Reserve()
		if d := r.Delay(); d > 0 {
			r.Cancel()
			return fail(fetcherr.ErrBudgetExceeded, fmt.Errorf("%w, next slot in %v", errQuotaReached, d.Round(time.Second)))
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fail(fetcherr.ErrTransport, err)
	}
	req.Header.Set("x-apikey", c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fail(fetcherr.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrTransport, "flight-info", fmt.Errorf("read response: %w", err)).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrNotFound, "flight-info", nil).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrAuth, "flight-info", errors.New(snippet(body))).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		rle := adsb.NewRateLimitError(resp, "AeroAPI rate limit")
		c.logger.Warn("rate limited", logger.String("ident", ident), logger.Duration("retry_after", rle.RetryAfter))
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrTransport, "flight-info", rle).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrTransport, "flight-info", errors.New(snippet(body))).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	var response flightsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrParse, "flight-info", err).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	if len(response.Flights) == 0 {
		return FlightMetadata{}, fetcherr.New(fetcherr.ErrNotFound, "flight-info", nil).
			WithIdent(ident).WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	meta := response.Flights[0].toMetadata(ident)
	c.logger.Debug("flight resolved",
		logger.String("ident", ident),
		logger.String("operator_icao", meta.OperatorICAO),
		logger.String("aircraft_type", meta.AircraftType),
		logger.String("route", meta.Route()))

	return meta, nil
}

func snippet(body []byte) string {
	const max = 200
	s := strings.TrimSpace(string(body))
	if len(s) > max {
		return s[:max] + "..."
	}
	if s == "" {
		return "<empty>"
	}
	return s
}
