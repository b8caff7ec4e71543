package opensky

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/unklstewy/flightwall/pkg/adsb"
	"github.com/unklstewy/flightwall/pkg/coordinates"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/logger"
)

// DefaultBaseURL is the public OpenSky API root.
const DefaultBaseURL = "https://opensky-network.org"

// stateVectorFields is the minimum length of a states/all entry.
const stateVectorFields = 17

// errTruncatedBody marks a response that ended before the JSON did.
var errTruncatedBody = errors.New("truncated response body")

// TokenSource supplies bearer tokens. *TokenManager implements it.
type TokenSource interface {
	EnsureToken(ctx context.Context, forceRefresh bool) (string, error)
}

// Config configures a Client.
type Config struct {
	// BaseURL is the API root (default: DefaultBaseURL)
	BaseURL string

	// Timeout is the states request timeout (default: 15 seconds)
	Timeout time.Duration

	// InsecureTLS disables certificate verification. Development only.
	InsecureTLS bool

	// HTTPClient overrides the client built from Timeout/InsecureTLS
	HTTPClient *http.Client

	// TruncationRetry controls the single re-request after a cut-off body.
	// The zero value uses one retry after 250ms.
	TruncationRetry adsb.RetryConfig
}

// Client fetches aircraft state vectors from OpenSky.
// It implements adsb.PositionSource.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	retry      adsb.RetryConfig
	logger     *logger.Logger
}

// statesResponse is the states/all envelope. Each state is a positional array.
type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}

// NewClient creates an OpenSky client. log may be nil.
func NewClient(cfg Config, tokens TokenSource, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient(cfg.Timeout, cfg.InsecureTLS)
	}
	if cfg.TruncationRetry.MaxRetries == 0 {
		cfg.TruncationRetry = adsb.RetryConfig{
			MaxRetries:   1,
			InitialDelay: 250 * time.Millisecond,
			MaxDelay:     250 * time.Millisecond,
			Multiplier:   1.0,
		}
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: cfg.HTTPClient,
		tokens:     tokens,
		retry:      cfg.TruncationRetry,
		logger:     logger.OrNop(log).Named("opensky"),
	}
	c.retry.Retryable = func(err error) bool { return errors.Is(err, errTruncatedBody) }
	c.retry.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.logger.Warn("re-requesting states after truncated body",
			logger.Int("attempt", attempt), logger.Duration("delay", delay), logger.Error(err))
	}
	return c
}

// FetchPositions returns all aircraft within radiusKm of center.
//
// The upstream query uses a bounding box; the great-circle distance is the
// authoritative cut. Records without coordinates are dropped. A 401 forces a
// token refresh and one retry.
func (c *Client) FetchPositions(ctx context.Context, center coordinates.Geographic, radiusKm float64) ([]adsb.PositionRecord, error) {
	token, err := c.tokens.EnsureToken(ctx, false)
	if err != nil {
		return nil, err
	}

	box := coordinates.BoundingBox(center, radiusKm)
	endpoint := c.statesURL(box)

	// Shared by the truncation re-request so a pass refreshes at most once
	refreshed := false
	body, err := adsb.RetryWithBackoffResult(ctx, c.retry, func() ([]byte, error) {
		b, used, err := c.getStates(ctx, endpoint, token, &refreshed)
		if used != "" {
			token = used
		}
		return b, err
	})
	if err != nil {
		return nil, err
	}

	records, raw, err := parseStates(body)
	if err != nil {
		return nil, fetcherr.New(fetcherr.ErrParse, "states", err).WithEndpoint(endpoint)
	}

	kept := make([]adsb.PositionRecord, 0, len(records))
	for _, rec := range records {
		if !rec.HasPosition() {
			continue
		}
		rec.DistanceKm = coordinates.DistanceKm(center, rec.Position())
		if rec.DistanceKm > radiusKm {
			continue
		}
		rec.BearingDeg = coordinates.Bearing(center, rec.Position())
		kept = append(kept, rec)
	}

	c.logger.Debug("states fetched",
		logger.Int("raw", raw),
		logger.Int("parsed", len(records)),
		logger.Int("in_radius", len(kept)))

	return kept, nil
}

// getStates performs the GET, refreshing the token on 401 unless refreshed
// is already set. It returns the token that was finally used so a retry
// reuses it.
func (c *Client) getStates(ctx context.Context, endpoint, token string, refreshed *bool) ([]byte, string, error) {
	resp, err := c.doGet(ctx, endpoint, token)
	if err != nil {
		return nil, token, err
	}

	if resp.StatusCode == http.StatusUnauthorized && !*refreshed {
		*refreshed = true
		resp.Body.Close()
		c.logger.Info("states request unauthorized, refreshing token")

		token, err = c.tokens.EnsureToken(ctx, true)
		if err != nil {
			return nil, "", err
		}
		resp, err = c.doGet(ctx, endpoint, token)
		if err != nil {
			return nil, token, err
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		rle := adsb.NewRateLimitError(resp, "OpenSky credits exhausted")
		c.logger.Warn("rate limited",
			logger.Duration("retry_after", rle.RetryAfter),
			logger.Int("credits_remaining", rle.Headers.Remaining))
		return nil, token, fetcherr.New(fetcherr.ErrTransport, "states", rle).
			WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		return nil, token, fetcherr.New(fetcherr.ErrTransport, "states", nil).
			WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("%w: %v", errTruncatedBody, err)
			return nil, token, fetcherr.New(fetcherr.ErrParse, "states", err).WithEndpoint(endpoint)
		}
		return nil, token, fetcherr.New(fetcherr.ErrTransport, "states", err).WithEndpoint(endpoint)
	}

	// A body cut short on a chunk boundary reads cleanly but is not valid JSON
	if !json.Valid(body) && isIncompleteJSON(body) {
		err = fmt.Errorf("%w: %d bytes", errTruncatedBody, len(body))
		return nil, token, fetcherr.New(fetcherr.ErrParse, "states", err).WithEndpoint(endpoint)
	}

	return body, token, nil
}

func (c *Client) doGet(ctx context.Context, endpoint, token string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fetcherr.New(fetcherr.ErrTransport, "states", err).WithEndpoint(endpoint)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fetcherr.New(fetcherr.ErrTransport, "states", err).WithEndpoint(endpoint)
	}
	return resp, nil
}

func (c *Client) statesURL(box coordinates.Box) string {
	return fmt.Sprintf("%s/api/states/all?lamin=%.6f&lamax=%.6f&lomin=%.6f&lomax=%.6f",
		c.baseURL, box.LatMin, box.LatMax, box.LonMin, box.LonMax)
}

// parseStates decodes the envelope and every well-formed state vector.
// It also returns the number of raw entries before filtering.
func parseStates(body []byte) ([]adsb.PositionRecord, int, error) {
	var envelope statesResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, 0, err
	}

	records := make([]adsb.PositionRecord, 0, len(envelope.States))
	for _, raw := range envelope.States {
		var fields []any
		if err := json.Unmarshal(raw, &fields); err != nil {
			continue // not an array
		}
		if len(fields) < stateVectorFields {
			continue
		}
		records = append(records, stateToRecord(fields))
	}
	return records, len(envelope.States), nil
}

// stateToRecord maps the positional state vector onto a PositionRecord.
// Index order follows the OpenSky REST documentation.
func stateToRecord(s []any) adsb.PositionRecord {
	rec := adsb.NewPositionRecord()

	rec.ICAO24 = toString(s[0])
	rec.Callsign = strings.TrimSpace(toString(s[1]))
	rec.OriginCountry = toString(s[2])
	rec.TimePosition = toInt64(s[3])
	rec.LastContact = toInt64(s[4])
	rec.Longitude = toFloat(s[5])
	rec.Latitude = toFloat(s[6])
	rec.BaroAltitude = toFloat(s[7])
	rec.OnGround = toBool(s[8])
	rec.Velocity = toFloat(s[9])
	rec.Heading = toFloat(s[10])
	rec.VerticalRate = toFloat(s[11])
	// s[12] is the receiver serial list, not needed downstream
	rec.GeoAltitude = toFloat(s[13])
	rec.Squawk = toString(s[14])
	rec.SPI = toBool(s[15])
	rec.PositionSource = int(toInt64(s[16]))

	return rec
}

func toString(v any) string {
	s, _ := v.(string)
	return s
}

func toBool(v any) bool {
	b, _ := v.(bool)
	return b
}

// toFloat returns NaN for null or non-numeric values.
func toFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func toInt64(v any) int64 {
	if n, ok := v.(float64); ok {
		return int64(n)
	}
	return 0
}

// isIncompleteJSON reports whether decoding stopped because input ran out.
func isIncompleteJSON(body []byte) bool {
	var v any
	err := json.Unmarshal(body, &v)
	if err == nil {
		return false
	}
	var syn *json.SyntaxError
	if errors.As(err, &syn) {
		return syn.Offset >= int64(len(body)) || strings.Contains(err.Error(), "unexpected end of JSON input")
	}
	return false
}
