// Package weather fetches current conditions from Open-Meteo for the idle
// screen shown when no aircraft are overhead.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/unklstewy/flightwall/pkg/coordinates"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/logger"
)

const (
	// DefaultBaseURL is the public Open-Meteo API root
	DefaultBaseURL = "https://api.open-meteo.com"

	// DefaultRefresh is how long a reading is reused
	DefaultRefresh = 10 * time.Minute
)

// Condition is a coarse weather category.
type Condition string

const (
	Sunny           Condition = "Sunny"
	Cloudy          Condition = "Cloudy"
	Fog             Condition = "Fog"
	Drizzle         Condition = "Drizzle"
	FreezingDrizzle Condition = "Freezing Drizzle"
	Rain            Condition = "Rain"
	Snow            Condition = "Snow"
	Unknown         Condition = "Unknown"
)

// ConditionForCode maps a WMO weather interpretation code to a Condition.
func ConditionForCode(code int) Condition {
	switch {
	case code == 0:
		return Sunny
	case code >= 1 && code <= 3:
		return Cloudy
	case code == 45 || code == 48:
		return Fog
	case code >= 51 && code <= 55:
		return Drizzle
	case code == 56 || code == 57:
		return FreezingDrizzle
	case code >= 61 && code <= 67, code >= 80 && code <= 82:
		return Rain
	case code >= 71 && code <= 77, code == 85, code == 86:
		return Snow
	default:
		return Unknown
	}
}

// Reading is one observation. TemperatureC is NaN when not reported.
type Reading struct {
	TemperatureC float64
	Code         int
	Condition    Condition
	FetchedAt    time.Time
}

// String renders the reading as "12°C Cloudy".
func (r Reading) String() string {
	if math.IsNaN(r.TemperatureC) {
		return string(r.Condition)
	}
	return fmt.Sprintf("%.0f°C %s", r.TemperatureC, r.Condition)
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Location   coordinates.Geographic
	Refresh    time.Duration
	Timeout    time.Duration
	HTTPClient *http.Client
	Now        func() time.Time
}

// Client returns the current reading for a fixed location, reusing the
// previous one until it is older than the refresh interval. It is safe for
// concurrent use.
type Client struct {
	baseURL    string
	location   coordinates.Geographic
	refresh    time.Duration
	httpClient *http.Client
	now        func() time.Time
	logger     *logger.Logger

	mu   sync.Mutex
	last *Reading
}

type forecastResponse struct {
	Current struct {
		Temperature *float64 `json:"temperature_2m"`
		WeatherCode *int     `json:"weathercode"`
	} `json:"current"`
}

// NewClient creates a weather client. log may be nil.
func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Refresh <= 0 {
		cfg.Refresh = DefaultRefresh
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		location:   cfg.Location,
		refresh:    cfg.Refresh,
		httpClient: cfg.HTTPClient,
		now:        cfg.Now,
		logger:     logger.OrNop(log).Named("weather"),
	}
}

// Current returns the cached reading while it is fresh, otherwise fetches a
// new one. On failure the stale reading, if any, is returned with the error.
func (c *Client) Current(ctx context.Context) (Reading, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.last != nil {
		age := now.Sub(c.last.FetchedAt)
		if age >= 0 && age < c.refresh {
			return *c.last, nil
		}
	}

	reading, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("weather fetch failed", logger.Error(err))
		if c.last != nil {
			return *c.last, err
		}
		return Reading{}, err
	}

	reading.FetchedAt = now
	c.last = &reading
	c.logger.Debug("weather updated", logger.String("reading", reading.String()))
	return reading, nil
}

func (c *Client) fetch(ctx context.Context) (Reading, error) {
	endpoint := fmt.Sprintf("%s/v1/forecast?latitude=%.6f&longitude=%.6f&current=temperature_2m,weathercode",
		c.baseURL, c.location.Latitude, c.location.Longitude)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Reading{}, fetcherr.New(fetcherr.ErrTransport, "weather", err).WithEndpoint(endpoint)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Reading{}, fetcherr.New(fetcherr.ErrTransport, "weather", err).WithEndpoint(endpoint)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Reading{}, fetcherr.New(fetcherr.ErrTransport, "weather", nil).
			WithEndpoint(endpoint).WithStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Reading{}, fetcherr.New(fetcherr.ErrTransport, "weather", err).WithEndpoint(endpoint)
	}

	var fr forecastResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return Reading{}, fetcherr.New(fetcherr.ErrParse, "weather", err).WithEndpoint(endpoint)
	}
	if fr.Current.Temperature == nil && fr.Current.WeatherCode == nil {
		return Reading{}, fetcherr.New(fetcherr.ErrParse, "weather", fmt.Errorf("no current conditions")).
			WithEndpoint(endpoint)
	}

	reading := Reading{TemperatureC: math.NaN(), Code: -1, Condition: Unknown}
	if fr.Current.Temperature != nil {
		reading.TemperatureC = *fr.Current.Temperature
	}
	if fr.Current.WeatherCode != nil {
		reading.Code = *fr.Current.WeatherCode
		reading.Condition = ConditionForCode(reading.Code)
	}
	return reading, nil
}
