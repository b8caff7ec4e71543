package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Location    LocationConfig    `json:"location" yaml:"location" toml:"location"`
	Fetch       FetchConfig       `json:"fetch" yaml:"fetch" toml:"fetch"`
	OpenSky     OpenSkyConfig     `json:"opensky" yaml:"opensky" toml:"opensky"`
	FlightAware FlightAwareConfig `json:"flightaware" yaml:"flightaware" toml:"flightaware"`
	Display     DisplayConfig     `json:"display" yaml:"display" toml:"display"`
	Weather     WeatherConfig     `json:"weather" yaml:"weather" toml:"weather"`
	Database    DatabaseConfig    `json:"database" yaml:"database" toml:"database"`
	Server      ServerConfig      `json:"server" yaml:"server" toml:"server"`
	Logging     LoggingConfig     `json:"logging" yaml:"logging" toml:"logging"`
}

// LocationConfig is the centre of the watched area.
type LocationConfig struct {
	// Name is a friendly identifier shown by the displays
	Name string `json:"name" yaml:"name" toml:"name"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude" yaml:"latitude" toml:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude" yaml:"longitude" toml:"longitude"`

	// RadiusKm is the great-circle radius around the centre
	RadiusKm float64 `json:"radius_km" yaml:"radius_km" toml:"radius_km"`
}

// FetchConfig controls the producer cadence and per-pass limits.
type FetchConfig struct {
	// IntervalSeconds is the time between fetch passes.
	// OpenSky's free tier allows ~4000 requests/month, so 30s is a sane floor.
	IntervalSeconds int `json:"interval_seconds" yaml:"interval_seconds" toml:"interval_seconds"`

	// PerPassBudget caps fresh metadata calls per pass. Cache hits are free.
	PerPassBudget int `json:"per_pass_budget" yaml:"per_pass_budget" toml:"per_pass_budget"`

	// CacheTTLSeconds is how long enriched metadata stays valid
	CacheTTLSeconds int `json:"cache_ttl_seconds" yaml:"cache_ttl_seconds" toml:"cache_ttl_seconds"`

	// PublishTimeoutMs bounds how long the producer waits to publish a pass
	PublishTimeoutMs int `json:"publish_timeout_ms" yaml:"publish_timeout_ms" toml:"publish_timeout_ms"`

	// ReadTimeoutMs bounds how long a consumer waits to read the snapshot
	ReadTimeoutMs int `json:"read_timeout_ms" yaml:"read_timeout_ms" toml:"read_timeout_ms"`
}

// OpenSkyConfig contains OpenSky Network API settings.
type OpenSkyConfig struct {
	// BaseURL is the API root (e.g., "https://opensky-network.org")
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`

	// TokenURL is the OAuth2 client-credentials endpoint
	TokenURL string `json:"token_url" yaml:"token_url" toml:"token_url"`

	// ClientID and ClientSecret should be loaded from environment
	ClientID     string `json:"client_id" yaml:"client_id" toml:"client_id"`
	ClientSecret string `json:"client_secret" yaml:"client_secret" toml:"client_secret"`

	// TimeoutSeconds applies to both the token and the states request
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`

	// InsecureTLS disables certificate verification. Development only.
	InsecureTLS bool `json:"insecure_tls" yaml:"insecure_tls" toml:"insecure_tls"`
}

// FlightAwareConfig contains FlightAware AeroAPI settings.
type FlightAwareConfig struct {
	// BaseURL is the AeroAPI root (e.g., "https://aeroapi.flightaware.com/aeroapi")
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`

	// APIKey is the FlightAware API key for AeroAPI v4
	// Sign up at: https://www.flightaware.com/aeroapi/
	APIKey string `json:"api_key" yaml:"api_key" toml:"api_key"`

	// RequestsPerHour limits the API call rate. 0 disables the limiter.
	RequestsPerHour int `json:"requests_per_hour" yaml:"requests_per_hour" toml:"requests_per_hour"`

	// TimeoutSeconds is the per-request timeout
	TimeoutSeconds int `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`

	// InsecureTLS disables certificate verification. Development only.
	InsecureTLS bool `json:"insecure_tls" yaml:"insecure_tls" toml:"insecure_tls"`
}

// DisplayConfig controls the terminal consumers.
type DisplayConfig struct {
	// CycleSeconds is how long each flight card stays on screen
	CycleSeconds int `json:"cycle_seconds" yaml:"cycle_seconds" toml:"cycle_seconds"`

	// TickMs is the redraw interval
	TickMs int `json:"tick_ms" yaml:"tick_ms" toml:"tick_ms"`

	// AltitudeFeet selects feet instead of metres
	AltitudeFeet bool `json:"altitude_feet" yaml:"altitude_feet" toml:"altitude_feet"`

	// SpeedKts selects knots instead of km/h
	SpeedKts bool `json:"speed_kts" yaml:"speed_kts" toml:"speed_kts"`

	// TimeZone is the IANA zone used by the idle clock (e.g., "Europe/Berlin")
	TimeZone string `json:"timezone" yaml:"timezone" toml:"timezone"`
}

// WeatherConfig controls the idle-screen weather line.
type WeatherConfig struct {
	// Enabled turns the open-meteo lookup on
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// BaseURL is the forecast API root
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`

	// RefreshMinutes is how long a reading is reused
	RefreshMinutes int `json:"refresh_minutes" yaml:"refresh_minutes" toml:"refresh_minutes"`
}

// DatabaseConfig contains the optional reference-data store settings.
// Only airline and aircraft name tables live there; flight data is never stored.
type DatabaseConfig struct {
	// Enabled turns the name-table overlay on
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Host is the database server hostname
	Host string `json:"host" yaml:"host" toml:"host"`

	// Port is the database server port
	Port int `json:"port" yaml:"port" toml:"port"`

	// Database is the database name
	Database string `json:"database" yaml:"database" toml:"database"`

	// Username for database authentication
	Username string `json:"username" yaml:"username" toml:"username"`

	// Password for database authentication (should be loaded from environment)
	Password string `json:"password" yaml:"password" toml:"password"`

	// SSLMode for PostgreSQL connections (disable, require, verify-ca, verify-full)
	SSLMode string `json:"ssl_mode" yaml:"ssl_mode" toml:"ssl_mode"`

	// MaxOpenConns is the maximum number of open connections
	MaxOpenConns int `json:"max_open_conns" yaml:"max_open_conns" toml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections
	MaxIdleConns int `json:"max_idle_conns" yaml:"max_idle_conns" toml:"max_idle_conns"`
}

// ServerConfig contains the status API configuration.
type ServerConfig struct {
	// Enabled starts the HTTP API alongside the producer
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`

	// Host is the server bind address (default: "0.0.0.0")
	Host string `json:"host" yaml:"host" toml:"host"`

	// Port is the HTTP server port (default: 8080)
	Port int `json:"port" yaml:"port" toml:"port"`

	// JWTSecret signs admin tokens. Empty leaves the admin endpoints open.
	JWTSecret string `json:"jwt_secret" yaml:"jwt_secret" toml:"jwt_secret"`

	// AdminUser and AdminPasswordHash (bcrypt) are the login for /api/login.
	// Generate the hash with `flightwall-server -hash-password`.
	AdminUser         string `json:"admin_user" yaml:"admin_user" toml:"admin_user"`
	AdminPasswordHash string `json:"admin_password_hash" yaml:"admin_password_hash" toml:"admin_password_hash"`

	// TokenHours is the lifetime of issued admin tokens (default: 24)
	TokenHours int `json:"token_hours" yaml:"token_hours" toml:"token_hours"`

	// AllowedOrigins for CORS
	AllowedOrigins []string `json:"allowed_origins" yaml:"allowed_origins" toml:"allowed_origins"`
}

// LoggingConfig mirrors logger.Config.
type LoggingConfig struct {
	Level      string `json:"level" yaml:"level" toml:"level"`
	Format     string `json:"format" yaml:"format" toml:"format"`
	File       string `json:"file" yaml:"file" toml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb" toml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups" toml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days" toml:"max_age_days"`
}

// Load reads configuration from a JSON or YAML file (chosen by extension).
// If the file doesn't exist, the defaults are used. A .env file next to the
// config file is loaded first; variables already set in the process win.
// Environment overrides are applied last.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		// defaults only
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnvironmentOverrides()

	return cfg, nil
}

// Save writes the configuration as JSON, YAML or TOML, chosen by extension.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	switch format(path) {
	case formatYAML:
		data, err = yaml.Marshal(c)
	case formatTOML:
		var buf bytes.Buffer
		err = toml.NewEncoder(&buf).Encode(c)
		data = buf.Bytes()
	default:
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Location: LocationConfig{
			Name:      "Munich",
			Latitude:  48.1154525,
			Longitude: 11.7358584,
			RadiusKm:  18.0,
		},
		Fetch: FetchConfig{
			IntervalSeconds:  30,
			PerPassBudget:    10,
			CacheTTLSeconds:  60,
			PublishTimeoutMs: 200,
			ReadTimeoutMs:    5,
		},
		OpenSky: OpenSkyConfig{
			BaseURL:        "https://opensky-network.org",
			TokenURL:       "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token",
			TimeoutSeconds: 15,
		},
		FlightAware: FlightAwareConfig{
			BaseURL:         "https://aeroapi.flightaware.com/aeroapi",
			RequestsPerHour: 0,
			TimeoutSeconds:  10,
		},
		Display: DisplayConfig{
			CycleSeconds: 3,
			TickMs:       50,
			AltitudeFeet: false,
			SpeedKts:     false,
			TimeZone:     "Europe/Berlin",
		},
		Weather: WeatherConfig{
			Enabled:        false,
			BaseURL:        "https://api.open-meteo.com",
			RefreshMinutes: 10,
		},
		Database: DatabaseConfig{
			Enabled:      false,
			Host:         "localhost",
			Port:         5432,
			Database:     "flightwall",
			Username:     "flightwall",
			SSLMode:      "disable",
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		Server: ServerConfig{
			Enabled:        false,
			Host:           "0.0.0.0",
			Port:           8080,
			AdminUser:      "admin",
			TokenHours:     24,
			AllowedOrigins: []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Validate checks that the values the pipeline depends on are in range.
func (c *Config) Validate() error {
	var errs []error

	// Negated comparisons so that NaN fails them
	if !(c.Location.Latitude >= -90 && c.Location.Latitude <= 90) {
		errs = append(errs, fmt.Errorf("location.latitude %v out of range", c.Location.Latitude))
	}
	if !(c.Location.Longitude >= -180 && c.Location.Longitude <= 180) {
		errs = append(errs, fmt.Errorf("location.longitude %v out of range", c.Location.Longitude))
	}
	if !(c.Location.RadiusKm > 0) || math.IsInf(c.Location.RadiusKm, 0) {
		errs = append(errs, fmt.Errorf("location.radius_km must be positive and finite"))
	}
	if c.Fetch.IntervalSeconds <= 0 {
		errs = append(errs, fmt.Errorf("fetch.interval_seconds must be positive"))
	}
	if c.Fetch.PerPassBudget < 0 {
		errs = append(errs, fmt.Errorf("fetch.per_pass_budget must not be negative"))
	}
	if c.Fetch.CacheTTLSeconds <= 0 {
		errs = append(errs, fmt.Errorf("fetch.cache_ttl_seconds must be positive"))
	}
	if c.FlightAware.RequestsPerHour < 0 {
		errs = append(errs, fmt.Errorf("flightaware.requests_per_hour must not be negative"))
	}
	if c.Display.CycleSeconds <= 0 || c.Display.TickMs <= 0 {
		errs = append(errs, fmt.Errorf("display.cycle_seconds and display.tick_ms must be positive"))
	}
	if c.Display.TimeZone != "" {
		if _, err := time.LoadLocation(c.Display.TimeZone); err != nil {
			errs = append(errs, fmt.Errorf("display.timezone: %w", err))
		}
	}
	if c.Server.Enabled && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.AdminPasswordHash != "" && c.Server.JWTSecret == "" {
		errs = append(errs, fmt.Errorf("server.admin_password_hash requires server.jwt_secret"))
	}

	return errors.Join(errs...)
}

// Interval returns the fetch cadence.
func (f FetchConfig) Interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

// CacheTTL returns the enrichment cache lifetime.
func (f FetchConfig) CacheTTL() time.Duration {
	return time.Duration(f.CacheTTLSeconds) * time.Second
}

// PublishTimeout returns the producer's handoff wait bound.
func (f FetchConfig) PublishTimeout() time.Duration {
	return time.Duration(f.PublishTimeoutMs) * time.Millisecond
}

// ReadTimeout returns the consumer's handoff wait bound.
func (f FetchConfig) ReadTimeout() time.Duration {
	return time.Duration(f.ReadTimeoutMs) * time.Millisecond
}

// Cycle returns the per-flight display duration.
func (d DisplayConfig) Cycle() time.Duration {
	return time.Duration(d.CycleSeconds) * time.Second
}

// Tick returns the display redraw interval.
func (d DisplayConfig) Tick() time.Duration {
	return time.Duration(d.TickMs) * time.Millisecond
}

// TokenDuration returns the admin token lifetime.
func (s ServerConfig) TokenDuration() time.Duration {
	return time.Duration(s.TokenHours) * time.Hour
}

// Addr returns the listen address for the HTTP API.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DSN builds a lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.Username, d.Password, d.Database, d.SSLMode,
	)
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
// This allows secrets to be kept out of config files.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv("FLIGHTWALL_OPENSKY_CLIENT_ID"); v != "" {
		c.OpenSky.ClientID = v
	}
	if v := os.Getenv("FLIGHTWALL_OPENSKY_CLIENT_SECRET"); v != "" {
		c.OpenSky.ClientSecret = v
	}
	if v := os.Getenv("FLIGHTWALL_AEROAPI_KEY"); v != "" {
		c.FlightAware.APIKey = v
	}
	if v := os.Getenv("FLIGHTWALL_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("FLIGHTWALL_JWT_SECRET"); v != "" {
		c.Server.JWTSecret = v
	}
	if v := os.Getenv("FLIGHTWALL_ADMIN_PASSWORD_HASH"); v != "" {
		c.Server.AdminPasswordHash = v
	}
	if v := os.Getenv("FLIGHTWALL_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("FLIGHTWALL_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

const (
	formatJSON = "json"
	formatYAML = "yaml"
	formatTOML = "toml"
)

func unmarshal(path string, data []byte, cfg *Config) error {
	switch format(path) {
	case formatYAML:
		return yaml.Unmarshal(data, cfg)
	case formatTOML:
		return toml.Unmarshal(data, cfg)
	default:
		return json.Unmarshal(data, cfg)
	}
}

// format picks the file format from the extension; anything unknown is JSON.
func format(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return formatYAML
	case ".toml":
		return formatTOML
	default:
		return formatJSON
	}
}
