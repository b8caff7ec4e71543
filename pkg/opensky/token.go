// Package opensky is a client for the OpenSky Network REST API.
//
// Access requires an OAuth2 client-credentials token. TokenManager caches the
// token and refreshes it a minute before expiry; Client uses it to query
// state vectors inside a geofence.
package opensky

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
	"sync"
	"time"

	"github.com/unklstewy/flightwall/pkg/fetcherr"
	"github.com/unklstewy/flightwall/pkg/logger"
)

const (
	// TokenSafetySkew is how long before expiry a cached token stops being used.
	TokenSafetySkew = 60 * time.Second

	// DefaultTokenLifetime applies when the token response omits expires_in.
	DefaultTokenLifetime = 1800 * time.Second

	// DefaultTokenURL is OpenSky's Keycloak client-credentials endpoint.
	DefaultTokenURL = "https://auth.opensky-network.org/auth/realms/opensky-network/protocol/openid-connect/token"
)

var errMissingCredentials = errors.New("client_id and client_secret are required")

// TokenConfig configures a TokenManager.
type TokenConfig struct {
	// TokenURL is the OAuth2 token endpoint (default: DefaultTokenURL)
	TokenURL string

	// ClientID and ClientSecret are the API client credentials
	ClientID     string
	ClientSecret string

	// Timeout is the token request timeout (default: 15 seconds)
	Timeout time.Duration

	// InsecureTLS disables certificate verification. Development only.
	InsecureTLS bool

	// HTTPClient overrides the client built from Timeout/InsecureTLS
	HTTPClient *http.Client

	// Now overrides the clock, for tests
	Now func() time.Time
}

// TokenManager obtains and caches an OAuth2 bearer token.
// A failed refresh leaves the previously cached token untouched.
type TokenManager struct {
	tokenURL     string
	clientID     string
	clientSecret string
	httpClient   *http.Client
	now          func() time.Time
	logger       *logger.Logger

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	ExpiresIn   *float64 `json:"expires_in"`
}

// NewTokenManager creates a token manager. log may be nil.
func NewTokenManager(cfg TokenConfig, log *logger.Logger) *TokenManager {
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = newHTTPClient(cfg.Timeout, cfg.InsecureTLS)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &TokenManager{
		tokenURL:     cfg.TokenURL,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		httpClient:   cfg.HTTPClient,
		now:          cfg.Now,
		logger:       logger.OrNop(log).Named("opensky-auth"),
	}
}

// EnsureToken returns a bearer token valid for at least TokenSafetySkew.
// forceRefresh bypasses the cache, e.g. after the API answered 401.
func (m *TokenManager) EnsureToken(ctx context.Context, forceRefresh bool) (string, error) {
	if m.clientID == "" || m.clientSecret == "" {
		return "", fetcherr.New(fetcherr.ErrAuth, "token", errMissingCredentials)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !forceRefresh && m.token != "" && now.Add(TokenSafetySkew).Before(m.expiresAt) {
		m.logger.Debug("using cached token",
			logger.Duration("refresh_in", m.expiresAt.Sub(now)-TokenSafetySkew))
		return m.token, nil
	}

	token, lifetime, err := m.requestToken(ctx)
	if err != nil {
		m.logger.Warn("token request failed", logger.Bool("forced", forceRefresh), logger.Error(err))
		return "", err
	}

	// Expiry is measured from when the request was issued
	m.token = token
	m.expiresAt = now.Add(lifetime)
	m.logger.Info("token obtained",
		logger.Bool("forced", forceRefresh),
		logger.Duration("lifetime", lifetime),
		logger.Time("expires_at", m.expiresAt))

	return m.token, nil
}

func (m *TokenManager) requestToken(ctx context.Context) (string, time.Duration, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", m.clientID)
	form.Set("client_secret", m.clientSecret)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", err).WithEndpoint(m.tokenURL)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", err).WithEndpoint(m.tokenURL)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", err).
			WithEndpoint(m.tokenURL).WithStatus(resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", fmt.Errorf("unexpected response: %s", snippet(body))).
			WithEndpoint(m.tokenURL).WithStatus(resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", fmt.Errorf("%w: %v", fetcherr.ErrParse, err)).
			WithEndpoint(m.tokenURL).WithStatus(resp.StatusCode)
	}
	if tr.AccessToken == "" {
		return "", 0, fetcherr.New(fetcherr.ErrAuth, "token", fmt.Errorf("%w: access_token missing", fetcherr.ErrParse)).
			WithEndpoint(m.tokenURL).WithStatus(resp.StatusCode)
	}

	lifetime := DefaultTokenLifetime
	if tr.ExpiresIn != nil && *tr.ExpiresIn > 0 {
		lifetime = time.Duration(*tr.ExpiresIn * float64(time.Second))
	}

	return tr.AccessToken, lifetime, nil
}

func newHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	client := &http.Client{Timeout: timeout}
	if insecure {
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in via config
		client.Transport = transport
	}
	return client
}

// snippet keeps error messages bounded when a server returns an HTML page.
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
