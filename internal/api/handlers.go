package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/unklstewy/flightwall/internal/auth"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
)

// FlightResponse is one flight as served to clients. Unknown metrics are null.
type FlightResponse struct {
	flightaware.FlightMetadata

	Route         string   `json:"route"`
	BaroAltitudeM *float64 `json:"baro_altitude_m"`
	VelocityMps   *float64 `json:"velocity_mps"`
	DistanceKm    *float64 `json:"distance_km"`
	BearingDeg    *float64 `json:"bearing_deg"`
}

// FlightsResponse is the body of GET /api/flights and every websocket push.
type FlightsResponse struct {
	Generation  uint64           `json:"generation"`
	PublishedAt *time.Time       `json:"published_at"`
	Count       int              `json:"count"`
	Flights     []FlightResponse `json:"flights"`
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func newFlightsResponse(snap handoff.Snapshot[flightaware.FlightMetadata]) FlightsResponse {
	resp := FlightsResponse{
		Generation: snap.Generation,
		Count:      len(snap.Items),
		Flights:    make([]FlightResponse, len(snap.Items)),
	}
	if !snap.PublishedAt.IsZero() {
		t := snap.PublishedAt
		resp.PublishedAt = &t
	}
	for i, f := range snap.Items {
		resp.Flights[i] = FlightResponse{
			FlightMetadata: f,
			Route:          f.Route(),
			BaroAltitudeM:  nullable(f.BaroAltitudeM),
			VelocityMps:    nullable(f.VelocityMps),
			DistanceKm:     nullable(f.DistanceKm),
			BearingDeg:     nullable(f.BearingDeg),
		}
	}
	return resp
}

// handleHealth reports liveness and the current generation
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	gen, ok := s.opts.Flights.Generation(s.opts.ReadWait)
	body := map[string]interface{}{
		"status":     "ok",
		"generation": gen,
	}
	if !ok {
		body["generation"] = s.flights.Snapshot().Generation
	}

	status := http.StatusOK
	if s.opts.Store != nil {
		if s.opts.Store.StoreHealthy(r.Context()) {
			body["reference_store"] = "ok"
		} else {
			// The producer keeps running on the tables it already has
			body["status"] = "degraded"
			body["reference_store"] = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, status, body)
}

// handleGetFlights returns the latest published flight list
func (s *Server) handleGetFlights(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, newFlightsResponse(s.flights.Snapshot()))
}

// handleGetStats returns the collector statistics
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"collector":      s.opts.Collector.Stats(),
		"handoff_drops":  s.opts.Flights.Dropped(),
		"handoff_misses": s.flights.Misses(),
	})
}

// handleGetWeather returns the current weather at the configured location
func (s *Server) handleGetWeather(w http.ResponseWriter, r *http.Request) {
	if s.opts.Weather == nil {
		respondError(w, http.StatusNotFound, "weather is disabled")
		return
	}

	reading, err := s.opts.Weather.Current(r.Context())
	if err != nil && reading.FetchedAt.IsZero() {
		s.logger.Warn("weather unavailable", logger.Error(err))
		respondError(w, http.StatusBadGateway, "weather unavailable")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"temperature_c": nullable(reading.TemperatureC),
		"code":          reading.Code,
		"condition":     reading.Condition,
		"text":          reading.String(),
		"fetched_at":    reading.FetchedAt,
		"stale":         err != nil,
	})
}

// handleLogin exchanges the admin credentials for a token
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.opts.Auth.Login(req.Username, req.Password)
	switch {
	case errors.Is(err, auth.ErrLoginDisabled):
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	case errors.Is(err, auth.ErrInvalidCredentials):
		s.logger.Warn("failed login", logger.String("username", req.Username))
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	case err != nil:
		respondError(w, http.StatusInternalServerError, "failed to generate token")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"token": token,
		"role":  auth.RoleAdmin,
	})
}

// handleRefresh asks the collector for an extra pass
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	queued := s.opts.Collector.Trigger()
	body := map[string]interface{}{
		"queued": queued,
	}
	if claims, ok := claimsFrom(r.Context()); ok {
		body["requested_by"] = claims.Username
		s.logger.Info("refresh requested", logger.String("username", claims.Username), logger.Bool("queued", queued))
	}
	respondJSON(w, http.StatusAccepted, body)
}

// handleReloadNames reloads the name tables from the reference store
func (s *Server) handleReloadNames(w http.ResponseWriter, r *http.Request) {
	if s.opts.Names == nil {
		respondError(w, http.StatusNotFound, "reference store is disabled")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	n, err := s.opts.Names.ReloadNames(ctx)
	if err != nil {
		s.logger.Warn("name reload failed", logger.Error(err))
		respondError(w, http.StatusBadGateway, "failed to reload names")
		return
	}

	fields := []logger.Field{logger.Int("merged", n)}
	if claims, ok := claimsFrom(r.Context()); ok {
		fields = append(fields, logger.String("username", claims.Username))
	}
	s.logger.Info("name tables reloaded", fields...)

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"merged": n,
	})
}

type ctxKey int

const claimsKey ctxKey = iota

// claimsFrom returns the token claims stored by requireRole. There are none
// when the admin routes are open.
func claimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

// requireRole rejects requests without a bearer token whose role passes
// allowed. Without a signing secret the admin routes are open.
func (s *Server) requireRole(allowed func(role string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !s.opts.Auth.Enabled() {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				respondError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				respondError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			claims, err := s.opts.Auth.ValidateToken(token)
			if err != nil {
				respondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			if !allowed(claims.Role) {
				respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
