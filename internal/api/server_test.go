package api

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/unklstewy/flightwall/internal/auth"
	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/weather"
)

type fakeCollector struct {
	mu       sync.Mutex
	triggers int
}

func (f *fakeCollector) Stats() collector.Stats {
	return collector.Stats{Passes: 3, Failures: 1, TotalFresh: 5}
}

func (f *fakeCollector) Trigger() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.triggers++
	return f.triggers == 1
}

type fakeWeather struct {
	reading weather.Reading
	err     error
}

func (f fakeWeather) Current(ctx context.Context) (weather.Reading, error) {
	return f.reading, f.err
}

type fakeNames struct{ n int }

type fakeStore struct{ healthy bool }

func (f fakeStore) StoreHealthy(ctx context.Context) bool { return f.healthy }

func (f fakeNames) ReloadNames(ctx context.Context) (int, error) { return f.n, nil }

func newTestServer(t *testing.T, authSvc *auth.Service) (*Server, *handoff.Latest[flightaware.FlightMetadata], *fakeCollector) {
	t.Helper()
	latest := handoff.New[flightaware.FlightMetadata]()
	coll := &fakeCollector{}
	s := New(Options{
		Flights:      latest,
		Collector:    coll,
		Auth:         authSvc,
		PushInterval: 10 * time.Millisecond,
	}, nil)
	return s, latest, coll
}

func flight(ident string, altM float64) flightaware.FlightMetadata {
	f := flightaware.NewFlightMetadata(ident)
	f.Origin = flightaware.Airport{CodeIATA: "MUC"}
	f.Destination = flightaware.Airport{CodeIATA: "FRA"}
	f.BaroAltitudeM = altM
	return f
}

func TestHealth(t *testing.T) {
	s, latest, _ := newTestServer(t, nil)
	latest.Publish([]flightaware.FlightMetadata{flight("DLH1", 1000)}, time.Second)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var body struct {
		Status     string `json:"status"`
		Generation uint64 `json:"generation"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Status != "ok" || body.Generation != 1 {
		t.Errorf("Expected ok at generation 1, got %+v", body)
	}
}

func TestHealthReferenceStore(t *testing.T) {
	tests := []struct {
		name       string
		healthy    bool
		wantCode   int
		wantStatus string
		wantStore  string
	}{
		{"Reachable", true, http.StatusOK, "ok", "ok"},
		{"Unreachable", false, http.StatusServiceUnavailable, "degraded", "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{
				Flights:   handoff.New[flightaware.FlightMetadata](),
				Collector: &fakeCollector{},
				Store:     fakeStore{healthy: tt.healthy},
			}, nil)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))

			if rec.Code != tt.wantCode {
				t.Errorf("Expected %d, got %d", tt.wantCode, rec.Code)
			}
			var body struct {
				Status         string `json:"status"`
				ReferenceStore string `json:"reference_store"`
			}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("Invalid JSON: %v", err)
			}
			if body.Status != tt.wantStatus || body.ReferenceStore != tt.wantStore {
				t.Errorf("Expected %s/%s, got %+v", tt.wantStatus, tt.wantStore, body)
			}
		})
	}
}

func TestGetFlights(t *testing.T) {
	s, latest, _ := newTestServer(t, nil)

	t.Run("Empty before first publish", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights", nil))

		var body FlightsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if body.Count != 0 || body.Flights == nil || body.PublishedAt != nil {
			t.Errorf("Expected empty list without publish time, got %+v", body)
		}
	})

	t.Run("Unknown metrics are null", func(t *testing.T) {
		latest.Publish([]flightaware.FlightMetadata{flight("DLH1", 10668), flight("EZY2", math.NaN())}, time.Second)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/flights", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var body FlightsResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("Invalid JSON: %v", err)
		}
		if body.Count != 2 || body.Generation != 1 {
			t.Fatalf("Expected 2 flights at generation 1, got %+v", body)
		}
		if body.Flights[0].Route != "MUC > FRA" {
			t.Errorf("Expected route MUC > FRA, got %q", body.Flights[0].Route)
		}
		if body.Flights[0].BaroAltitudeM == nil || *body.Flights[0].BaroAltitudeM != 10668 {
			t.Errorf("Expected altitude 10668, got %v", body.Flights[0].BaroAltitudeM)
		}
		if body.Flights[1].BaroAltitudeM != nil {
			t.Errorf("Expected null altitude, got %v", *body.Flights[1].BaroAltitudeM)
		}
		if !strings.Contains(rec.Body.String(), `"velocity_mps":null`) {
			t.Errorf("Expected null velocity in %s", rec.Body.String())
		}
	})
}

func TestGetStats(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))

	var body struct {
		Collector collector.Stats `json:"collector"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("Invalid JSON: %v", err)
	}
	if body.Collector.Passes != 3 || body.Collector.TotalFresh != 5 {
		t.Errorf("Unexpected stats %+v", body.Collector)
	}
}

func TestGetWeather(t *testing.T) {
	tests := []struct {
		name   string
		source WeatherSource
		status int
	}{
		{"Disabled", nil, http.StatusNotFound},
		{"Fresh", fakeWeather{reading: weather.Reading{TemperatureC: 12, Condition: weather.Cloudy, FetchedAt: time.Now()}}, http.StatusOK},
		{"Stale", fakeWeather{reading: weather.Reading{TemperatureC: 12, Condition: weather.Cloudy, FetchedAt: time.Now()}, err: errors.New("timeout")}, http.StatusOK},
		{"Never fetched", fakeWeather{err: errors.New("timeout")}, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Options{Flights: handoff.New[flightaware.FlightMetadata](), Collector: &fakeCollector{}, Weather: tt.source}, nil)

			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/weather", nil))

			if rec.Code != tt.status {
				t.Errorf("Expected %d, got %d", tt.status, rec.Code)
			}
			if tt.status == http.StatusOK && !strings.Contains(rec.Body.String(), `"text":"12°C Cloudy"`) {
				t.Errorf("Expected weather text in %s", rec.Body.String())
			}
		})
	}
}

func TestRefreshOpenWithoutSecret(t *testing.T) {
	s, _, coll := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))

	if rec.Code != http.StatusAccepted {
		t.Errorf("Expected 202, got %d", rec.Code)
	}
	if coll.triggers != 1 {
		t.Errorf("Expected 1 trigger, got %d", coll.triggers)
	}
}

func TestAdminRoutesRequireToken(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	authSvc := auth.NewService(auth.Config{
		JWTSecret:         "secret",
		BCryptCost:        bcrypt.MinCost,
		AdminUser:         "admin",
		AdminPasswordHash: string(hash),
	})
	s, _, coll := newTestServer(t, authSvc)

	t.Run("Missing header", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})

	t.Run("Viewer token", func(t *testing.T) {
		token, _ := authSvc.GenerateToken("kiosk", auth.RoleViewer)
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Login then refresh", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
			strings.NewReader(`{"username":"admin","password":"hunter2"}`)))
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200 from login, got %d: %s", rec.Code, rec.Body.String())
		}
		var login struct {
			Token string `json:"token"`
		}
		json.Unmarshal(rec.Body.Bytes(), &login)

		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.Header.Set("Authorization", "Bearer "+login.Token)
		rec = httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusAccepted {
			t.Errorf("Expected 202, got %d", rec.Code)
		}
		if coll.triggers != 1 {
			t.Errorf("Expected 1 trigger, got %d", coll.triggers)
		}
		if !strings.Contains(rec.Body.String(), `"requested_by":"admin"`) {
			t.Errorf("Expected requester in body, got %s", rec.Body.String())
		}
	})

	t.Run("Viewer cannot reload names", func(t *testing.T) {
		token, _ := authSvc.GenerateToken("kiosk", auth.RoleViewer)
		req := httptest.NewRequest(http.MethodPost, "/api/names/reload", nil)
		req.Header.Set("Authorization", "Bearer "+token)

		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Bad password", func(t *testing.T) {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
			strings.NewReader(`{"username":"admin","password":"nope"}`)))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})
}

func TestLoginDisabled(t *testing.T) {
	s, _, _ := newTestServer(t, nil)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"username":"admin","password":"x"}`)))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503, got %d", rec.Code)
	}
}

func TestReloadNames(t *testing.T) {
	t.Run("Disabled", func(t *testing.T) {
		s, _, _ := newTestServer(t, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/names/reload", nil))
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("Merged", func(t *testing.T) {
		s := New(Options{Flights: handoff.New[flightaware.FlightMetadata](), Collector: &fakeCollector{}, Names: fakeNames{n: 42}}, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/names/reload", nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"merged":42`) {
			t.Errorf("Expected 42 merged, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

func TestWebSocketPushesOnPublish(t *testing.T) {
	s, latest, _ := newTestServer(t, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to dial websocket: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first FlightsResponse
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("Failed to read initial push: %v", err)
	}
	if first.Generation != 0 || first.Count != 0 {
		t.Errorf("Expected empty initial push, got %+v", first)
	}

	latest.Publish([]flightaware.FlightMetadata{flight("DLH1", 1000)}, time.Second)

	var next FlightsResponse
	if err := conn.ReadJSON(&next); err != nil {
		t.Fatalf("Failed to read push after publish: %v", err)
	}
	if next.Generation != 1 || next.Count != 1 || next.Flights[0].Ident != "DLH1" {
		t.Errorf("Expected DLH1 at generation 1, got %+v", next)
	}
}
