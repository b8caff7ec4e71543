package flightaware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/unklstewy/flightwall/pkg/adsb"
	"github.com/unklstewy/flightwall/pkg/fetcherr"
)

const dlhFlight = `{
  "flights": [
    {
      "ident": "DLH445",
      "ident_icao": "DLH445",
      "ident_iata": "LH445",
      "fa_flight_id": "DLH445-1700000000-schedule-0001",
      "operator": "DLH",
      "operator_icao": "DLH",
      "operator_iata": "LH",
      "aircraft_type": "A20N",
      "origin": {"code": "EDDM", "code_icao": "EDDM", "code_iata": "MUC", "name": "Munich Int'l", "city": "Munich"},
      "destination": {"code": "EDDF", "code_icao": "EDDF", "code_iata": null, "name": "Frankfurt Intl"}
    },
    {
      "ident": "DLH445",
      "aircraft_type": "A321"
    }
  ],
  "links": null,
  "num_pages": 1
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(Config{BaseURL: server.URL, APIKey: "key"}, nil), server
}

func TestGetFlightInfo(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/flights/DLH445" {
			t.Errorf("Expected path /flights/DLH445, got %s", r.URL.Path)
		}
		if r.Header.Get("x-apikey") != "key" {
			t.Errorf("Expected x-apikey header, got %q", r.Header.Get("x-apikey"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(dlhFlight))
	})

	meta, err := client.GetFlightInfo(context.Background(), " DLH445 ")
	if err != nil {
		t.Fatalf("GetFlightInfo failed: %v", err)
	}

	t.Run("Identifiers", func(t *testing.T) {
		if meta.Ident != "DLH445" || meta.IdentIATA != "LH445" {
			t.Errorf("Expected DLH445/LH445, got %s/%s", meta.Ident, meta.IdentIATA)
		}
		if meta.OperatorICAO != "DLH" || meta.OperatorIATA != "LH" {
			t.Errorf("Expected DLH/LH, got %s/%s", meta.OperatorICAO, meta.OperatorIATA)
		}
	})

	t.Run("First flight wins", func(t *testing.T) {
		if meta.AircraftType != "A20N" {
			t.Errorf("Expected A20N, got %s", meta.AircraftType)
		}
	})

	t.Run("Airports", func(t *testing.T) {
		if meta.Origin.CodeIATA != "MUC" || meta.Origin.City != "Munich" {
			t.Errorf("Unexpected origin %+v", meta.Origin)
		}
		if meta.Destination.CodeIATA != "" || meta.Destination.CodeICAO != "EDDF" {
			t.Errorf("Unexpected destination %+v", meta.Destination)
		}
		if got := meta.Route(); got != "MUC > EDDF" {
			t.Errorf("Expected route 'MUC > EDDF', got %q", got)
		}
	})

	t.Run("Display names are left to the enricher", func(t *testing.T) {
		if meta.AirlineDisplayName != "" || meta.AircraftDisplayName != "" {
			t.Errorf("Expected empty display names, got %q/%q", meta.AirlineDisplayName, meta.AircraftDisplayName)
		}
	})
}

func TestGetFlightInfoErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   error
	}{
		{"Not found status", http.StatusNotFound, `{"title":"not found"}`, fetcherr.ErrNotFound},
		{"Empty flights", http.StatusOK, `{"flights":[]}`, fetcherr.ErrNotFound},
		{"Bad key", http.StatusUnauthorized, `{"title":"invalid api key"}`, fetcherr.ErrAuth},
		{"Server error", http.StatusBadGateway, `oops`, fetcherr.ErrTransport},
		{"Garbage body", http.StatusOK, `<html>`, fetcherr.ErrParse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := client.GetFlightInfo(context.Background(), "ABC123")
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}

			fe, ok := fetcherr.Details(err)
			if !ok {
				t.Fatalf("Expected *fetcherr.Error, got %T", err)
			}
			if fe.Ident != "ABC123" {
				t.Errorf("Expected ident ABC123 in error, got %q", fe.Ident)
			}
			if fe.Status != tt.status {
				t.Errorf("Expected status %d, got %d", tt.status, fe.Status)
			}
		})
	}
}

func TestGetFlightInfoRateLimited(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.GetFlightInfo(context.Background(), "ABC123")
	if !errors.Is(err, fetcherr.ErrTransport) {
		t.Errorf("Expected ErrTransport, got %v", err)
	}
	if _, ok := adsb.IsRateLimitError(err); !ok {
		t.Errorf("Expected wrapped RateLimitError, got %v", err)
	}
}

func TestGetFlightInfoMissingKey(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL}, nil)
	_, err := client.GetFlightInfo(context.Background(), "ABC123")

	if !errors.Is(err, fetcherr.ErrAuth) {
		t.Errorf("Expected ErrAuth, got %v", err)
	}
	if calls != 0 {
		t.Errorf("Expected no request, got %d", calls)
	}
}

func TestGetFlightInfoHourlyQuota(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(dlhFlight))
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, APIKey: "key", RequestsPerHour: 1}, nil)

	if _, err := client.GetFlightInfo(context.Background(), "DLH445"); err != nil {
		t.Fatalf("First call failed: %v", err)
	}

	_, err := client.GetFlightInfo(context.Background(), "DLH445")
	if !errors.Is(err, fetcherr.ErrBudgetExceeded) {
		t.Errorf("Expected ErrBudgetExceeded, got %v", err)
	}
	if n := atomic.LoadInt32(&calls); n != 1 {
		t.Errorf("Expected 1 request, got %d", n)
	}
}

func TestAirportDisplayCity(t *testing.T) {
	tests := []struct {
		name    string
		airport Airport
		want    string
	}{
		{"City field", Airport{City: "Munich", Name: "Franz Josef Strauss"}, "Munich"},
		{"International suffix", Airport{Name: "Frankfurt International Airport"}, "Frankfurt"},
		{"Intl suffix", Airport{Name: "Zurich Intl"}, "Zurich"},
		{"Comma", Airport{Name: "London Heathrow, UK"}, "London Heathrow"},
		{"Plain airport", Airport{Name: "Memmingen Airport"}, "Memmingen"},
		{"IATA fallback", Airport{CodeIATA: "MUC", CodeICAO: "EDDM"}, "MUC"},
		{"ICAO fallback", Airport{CodeICAO: "EDDM"}, "EDDM"},
		{"Nothing", Airport{}, "Unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.airport.DisplayCity(); got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestAirportPreferredCode(t *testing.T) {
	if got := (Airport{CodeICAO: "EDDM", CodeIATA: "MUC"}).PreferredCode(); got != "MUC" {
		t.Errorf("Expected MUC, got %s", got)
	}
	if got := (Airport{CodeICAO: "EDDM"}).PreferredCode(); got != "EDDM" {
		t.Errorf("Expected EDDM, got %s", got)
	}
	if got := (Airport{}).PreferredCode(); got != "---" {
		t.Errorf("Expected ---, got %s", got)
	}
}
