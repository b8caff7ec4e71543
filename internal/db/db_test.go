package db

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/flightwall/pkg/config"
)

// TestConnect tests connection handling without requiring a running server.
func TestConnect(t *testing.T) {
	t.Run("Unreachable server", func(t *testing.T) {
		cfg := config.DatabaseConfig{
			Host:         "127.0.0.1",
			Port:         1,
			Username:     "testuser",
			Password:     "testpass",
			Database:     "testdb",
			SSLMode:      "disable",
			MaxOpenConns: 2,
			MaxIdleConns: 1,
		}

		db, err := Connect(context.Background(), cfg)
		if err == nil {
			db.Close()
			t.Skip("Unexpected database listening on port 1")
		}
		if !strings.Contains(err.Error(), "failed to ping database") {
			t.Errorf("Expected ping failure, got %v", err)
		}
	})
}

func TestReconnectWithRetryGivesUp(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, SSLMode: "disable"}

	start := time.Now()
	_, err := ReconnectWithRetry(context.Background(), cfg, 2, 10*time.Millisecond, nil)
	if err == nil {
		t.Skip("Unexpected database listening on port 1")
	}
	if time.Since(start) < 10*time.Millisecond {
		t.Error("Expected a backoff delay between attempts")
	}
}

func TestReconnectWithRetryCancelled(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "127.0.0.1", Port: 1, SSLMode: "disable"}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ReconnectWithRetry(ctx, cfg, 0, time.Hour, nil)
	if err == nil {
		t.Fatal("Expected an error")
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp: Connection Refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"timeout", errors.New("i/o timeout"), true},
		{"constraint", errors.New(`duplicate key value violates unique constraint "airlines_pkey"`), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConnectionError(tt.err); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestWithRetry(t *testing.T) {
	t.Run("Non-connection error is not retried", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return errors.New("syntax error")
		}, 3)
		if err == nil || calls != 1 {
			t.Errorf("Expected 1 call and an error, got %d calls, err %v", calls, err)
		}
	})

	t.Run("Success after connection error", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls == 1 {
				return errors.New("connection reset by peer")
			}
			return nil
		}, 1)
		if err != nil || calls != 2 {
			t.Errorf("Expected success on call 2, got %d calls, err %v", calls, err)
		}
	})
}

func TestHealthCheckNil(t *testing.T) {
	if HealthCheck(context.Background(), nil) {
		t.Error("Expected nil database to be unhealthy")
	}
}

func TestSchemaEmbedded(t *testing.T) {
	b, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		t.Fatalf("Failed to read embedded schema: %v", err)
	}
	for _, table := range []Table{TableAirlines, TableAircraft} {
		if !strings.Contains(string(b), "CREATE TABLE IF NOT EXISTS "+string(table)) {
			t.Errorf("Expected schema to create %s", table)
		}
	}
}
