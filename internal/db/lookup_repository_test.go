package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/lib/pq"
)

func TestNormalizeEntries(t *testing.T) {
	entries := NormalizeEntries(map[string]string{
		" ezy": "easyJet",
		"DLH":  " Lufthansa ",
		"":     "Nobody",
		"XXX":  "  ",
	})

	if len(entries) != 2 {
		t.Fatalf("Expected 2 entries, got %d: %+v", len(entries), entries)
	}
	if entries[0] != (LookupEntry{Code: "DLH", Name: "Lufthansa"}) {
		t.Errorf("Expected DLH first, got %+v", entries[0])
	}
	if entries[1] != (LookupEntry{Code: "EZY", Name: "easyJet"}) {
		t.Errorf("Expected EZY second, got %+v", entries[1])
	}
}

func TestUpsertQuery(t *testing.T) {
	q := upsertQuery(TableAircraft)
	if !strings.Contains(q, "INSERT INTO aircraft_types") {
		t.Errorf("Expected aircraft_types insert, got %q", q)
	}
	if !strings.Contains(q, "ON CONFLICT (code) DO UPDATE") {
		t.Errorf("Expected upsert clause, got %q", q)
	}
}

type fakeRows struct {
	rows [][2]string
	i    int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.i >= len(f.rows) {
		return false
	}
	f.i++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.i-1]
	*dest[0].(*string) = row[0]
	*dest[1].(*string) = row[1]
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func (f *fakeRows) Close() error { return nil }

func TestScanNames(t *testing.T) {
	t.Run("Rows", func(t *testing.T) {
		names, err := scanNames(&fakeRows{rows: [][2]string{{"A20N", "A320neo"}, {"B738", "737-800"}}}, TableAircraft)
		if err != nil {
			t.Fatalf("scanNames failed: %v", err)
		}
		if names["A20N"] != "A320neo" || names["B738"] != "737-800" {
			t.Errorf("Unexpected names %v", names)
		}
	})

	t.Run("Iteration error", func(t *testing.T) {
		_, err := scanNames(&fakeRows{err: errors.New("connection reset")}, TableAirlines)
		if err == nil || !strings.Contains(err.Error(), "airlines") {
			t.Errorf("Expected wrapped airlines error, got %v", err)
		}
	})
}

func TestLookup(t *testing.T) {
	var gotQuery string
	var gotArgs []any
	repo := &LookupRepository{
		query: func(ctx context.Context, query string, args ...any) (lookupRows, error) {
			gotQuery, gotArgs = query, args
			return &fakeRows{rows: [][2]string{{"CLH", "Lufthansa CityLine"}}}, nil
		},
	}

	names, err := repo.Lookup(context.Background(), TableAirlines, []string{" clh", "QQX"})
	if err != nil {
		t.Fatalf("Lookup failed: %v", err)
	}
	if names["CLH"] != "Lufthansa CityLine" || len(names) != 1 {
		t.Errorf("Unexpected names %v", names)
	}
	if !strings.Contains(gotQuery, "FROM airlines WHERE code = ANY($1)") {
		t.Errorf("Expected airlines ANY query, got %q", gotQuery)
	}
	if len(gotArgs) != 1 {
		t.Fatalf("Expected 1 argument, got %d", len(gotArgs))
	}
	arr, ok := gotArgs[0].(*pq.StringArray)
	if !ok {
		t.Fatalf("Expected *pq.StringArray, got %T", gotArgs[0])
	}
	if strings.Join(*arr, ",") != "CLH,QQX" {
		t.Errorf("Expected upper-cased codes, got %v", *arr)
	}

	t.Run("No codes skips the query", func(t *testing.T) {
		repo := &LookupRepository{
			query: func(ctx context.Context, query string, args ...any) (lookupRows, error) {
				t.Error("Expected no query")
				return nil, nil
			},
		}
		names, err := repo.Lookup(context.Background(), TableAircraft, nil)
		if err != nil || len(names) != 0 {
			t.Errorf("Expected empty result, got %v %v", names, err)
		}
	})

	t.Run("Query error is wrapped", func(t *testing.T) {
		repo := &LookupRepository{
			query: func(ctx context.Context, query string, args ...any) (lookupRows, error) {
				return nil, errors.New("connection refused")
			},
		}
		_, err := repo.Lookup(context.Background(), TableAircraft, []string{"A20N"})
		if err == nil || !strings.Contains(err.Error(), "failed to look up aircraft_types") {
			t.Errorf("Expected wrapped error, got %v", err)
		}
	})
}
