package db

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
)

// Table names a lookup table.
type Table string

// Lookup tables
const (
	TableAirlines Table = "airlines"
	TableAircraft Table = "aircraft_types"
)

// LookupEntry is one code-to-name row.
type LookupEntry struct {
	Code string
	Name string
}

// LookupRepository reads and writes the airline and aircraft name tables.
type LookupRepository struct {
	db    *DB
	query func(ctx context.Context, query string, args ...any) (lookupRows, error)
}

type lookupRows interface {
	rowScanner
	Close() error
}

// NewLookupRepository creates a new lookup repository.
func NewLookupRepository(db *DB) *LookupRepository {
	return &LookupRepository{
		db: db,
		query: func(ctx context.Context, query string, args ...any) (lookupRows, error) {
			r, err := db.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, err
			}
			return r, nil
		},
	}
}

// NormalizeEntries turns a code-to-name map into sorted rows with upper-case
// trimmed codes. Blank codes and names are skipped.
func NormalizeEntries(names map[string]string) []LookupEntry {
	byCode := make(map[string]string, len(names))
	for code, name := range names {
		code = strings.ToUpper(strings.TrimSpace(code))
		name = strings.TrimSpace(name)
		if code == "" || name == "" {
			continue
		}
		byCode[code] = name
	}

	entries := make([]LookupEntry, 0, len(byCode))
	for code, name := range byCode {
		entries = append(entries, LookupEntry{Code: code, Name: name})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Code < entries[j].Code })
	return entries
}

// Upsert writes names into table in one transaction and returns the number
// of rows written.
func (r *LookupRepository) Upsert(ctx context.Context, table Table, names map[string]string) (int, error) {
	entries := NormalizeEntries(names)
	if len(entries) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, upsertQuery(table))
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.Code, e.Name); err != nil {
			return 0, fmt.Errorf("failed to upsert %s %s: %w", table, e.Code, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", table, err)
	}
	return len(entries), nil
}

func upsertQuery(table Table) string {
	return `INSERT INTO ` + string(table) + ` (code, name, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			updated_at = EXCLUDED.updated_at`
}

// Load returns every row of table as a code-to-name map.
func (r *LookupRepository) Load(ctx context.Context, table Table) (map[string]string, error) {
	rows, err := r.query(ctx, `SELECT code, name FROM `+string(table))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", table, err)
	}
	defer rows.Close()

	return scanNames(rows, table)
}

// Lookup returns the names for the given codes. Codes with no row are absent
// from the result.
func (r *LookupRepository) Lookup(ctx context.Context, table Table, codes []string) (map[string]string, error) {
	if len(codes) == 0 {
		return map[string]string{}, nil
	}

	upper := make([]string, len(codes))
	for i, c := range codes {
		upper[i] = strings.ToUpper(strings.TrimSpace(c))
	}

	rows, err := r.query(ctx,
		`SELECT code, name FROM `+string(table)+` WHERE code = ANY($1)`,
		pq.Array(upper),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", table, err)
	}
	defer rows.Close()

	return scanNames(rows, table)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanNames(rows rowScanner, table Table) (map[string]string, error) {
	names := make(map[string]string)
	for rows.Next() {
		var code, name string
		if err := rows.Scan(&code, &name); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", table, err)
		}
		names[code] = name
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", table, err)
	}
	return names, nil
}
