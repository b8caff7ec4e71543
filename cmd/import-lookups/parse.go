package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Source formats.
const (
	FormatJSON = "json" // {"DLH": "Lufthansa", ...}
	FormatOPTD = "optd" // OpenTravelData caret-separated CSV with a header row
)

// Code length bounds for ICAO airline designators and aircraft type codes.
const (
	minCodeLen = 3
	maxCodeLen = 4
)

// optdColumns describes how one OPTD file maps to a name table. The first
// non-empty name column wins.
type optdColumns struct {
	Code  string
	Names []string
}

var (
	optdAirlines = optdColumns{Code: "3char_code", Names: []string{"name", "name2", "alias"}}
	optdAircraft = optdColumns{Code: "icao_code", Names: []string{"name", "model", "model_name", "text", "type"}}
)

// ParseJSON reads a code to name object.
func ParseJSON(r io.Reader) (map[string]string, error) {
	var names map[string]string
	if err := json.NewDecoder(r).Decode(&names); err != nil {
		return nil, fmt.Errorf("failed to decode lookup JSON: %w", err)
	}
	return names, nil
}

// ParseOPTD reads an OpenTravelData table. Rows whose code is not three or
// four characters long, or that have no name, are skipped. Aircraft rows with
// no name column fall back to "manufacturer model".
func ParseOPTD(r io.Reader, cols optdColumns) (map[string]string, error) {
	cr := csv.NewReader(r)
	cr.Comma = '^'
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read OPTD header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.TrimSpace(h)] = i
	}
	if _, ok := index[cols.Code]; !ok {
		return nil, fmt.Errorf("OPTD header has no %q column", cols.Code)
	}

	field := func(rec []string, name string) string {
		i, ok := index[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	names := make(map[string]string)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read OPTD row: %w", err)
		}

		code := strings.ToUpper(field(rec, cols.Code))
		if len(code) < minCodeLen || len(code) > maxCodeLen {
			continue
		}

		var name string
		for _, col := range cols.Names {
			if name = field(rec, col); name != "" {
				break
			}
		}
		if name == "" {
			name = strings.TrimSpace(field(rec, "manufacturer") + " " + field(rec, "model"))
		}
		if name != "" {
			names[code] = name
		}
	}
	return names, nil
}
