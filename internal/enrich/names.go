package enrich

import (
	"embed"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode"

	"github.com/unklstewy/flightwall/pkg/flightaware"
)

// MaxAircraftLabel is the longest aircraft label shown on the wall.
const MaxAircraftLabel = 10

//go:embed data/airlines.json data/aircraft.json
var defaultTables embed.FS

// NameTable maps ICAO codes to display names. Lookups ignore case.
type NameTable struct {
	mu      sync.RWMutex
	entries map[string]string
}

// NewNameTable builds a table from a code → name map.
func NewNameTable(m map[string]string) *NameTable {
	t := &NameTable{entries: make(map[string]string, len(m))}
	t.Merge(m)
	return t
}

// LoadNameTable reads a JSON object of code → name pairs, the format
// written by cmd/import-lookups and the OpenTravelData export.
func LoadNameTable(r io.Reader) (*NameTable, error) {
	var m map[string]string
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode name table: %w", err)
	}
	return NewNameTable(m), nil
}

// DefaultAirlineTable returns the embedded airline names.
func DefaultAirlineTable() *NameTable {
	return mustLoadEmbedded("data/airlines.json")
}

// DefaultAircraftTable returns the embedded aircraft type names.
func DefaultAircraftTable() *NameTable {
	return mustLoadEmbedded("data/aircraft.json")
}

func mustLoadEmbedded(name string) *NameTable {
	f, err := defaultTables.Open(name)
	if err != nil {
		panic(fmt.Sprintf("embedded table %s: %v", name, err))
	}
	defer f.Close()

	t, err := LoadNameTable(f)
	if err != nil {
		panic(fmt.Sprintf("embedded table %s: %v", name, err))
	}
	return t
}

// Lookup returns the name for code.
func (t *NameTable) Lookup(code string) (string, bool) {
	code = normalizeCode(code)
	if code == "" {
		return "", false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	name, ok := t.entries[code]
	return name, ok
}

// Merge adds or replaces entries and returns how many were applied.
// Blank codes or names are ignored.
func (t *NameTable) Merge(m map[string]string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	n := 0
	for code, name := range m {
		code = normalizeCode(code)
		name = strings.TrimSpace(name)
		if code == "" || name == "" {
			continue
		}
		t.entries[code] = name
		n++
	}
	return n
}

// Len returns the number of entries.
func (t *NameTable) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// airlineStrategy is one step of the airline name chain. ok=false means
// "try the next strategy".
type airlineStrategy struct {
	name    string
	resolve func(meta flightaware.FlightMetadata, callsign string) (string, bool)
}

// Resolver turns provider codes into display names.
type Resolver struct {
	airlines *NameTable
	aircraft *NameTable
	chain    []airlineStrategy
}

// NewResolver creates a resolver over the given tables. nil tables are
// treated as empty.
func NewResolver(airlines, aircraft *NameTable) *Resolver {
	if airlines == nil {
		airlines = NewNameTable(nil)
	}
	if aircraft == nil {
		aircraft = NewNameTable(nil)
	}

	r := &Resolver{airlines: airlines, aircraft: aircraft}
	r.chain = []airlineStrategy{
		{"operator_icao", r.operatorICAOLookup},
		{"operator", operatorCodePassthrough},
		{"callsign_prefix", r.callsignPrefixLookup},
	}
	return r
}

// Airlines returns the airline table.
func (r *Resolver) Airlines() *NameTable { return r.airlines }

// Aircraft returns the aircraft table.
func (r *Resolver) Aircraft() *NameTable { return r.aircraft }

// resolveAirline returns the airline display name and the strategy that
// produced it, or two empty strings if every strategy comes up empty.
func (r *Resolver) resolveAirline(meta flightaware.FlightMetadata, callsign string) (string, string) {
	for _, s := range r.chain {
		if name, ok := s.resolve(meta, callsign); ok {
			return name, s.name
		}
	}
	return "", ""
}

// operatorICAOLookup maps operator_icao through the table, falling back to
// the code as the provider sent it.
func (r *Resolver) operatorICAOLookup(meta flightaware.FlightMetadata, _ string) (string, bool) {
	code := strings.TrimSpace(meta.OperatorICAO)
	if code == "" {
		return "", false
	}
	if name, ok := r.airlines.Lookup(code); ok {
		return name, true
	}
	return code, true
}

func operatorCodePassthrough(meta flightaware.FlightMetadata, _ string) (string, bool) {
	code := strings.TrimSpace(meta.Operator)
	return code, code != ""
}

// callsignPrefixLookup derives an airline code from the callsign and maps it
// through the table, falling back to the bare prefix.
func (r *Resolver) callsignPrefixLookup(_ flightaware.FlightMetadata, callsign string) (string, bool) {
	prefix := CallsignPrefix(callsign)
	if prefix == "" {
		return "", false
	}
	if name, ok := r.airlines.Lookup(prefix); ok {
		return name, true
	}
	return prefix, true
}

// AircraftName resolves the short aircraft label for a type code. It is
// non-empty whenever typeCode is.
func (r *Resolver) AircraftName(typeCode string) string {
	code := strings.TrimSpace(typeCode)
	if code == "" {
		return ""
	}

	label, ok := r.aircraft.Lookup(code)
	if !ok {
		label = code
	}
	if label = NormalizeAircraftLabel(label); label == "" {
		return code
	}
	return label
}

// Apply fills the display names of meta and reports the airline strategy
// that produced a name, "" when none did.
func (r *Resolver) Apply(meta flightaware.FlightMetadata, callsign string) (flightaware.FlightMetadata, string) {
	var strategy string
	meta.AirlineDisplayName, strategy = r.resolveAirline(meta, callsign)
	meta.AircraftDisplayName = r.AircraftName(meta.AircraftType)
	return meta, strategy
}

// MissingCodes returns the airline and aircraft codes of meta that the name
// tables do not hold. The airline codes are the operator ICAO code and the
// callsign prefix, both upper-cased.
func (r *Resolver) MissingCodes(meta flightaware.FlightMetadata, callsign string) (airlines, aircraft []string) {
	for _, code := range []string{normalizeCode(meta.OperatorICAO), CallsignPrefix(callsign)} {
		if code == "" || contains(airlines, code) {
			continue
		}
		if _, ok := r.airlines.Lookup(code); !ok {
			airlines = append(airlines, code)
		}
	}
	if code := normalizeCode(meta.AircraftType); code != "" {
		if _, ok := r.aircraft.Lookup(code); !ok {
			aircraft = append(aircraft, code)
		}
	}
	return airlines, aircraft
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// CallsignPrefix returns the leading run of letters in callsign, uppercased
// and cut to three characters. Two-letter runs are returned as is; anything
// shorter yields "".
func CallsignPrefix(callsign string) string {
	var b strings.Builder
	for _, c := range strings.TrimSpace(callsign) {
		if c > unicode.MaxASCII || !unicode.IsLetter(c) {
			break
		}
		b.WriteRune(unicode.ToUpper(c))
	}

	prefix := b.String()
	switch {
	case len(prefix) >= 3:
		return prefix[:3]
	case len(prefix) == 2:
		return prefix
	default:
		return ""
	}
}

// NormalizeAircraftLabel strips "freighter" and "pax" in any case, collapses
// the spaces left behind, trims, and only then truncates to MaxAircraftLabel
// characters. A cut that lands on a space keeps it.
func NormalizeAircraftLabel(label string) string {
	for _, word := range []string{"freighter", "pax"} {
		label = removeFold(label, word)
	}
	label = strings.Join(strings.Fields(label), " ")

	if r := []rune(label); len(r) > MaxAircraftLabel {
		label = string(r[:MaxAircraftLabel])
	}
	return label
}

// removeFold deletes every case-insensitive occurrence of word (ASCII).
func removeFold(s, word string) string {
	lower := asciiLower(s)
	var b strings.Builder
	for {
		i := strings.Index(lower, word)
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		s = s[i+len(word):]
		lower = lower[i+len(word):]
	}
}

// asciiLower lowercases A-Z only, so byte offsets match the input.
func asciiLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if 'A' <= c && c <= 'Z' {
			b[i] = c + ('a' - 'A')
		}
	}
	return string(b)
}
