package display

import (
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/unklstewy/flightwall/pkg/flightaware"
)

// DefaultColumns is the card width of a 64 pixel panel in the 6 pixel font.
const DefaultColumns = 10

// Card is one flight laid out for a fixed-width text display.
type Card struct {
	Airline string
	Route   string

	// Model holds one line when maker and model fit together, otherwise the
	// maker and the model on separate lines.
	Model []string

	Origin      string
	Destination string

	// Counter is "i/n", empty for a single flight.
	Counter string

	Altitude string
	Speed    string
	Distance string
	Bearing  string
}

// Lines returns the card top to bottom.
func (c Card) Lines() []string {
	lines := []string{c.Airline, c.Route}
	lines = append(lines, c.Model...)
	lines = append(lines, c.Origin, c.Destination)
	if c.Counter != "" {
		lines = append(lines, c.Counter)
	}
	return lines
}

// BuildCard lays out f as the ordinal-th (1-based) of total flights for a
// display cols characters wide.
func BuildCard(f flightaware.FlightMetadata, ordinal, total, cols int, units Units) Card {
	if cols <= 0 {
		cols = DefaultColumns
	}

	card := Card{
		Airline:     TruncateToColumns(FirstWord(AirlineName(f)), cols),
		Route:       TruncateToColumns(f.Route(), cols),
		Origin:      TruncateToColumns(FirstWord(f.Origin.DisplayCity()), cols),
		Destination: TruncateToColumns(FirstWord(f.Destination.DisplayCity()), cols),
		Altitude:    units.Altitude(f.BaroAltitudeM),
		Speed:       units.Speed(f.VelocityMps),
		Distance:    Distance(f.DistanceKm),
		Bearing:     Bearing(f.BearingDeg),
	}

	maker, model := MakerModel(f.AircraftType, f.AircraftDisplayName)
	combined := model
	if maker != "" {
		combined = maker + " " + model
	}
	if runewidth.StringWidth(combined) <= cols {
		card.Model = []string{combined}
	} else {
		first := maker
		if first == "" {
			first = FirstWord(model)
		}
		card.Model = []string{
			TruncateToColumns(first, cols),
			TruncateToColumns(model, cols),
		}
	}

	if total > 1 {
		card.Counter = strconv.Itoa(ordinal) + "/" + strconv.Itoa(total)
	}
	return card
}

// AirlineName picks the best available airline label.
func AirlineName(f flightaware.FlightMetadata) string {
	for _, s := range []string{
		f.AirlineDisplayName,
		f.OperatorIATA,
		f.OperatorICAO,
		f.Operator,
		f.IdentIATA,
		f.Ident,
		f.IdentICAO,
	} {
		if s != "" {
			return s
		}
	}
	return ""
}

// FirstWord returns text up to the first space.
func FirstWord(text string) string {
	if i := strings.IndexByte(text, ' '); i >= 0 {
		return text[:i]
	}
	return text
}

// TruncateToColumns clips text to maxColumns terminal columns, ending with
// "..." when there is room for it.
func TruncateToColumns(text string, maxColumns int) string {
	if runewidth.StringWidth(text) <= maxColumns {
		return text
	}
	if maxColumns <= 3 {
		return runewidth.Truncate(text, maxColumns, "")
	}
	return runewidth.Truncate(text, maxColumns, "...")
}

var makerNames = map[string]string{
	"airbus":     "Airbus",
	"boeing":     "Boeing",
	"bombardier": "Bombardier",
	"embraer":    "Embraer",
	"atr":        "ATR",
	"cessna":     "Cessna",
	"gulfstream": "Gulfstream",
	"dassault":   "Dassault",
}

var makerPrefixes = []struct {
	maker    string
	prefixes []string
}{
	{"Airbus", []string{"A3", "A2", "A1"}},
	{"Boeing", []string{"B7", "B3", "B2"}},
	{"Bombardier", []string{"CRJ", "CL", "DH"}},
	{"Embraer", []string{"E1", "E2", "ERJ"}},
	{"ATR", []string{"AT"}},
}

// DetectMaker names the manufacturer from the display name's first word or,
// failing that, the type designator prefix. It returns "" when unknown.
func DetectMaker(typeCode, displayName string) string {
	if maker, ok := makerNames[strings.ToLower(FirstWord(displayName))]; ok {
		return maker
	}

	code := strings.ToUpper(typeCode)
	for _, m := range makerPrefixes {
		for _, p := range m.prefixes {
			if strings.HasPrefix(code, p) {
				return m.maker
			}
		}
	}
	return ""
}

// MakerModel splits an aircraft into manufacturer and model label. The model
// falls back to the type code, then to "Unknown".
func MakerModel(typeCode, displayName string) (maker, model string) {
	model = strings.TrimSpace(displayName)
	if model == "" {
		model = strings.TrimSpace(typeCode)
	}
	if model == "" {
		model = "Unknown"
	}

	maker = DetectMaker(typeCode, model)
	if maker != "" && strings.HasPrefix(model, maker) {
		if rest := strings.TrimSpace(model[len(maker):]); rest != "" {
			model = rest
		}
	}
	return maker, model
}
