package flightaware

import (
	"math"
	"strings"
)

// Airport describes an origin or destination as returned by AeroAPI.
type Airport struct {
	CodeICAO string `json:"code_icao,omitempty"`
	CodeIATA string `json:"code_iata,omitempty"`
	Name     string `json:"name,omitempty"`
	City     string `json:"city,omitempty"`
}

// PreferredCode returns the IATA code, then the ICAO code, then "---".
func (a Airport) PreferredCode() string {
	if a.CodeIATA != "" {
		return a.CodeIATA
	}
	if a.CodeICAO != "" {
		return a.CodeICAO
	}
	return "---"
}

// airportSuffixes are stripped from names to get a short city label.
var airportSuffixes = []string{" International Airport", " Intl Airport", " Intl", " Airport"}

// DisplayCity returns a short place name for the airport.
//
// The city field wins when present. Otherwise the name is cut at the first
// comma and common airport suffixes are removed. Codes are the last resort.
func (a Airport) DisplayCity() string {
	if c := strings.TrimSpace(a.City); c != "" {
		return c
	}

	name := a.Name
	if i := strings.IndexByte(name, ','); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	for _, suffix := range airportSuffixes {
		if strings.HasSuffix(name, suffix) {
			name = strings.TrimSuffix(name, suffix)
			break
		}
	}
	if name = strings.TrimSpace(name); name != "" {
		return name
	}

	if a.CodeIATA != "" {
		return a.CodeIATA
	}
	if a.CodeICAO != "" {
		return a.CodeICAO
	}
	return "Unknown"
}

// FlightMetadata is the resolved, display-ready description of one flight.
//
// The live metrics are copied from the position report that triggered the
// lookup; NaN means unknown. They are excluded from JSON because encoding/json
// rejects NaN; API handlers expose them through their own response type.
type FlightMetadata struct {
	Ident        string `json:"ident"`
	IdentICAO    string `json:"ident_icao,omitempty"`
	IdentIATA    string `json:"ident_iata,omitempty"`
	Operator     string `json:"operator,omitempty"`
	OperatorICAO string `json:"operator_icao,omitempty"`
	OperatorIATA string `json:"operator_iata,omitempty"`
	AircraftType string `json:"aircraft_type,omitempty"`

	Origin      Airport `json:"origin"`
	Destination Airport `json:"destination"`

	AirlineDisplayName  string `json:"airline_display_name,omitempty"`
	AircraftDisplayName string `json:"aircraft_display_name,omitempty"`

	BaroAltitudeM float64 `json:"-"`
	VelocityMps   float64 `json:"-"`
	DistanceKm    float64 `json:"-"`
	BearingDeg    float64 `json:"-"`
}

// NewFlightMetadata returns metadata for ident with unknown live metrics.
func NewFlightMetadata(ident string) FlightMetadata {
	return FlightMetadata{
		Ident:         ident,
		BaroAltitudeM: math.NaN(),
		VelocityMps:   math.NaN(),
		DistanceKm:    math.NaN(),
		BearingDeg:    math.NaN(),
	}
}

// Route formats the origin and destination codes as "MUC > FRA".
func (m FlightMetadata) Route() string {
	return m.Origin.PreferredCode() + " > " + m.Destination.PreferredCode()
}

// Wire types. AeroAPI omits or nulls most fields freely, so every scalar is a
// pointer and read through deref.

type flightsResponse struct {
	Flights []aeroFlight `json:"flights"`
}

type aeroFlight struct {
	Ident        *string      `json:"ident"`
	IdentICAO    *string      `json:"ident_icao"`
	IdentIATA    *string      `json:"ident_iata"`
	FAFlightID   *string      `json:"fa_flight_id"`
	Operator     *string      `json:"operator"`
	OperatorICAO *string      `json:"operator_icao"`
	OperatorIATA *string      `json:"operator_iata"`
	Registration *string      `json:"registration"`
	AircraftType *string      `json:"aircraft_type"`
	Status       *string      `json:"status"`
	Origin       *aeroAirport `json:"origin"`
	Destination  *aeroAirport `json:"destination"`
}

type aeroAirport struct {
	Code     *string `json:"code"`
	CodeICAO *string `json:"code_icao"`
	CodeIATA *string `json:"code_iata"`
	Name     *string `json:"name"`
	City     *string `json:"city"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}

func (a *aeroAirport) toAirport() Airport {
	if a == nil {
		return Airport{}
	}
	ap := Airport{
		CodeICAO: deref(a.CodeICAO),
		CodeIATA: deref(a.CodeIATA),
		Name:     deref(a.Name),
		City:     deref(a.City),
	}
	if ap.CodeICAO == "" {
		ap.CodeICAO = deref(a.Code)
	}
	return ap
}

// toMetadata maps the raw flight onto FlightMetadata. ident is the requested
// identifier and is used when the response omits its own.
func (f aeroFlight) toMetadata(ident string) FlightMetadata {
	m := NewFlightMetadata(deref(f.Ident))
	if m.Ident == "" {
		m.Ident = ident
	}
	m.IdentICAO = deref(f.IdentICAO)
	m.IdentIATA = deref(f.IdentIATA)
	m.Operator = deref(f.Operator)
	m.OperatorICAO = deref(f.OperatorICAO)
	m.OperatorIATA = deref(f.OperatorIATA)
	m.AircraftType = deref(f.AircraftType)
	m.Origin = f.Origin.toAirport()
	m.Destination = f.Destination.toAirport()
	return m
}
