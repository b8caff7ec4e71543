package adsb

import (
	"context"
	"math"

	"github.com/unklstewy/flightwall/pkg/coordinates"
)

// PositionRecord is one aircraft state vector as reported by a position feed.
// All position data is in WGS84. Unknown numeric values are NaN.
type PositionRecord struct {
	// ICAO24 is the unique 24-bit ICAO transponder address in hex (e.g., "3c6444")
	ICAO24 string `json:"icao24"`

	// Callsign is the flight ident, whitespace-trimmed. May be empty.
	Callsign string `json:"callsign"`

	// OriginCountry is the country inferred from the ICAO24 address
	OriginCountry string `json:"origin_country"`

	// TimePosition is the Unix time of the last position update, 0 if unknown
	TimePosition int64 `json:"time_position"`

	// LastContact is the Unix time of the last message of any kind
	LastContact int64 `json:"last_contact"`

	// Latitude in decimal degrees (-90 to +90)
	Latitude float64 `json:"latitude"`

	// Longitude in decimal degrees (-180 to +180)
	Longitude float64 `json:"longitude"`

	// BaroAltitude is the barometric altitude in meters
	BaroAltitude float64 `json:"baro_altitude"`

	// GeoAltitude is the geometric altitude in meters
	GeoAltitude float64 `json:"geo_altitude"`

	// OnGround is true when the position came from a surface report
	OnGround bool `json:"on_ground"`

	// Velocity is the ground speed in meters per second
	Velocity float64 `json:"velocity"`

	// Heading is the true track in degrees clockwise from north
	Heading float64 `json:"heading"`

	// VerticalRate in meters per second (positive = climbing)
	VerticalRate float64 `json:"vertical_rate"`

	// Squawk is the transponder code
	Squawk string `json:"squawk"`

	// SPI is the special purpose indicator
	SPI bool `json:"spi"`

	// PositionSource: 0 = ADS-B, 1 = ASTERIX, 2 = MLAT, 3 = FLARM
	PositionSource int `json:"position_source"`

	// DistanceKm is the great-circle distance from the query centre
	DistanceKm float64 `json:"distance_km"`

	// BearingDeg is the initial bearing from the query centre, [0, 360)
	BearingDeg float64 `json:"bearing_deg"`
}

// NewPositionRecord returns a record with every optional numeric field unknown.
func NewPositionRecord() PositionRecord {
	nan := math.NaN()
	return PositionRecord{
		Latitude:     nan,
		Longitude:    nan,
		BaroAltitude: nan,
		GeoAltitude:  nan,
		Velocity:     nan,
		Heading:      nan,
		VerticalRate: nan,
		DistanceKm:   nan,
		BearingDeg:   nan,
	}
}

// Position returns the record's coordinates.
func (p PositionRecord) Position() coordinates.Geographic {
	return coordinates.Geographic{Latitude: p.Latitude, Longitude: p.Longitude}
}

// HasPosition reports whether both coordinates are known and in range.
func (p PositionRecord) HasPosition() bool {
	return p.Position().IsValid()
}

// PositionSource is the interface that aircraft position feeds implement.
//
// FetchPositions returns every airborne or surface record within radiusKm of
// center. Records without coordinates are never returned, and every returned
// record has DistanceKm <= radiusKm with DistanceKm and BearingDeg populated.
type PositionSource interface {
	FetchPositions(ctx context.Context, center coordinates.Geographic, radiusKm float64) ([]PositionRecord, error)
}
