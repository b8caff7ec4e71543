// Package coordinates provides the small amount of spherical geometry the
// flight pipeline needs: great-circle distance, initial bearing and a cheap
// bounding box used to narrow upstream position queries.
package coordinates

import (
	"math"
)

// Constants for coordinate calculations
const (
	// DegreesToRadians converts degrees to radians
	DegreesToRadians = math.Pi / 180.0

	// RadiansToDegrees converts radians to degrees
	RadiansToDegrees = 180.0 / math.Pi

	// EarthRadiusKm is the Earth's mean radius in kilometers
	EarthRadiusKm = 6371.0

	// KmPerDegreeLatitude is the flat-Earth approximation used by BoundingBox
	KmPerDegreeLatitude = 111.0

	// MetersToFeet converts meters to feet
	MetersToFeet = 3.28084

	// MpsToKnots converts meters per second to knots
	MpsToKnots = 1.94384

	// MpsToKmh converts meters per second to kilometers per hour
	MpsToKmh = 3.6
)

// Geographic represents a position on Earth's surface.
// Uses the WGS84 coordinate system (same as GPS).
type Geographic struct {
	// Latitude in decimal degrees (-90 to +90)
	// Positive = North, Negative = South
	Latitude float64

	// Longitude in decimal degrees (-180 to +180)
	// Positive = East, Negative = West
	Longitude float64
}

// Box is a latitude/longitude rectangle.
type Box struct {
	LatMin float64
	LatMax float64
	LonMin float64
	LonMax float64
}

// IsValid reports whether both coordinates are finite and within range.
func (g Geographic) IsValid() bool {
	if math.IsNaN(g.Latitude) || math.IsNaN(g.Longitude) ||
		math.IsInf(g.Latitude, 0) || math.IsInf(g.Longitude, 0) {
		return false
	}
	return g.Latitude >= -90 && g.Latitude <= 90 &&
		g.Longitude >= -180 && g.Longitude <= 180
}

// NormalizeAzimuth ensures azimuth is in the range [0, 360).
func NormalizeAzimuth(azimuth float64) float64 {
	az := math.Mod(azimuth, 360.0)
	if az < 0 {
		az += 360.0
	}
	// math.Mod(-1e-15, 360) + 360 rounds to exactly 360
	if az >= 360.0 {
		az = 0
	}
	return az
}

// Bearing calculates the initial bearing (forward azimuth) from one point to another.
// Uses spherical trigonometry to calculate the bearing along a great circle.
// Returns bearing in degrees [0, 360), where 0 = North, 90 = East, 180 = South, 270 = West.
func Bearing(from, to Geographic) float64 {
	lat1 := from.Latitude * DegreesToRadians
	lon1 := from.Longitude * DegreesToRadians
	lat2 := to.Latitude * DegreesToRadians
	lon2 := to.Longitude * DegreesToRadians

	dLon := lon2 - lon1
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)

	return NormalizeAzimuth(math.Atan2(y, x) * RadiansToDegrees)
}

// DistanceKm calculates the great-circle distance between two points.
// Uses the Haversine formula with a mean Earth radius of 6371 km.
func DistanceKm(from, to Geographic) float64 {
	lat1Rad := from.Latitude * DegreesToRadians
	lon1Rad := from.Longitude * DegreesToRadians
	lat2Rad := to.Latitude * DegreesToRadians
	lon2Rad := to.Longitude * DegreesToRadians

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	// Haversine formula
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusKm * c
}

// BoundingBox returns a rectangle enclosing a circle of radiusKm around center.
//
// It uses a flat-Earth approximation: one degree of latitude is 111 km and the
// longitude delta is scaled by 1/cos(latitude). The result is only good enough to
// narrow an upstream query; callers must still filter with DistanceKm.
// The box is undefined at the poles.
func BoundingBox(center Geographic, radiusKm float64) Box {
	latDelta := radiusKm / KmPerDegreeLatitude
	lonDelta := radiusKm / (KmPerDegreeLatitude * math.Cos(center.Latitude*DegreesToRadians))

	return Box{
		LatMin: center.Latitude - latDelta,
		LatMax: center.Latitude + latDelta,
		LonMin: center.Longitude - lonDelta,
		LonMax: center.Longitude + lonDelta,
	}
}

var compassPoints = []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}

// CompassPoint returns the 8-point compass direction for an azimuth.
func CompassPoint(azimuth float64) string {
	idx := int((NormalizeAzimuth(azimuth)+22.5)/45.0) % 8
	return compassPoints[idx]
}
