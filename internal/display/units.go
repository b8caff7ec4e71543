// Package display turns the published flight list into text for the wall
// and board consumers: flight cards, the idle clock and the cycling order.
package display

import (
	"fmt"
	"math"

	"github.com/unklstewy/flightwall/pkg/coordinates"
)

// Unknown is shown in place of a missing value.
const Unknown = "---"

// Units selects how live metrics are rendered.
type Units struct {
	AltitudeFeet bool
	SpeedKts     bool
}

// Altitude formats a barometric altitude in metres, e.g. "10668 m" or "35000 ft".
func (u Units) Altitude(meters float64) string {
	if !finite(meters) {
		return Unknown
	}
	if u.AltitudeFeet {
		return fmt.Sprintf("%.0f ft", meters*coordinates.MetersToFeet)
	}
	return fmt.Sprintf("%.0f m", meters)
}

// Speed formats a ground speed in m/s, e.g. "833 km/h" or "450 kts".
func (u Units) Speed(mps float64) string {
	if !finite(mps) {
		return Unknown
	}
	if u.SpeedKts {
		return fmt.Sprintf("%.0f kts", mps*coordinates.MpsToKnots)
	}
	return fmt.Sprintf("%.0f km/h", mps*coordinates.MpsToKmh)
}

// Distance formats a distance in km with one decimal.
func Distance(km float64) string {
	if !finite(km) {
		return Unknown
	}
	return fmt.Sprintf("%.1f km", km)
}

// Bearing formats a bearing as degrees plus compass point, e.g. "274° W".
func Bearing(deg float64) string {
	if !finite(deg) {
		return Unknown
	}
	return fmt.Sprintf("%.0f° %s", deg, coordinates.CompassPoint(deg))
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
