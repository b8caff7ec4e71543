package display

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/unklstewy/flightwall/pkg/weather"
)

// Idle is the clock screen shown while no flights are published.
type Idle struct {
	Time string // "15:04", colon blanked on odd seconds
	Day  string // "Monday"
	Date string // "02.01.2006"

	// Temperature ("12°C") and Condition are empty without a reading.
	Temperature string
	Condition   weather.Condition
}

// BuildIdle renders the idle screen for now in loc. A zero now renders the
// placeholders used before the clock is set. reading may be nil.
func BuildIdle(now time.Time, loc *time.Location, reading *weather.Reading) Idle {
	var idle Idle
	if now.IsZero() {
		idle = Idle{Time: "--:--", Day: "------", Date: "--.--.----"}
	} else {
		if loc != nil {
			now = now.In(loc)
		}
		idle = Idle{
			Time: now.Format("15:04"),
			Day:  now.Weekday().String(),
			Date: now.Format("02.01.2006"),
		}
		if now.Second()%2 == 1 {
			idle.Time = strings.Replace(idle.Time, ":", " ", 1)
		}
	}

	if reading != nil && !reading.FetchedAt.IsZero() {
		if !math.IsNaN(reading.TemperatureC) {
			idle.Temperature = fmt.Sprintf("%d°C", int(math.Round(reading.TemperatureC)))
		}
		idle.Condition = reading.Condition
	}
	return idle
}

// Lines returns the idle screen as text: clock and weather, then day and date.
func (i Idle) Lines() []string {
	top := i.Time
	if i.Temperature != "" {
		top += "  " + i.Temperature
	}
	lines := []string{top}
	if i.Condition != "" {
		lines = append(lines, string(i.Condition))
	}
	return append(lines, i.Day, i.Date)
}
