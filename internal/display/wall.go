package display

import (
	"time"

	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/weather"
)

// Frame is what a consumer draws on one tick: a card or the idle screen.
type Frame struct {
	Card *Card
	Idle *Idle

	// Index of the flight on the card, -1 when idle
	Index int

	// Transition is set when the card changed flight since the last frame
	Transition bool
}

// Lines returns the frame as text.
func (f Frame) Lines() []string {
	if f.Card != nil {
		return f.Card.Lines()
	}
	if f.Idle != nil {
		return f.Idle.Lines()
	}
	return nil
}

// WallConfig configures a Wall.
type WallConfig struct {
	Columns       int
	CycleInterval time.Duration
	Units         Units
	Location      *time.Location
}

// Wall combines the cycler and the layouts for one consumer.
type Wall struct {
	cfg    WallConfig
	cycler *Cycler
}

// NewWall creates a wall.
func NewWall(cfg WallConfig) *Wall {
	if cfg.Columns <= 0 {
		cfg.Columns = DefaultColumns
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	return &Wall{
		cfg:    cfg,
		cycler: NewCycler(cfg.CycleInterval),
	}
}

// Cycler exposes the rotation state, e.g. for the board's manual paging.
func (w *Wall) Cycler() *Cycler {
	return w.cycler
}

// Render builds the frame for the current flight list. reading may be nil.
func (w *Wall) Render(flights []flightaware.FlightMetadata, now time.Time, reading *weather.Reading) Frame {
	idx, changed := w.cycler.Next(len(flights), now)
	if idx < 0 {
		idle := BuildIdle(now, w.cfg.Location, reading)
		return Frame{Idle: &idle, Index: -1}
	}

	card := BuildCard(flights[idx], idx+1, len(flights), w.cfg.Columns, w.cfg.Units)
	return Frame{Card: &card, Index: idx, Transition: changed}
}
