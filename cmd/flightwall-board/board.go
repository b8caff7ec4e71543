package main

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/unklstewy/flightwall/internal/app"
	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/display"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/weather"
)

var tableHeaders = []string{"Flight", "Airline", "Type", "Route", "Altitude", "Speed", "Dist", "Bearing"}

// Board is the tview departures-board consumer. All board state is owned by
// the tview event goroutine: the ticker only reads the handoff and queues
// the result.
type Board struct {
	app    *app.App
	reader *handoff.Reader[flightaware.FlightMetadata]
	wall   *display.Wall
	cols   int
	units  display.Units

	tviewApp *tview.Application
	table    *tview.Table
	panel    *tview.TextView
	status   *tview.TextView
	logs     *LogManager

	flights    []flightaware.FlightMetadata
	generation uint64
	pinned     string // ident shown instead of the rotation, "" for auto
	lastError  string

	reading atomic.Pointer[weather.Reading]
}

// NewBoard builds the UI for a. cols is the panel width.
func NewBoard(a *app.App, cols int) *Board {
	b := &Board{
		app:    a,
		reader: a.NewReader(),
		cols:   cols,
		units: display.Units{
			AltitudeFeet: a.Config.Display.AltitudeFeet,
			SpeedKts:     a.Config.Display.SpeedKts,
		},
	}
	b.wall = b.newWall()
	b.setupUI()
	return b
}

func (b *Board) newWall() *display.Wall {
	wc := b.app.WallConfig(b.cols)
	wc.Units = b.units
	return display.NewWall(wc)
}

func (b *Board) setupUI() {
	b.tviewApp = tview.NewApplication()

	b.table = tview.NewTable().
		SetFixed(1, 0).
		SetSelectable(true, false)
	b.table.SetBorder(true).SetTitle(" Flights ")
	b.table.SetSelectedFunc(func(row, _ int) {
		b.pin(row - 1)
	})
	b.setTableRows(nil)

	b.panel = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	b.panel.SetBorder(true).SetTitle(" Wall ")

	b.status = tview.NewTextView().SetDynamicColors(true)
	b.status.SetBorder(true).SetTitle(" Status ")

	b.logs = NewLogManager(100)

	sidebar := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(b.panel, 0, 4, false).
		AddItem(b.status, 0, 3, false).
		AddItem(b.logs.View(), 0, 3, false)

	root := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(b.table, 0, 7, true).
		AddItem(sidebar, 0, 3, false)

	b.tviewApp.SetRoot(root, true)
	b.tviewApp.SetInputCapture(b.handleKeyboard)

	b.logs.Add(LogLevelInfo, "Watching %s, %.0f km", b.app.Config.Location.Name, b.app.Config.Location.RadiusKm)
}

func (b *Board) handleKeyboard(event *tcell.EventKey) *tcell.EventKey {
	switch {
	case event.Key() == tcell.KeyEscape || event.Rune() == 'q':
		b.tviewApp.Stop()
		return nil

	case event.Rune() == 'r':
		if b.app.Collector.Trigger() {
			b.logs.Add(LogLevelInfo, "Refresh queued")
		} else {
			b.logs.Add(LogLevelWarn, "Refresh already pending")
		}
		return nil

	case event.Rune() == ' ':
		b.unpin()
		return nil

	case event.Rune() == 'u':
		b.units = display.Units{AltitudeFeet: !b.units.AltitudeFeet, SpeedKts: !b.units.SpeedKts}
		b.wall = b.newWall()
		b.setTableRows(b.flights)
		return nil
	}
	return event
}

func (b *Board) pin(idx int) {
	if idx < 0 || idx >= len(b.flights) {
		return
	}
	b.pinned = b.flights[idx].Ident
	b.logs.Add(LogLevelInfo, "Pinned %s", b.pinned)
}

func (b *Board) unpin() {
	if b.pinned == "" {
		return
	}
	b.logs.Add(LogLevelInfo, "Unpinned %s", b.pinned)
	b.pinned = ""
	b.wall.Cycler().Reset(time.Now())
}

// Run drives the board until ctx is done or the user quits.
func (b *Board) Run(ctx context.Context) error {
	go b.pollWeather(ctx)
	go b.updateLoop(ctx)
	go func() {
		<-ctx.Done()
		b.tviewApp.Stop()
	}()
	return b.tviewApp.Run()
}

func (b *Board) updateLoop(ctx context.Context) {
	ticker := time.NewTicker(b.app.Config.Display.Tick())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			snap := b.reader.Snapshot()
			stats := b.app.Collector.Stats()
			b.tviewApp.QueueUpdateDraw(func() {
				b.apply(snap, stats, now)
			})
		}
	}
}

func (b *Board) pollWeather(ctx context.Context) {
	if b.app.Weather == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		if r := b.app.CurrentWeather(ctx); r != nil {
			b.reading.Store(r)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// apply runs on the tview goroutine.
func (b *Board) apply(snap handoff.Snapshot[flightaware.FlightMetadata], stats collector.Stats, now time.Time) {
	if snap.Generation != b.generation {
		if len(snap.Items) != len(b.flights) {
			b.logs.Add(LogLevelInfo, "%d flights in range", len(snap.Items))
		}
		b.generation = snap.Generation
		b.flights = snap.Items
		b.setTableRows(b.flights)

		if b.pinned != "" && indexOf(b.flights, b.pinned) < 0 {
			b.logs.Add(LogLevelWarn, "%s left the area", b.pinned)
			b.unpin()
		}
	}

	var frame display.Frame
	if idx := indexOf(b.flights, b.pinned); idx >= 0 {
		card := display.BuildCard(b.flights[idx], idx+1, len(b.flights), b.cols, b.units)
		frame = display.Frame{Card: &card, Index: idx}
	} else {
		frame = b.wall.Render(b.flights, now, b.reading.Load())
	}
	b.panel.SetText(panelText(frame))

	if stats.LastError != "" && stats.LastError != b.lastError {
		b.logs.Add(LogLevelError, "%s: %s", stats.LastErrorKind, stats.LastError)
	}
	b.lastError = stats.LastError

	b.status.SetText(statusText(stats, snap, b.pinned, b.app.Location()))
}

func (b *Board) setTableRows(flights []flightaware.FlightMetadata) {
	b.table.Clear()
	for col, h := range tableHeaders {
		b.table.SetCell(0, col, tview.NewTableCell(h).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false).
			SetExpansion(1))
	}
	for i, f := range flights {
		for col, text := range flightRow(f, b.units) {
			b.table.SetCell(i+1, col, tview.NewTableCell(tview.Escape(text)).SetExpansion(1))
		}
	}
}

// flightRow formats one table row in tableHeaders order.
func flightRow(f flightaware.FlightMetadata, units display.Units) []string {
	aircraft := f.AircraftDisplayName
	if aircraft == "" {
		aircraft = f.AircraftType
	}
	if aircraft == "" {
		aircraft = display.Unknown
	}
	return []string{
		f.Ident,
		display.AirlineName(f),
		aircraft,
		f.Route(),
		units.Altitude(f.BaroAltitudeM),
		units.Speed(f.VelocityMps),
		display.Distance(f.DistanceKm),
		display.Bearing(f.BearingDeg),
	}
}

// panelText renders a frame in LED colours, brighter on the transition tick.
func panelText(frame display.Frame) string {
	color := "orange"
	if frame.Transition {
		color = "yellow"
	}
	lines := frame.Lines()
	for i, l := range lines {
		lines[i] = tview.Escape(l)
	}
	return fmt.Sprintf("[%s::b]%s[-::-]", color, strings.Join(lines, "\n"))
}

func statusText(stats collector.Stats, snap handoff.Snapshot[flightaware.FlightMetadata], pinned string, loc *time.Location) string {
	var s strings.Builder
	fmt.Fprintf(&s, "[gray]Generation:[-] [white]%d[-]\n", snap.Generation)
	if !snap.PublishedAt.IsZero() {
		fmt.Fprintf(&s, "[gray]Published:[-]  [white]%s[-]\n", snap.PublishedAt.In(loc).Format("15:04:05"))
	}
	fmt.Fprintf(&s, "[gray]Passes:[-]     [white]%d[-] [gray](%d failed)[-]\n", stats.Passes, stats.Failures)
	fmt.Fprintf(&s, "[gray]Last pass:[-]  [white]%s[-]\n", stats.LastDuration)
	fmt.Fprintf(&s, "[gray]Enriched:[-]   [white]%d/%d[-] [gray]fresh total %d[-]\n",
		stats.LastEnriched, stats.LastPositions, stats.TotalFresh)
	if pinned != "" {
		fmt.Fprintf(&s, "[gray]Pinned:[-]     [yellow]%s[-]\n", tview.Escape(pinned))
	}
	s.WriteString("\n[gray]ENTER pin  SPACE auto  r refresh  u units  q quit[-]")
	return s.String()
}

func indexOf(flights []flightaware.FlightMetadata, ident string) int {
	if ident == "" {
		return -1
	}
	for i, f := range flights {
		if f.Ident == ident {
			return i
		}
	}
	return -1
}
