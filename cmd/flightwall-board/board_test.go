package main

import (
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/display"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/flightaware"
)

func TestFlightRow(t *testing.T) {
	f := flightaware.NewFlightMetadata("DLH445")
	f.AirlineDisplayName = "Lufthansa"
	f.AircraftType = "A20N"
	f.Origin = flightaware.Airport{CodeIATA: "MUC"}
	f.Destination = flightaware.Airport{CodeIATA: "FRA"}
	f.BaroAltitudeM = 10668
	f.DistanceKm = 4.2
	f.BearingDeg = 90

	row := flightRow(f, display.Units{AltitudeFeet: true})
	want := []string{"DLH445", "Lufthansa", "A20N", "MUC > FRA", "35000 ft", display.Unknown, "4.2 km", "90° E"}

	if len(row) != len(tableHeaders) {
		t.Fatalf("Expected %d columns, got %d", len(tableHeaders), len(row))
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("Column %s: expected %q, got %q", tableHeaders[i], want[i], row[i])
		}
	}
}

func TestPanelText(t *testing.T) {
	card := display.Card{Airline: "Lufthansa", Route: "MUC > FRA"}
	text := panelText(display.Frame{Card: &card, Transition: true})

	if !strings.HasPrefix(text, "[yellow::b]") {
		t.Errorf("Expected transition colour, got %q", text)
	}
	if !strings.Contains(text, "Lufthansa\nMUC > FRA") {
		t.Errorf("Expected card lines, got %q", text)
	}
}

func TestStatusText(t *testing.T) {
	stats := collector.Stats{Passes: 3, Failures: 1, LastDuration: "1.2s"}
	snap := handoff.Snapshot[flightaware.FlightMetadata]{Generation: 7}

	text := statusText(stats, snap, "DLH445", time.UTC)
	for _, want := range []string{"[white]7[-]", "(1 failed)", "DLH445"} {
		if !strings.Contains(text, want) {
			t.Errorf("Expected %q in status, got %q", want, text)
		}
	}
}

func TestIndexOf(t *testing.T) {
	flights := []flightaware.FlightMetadata{
		flightaware.NewFlightMetadata("DLH445"),
		flightaware.NewFlightMetadata("EZY12"),
	}
	if got := indexOf(flights, "EZY12"); got != 1 {
		t.Errorf("Expected 1, got %d", got)
	}
	if got := indexOf(flights, ""); got != -1 {
		t.Errorf("Expected -1 for auto, got %d", got)
	}
}
