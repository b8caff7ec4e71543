package main

import (
	"math"
	"testing"

	"github.com/unklstewy/flightwall/pkg/flightaware"
)

func TestRadarPoint(t *testing.T) {
	tests := []struct {
		name         string
		dist, brg    float64
		wantX, wantY int
		wantOK       bool
	}{
		{"North edge", 10, 0, 20, 1, true},
		{"East edge stretched", 10, 90, 38, 10, true},
		{"Half way south", 5, 180, 20, 15, true},
		{"Outside radius", 12, 0, 0, 0, false},
		{"Unknown bearing", 5, math.NaN(), 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y, ok := radarPoint(tt.dist, tt.brg, 10, 20, 10, 9)
			if ok != tt.wantOK {
				t.Fatalf("Expected ok=%v, got %v", tt.wantOK, ok)
			}
			if ok && (x != tt.wantX || y != tt.wantY) {
				t.Errorf("Expected (%d,%d), got (%d,%d)", tt.wantX, tt.wantY, x, y)
			}
		})
	}
}

func TestBuildRadarGrid(t *testing.T) {
	near := flightaware.NewFlightMetadata("DLH445")
	near.DistanceKm = 9
	near.BearingDeg = 0

	unknown := flightaware.NewFlightMetadata("EZY12")

	grid := buildRadarGrid([]flightaware.FlightMetadata{unknown, near}, 1, 18)

	if grid[radarHeight/2][radarWidth/2] != markCenter {
		t.Errorf("Expected centre mark, got %q", grid[radarHeight/2][radarWidth/2])
	}
	if grid[0][radarWidth/2] != 'N' {
		t.Errorf("Expected north label, got %q", grid[0][radarWidth/2])
	}

	// 9 of 18 km straight north is half way to the top.
	if got := grid[radarHeight/2-5][radarWidth/2]; got != markSelected {
		t.Errorf("Expected selected mark on the north axis, got %q", got)
	}
}
