package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightwall/pkg/flightaware"
)

// Radar viewport in characters. Terminal cells are about twice as tall as
// they are wide, so X distances are stretched by 1/aspectRatio.
const (
	radarWidth  = 41
	radarHeight = 21
	aspectRatio = 0.5
)

const (
	markCenter   = '+'
	markAircraft = '○'
	markSelected = '●'
	markRing     = '·'
)

// radarPoint places an aircraft at distanceKm and bearingDeg on a grid of
// maxRadius cells around (cx, cy). ok is false for unknown or out-of-range
// positions.
func radarPoint(distanceKm, bearingDeg, radiusKm float64, cx, cy, maxRadius int) (x, y int, ok bool) {
	if math.IsNaN(distanceKm) || math.IsNaN(bearingDeg) || radiusKm <= 0 {
		return 0, 0, false
	}
	if distanceKm > radiusKm {
		return 0, 0, false
	}

	r := distanceKm / radiusKm * float64(maxRadius)
	rad := bearingDeg * math.Pi / 180.0

	x = cx + int(math.Round(r*math.Sin(rad)/aspectRatio))
	y = cy - int(math.Round(r*math.Cos(rad)))
	return x, y, true
}

// buildRadarGrid draws range rings, cardinal labels and flights. selected is
// the index of the flight on the wall, -1 for none.
func buildRadarGrid(flights []flightaware.FlightMetadata, selected int, radiusKm float64) [][]rune {
	grid := make([][]rune, radarHeight)
	for i := range grid {
		grid[i] = []rune(strings.Repeat(" ", radarWidth))
	}

	cx, cy := radarWidth/2, radarHeight/2
	maxRadius := radarHeight/2 - 1

	for _, frac := range []float64{0.5, 1.0} {
		drawCircle(grid, cx, cy, int(float64(maxRadius)*frac), aspectRatio, markRing)
	}

	grid[0][cx] = 'N'
	grid[radarHeight-1][cx] = 'S'
	grid[cy][0] = 'W'
	grid[cy][radarWidth-1] = 'E'
	grid[cy][cx] = markCenter

	for i, f := range flights {
		x, y, ok := radarPoint(f.DistanceKm, f.BearingDeg, radiusKm, cx, cy, maxRadius)
		if !ok {
			continue
		}
		if i == selected {
			// the selected flight always wins its cell
			grid[y][x] = markSelected
			continue
		}
		setPixel(grid, x, y, markAircraft)
	}
	return grid
}

// renderRadar draws the flights around the configured centre.
func (m model) renderRadar() string {
	grid := buildRadarGrid(m.flights, m.frame.Index, m.app.Config.Location.RadiusKm)

	centerStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	aircraftStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("75"))
	selectedStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("226")).Bold(true)
	ringStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("237"))
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	var b strings.Builder
	for _, row := range grid {
		for _, char := range row {
			switch char {
			case markCenter:
				b.WriteString(centerStyle.Render(string(char)))
			case markAircraft:
				b.WriteString(aircraftStyle.Render(string(char)))
			case markSelected:
				b.WriteString(selectedStyle.Render(string(char)))
			case markRing:
				b.WriteString(ringStyle.Render(string(char)))
			case ' ':
				b.WriteRune(char)
			default:
				b.WriteString(labelStyle.Render(string(char)))
			}
		}
		b.WriteString("\n")
	}
	b.WriteString(labelStyle.Render(fmt.Sprintf("rings %.0f / %.0f km", m.app.Config.Location.RadiusKm/2, m.app.Config.Location.RadiusKm)))
	return b.String()
}

// drawCircle draws a circle using the midpoint algorithm, stretching X by
// 1/aspectRatio so it looks round in a terminal.
func drawCircle(grid [][]rune, cx, cy, radius int, aspectRatio float64, char rune) {
	x := radius
	y := 0
	err := 0

	for x >= y {
		xScaled := int(float64(x) / aspectRatio)
		yScaled := int(float64(y) / aspectRatio)

		setPixel(grid, cx+xScaled, cy+y, char)
		setPixel(grid, cx+yScaled, cy+x, char)
		setPixel(grid, cx-yScaled, cy+x, char)
		setPixel(grid, cx-xScaled, cy+y, char)
		setPixel(grid, cx-xScaled, cy-y, char)
		setPixel(grid, cx-yScaled, cy-x, char)
		setPixel(grid, cx+yScaled, cy-x, char)
		setPixel(grid, cx+xScaled, cy-y, char)

		y++
		err += 1 + 2*y
		if 2*(err-x)+1 > 0 {
			x--
			err += 1 - 2*x
		}
	}
}

// setPixel sets a cell if it is in bounds and holds blank space or a ring.
func setPixel(grid [][]rune, x, y int, char rune) {
	if y >= 0 && y < len(grid) && x >= 0 && x < len(grid[0]) {
		if grid[y][x] == ' ' || grid[y][x] == markRing {
			grid[y][x] = char
		}
	}
}
