package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/unklstewy/flightwall/internal/app"
	"github.com/unklstewy/flightwall/internal/collector"
	"github.com/unklstewy/flightwall/internal/display"
	"github.com/unklstewy/flightwall/internal/handoff"
	"github.com/unklstewy/flightwall/pkg/config"
	"github.com/unklstewy/flightwall/pkg/flightaware"
	"github.com/unklstewy/flightwall/pkg/logger"
	"github.com/unklstewy/flightwall/pkg/weather"
)

// weatherEvery is how often the model polls the weather client.
const weatherEvery = time.Minute

type model struct {
	app    *app.App
	reader *handoff.Reader[flightaware.FlightMetadata]
	wall   *display.Wall
	cols   int

	flights []flightaware.FlightMetadata
	frame   display.Frame
	reading *weather.Reading
	stats   collector.Stats
	status  string

	radarMode bool
	imperial  bool
	width     int
	height    int
}

type tickMsg time.Time

type weatherMsg struct {
	reading *weather.Reading
}

type weatherTickMsg struct{}

func (m model) newWall() *display.Wall {
	wc := m.app.WallConfig(m.cols)
	wc.Units = display.Units{AltitudeFeet: m.imperial, SpeedKts: m.imperial}
	return display.NewWall(wc)
}

func (m model) tick() tea.Cmd {
	return tea.Tick(m.app.Config.Display.Tick(), func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) fetchWeather() tea.Cmd {
	if m.app.Weather == nil {
		return nil
	}
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return weatherMsg{reading: m.app.CurrentWeather(ctx)}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(m.tick(), m.fetchWeather())
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "r":
			if m.app.Collector.Trigger() {
				m.status = "Refresh queued"
			} else {
				m.status = "Refresh already pending"
			}
		case "m":
			m.radarMode = !m.radarMode
		case "u":
			m.imperial = !m.imperial
			m.wall = m.newWall()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case weatherMsg:
		if msg.reading != nil {
			m.reading = msg.reading
		}
		return m, tea.Tick(weatherEvery, func(time.Time) tea.Msg {
			return weatherTickMsg{}
		})

	case weatherTickMsg:
		return m, m.fetchWeather()

	case tickMsg:
		m.flights = m.reader.Get()
		m.frame = m.wall.Render(m.flights, time.Time(msg), m.reading)
		m.stats = m.app.Collector.Stats()
		return m, m.tick()
	}

	return m, nil
}

func (m model) View() string {
	var b strings.Builder

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)
	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196"))

	title := fmt.Sprintf("FLIGHTWALL  %s  %.0f km", m.app.Config.Location.Name, m.app.Config.Location.RadiusKm)
	b.WriteString(titleStyle.Render(title))
	b.WriteString("\n\n")

	panel := m.renderPanel()
	if m.radarMode {
		panel = lipgloss.JoinHorizontal(lipgloss.Top, panel, "  ", m.renderRadar())
	} else {
		panel = lipgloss.JoinHorizontal(lipgloss.Top, panel, "  ", m.renderDetails())
	}
	b.WriteString(panel)
	b.WriteString("\n\n")

	status := fmt.Sprintf("%d flights  pass %d  last %s", len(m.flights), m.stats.Passes, m.stats.LastDuration)
	if !m.stats.LastSuccessAt.IsZero() {
		status += "  updated " + m.stats.LastSuccessAt.In(m.app.Location()).Format("15:04:05")
	}
	b.WriteString(helpStyle.Render(status))
	if m.stats.LastError != "" {
		b.WriteString("\n")
		b.WriteString(errStyle.Render(fmt.Sprintf("%s: %s", m.stats.LastErrorKind, m.stats.LastError)))
	}
	if m.status != "" {
		b.WriteString("\n")
		b.WriteString(helpStyle.Render(m.status))
	}

	b.WriteString("\n\n")
	b.WriteString(helpStyle.Render("r: refresh  m: radar  u: units  q: quit"))
	return b.String()
}

// renderPanel draws the current frame as an amber LED panel.
func (m model) renderPanel() string {
	ledColor := lipgloss.Color("214")
	if m.frame.Transition {
		ledColor = lipgloss.Color("226")
	}

	style := lipgloss.NewStyle().
		Foreground(ledColor).
		Background(lipgloss.Color("232")).
		Bold(true).
		Width(m.cols+2).
		Align(lipgloss.Center).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))

	lines := m.frame.Lines()
	if len(lines) == 0 {
		lines = []string{display.Unknown}
	}
	return style.Render(strings.Join(lines, "\n"))
}

// renderDetails lists the live metrics of the card's flight.
func (m model) renderDetails() string {
	labelStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	valueStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("255"))

	if m.frame.Card == nil {
		return labelStyle.Render("No flights in range")
	}
	f := m.flights[m.frame.Index]
	card := m.frame.Card

	rows := [][2]string{
		{"Flight", f.Ident},
		{"Type", f.AircraftType},
		{"Altitude", card.Altitude},
		{"Speed", card.Speed},
		{"Distance", card.Distance},
		{"Bearing", card.Bearing},
	}

	var b strings.Builder
	for _, r := range rows {
		value := r[1]
		if value == "" {
			value = display.Unknown
		}
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-9s", r[0])))
		b.WriteString(valueStyle.Render(value))
		b.WriteString("\n")
	}
	return b.String()
}

func main() {
	configPath := flag.String("config", "configs/config.json", "Path to configuration file")
	cols := flag.Int("cols", display.DefaultColumns, "Panel width in characters")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := app.NewLogger(cfg.Logging, true)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer zl.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer a.Close()

	go func() {
		if err := a.Run(ctx); err != nil {
			zl.Error("producer stopped", logger.Error(err))
		}
	}()

	m := model{
		app:      a,
		reader:   a.NewReader(),
		cols:     *cols,
		imperial: cfg.Display.AltitudeFeet,
	}
	m.wall = display.NewWall(a.WallConfig(*cols))

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
