package viz

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/synchro/internal/metrics"
	"github.com/san-kum/synchro/internal/sim"
)

const (
	frameRate       = 30
	historyCapacity = 600
	heatCols        = 32
	heatRows        = 12
	dialWidth       = 14 // characters per dial
	dialHeight      = 7
)

var (
	statsStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(0, 2).Width(46)
	graphStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("49")).Padding(1, 0)
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

// Model steps a Twin in real time and renders it.
type Model struct {
	setup   sim.Setup
	twin    *sim.Twin
	rolling *metrics.RollingSpeedError
	mode    sim.Mode
	dt      float64
	speed   int // ticks per frame
	window  Window

	running  bool
	showHelp bool
	last     sim.Sample
	speedErr []float64
	phaseErr []float64
	err      error
}

// NewModel builds the twin from setup and selects mode. dt is the
// simulation step; the view advances real time at frameRate frames per
// second.
func NewModel(setup sim.Setup, mode sim.Mode, dt float64) (Model, error) {
	m := Model{setup: setup, mode: mode, dt: dt, running: true}
	if !(dt > 0) {
		return m, fmt.Errorf("viz: dt must be positive, got %v", dt)
	}
	m.speed = max(1, int(math.Round(1.0/(frameRate*dt))))
	if err := m.reset(); err != nil {
		return m, err
	}

	mx, my := setup.Main.X, setup.Main.Y
	fy := setup.Follower.Y
	half := math.Max(math.Abs(fy-my), 1)
	m.window = WindowAround(mx, (my+fy)/2, 2*half*float64(heatCols)/float64(heatRows), half*1.5, heatCols, heatRows)
	return m, nil
}

func (m *Model) reset() error {
	tw, err := sim.New(m.setup)
	if err != nil {
		return err
	}
	if err := tw.SetMode(m.mode); err != nil {
		return err
	}
	m.twin = tw
	m.mode = tw.Mode()
	m.rolling = metrics.NewRollingSpeedError(metrics.DefaultRollingWindow)
	m.last = tw.Sample()
	m.speedErr = m.speedErr[:0]
	m.phaseErr = m.phaseErr[:0]
	m.err = nil
	return nil
}

func tick() tea.Cmd {
	return tea.Tick(time.Second/frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "0":
			m.setMode(sim.Off)
		case "1":
			m.setMode(sim.ModeBaseline)
		case "2":
			m.setMode(sim.ModePFD)
		case "3":
			m.setMode(sim.ModeAdaptive)
		case "r":
			m.err = m.reset()
		case "+", "=":
			m.speed = min(m.speed*2, 64)
		case "-", "_":
			m.speed = max(m.speed/2, 1)
		case "t":
			NextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			m.advance(m.speed)
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) setMode(mode sim.Mode) {
	if err := m.twin.SetMode(mode); err != nil {
		m.err = err
		return
	}
	m.mode = mode
	m.last = m.twin.Sample()
}

// advance steps the twin n ticks and records the frame's history point.
func (m *Model) advance(n int) {
	for i := 0; i < n; i++ {
		s := m.twin.Step(m.dt)
		m.rolling.Observe(s)
		m.last = s
	}
	m.speedErr = appendCapped(m.speedErr, math.Abs(m.last.SpeedErrorRPM))
	m.phaseErr = appendCapped(m.phaseErr, m.last.PhaseError)
}

func appendCapped(buf []float64, v float64) []float64 {
	buf = append(buf, v)
	if len(buf) > historyCapacity {
		buf = buf[len(buf)-historyCapacity:]
	}
	return buf
}

// Twin exposes the running twin.
func (m Model) Twin() *sim.Twin { return m.twin }

// Sample is the most recent tick.
func (m Model) Sample() sim.Sample { return m.last }

// Running reports whether the simulation is advancing.
func (m Model) Running() bool { return m.running }

func (m Model) View() string {
	theme := CurrentTheme
	s := m.last

	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary).Render("SYNCHRO")
	status := StatusRunning.Render("RUNNING")
	if !m.running {
		status = StatusPaused.Render("PAUSED")
	}
	header := HeaderStyle.Render(fmt.Sprintf("%s  %s  mode %s  ×%d", title, status, strings.ToUpper(string(m.mode)), m.speed))

	markers := []Marker{
		{X: s.Main.X, Y: s.Main.Y, Label: 'M', Color: theme.Primary},
		{X: s.Follower.X, Y: s.Follower.Y, Label: 'F', Color: theme.Follower},
	}
	lo, hi := m.twin.Field().Bounds()
	left := lipgloss.JoinVertical(lipgloss.Left,
		Heatmap(m.twin.Field(), m.window, s.Time, markers),
		Legend(lo, hi, legendWidth(m.window)),
		"",
		m.dials(),
	)

	var b strings.Builder
	row := func(label, value string) {
		b.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("time", fmt.Sprintf("%.2f s", s.Time))
	row("rpm main", fmt.Sprintf("%.1f", s.Main.RPM))
	row("rpm follower", fmt.Sprintf("%.1f", s.Follower.RPM))
	row("ΔRPM", fmt.Sprintf("%+.2f", s.SpeedErrorRPM))
	row("15 s mean", fmt.Sprintf("%.2f", m.rolling.Value()))
	row("phase error", fmt.Sprintf("%+.1f°", s.PhaseError*180/math.Pi))
	row("ρ main/foll", fmt.Sprintf("%.3f / %.3f", s.Main.Density, s.Follower.Density))
	row("beat", fmt.Sprintf("%.2f Hz", s.BeatFrequency))
	row("correction", fmt.Sprintf("%+.2f RPM", s.Correction))

	if s.Control.Enabled {
		limit := m.outputLimit()
		b.WriteString(MetricLabel.Render("output") + ProgressBar(s.Correction/limit, 20) + "\n")
		row("P / I / D", fmt.Sprintf("%+.2f %+.2f %+.2f", s.Control.P, s.Control.I, s.Control.D))
		if m.mode == sim.ModePFD {
			row("freq term", fmt.Sprintf("%+.2f", s.Control.FrequencyTerm))
		}
		if s.Control.Schedule != "" {
			row("schedule", s.Control.Schedule)
		}
		flags := []string{}
		if s.Control.InDeadband {
			flags = append(flags, "deadband")
		}
		if s.Control.IntegratorSaturated {
			flags = append(flags, "i-sat")
		}
		if s.Control.OutputSaturated {
			flags = append(flags, "out-sat")
		}
		if s.Control.RateLimited {
			flags = append(flags, "rate")
		}
		if len(flags) > 0 {
			b.WriteString(StatusPaused.Render(strings.Join(flags, " ")) + "\n")
		}
	}

	if len(m.speedErr) > 1 {
		chart := asciigraph.Plot(m.speedErr, asciigraph.Height(5), asciigraph.Width(36), asciigraph.Caption("|ΔRPM|"))
		b.WriteString(graphStyle.Render(chart) + "\n")
		b.WriteString(MetricLabel.Render("phase") + SparklineChart(m.phaseErr, 28) + "\n")
	}
	if m.err != nil {
		b.WriteString(lipgloss.NewStyle().Foreground(theme.Error).Render(m.err.Error()) + "\n")
	}
	b.WriteString(helpStyle.Render("SP:Pause 0-3:Mode R:Reset +/-:Speed\nT:Theme ?:Help Q:Quit"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, left, statsStyle.Render(b.String()))
	view := header + "\n" + main
	if m.showHelp {
		return helpText + "\n" + view
	}
	return view
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  0        - Synchrophaser off        ║
║  1        - Baseline PID             ║
║  2        - Phase-frequency detector ║
║  3        - Adaptive gains           ║
║  R        - Reset to t = 0           ║
║  + / -    - Faster / slower          ║
║  T        - Cycle themes             ║
║  Q        - Quit                     ║
╚══════════════════════════════════════╝`

// legendWidth fits the ramp and its two labels under the heatmap, which
// draws two columns per cell.
func legendWidth(w Window) int {
	return max(2*w.Cols-20, 8)
}

func (m Model) outputLimit() float64 {
	if c := m.twin.Controller(m.mode); c != nil && c.Gains().OutputLimit > 0 {
		return c.Gains().OutputLimit
	}
	return 1
}

// dials draws both rotors' blade positions side by side.
func (m Model) dials() string {
	theme := CurrentTheme
	render := func(theta float64, color lipgloss.Color, label string) string {
		c := NewCanvas(dialWidth, dialHeight)
		r := min(dialWidth*2, dialHeight*4)/2 - 1
		c.DrawDial(dialWidth, dialHeight*2, r, theta, m.twin.BladeCount())
		body := lipgloss.NewStyle().Foreground(color).Render(strings.TrimRight(c.String(), "\n"))
		return lipgloss.JoinVertical(lipgloss.Center, body, Subtle.Render(label))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top,
		render(m.last.Main.Theta, theme.Primary, "main"),
		"  ",
		render(m.last.Follower.Theta, theme.Follower, "follower"),
	)
}
