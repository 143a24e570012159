package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/synchro/internal/config"
	"github.com/san-kum/synchro/internal/logging"
	"github.com/san-kum/synchro/internal/sim"
)

var (
	pickTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00cccc")).Bold(true)
	pickSub      = lipgloss.NewStyle().Foreground(lipgloss.Color("#666688"))
	pickCursor   = lipgloss.NewStyle().Foreground(lipgloss.Color("#00ffff")).Bold(true)
	pickSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("#ffffff")).Bold(true)
	pickDesc     = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff88ff"))
	pickIdle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#555566"))
	pickKey      = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aaaa")).Bold(true)
)

var modeInfo = map[sim.Mode]string{
	sim.Off:          "governors only",
	sim.ModeBaseline: "PID on phase error",
	sim.ModePFD:      "phase-frequency detector",
	sim.ModeAdaptive: "gain-scheduled PID",
}

const (
	statePreset = iota
	stateMode
	stateSim
)

type picker struct {
	state   int
	cursor  int
	presets []string
	preset  string
	modes   []sim.Mode
	dt      float64
	log     *logging.Logger

	live Model
	err  error
}

// NewInteractiveApp returns the preset/mode picker. dt is the simulation
// step used once the live view starts.
func NewInteractiveApp(dt float64, log *logging.Logger) *picker {
	return &picker{
		state:   statePreset,
		presets: config.ListPresets(),
		modes:   sim.Modes(),
		dt:      dt,
		log:     log,
	}
}

func (p picker) Init() tea.Cmd { return nil }

func (p picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if p.state == stateSim {
		next, cmd := p.live.Update(msg)
		p.live = next.(Model)
		return p, cmd
	}

	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	n := len(p.presets)
	if p.state == stateMode {
		n = len(p.modes)
	}

	switch key.String() {
	case "q", "ctrl+c":
		return p, tea.Quit
	case "esc":
		if p.state == stateMode {
			p.state, p.cursor = statePreset, 0
		}
	case "up", "k":
		if p.cursor > 0 {
			p.cursor--
		}
	case "down", "j":
		if p.cursor < n-1 {
			p.cursor++
		}
	case "enter", " ":
		if p.state == statePreset {
			p.preset = p.presets[p.cursor]
			p.state, p.cursor = stateMode, 1
			return p, nil
		}
		return p.start(p.modes[p.cursor])
	}
	return p, nil
}

func (p picker) start(mode sim.Mode) (tea.Model, tea.Cmd) {
	cfg := config.GetPreset(p.preset)
	if cfg == nil {
		p.err = fmt.Errorf("unknown preset %q", p.preset)
		return p, nil
	}
	live, err := NewModel(cfg.Setup(p.log), mode, p.dt)
	if err != nil {
		p.err = err
		return p, nil
	}
	p.live = live
	p.state = stateSim
	return p, p.live.Init()
}

func (p picker) View() string {
	if p.state == stateSim {
		return p.live.View()
	}

	var b strings.Builder
	b.WriteString("\n\n    " + pickTitle.Render("SYNCHRO") + "\n    " + pickSub.Render("twin propeller synchrophaser") + "\n    " + pickSub.Render("─────────────────────────") + "\n\n")

	var items, descs []string
	if p.state == statePreset {
		b.WriteString("    " + pickSub.Render("preset") + "\n")
		items = p.presets
		for range items {
			descs = append(descs, "")
		}
	} else {
		b.WriteString("    " + pickSub.Render("preset "+p.preset+" · mode") + "\n")
		for _, m := range p.modes {
			items = append(items, string(m))
			descs = append(descs, modeInfo[m])
		}
	}

	for i, name := range items {
		if i == p.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", pickCursor.Render("▸"), pickSelected.Render(fmt.Sprintf("%-12s", name)), pickDesc.Render(descs[i])))
		} else {
			b.WriteString(fmt.Sprintf("    %s  %s\n", pickIdle.Render(fmt.Sprintf("  %-12s", name)), pickIdle.Render(descs[i])))
		}
	}
	if p.err != nil {
		b.WriteString("\n    " + lipgloss.NewStyle().Foreground(CurrentTheme.Error).Render(p.err.Error()) + "\n")
	}
	b.WriteString("\n    " + pickKey.Render("j/k") + pickIdle.Render(" navigate  ") + pickKey.Render("enter") + pickIdle.Render(" select  ") + pickKey.Render("esc") + pickIdle.Render(" back  ") + pickKey.Render("q") + pickIdle.Render(" quit") + "\n")
	return b.String()
}

func RunInteractive(dt float64, log *logging.Logger) error {
	_, err := tea.NewProgram(NewInteractiveApp(dt, log), tea.WithAltScreen()).Run()
	return err
}

// RunLive starts the live view directly.
func RunLive(setup sim.Setup, mode sim.Mode, dt float64) error {
	m, err := NewModel(setup, mode, dt)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
