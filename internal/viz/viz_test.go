package viz

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/synchro/internal/field"
	"github.com/san-kum/synchro/internal/sim"
)

func key(s string) tea.KeyMsg {
	if s == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newModel(t *testing.T) Model {
	t.Helper()
	m, err := NewModel(sim.DefaultSetup(), sim.ModeBaseline, 0.01)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestCanvasSetClear(t *testing.T) {
	c := NewCanvas(2, 1)
	c.Set(0, 0)
	c.Set(3, 3)
	c.Set(-1, 0)
	c.Set(99, 0)
	if got := c.String(); got != "\u2801\u2880\n" {
		t.Errorf("canvas = %q", got)
	}
	if !c.Dot(0, 0) || !c.Dot(3, 3) || c.Dot(1, 0) || c.Dot(-1, 0) {
		t.Error("Dot disagrees with Set")
	}
	c.Clear()
	if got := c.String(); got != "\u2800\u2800\n" {
		t.Errorf("after clear = %q", got)
	}
}

func TestDrawLineEndpoints(t *testing.T) {
	c := NewCanvas(5, 3)
	c.DrawLine(1, 1, 8, 5)
	for _, p := range [][2]int{{1, 1}, {8, 5}} {
		if !c.Dot(p[0], p[1]) {
			t.Errorf("endpoint %v not drawn", p)
		}
	}
	c.Clear()
	c.DrawLine(4, 4, 4, 4)
	if !c.Dot(4, 4) {
		t.Error("single-dot line not drawn")
	}
}

func TestDrawDial(t *testing.T) {
	c := NewCanvas(10, 5)
	c.DrawDial(10, 10, 9, 0, 3)
	// blade at θ=0 points along +x from the centre
	if !c.Dot(18, 10) {
		t.Error("blade at theta=0 not drawn")
	}
	// top of the circle
	if !c.Dot(10, 1) {
		t.Error("circle top not drawn")
	}
}

func TestWindowCells(t *testing.T) {
	w := WindowAround(900, 0, 400, 120, 20, 8)
	xs, ys := w.Axes()
	if len(xs) != 20 || len(ys) != 8 {
		t.Fatalf("axes %d×%d", len(xs), len(ys))
	}
	if xs[0] != 520 || ys[0] != -105 {
		t.Errorf("first centres = %v, %v", xs[0], ys[0])
	}
	if r, c, ok := w.cell(900, -60); !ok || r != 2 || c != 10 {
		t.Errorf("cell(900,-60) = %d,%d,%v", r, c, ok)
	}
	if _, _, ok := w.cell(2000, 0); ok {
		t.Error("point outside window reported inside")
	}
}

func TestHeatmapMarksRotors(t *testing.T) {
	f, err := field.New(field.DefaultConfig())
	if err != nil {
		t.Fatal(err)
	}
	w := WindowAround(900, 0, 400, 120, 20, 8)
	out := Heatmap(f, w, 0, []Marker{{X: 900, Y: -60, Label: 'M'}, {X: 900, Y: 60, Label: 'F'}})
	if strings.Count(out, "\n") != 8 {
		t.Errorf("expected 8 rows, got %d", strings.Count(out, "\n"))
	}
	if !strings.Contains(out, "M") || !strings.Contains(out, "F") {
		t.Error("rotor markers missing")
	}
	if Heatmap(f, Window{}, 0, nil) != "" {
		t.Error("empty window should render nothing")
	}
}

func TestNewModelRejectsBadDt(t *testing.T) {
	if _, err := NewModel(sim.DefaultSetup(), sim.Off, 0); err == nil {
		t.Error("expected error for dt=0")
	}
}

func TestModelTickAdvances(t *testing.T) {
	m := newModel(t)
	if m.Twin().Mode() != sim.ModeBaseline {
		t.Fatalf("mode = %v", m.Twin().Mode())
	}

	next, cmd := m.Update(TickMsg{})
	m = next.(Model)
	if cmd == nil {
		t.Error("tick should schedule the next frame")
	}
	// 1/(30·0.01) rounds to 3 ticks per frame
	if got := m.Sample().Step; got != 3 {
		t.Errorf("step = %d, want 3", got)
	}

	next, _ = m.Update(key(" "))
	m = next.(Model)
	if m.Running() {
		t.Fatal("space should pause")
	}
	next, _ = m.Update(TickMsg{})
	m = next.(Model)
	if got := m.Sample().Step; got != 3 {
		t.Errorf("paused model advanced to step %d", got)
	}
}

func TestModelModeKeys(t *testing.T) {
	m := newModel(t)
	for k, want := range map[string]sim.Mode{"0": sim.Off, "2": sim.ModePFD, "3": sim.ModeAdaptive, "1": sim.ModeBaseline} {
		next, _ := m.Update(key(k))
		m = next.(Model)
		if m.Twin().Mode() != want {
			t.Errorf("key %s: mode = %v, want %v", k, m.Twin().Mode(), want)
		}
	}
}

func TestModelReset(t *testing.T) {
	m := newModel(t)
	for i := 0; i < 5; i++ {
		next, _ := m.Update(TickMsg{})
		m = next.(Model)
	}
	next, _ := m.Update(key("r"))
	m = next.(Model)
	if m.Twin().Time() != 0 {
		t.Errorf("time after reset = %v", m.Twin().Time())
	}
	if m.Twin().Mode() != sim.ModeBaseline {
		t.Errorf("reset changed mode to %v", m.Twin().Mode())
	}
}

func TestModelView(t *testing.T) {
	m := newModel(t)
	for i := 0; i < 3; i++ {
		next, _ := m.Update(TickMsg{})
		m = next.(Model)
	}
	view := m.View()
	for _, want := range []string{"SYNCHRO", "BASELINE", "rpm main", "15 s mean", "main", "follower", "kg/m³"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}

	next, _ := m.Update(key("?"))
	if !strings.Contains(next.(Model).View(), "KEYBOARD SHORTCUTS") {
		t.Error("help overlay not shown")
	}
}

func TestLegend(t *testing.T) {
	out := Legend(1.08, 1.37, 12)
	for _, want := range []string{"1.08", "1.37", "kg/m³"} {
		if !strings.Contains(out, want) {
			t.Errorf("legend missing %q: %q", want, out)
		}
	}
	if got := legendWidth(Window{Cols: 40}); got != 60 {
		t.Errorf("legendWidth(40 cols) = %d, want 60", got)
	}
	if got := legendWidth(Window{Cols: 2}); got != 8 {
		t.Errorf("legendWidth(2 cols) = %d, want 8", got)
	}
}

func TestThemeCycle(t *testing.T) {
	defer SetTheme("cyberpunk")
	SetTheme("cyberpunk")
	NextTheme()
	if CurrentTheme.Name != "retro" {
		t.Errorf("next theme = %s", CurrentTheme.Name)
	}
	if GetTheme("nope").Name != "cyberpunk" {
		t.Error("unknown theme should fall back")
	}
	if len(ThemeNames()) != len(Themes) {
		t.Error("theme names mismatch")
	}
}

func TestPickerFlow(t *testing.T) {
	var p tea.Model = NewInteractiveApp(0.01, nil)
	if !strings.Contains(p.View(), "standard") {
		t.Fatal("preset list missing")
	}
	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !strings.Contains(p.View(), "phase-frequency detector") {
		t.Fatal("mode list missing")
	}
	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Error("starting the live view should schedule a tick")
	}
	if !strings.Contains(p.View(), "BASELINE") {
		t.Error("live view should start in baseline (second entry)")
	}
}
