// Package tui implements cmd/cascade's live monitor: a superstep-by-
// superstep view of a running Driver, showing progress toward a step
// budget, the particle count, and a scrolling feed of the latest
// non-success outcomes (collision, reentry, exit, non-finite state;
// conjunctions are not shown) (SPEC_FULL.md §2 "CLI").
// Grounded on the teacher's internal/tui/interactive.go bubbletea
// model (menu/config/sim states, lipgloss color palette, sparkline
// helper), generalized from a model-picker + physics-canvas renderer
// to a single always-running Driver feed, since a collision/
// conjunction pipeline has no natural phase-space canvas to draw.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/cascade/internal/driver"
)

var (
	cyan    = lipgloss.NewStyle().Foreground(lipgloss.Color("86"))
	white   = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	dim     = lipgloss.NewStyle().Foreground(lipgloss.Color("242"))
	dimmer  = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	green   = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	yellow  = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
	magenta = lipgloss.NewStyle().Foreground(lipgloss.Color("213"))
	red     = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

const maxFeed = 10

// Monitor is the bubbletea model driving the live view.
type Monitor struct {
	d          *driver.Driver
	label      string
	totalSteps int

	stepsRun int
	paused   bool
	speed    int // superstep() calls per tick
	feed     []string
	lastErr  error

	width, height int
}

// NewMonitor builds a Monitor that advances d for up to totalSteps
// supersteps (0 means unbounded).
func NewMonitor(d *driver.Driver, label string, totalSteps int) *Monitor {
	return &Monitor{
		d:          d,
		label:      label,
		totalSteps: totalSteps,
		speed:      1,
		width:      80,
		height:     24,
	}
}

func (m *Monitor) Init() tea.Cmd { return tick() }

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(80*time.Millisecond, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *Monitor) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case " ", "p":
			m.paused = !m.paused
		case "+", "=":
			if m.speed < 64 {
				m.speed *= 2
			}
		case "-", "_":
			if m.speed > 1 {
				m.speed /= 2
			}
		}
		return m, nil
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil
	case tickMsg:
		if m.done() {
			return m, nil
		}
		if !m.paused {
			for i := 0; i < m.speed && !m.done(); i++ {
				m.advance()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Monitor) done() bool {
	return m.lastErr != nil || (m.totalSteps > 0 && m.stepsRun >= m.totalSteps)
}

func (m *Monitor) advance() {
	out, err := m.d.Step()
	if err != nil {
		m.lastErr = err
		m.pushFeed(red.Render(fmt.Sprintf("t=%.4f  error: %v", m.d.Time().Float64(), err)))
		return
	}
	m.stepsRun++
	if out.Kind == driver.OutcomeSuccess {
		return
	}
	var line string
	switch out.Kind {
	case driver.OutcomeCollision:
		line = fmt.Sprintf("t=%.4f  %s  particles (%d, %d)", out.Time, yellow.Render("collision"), out.I, out.J)
	case driver.OutcomeReentry:
		line = fmt.Sprintf("t=%.4f  %s  particle %d", out.Time, magenta.Render("reentry"), out.I)
	case driver.OutcomeExit:
		line = fmt.Sprintf("t=%.4f  %s  particle %d", out.Time, dim.Render("exit"), out.I)
	case driver.OutcomeNonFiniteState:
		line = fmt.Sprintf("t=%.4f  %s  particle %d", out.Time, red.Render("non-finite state"), out.I)
	}
	m.pushFeed(line)
}

func (m *Monitor) pushFeed(line string) {
	m.feed = append(m.feed, line)
	if len(m.feed) > maxFeed {
		m.feed = m.feed[len(m.feed)-maxFeed:]
	}
}

func (m *Monitor) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(dimmer.Render("  ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n")
	b.WriteString("        " + cyan.Render("c a s c a d e") + "  " + dim.Render(m.label) + "\n")
	b.WriteString(dimmer.Render("  ╺━━━━━━━━━━━━━━━━━━━━━━━━╸") + "\n\n")

	statusIcon, statusText := green.Render("●"), green.Render("running")
	if m.paused {
		statusIcon, statusText = yellow.Render("○"), yellow.Render("paused")
	}
	if m.done() {
		statusIcon, statusText = dim.Render("■"), dim.Render("done")
	}
	b.WriteString(fmt.Sprintf("  %s %s  t=%.4f  particles=%d  speed=%dx/tick\n\n",
		statusIcon, statusText, m.d.Time().Float64(), m.d.NumParticles(), m.speed))

	if m.totalSteps > 0 {
		progress := float64(m.stepsRun) / float64(m.totalSteps)
		if progress > 1 {
			progress = 1
		}
		barWidth := 40
		filled := int(progress * float64(barWidth))
		bar := cyan.Render(strings.Repeat("━", filled)) + dimmer.Render(strings.Repeat("─", barWidth-filled))
		b.WriteString(fmt.Sprintf("  %s  %d/%d\n\n", bar, m.stepsRun, m.totalSteps))
	} else {
		b.WriteString(fmt.Sprintf("  %s\n\n", dim.Render(fmt.Sprintf("supersteps run: %d", m.stepsRun))))
	}

	b.WriteString(dim.Render("  events") + "\n")
	b.WriteString(dimmer.Render("  " + strings.Repeat("─", 50)) + "\n")
	if len(m.feed) == 0 {
		b.WriteString(dimmer.Render("  (none yet)") + "\n")
	}
	for _, line := range m.feed {
		b.WriteString("  " + line + "\n")
	}

	b.WriteString("\n" + dim.Render("  space pause  + - speed  q quit") + "\n")

	return b.String()
}

// Run starts the bubbletea program for m and blocks until the user
// quits or the step budget is exhausted.
func Run(d *driver.Driver, label string, totalSteps int) error {
	p := tea.NewProgram(NewMonitor(d, label, totalSteps), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
