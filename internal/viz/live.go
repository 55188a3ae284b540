package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/san-kum/cablefea/internal/dynamo"
)

const (
	width           = 60
	height          = 20
	historyCapacity = 600
	tickRate        = time.Second / 30
)

var (
	canvasStyle = lipgloss.NewStyle().Padding(1, 2)
	statsStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, false, true).BorderForeground(lipgloss.Color("240")).Padding(1, 2).Width(44)
	helpStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).MarginTop(1)
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(tickRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model is a Bubble Tea program that steps a finalized system and draws
// the cable in the x-y plane.
type Model struct {
	sys      *dynamo.System
	dt       float64
	substeps int
	maxSteps int
	title    string

	canvas   *Canvas
	view     Viewport
	theme    Theme
	running  bool
	showHelp bool
	err      error

	frames   []*dynamo.Frame
	tipY     []float64
	playHead int
}

// NewModel prepares a live view of sys. Each tick advances substeps steps
// of size dt; maxSteps of zero runs until quit.
func NewModel(sys *dynamo.System, title string, dt float64, substeps, maxSteps int) Model {
	m := Model{
		sys:      sys,
		dt:       dt,
		substeps: max(substeps, 1),
		maxSteps: maxSteps,
		title:    title,
		canvas:   NewCanvas(width, height),
		theme:    ThemeSteel,
		running:  true,
		frames:   make([]*dynamo.Frame, 0, historyCapacity),
		tipY:     make([]float64, 0, historyCapacity),
		playHead: -1,
	}
	first := sys.Frame()
	m.view = fitView(m.canvas, first)
	m.record(first)
	return m
}

// fitView centers the view on the first node with room for the cable to
// swing through a full circle.
func fitView(c *Canvas, f *dynamo.Frame) Viewport {
	if len(f.Nodes) == 0 {
		return NewViewport(c, 0, 0, 1)
	}
	var reach float64
	root := f.Nodes[0].Pos
	for _, n := range f.Nodes {
		reach = max(reach, n.Pos.Sub(root).Len())
	}
	for _, b := range f.Bodies {
		reach = max(reach, b.Pos.Sub(root).Len())
	}
	return NewViewport(c, root.X(), root.Y(), 1.15*reach)
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
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "t":
			m.theme = m.theme.Next()
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.frames) {
					m.playHead = -1
				}
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	if m.err != nil || m.done() {
		m.running = false
		return
	}
	for i := 0; i < m.substeps && !m.done(); i++ {
		if err := m.sys.Step(m.dt); err != nil {
			m.err = err
			m.running = false
			break
		}
	}
	m.record(m.sys.Frame())
}

func (m *Model) done() bool {
	return m.maxSteps > 0 && m.sys.Steps() >= m.maxSteps
}

func (m *Model) record(f *dynamo.Frame) {
	m.frames = append(m.frames, f)
	if len(m.frames) > historyCapacity {
		m.frames = m.frames[1:]
	}
	if len(f.Nodes) > 0 {
		m.tipY = append(m.tipY, f.Nodes[len(f.Nodes)-1].Pos.Y())
		if len(m.tipY) > historyCapacity {
			m.tipY = m.tipY[1:]
		}
	}
}

// scrub moves the replay position through recorded frames.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.frames) == 0 {
			return
		}
		m.playHead = len(m.frames) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.frames) {
		m.playHead = -1
	}
}

// Current returns the frame being displayed.
func (m Model) Current() *dynamo.Frame {
	if m.playHead >= 0 && m.playHead < len(m.frames) {
		return m.frames[m.playHead]
	}
	return m.frames[len(m.frames)-1]
}

// Err returns the step error that stopped the simulation, if any.
func (m Model) Err() error { return m.err }

// Draw renders f onto the canvas.
func (m *Model) Draw(f *dynamo.Frame) {
	m.canvas.Clear()
	for i := 1; i < len(f.Nodes); i++ {
		x0, y0 := m.view.Project(f.Nodes[i-1].Pos.X(), f.Nodes[i-1].Pos.Y())
		x1, y1 := m.view.Project(f.Nodes[i].Pos.X(), f.Nodes[i].Pos.Y())
		m.canvas.DrawLine(x0, y0, x1, y1)
	}
	for _, b := range f.Bodies {
		x, y := m.view.Project(b.Pos.X(), b.Pos.Y())
		m.canvas.DrawRect(x-2, y-3, x+2, y+3)
	}
}

func (m Model) View() string {
	f := m.Current()
	m.Draw(f)
	canvasView := canvasStyle.Render(lipgloss.NewStyle().Foreground(m.theme.Cable).Render(m.canvas.String()))

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = StatusFailed.Render("FAILED")
	case m.playHead != -1:
		status = StatusPaused.Render(fmt.Sprintf("REPLAY (%.2fs)", f.Time))
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(status + "\n\n")
	s.WriteString(Row("time", fmt.Sprintf("%.2fs", f.Time)) + "\n")
	s.WriteString(Row("step", fmt.Sprintf("%d", f.Step)) + "\n")
	s.WriteString(Row("kinetic energy", fmt.Sprintf("%.3e J", f.KineticEnergy)) + "\n")
	s.WriteString(Row("violation", fmt.Sprintf("%.2e", f.MaxViolation)) + "\n")
	s.WriteString(Row("solver iters", fmt.Sprintf("%d", f.Solve.Iterations)) + "\n")
	if len(f.Nodes) > 0 {
		tip := f.Nodes[len(f.Nodes)-1].Pos
		s.WriteString(Row("tip", fmt.Sprintf("(%.3f, %.3f)", tip.X(), tip.Y())) + "\n")
	}
	if m.maxSteps > 0 {
		s.WriteString("\n" + ProgressBar(float64(f.Step)/float64(m.maxSteps), 30) + "\n")
	}
	if len(m.tipY) > 1 {
		s.WriteString("\n" + Subtle.Render("tip height") + "\n")
		s.WriteString(lipgloss.NewStyle().Foreground(m.theme.Accent).Render(Sparkline(m.tipY, 36)) + "\n")
	}
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Error).Width(38).Render(m.err.Error()) + "\n")
	}
	s.WriteString(helpStyle.Render("SP:Pause [ ]:Scrub T:Theme ?:Help Q:Quit"))

	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, statsStyle.Render(s.String()))
	if m.showHelp {
		help := Panel.Render(strings.Join([]string{
			Title.Render("KEYBOARD SHORTCUTS"),
			"Space  pause or resume",
			"[ ]    scrub recorded frames",
			"T      cycle themes (" + strings.Join(ThemeNames(), ", ") + ")",
			"?      toggle this help",
			"Q      quit",
		}, "\n"))
		return help + "\n" + mainView
	}
	return mainView
}
