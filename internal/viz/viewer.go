package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/popsim/internal/growth"
	"github.com/san-kum/popsim/internal/metrics"
	"github.com/san-kum/popsim/internal/region"
)

// Viewer is a bubbletea model for browsing a run's regions and their
// trajectories.
type Viewer struct {
	title    string
	regions  []region.Region
	trajs    []*growth.Trajectory
	capacity float64

	cursor        int
	theme         int
	width, height int
	quitting      bool
}

func NewViewer(title string, regions []region.Region, trajs []*growth.Trajectory, capacity float64) Viewer {
	return Viewer{
		title:    title,
		regions:  regions,
		trajs:    trajs,
		capacity: capacity,
		width:    80,
		height:   24,
	}
}

// WithTheme selects the starting theme by name.
func (m Viewer) WithTheme(name string) Viewer {
	for i, t := range Themes {
		if t.Name == name {
			m.theme = i
		}
	}
	return m
}

func (m Viewer) Selected() int { return m.cursor }

func (m Viewer) Theme() Theme { return Themes[m.theme] }

func (m Viewer) Init() tea.Cmd { return nil }

func (m Viewer) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.regions)-1 {
				m.cursor++
			}
		case "home", "g":
			m.cursor = 0
		case "end", "G":
			m.cursor = max(len(m.regions)-1, 0)
		case "t":
			m.theme = (m.theme + 1) % len(Themes)
		}
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	}
	return m, nil
}

func (m Viewer) View() string {
	if m.quitting {
		return ""
	}
	if len(m.regions) == 0 {
		return "no regions\n"
	}

	theme := m.Theme()
	title := lipgloss.NewStyle().Bold(true).Foreground(theme.Primary)
	selected := lipgloss.NewStyle().Bold(true).Foreground(theme.Accent)
	normal := lipgloss.NewStyle().Foreground(theme.Secondary)

	var s strings.Builder
	s.WriteString(title.Render(m.title) + "\n\n")

	// Keep the list to a window around the cursor on short terminals.
	listRows := max(m.height-22, 3)
	start := max(0, min(m.cursor-listRows/2, len(m.regions)-listRows))
	end := min(len(m.regions), start+listRows)
	for i := start; i < end; i++ {
		r := m.regions[i]
		line := fmt.Sprintf("%-12s P0 %-7d r %+.4f", r.Name, r.InitialPopulation, r.NetGrowthRate())
		if i == m.cursor {
			s.WriteString(selected.Render("▸ "+line) + "\n")
		} else {
			s.WriteString(normal.Render("  "+line) + "\n")
		}
	}
	s.WriteString("\n")

	if m.cursor < len(m.trajs) && m.trajs[m.cursor] != nil {
		s.WriteString(m.detail(m.regions[m.cursor], m.trajs[m.cursor]))
	}

	s.WriteString("\n" + Separator(min(m.width, 60)) + "\n")
	s.WriteString(KeyHint.Render("↑/↓ select  t theme  q quit") + "\n")
	return s.String()
}

func (m Viewer) detail(r region.Region, t *growth.Trajectory) string {
	var s strings.Builder

	plotWidth := max(min(m.width-12, 70), 20)
	if len(t.Population) > 1 {
		s.WriteString(asciigraph.Plot(t.Population,
			asciigraph.Height(10),
			asciigraph.Width(plotWidth),
			asciigraph.Caption(r.Name+" population"),
		))
		s.WriteString("\n\n")
	}

	final := t.Final()
	s.WriteString(MetricLabel.Render("final     ") + MetricValue.Render(fmt.Sprintf("%.1f", final)) + "\n")
	if v, ok := t.Metrics[metrics.NameRelativeChange]; ok {
		s.WriteString(MetricLabel.Render("change    ") + MetricValue.Render(fmt.Sprintf("%+.1f%%", 100*v)) + "\n")
	}
	if v, ok := t.Metrics[metrics.NameHalfCapacityTime]; ok && v >= 0 {
		s.WriteString(MetricLabel.Render("K/2 at    ") + MetricValue.Render(fmt.Sprintf("t=%.2f", v)) + "\n")
	}
	if m.capacity > 0 {
		frac := final / m.capacity
		s.WriteString(MetricLabel.Render("capacity  ") + ProgressBar(frac, 30) +
			MetricValue.Render(fmt.Sprintf(" %.0f%%", 100*frac)) + "\n")
	}
	s.WriteString(MetricLabel.Render("solver    ") +
		Subtle.Render(fmt.Sprintf("%d steps, %d rejected, %d evals", t.Steps, t.Rejected, t.Evaluations)) + "\n")
	return s.String()
}
