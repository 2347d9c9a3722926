// Package tui implements the terminal review UI for correction reports.
//
// A report is the JSON document result written by `redline correct --report`.
// The UI pages through the corrected paragraphs one at a time, showing the
// original text, the corrected text with change markers highlighted, the
// deterministic change descriptions and the applied rules.
package tui

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hurttlocker/redline/internal/pipeline"
)

// LoadReport reads a correction report from disk.
func LoadReport(path string) (*pipeline.DocumentResult, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var res pipeline.DocumentResult
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &res, nil
}

// Model is the Bubble Tea model for the review UI.
type Model struct {
	result   *pipeline.DocumentResult
	viewport viewport.Model
	cursor   int
	ready    bool
	status   string
}

// New creates a review model over a loaded report.
func New(result *pipeline.DocumentResult) Model {
	vp := viewport.New(0, 0)
	status := fmt.Sprintf("%d of %d paragraphs changed. up/down navigate, q quits.",
		len(result.Corrections), result.Paragraphs)
	return Model{result: result, viewport: vp, status: status}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, rh := reportBoxStyle.GetFrameSize()
		reserved := 2 + 1 + 1 // header + summary, spacer, status
		vh := msg.Height - reserved
		if vh < 3 {
			vh = 3
		}
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderCurrent())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "q", "esc":
			return m, tea.Quit
		case "down", "j":
			if n := len(m.result.Corrections); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderCurrent())
				m.viewport.GotoTop()
			}
			return m, nil
		case "up", "k":
			if n := len(m.result.Corrections); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderCurrent())
				m.viewport.GotoTop()
			}
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the review layout.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("Redline Review")
	summary := summaryStyle.Render(m.summaryLine())
	body := reportBoxStyle.Render(m.viewport.View())
	status := statusStyle.Render(m.status)
	return header + "\n" + summary + "\n" + body + "\n" + status
}

func (m Model) summaryLine() string {
	guide := m.result.Guide
	if guide == "" {
		guide = "(unnamed guide)"
	}
	return fmt.Sprintf("guide %s | %d paragraphs | %d corrected",
		guide, m.result.Paragraphs, len(m.result.Corrections))
}

// renderCurrent renders the correction under the cursor.
func (m Model) renderCurrent() string {
	if len(m.result.Corrections) == 0 {
		return "No corrections. The document already follows the guide."
	}
	c := m.result.Corrections[m.cursor]

	var b strings.Builder
	fmt.Fprintf(&b, "Correction %d/%d\n\n", m.cursor+1, len(m.result.Corrections))
	b.WriteString(labelStyle.Render("Original") + "\n")
	b.WriteString(originalStyle.Render(c.Original) + "\n\n")
	b.WriteString(labelStyle.Render("Corrected") + "\n")
	b.WriteString(highlightMarkers(c.Corrected) + "\n")
	if len(c.Changes) > 0 {
		b.WriteString("\n" + labelStyle.Render("Changes") + "\n")
		for _, ch := range c.Changes {
			b.WriteString("  - " + ch + "\n")
		}
	}
	if len(c.Applied) > 0 {
		b.WriteString("\n" + labelStyle.Render("Applied rules") + "\n")
		for _, a := range c.Applied {
			line := fmt.Sprintf("  %.2f  %q -> %q", a.Confidence, snippet(a.Trigger, 40), a.Example)
			if a.Section != "" {
				line += dimStyle.Render("  [" + a.Section + "]")
			}
			b.WriteString(line + "\n")
		}
	}
	return b.String()
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	summaryStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	labelStyle     = lipgloss.NewStyle().Bold(true).Underline(true)
	originalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	changeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	reportBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)

	markerRe = regexp.MustCompile(`<change confidence=([0-9.]+)>((?s).*?)</change>`)
)

// highlightMarkers replaces change markers with the highlighted replacement
// text, the confidence shown dimmed alongside.
func highlightMarkers(text string) string {
	return markerRe.ReplaceAllStringFunc(text, func(s string) string {
		sub := markerRe.FindStringSubmatch(s)
		if len(sub) != 3 {
			return s
		}
		return changeStyle.Render(sub[2]) + dimStyle.Render(" ("+sub[1]+")")
	})
}

// snippet collapses whitespace and truncates long trigger text for one-line
// display.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
