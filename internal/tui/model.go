// Package tui is an interactive terminal front end over the engine. Codes
// typed in the query box are resolved structurally; anything else is a
// similarity search whose families can be paged with up and down.
package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"hsindex/internal/domain"
	"hsindex/internal/hscode"
	"hsindex/internal/resolver"
	"hsindex/internal/search"
)

// Engine is the TUI-facing subset of the query service.
type Engine interface {
	Lookup(query string) (resolver.Result, error)
	Search(ctx context.Context, query string, k int) ([]search.Result, error)
}

// Model is the Bubble Tea model for the TUI application.
type Model struct {
	engine    Engine
	topK      int
	input     textinput.Model
	viewport  viewport.Model
	pages     []string
	summary   string
	status    string
	cursor    int
	ready     bool
	lastQuery string
}

// New creates a model. summary is shown under the title, typically the
// build report.
func New(engine Engine, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "HS code (3502.11) or product description, then Enter"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{engine: engine, topK: topK, input: ti, viewport: vp, summary: summary, status: "Index loaded. Type to search."}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 2 + 1 + qh + 1 // header + summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, max(3, msg.Height-reserved)-rh)
		m.viewport.SetContent(m.currentPage())
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			if q := strings.TrimSpace(m.input.Value()); q != "" {
				m.run(q)
				m.viewport.SetContent(m.currentPage())
				m.viewport.GotoTop()
				return m, nil
			}
		case "down":
			if len(m.pages) > 0 {
				m.cursor = (m.cursor + 1) % len(m.pages)
				m.viewport.SetContent(m.currentPage())
				return m, nil
			}
		case "up":
			if len(m.pages) > 0 {
				m.cursor = (m.cursor - 1 + len(m.pages)) % len(m.pages)
				m.viewport.SetContent(m.currentPage())
				return m, nil
			}
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) run(q string) {
	m.cursor = 0
	m.lastQuery = q
	if looksLikeCode(q) {
		res, err := m.engine.Lookup(q)
		if err != nil {
			m.fail(err)
			return
		}
		m.pages = []string{renderLookup(res)}
		m.status = fmt.Sprintf("Lookup %q", q)
		return
	}
	results, err := m.engine.Search(context.Background(), q, m.topK)
	if err != nil {
		m.fail(err)
		return
	}
	m.pages = make([]string, len(results))
	for i, r := range results {
		m.pages[i] = renderResult(r, q)
	}
	m.status = fmt.Sprintf("%d code families for %q", len(results), q)
}

func (m *Model) fail(err error) {
	m.status = "Error: " + err.Error()
	m.pages = nil
}

// View renders the TUI layout and current result.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("HS Code Search")
	summary := dimStyle.Render(m.summary)
	input := queryBoxStyle.Render(m.input.View())
	status := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	return header + "\n" + summary + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) currentPage() string {
	if len(m.pages) == 0 {
		return "No results yet."
	}
	if len(m.pages) == 1 {
		return m.pages[0]
	}
	return fmt.Sprintf("Result %d/%d\n\n%s", m.cursor+1, len(m.pages), m.pages[m.cursor])
}

func looksLikeCode(q string) bool {
	return hscode.IsDigits(hscode.Normalize(q))
}

func renderLookup(res resolver.Result) string {
	switch r := res.(type) {
	case resolver.HeadingResult:
		var b strings.Builder
		b.WriteString(titleStyle.Render(r.Heading))
		for _, l := range r.RelatedCodes {
			b.WriteString("\n  " + l)
		}
		return b.String()
	case resolver.CodeResult:
		return titleStyle.Render(r.Code) + "  " + r.Description
	case resolver.NotFound:
		return r.Error
	}
	return ""
}

func renderResult(r search.Result, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  score=%.3f\n", titleStyle.Render(r.Code), r.Score)
	b.WriteString(r.Description + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s (%s)", r.File, category(r.Category))))
	if c := strings.TrimSpace(r.Content); c != "" {
		b.WriteString("\n\n" + highlightBestSentence(c, query))
	}
	for _, g := range r.SubCodes {
		fmt.Fprintf(&b, "\n\n[%s]", g.Suffix)
		for _, rec := range g.Records {
			fmt.Fprintf(&b, "\n  %s  %s  %s", rec.Code, rec.Description, dimStyle.Render(rec.File))
		}
	}
	return b.String()
}

func category(c domain.Category) string {
	if c == domain.CategoryNone {
		return "uncategorised"
	}
	return string(c)
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	titleStyle     = lipgloss.NewStyle().Bold(true)
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

func highlightBestSentence(text, query string) string {
	if strings.TrimSpace(text) == "" {
		return text
	}
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		sentences = []string{strings.TrimSpace(text)}
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return strings.Join(sentences, " ")
	}
	bestIdx := 0
	bestScore := -1
	for i, s := range sentences {
		score := tokenOverlapScore(qTokens, s)
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	for i := range sentences {
		sent := strings.TrimSpace(sentences[i])
		if i == bestIdx {
			sentences[i] = highlightStyle.Render(sent)
		} else {
			sentences[i] = sent
		}
	}
	return strings.Join(sentences, " ")
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
