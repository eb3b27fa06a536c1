package cli

import (
	"context"
	stderrors "errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/modgraph/pkg/preview"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// exportFormats are offered in the order of the page's save dialog.
var exportFormats = []string{"pdf", "png", "svg"}

// =============================================================================
// DestinationModel - Interactive export destination
// =============================================================================

// DestinationModel is the bubbletea model asking where to save an export:
// a file name typed in place and a format picked with tab.
type DestinationModel struct {
	Dir       string
	Name      []rune
	Format    int
	Done      bool
	Cancelled bool
}

// NewDestinationModel creates a prompt for a file in dir, prefilled with name.
func NewDestinationModel(dir, name string) DestinationModel {
	return DestinationModel{Dir: dir, Name: []rune(name), Format: len(exportFormats) - 1}
}

func (m DestinationModel) Init() tea.Cmd {
	return nil
}

func (m DestinationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	if key.Type == tea.KeyRunes {
		m.Name = append(m.Name, key.Runes...)
		return m, nil
	}

	switch key.String() {
	case "ctrl+c", "esc":
		m.Cancelled = true
		return m, tea.Quit
	case "enter":
		if strings.TrimSpace(string(m.Name)) == "" {
			return m, nil
		}
		m.Done = true
		return m, tea.Quit
	case "tab", "right":
		m.Format = (m.Format + 1) % len(exportFormats)
	case "shift+tab", "left":
		m.Format = (m.Format + len(exportFormats) - 1) % len(exportFormats)
	case "backspace":
		if len(m.Name) > 0 {
			m.Name = m.Name[:len(m.Name)-1]
		}
	case "ctrl+u":
		m.Name = m.Name[:0]
	}
	return m, nil
}

func (m DestinationModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Export Graph"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("type a name  ⇥ format  ⏎ save  esc cancel"))
	b.WriteString("\n\n")

	b.WriteString(listDimStyle.Render(m.Dir + string(filepath.Separator)))
	b.WriteString(listNormalStyle.Render(string(m.Name)))
	b.WriteString(listSelectedStyle.Render("." + exportFormats[m.Format]))
	b.WriteString(listDimStyle.Render("▏"))
	b.WriteString("\n\n")

	for i, f := range exportFormats {
		if i > 0 {
			b.WriteString("  ")
		}
		if i == m.Format {
			b.WriteString(listSelectedStyle.Render("▸ " + strings.ToUpper(f)))
		} else {
			b.WriteString(listDimStyle.Render("  " + strings.ToUpper(f)))
		}
	}
	b.WriteString("\n")
	return b.String()
}

// Path returns the chosen destination. An absolute name ignores Dir.
func (m DestinationModel) Path() string {
	name := strings.TrimSpace(string(m.Name)) + "." + exportFormats[m.Format]
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(m.Dir, name)
}

// =============================================================================
// Prompter
// =============================================================================

// terminalPrompter asks for export destinations on the terminal running the
// preview server. Prompts from several pages are shown one at a time.
type terminalPrompter struct {
	mu   sync.Mutex
	in   io.Reader
	out  io.Writer
	name string
}

func newTerminalPrompter(in io.Reader, out io.Writer) *terminalPrompter {
	return &terminalPrompter{in: in, out: out}
}

func (p *terminalPrompter) PromptDestination(ctx context.Context, dir string) (string, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(p.out)}
	if p.in != nil {
		opts = append(opts, tea.WithInput(p.in))
	}
	name := p.name
	if name == "" {
		name = filepath.Base(dir) + "-modgraph"
	}
	final, err := tea.NewProgram(NewDestinationModel(dir, name), opts...).Run()
	if err != nil {
		if stderrors.Is(err, tea.ErrInterrupted) {
			return "", false, nil
		}
		return "", false, err
	}

	m, ok := final.(DestinationModel)
	if !ok || m.Cancelled || !m.Done {
		return "", false, nil
	}
	return m.Path(), true, nil
}

var _ preview.DestinationPrompter = (*terminalPrompter)(nil)
