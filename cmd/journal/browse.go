package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wippyai/wasm-journal/journal"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4"))

	typeStyles = map[string]lipgloss.Style{
		journal.EntryTypeSetThread.String():   lipgloss.NewStyle().Foreground(lipgloss.Color("#98FB98")),
		journal.EntryTypeCloseThread.String(): lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")),
		journal.EntryTypePollOneoff.String():  lipgloss.NewStyle().Foreground(lipgloss.Color("#87CEEB")),
	}

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#666666"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

func newBrowseCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse journal entries interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return newExitError(exitCommandError, "browse needs a terminal; use inspect instead", nil)
			}
			ctx := cmd.Context()
			b, err := root.openBackend(ctx, true)
			if err != nil {
				return err
			}
			defer b.Close()
			views, err := collectViews(journal.Decode(b.Records(ctx)), "", 0)
			if err != nil {
				return newExitError(exitFailure, "read journal", err)
			}
			title := root.cfg.Storage.Path
			if title == "" {
				title = root.cfg.Storage.Backend
			}
			_, err = tea.NewProgram(newBrowseModel(title, views), tea.WithAltScreen()).Run()
			return err
		},
	}
}

type browseModel struct {
	title    string
	entries  []entryView
	detail   viewport.Model
	selected int
	offset   int
	height   int
	width    int
	ready    bool
}

func newBrowseModel(title string, entries []entryView) *browseModel {
	return &browseModel{title: title, entries: entries}
}

func (m *browseModel) Init() tea.Cmd {
	return nil
}

func (m *browseModel) listHeight() int {
	return max(m.height-4, 1)
}

func (m *browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		w := max(m.width/2-2, 10)
		if !m.ready {
			m.detail = viewport.New(w, m.listHeight())
			m.ready = true
		} else {
			m.detail.Width = w
			m.detail.Height = m.listHeight()
		}
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "up", "k":
			if m.selected > 0 {
				m.selected--
				m.refresh()
			}
		case "down", "j":
			if m.selected < len(m.entries)-1 {
				m.selected++
				m.refresh()
			}
		case "home", "g":
			m.selected = 0
			m.refresh()
		case "end", "G":
			m.selected = max(len(m.entries)-1, 0)
			m.refresh()
		default:
			var cmd tea.Cmd
			m.detail, cmd = m.detail.Update(msg)
			return m, cmd
		}
	}
	return m, nil
}

// refresh keeps the selection visible and loads its detail.
func (m *browseModel) refresh() {
	h := m.listHeight()
	if m.selected < m.offset {
		m.offset = m.selected
	}
	if m.selected >= m.offset+h {
		m.offset = m.selected - h + 1
	}
	if m.ready && len(m.entries) > 0 {
		m.detail.SetContent(m.entries[m.selected].detail())
		m.detail.GotoTop()
	}
}

func (m *browseModel) View() string {
	if !m.ready {
		return "Loading..."
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render("Journal"))
	b.WriteString(" ")
	b.WriteString(m.title)
	b.WriteString(fmt.Sprintf("  %d entries\n", len(m.entries)))

	var list strings.Builder
	end := min(m.offset+m.listHeight(), len(m.entries))
	for i := m.offset; i < end; i++ {
		v := m.entries[i]
		line := fmt.Sprintf("%5d %-12s t%d", v.Index, v.Type, v.Thread)
		if i == m.selected {
			list.WriteString(selectedStyle.Render(line))
		} else if st, ok := typeStyles[v.Type]; ok {
			list.WriteString(st.Render(line))
		} else {
			list.WriteString(line)
		}
		list.WriteString("\n")
	}
	if len(m.entries) == 0 {
		list.WriteString("(empty journal)\n")
	}

	left := paneStyle.Width(max(m.width/2-2, 10)).Height(m.listHeight()).Render(list.String())
	right := paneStyle.Render(m.detail.View())
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("↑/↓ select • pgup/pgdn scroll detail • q quit"))
	return b.String()
}
