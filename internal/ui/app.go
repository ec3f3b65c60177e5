package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/dvirtanen/logdex/internal/config"
	"github.com/dvirtanen/logdex/internal/consolidate"
	"github.com/dvirtanen/logdex/internal/watch"
)

// Mode represents the current UI mode
type Mode int

const (
	ModeNormal Mode = iota
	ModeSearch
	ModeGoto
	ModeSlice
	ModeMark
	ModeJumpMark
	ModeFilter
)

// newLinesMsg is delivered by the background Watcher when a pane's
// source has grown. It only ever carries bookkeeping, never triggers
// a second Refresh: the Watcher already did that before sending it.
type newLinesMsg struct {
	path     string
	newLines int
}

// watchErrMsg is delivered when the Watcher fails to refresh a source.
type watchErrMsg struct {
	path string
	err  error
}

// ModelOptions configures the initial state of a Model. It mirrors the
// CLI flags in cmd/logdex.
type ModelOptions struct {
	Filepaths  []string // one pane per path; >1 also drives a consolidated tail
	CacheFile  bool
	SliceRange string
	GotoTime   string
	Consolidate bool // force multi-file merge into a single pane
}

// Model is the main application model. It hosts one or more Panes and,
// for multi-file sessions, an internal/consolidate.Writer feeding an
// extra merged-view pane.
type Model struct {
	cfg *config.Config

	panes      []*Pane
	activePane int

	consolidated *consolidate.Writer
	watcher      *watch.Watcher
	newLinesCh   chan tea.Msg

	searchInput textinput.Model

	mode   Mode
	width  int
	height int

	pendingMarkChar rune

	status string
	err    error
}

// NewModel opens a single file with default options, matching the
// simplest invocation of the CLI.
func NewModel(filepath string) (*Model, error) {
	return NewModelWithOptions(ModelOptions{Filepaths: []string{filepath}})
}

// NewModelWithOptions builds a Model from parsed CLI flags.
func NewModelWithOptions(opts ModelOptions) (*Model, error) {
	if len(opts.Filepaths) == 0 {
		return nil, fmt.Errorf("no files given")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	m := &Model{
		cfg:        cfg,
		mode:       ModeNormal,
		newLinesCh: make(chan tea.Msg, 16),
	}

	for _, fp := range opts.Filepaths {
		pane, err := NewPane(fp, cfg, opts.CacheFile)
		if err != nil {
			m.closePanes()
			return nil, fmt.Errorf("failed to open %s: %w", fp, err)
		}
		pane.AttachObserver(NewChanObserver(pane.Source().Path(), m.newLinesCh))
		m.panes = append(m.panes, pane)
	}

	if opts.Consolidate || len(opts.Filepaths) > 1 {
		cw, err := consolidate.NewWriter(opts.Filepaths, cfg)
		if err != nil {
			m.closePanes()
			return nil, fmt.Errorf("failed to consolidate sources: %w", err)
		}
		m.consolidated = cw
		go cw.Run()

		mergedPane, err := NewPane(cw.OutputPath(), cfg, false)
		if err != nil {
			m.closePanes()
			cw.Close()
			return nil, fmt.Errorf("failed to open consolidated view: %w", err)
		}
		mergedPane.AttachObserver(NewChanObserver(mergedPane.Source().Path(), m.newLinesCh))
		m.panes = append([]*Pane{mergedPane}, m.panes...)
	}

	w, err := watch.New(500 * time.Millisecond)
	if err != nil {
		m.closePanes()
		return nil, fmt.Errorf("failed to start file watcher: %w", err)
	}
	w.OnNewLines(func(path string, n int) {
		m.newLinesCh <- newLinesMsg{path: path, newLines: n}
	})
	w.OnError(func(path string, err error) {
		m.newLinesCh <- watchErrMsg{path: path, err: err}
	})
	for _, p := range m.panes {
		if err := w.Add(p.Source()); err != nil {
			continue
		}
	}
	go w.Run()
	m.watcher = w

	if opts.SliceRange != "" {
		if err := m.activePaneRef().ParseAndSlice(opts.SliceRange); err != nil {
			m.err = err
		}
	}
	if opts.GotoTime != "" {
		m.activePaneRef().GotoTime(opts.GotoTime)
	}

	ti := textinput.New()
	ti.Placeholder = "Search..."
	ti.CharLimit = 256
	m.searchInput = ti

	return m, nil
}

func (m *Model) closePanes() {
	for _, p := range m.panes {
		p.Close()
	}
}

func (m *Model) activePaneRef() *Pane {
	return m.panes[m.activePane]
}

// waitForWatch turns the Watcher's channel into a tea.Cmd, re-arming
// itself after every delivery so the program keeps listening.
func waitForWatch(ch chan tea.Msg) tea.Cmd {
	return func() tea.Msg {
		return <-ch
	}
}

// Init implements tea.Model
func (m *Model) Init() tea.Cmd {
	return waitForWatch(m.newLinesCh)
}

// Update implements tea.Model
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		for _, p := range m.panes {
			p.SetSize(msg.Width, msg.Height-2)
		}
		return m, nil

	case newLinesMsg:
		for _, p := range m.panes {
			if p.Source().Path() == msg.path {
				p.NotifyNewLines(msg.newLines)
			}
		}
		return m, waitForWatch(m.newLinesCh)

	case watchErrMsg:
		m.err = msg.err
		return m, waitForWatch(m.newLinesCh)

	case indexEventMsg:
		for _, p := range m.panes {
			if p.Source().Path() != msg.path {
				continue
			}
			if msg.restarted {
				p.FilteredSource().MarkDirty()
				p.Viewport().GotoTop()
			} else {
				p.NotifyNewLines(msg.newLines)
			}
		}
		return m, waitForWatch(m.newLinesCh)
	}

	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.mode {
	case ModeSearch, ModeGoto, ModeSlice, ModeFilter:
		return m.handleInputKey(msg)
	case ModeMark, ModeJumpMark:
		return m.handleMarkKey(msg)
	}

	pane := m.activePaneRef()

	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "j", "down":
		pane.Viewport().ScrollDown(1)
	case "k", "up":
		pane.Viewport().ScrollUp(1)

	case "d", "ctrl+d":
		pane.Viewport().PageDown()
	case "u", "ctrl+u":
		pane.Viewport().PageUp()
	case "f", "pgdown", " ":
		pane.Viewport().PageDown()
	case "b", "pgup":
		pane.Viewport().PageUp()

	case "g", "home":
		pane.Viewport().GotoTop()
	case "G", "end":
		pane.Viewport().GotoBottom()

	case "tab":
		if len(m.panes) > 1 {
			m.activePane = (m.activePane + 1) % len(m.panes)
		}

	case "/":
		m.mode = ModeSearch
		m.searchInput.SetValue("")
		m.searchInput.Placeholder = "Search..."
		m.searchInput.Focus()
		return m, textinput.Blink

	case ":":
		m.mode = ModeGoto
		m.searchInput.SetValue("")
		m.searchInput.Placeholder = "Line number..."
		m.searchInput.Focus()
		return m, textinput.Blink

	case "S":
		m.mode = ModeSlice
		m.searchInput.SetValue("")
		m.searchInput.Placeholder = "Slice range (e.g. 100-$, .-500)..."
		m.searchInput.Focus()
		return m, textinput.Blink

	case "T":
		m.mode = ModeGoto
		m.searchInput.SetValue("")
		m.searchInput.Placeholder = "Time (e.g. 14:30:00)..."
		m.searchInput.Focus()
		return m, textinput.Blink

	case "F":
		m.mode = ModeFilter
		m.searchInput.SetValue(pane.FilterTerm())
		m.searchInput.Placeholder = "Filter text..."
		m.searchInput.Focus()
		return m, textinput.Blink

	case "n":
		pane.NextSearchResult()
	case "N":
		pane.PrevSearchResult()

	case "m":
		m.mode = ModeMark
	case "'":
		m.mode = ModeJumpMark
	case "M":
		pane.NextMark()
	case "P":
		pane.PrevMark()

	case "r":
		pane.RevertSlice()

	case "c":
		pane.ClearSearch()

	case "w":
		pane.ToggleFollowing()

	case "1", "2", "3", "4", "5", "6", "7", "8", "9":
		idx := int(msg.String()[0] - '1')
		if idx < len(m.panes) {
			m.activePane = idx
		}
	}

	return m, nil
}

func (m *Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := m.activePaneRef()

	switch msg.String() {
	case "enter":
		value := m.searchInput.Value()
		switch m.mode {
		case ModeSearch:
			pane.PerformSearch(value)
		case ModeGoto:
			if m.searchInput.Placeholder == "Line number..." {
				var lineNum int
				fmt.Sscanf(value, "%d", &lineNum)
				if lineNum > 0 {
					pane.Viewport().GotoLine(lineNum - 1)
				}
			} else {
				pane.GotoTime(value)
			}
		case ModeSlice:
			if err := pane.ParseAndSlice(value); err != nil {
				m.err = err
			}
		case ModeFilter:
			pane.SetFilterTerm(value)
			pane.FilteredSource().SetTextFilter(value)
		}
		m.mode = ModeNormal
		m.searchInput.Blur()
		return m, nil

	case "esc":
		m.mode = ModeNormal
		m.searchInput.Blur()
		return m, nil
	}

	var cmd tea.Cmd
	m.searchInput, cmd = m.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) handleMarkKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	pane := m.activePaneRef()
	runes := []rune(msg.String())

	if msg.String() == "esc" {
		m.mode = ModeNormal
		return m, nil
	}

	if len(runes) == 1 && runes[0] >= 'a' && runes[0] <= 'z' {
		if m.mode == ModeMark {
			pane.SetMark(runes[0])
		} else {
			pane.JumpToMark(runes[0])
		}
	}
	m.mode = ModeNormal
	return m, nil
}

// View implements tea.Model
func (m *Model) View() string {
	var builder strings.Builder

	pane := m.activePaneRef()
	builder.WriteString(pane.Render())
	builder.WriteString("\n")

	statusStyle := lipgloss.NewStyle().
		Background(lipgloss.Color("240")).
		Foreground(lipgloss.Color("255")).
		Width(m.width)

	var status string
	switch m.mode {
	case ModeSearch:
		status = "/" + m.searchInput.View()
	case ModeGoto:
		status = ":" + m.searchInput.View()
	case ModeSlice:
		status = "S:" + m.searchInput.View()
	case ModeFilter:
		status = "F:" + m.searchInput.View()
	case ModeMark:
		status = "set mark (a-z)..."
	case ModeJumpMark:
		status = "jump to mark (a-z)..."
	default:
		lineInfo := fmt.Sprintf("L%d/%d",
			pane.Viewport().CurrentLine()+1,
			pane.FilteredSource().LineCount())

		percent := fmt.Sprintf("%.0f%%", pane.Viewport().PercentScrolled())

		searchInfo := ""
		if pane.SearchTerm() != "" {
			searchInfo = fmt.Sprintf(" [%d matches]", len(pane.SearchResults()))
		}

		follow := ""
		if pane.IsFollowing() {
			follow = " [follow]"
		}

		paneInfo := ""
		if len(m.panes) > 1 {
			paneInfo = fmt.Sprintf(" (%d/%d)", m.activePane+1, len(m.panes))
		}

		if m.err != nil {
			status = fmt.Sprintf(" %s%s  error: %v", pane.Filename(), paneInfo, m.err)
		} else {
			status = fmt.Sprintf(" %s%s  %s  %s%s%s",
				pane.Filename(), paneInfo, lineInfo, percent, searchInfo, follow)
		}
	}

	builder.WriteString(statusStyle.Render(status))
	builder.WriteString("\n")

	helpStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	help := "j/k:scroll  f/b:page  g/G:top/bottom  /:search  n/N:next/prev  S:slice  T:time  F:filter  m/':mark  w:follow  tab:panes  q:quit"
	builder.WriteString(helpStyle.Render(help))

	return builder.String()
}

// Close cleans up resources
func (m *Model) Close() error {
	if m.watcher != nil {
		m.watcher.Close()
	}
	if m.consolidated != nil {
		m.consolidated.Close()
	}
	m.closePanes()
	return nil
}
