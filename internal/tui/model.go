// Package tui renders the live queue board with bubbletea.
package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

// chrome is the number of lines around the table: title, counts, status and help.
const chrome = 7

// Model holds the board state.
type Model struct {
	lastRefresh time.Time
	ctx         context.Context
	lastErr     error
	config      Config
	help        help.Model
	status      string
	rows        []query.RequestRow
	keymap      KeyMap
	spinner     spinner.Model
	table       table.Model
	width       int
	height      int
	loading     bool
	quitting    bool
}

// NewModel builds a board over source. ctx bounds every load and transition.
func NewModel(ctx context.Context, source Source, opts ...Option) Model {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg.Source = source

	t := table.New(
		table.WithColumns(columns(cfg.Width)),
		table.WithFocused(true),
		table.WithHeight(max(cfg.Height-chrome, 3)),
	)
	styles := table.DefaultStyles()
	styles.Header = cfg.Theme.Header
	styles.Selected = cfg.Theme.Selected
	t.SetStyles(styles)

	return Model{
		ctx:     ctx,
		config:  cfg,
		keymap:  DefaultKeyMap(),
		help:    help.New(),
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot)),
		table:   t,
		width:   cfg.Width,
		height:  cfg.Height,
		loading: true,
	}
}

// columns sizes the board to width. The item column takes the slack.
func columns(width int) []table.Column {
	fixed := []table.Column{
		{Title: "ID", Width: 14},
		{Title: "Item", Width: 0},
		{Title: "Qty", Width: 5},
		{Title: "Account", Width: 16},
		{Title: "Class", Width: 9},
		{Title: "Status", Width: 10},
		{Title: "Age", Width: 6},
	}
	used := 0
	for _, c := range fixed {
		used += c.Width + 2
	}
	fixed[1].Width = max(width-used-2, 12)
	return fixed
}

// Init starts the first load and the poll timer.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.refresh(), m.scheduleTick())
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(msg.Height-chrome, 3))
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case rowsLoadedMsg:
		m.loading = false
		if msg.err != nil {
			m.lastErr = msg.err
			return m, nil
		}
		m.lastErr = nil
		m.lastRefresh = msg.at
		m.rows = msg.rows
		m.table.SetRows(m.tableRows())
		return m, nil

	case tickMsg:
		return m, tea.Batch(m.refresh(), m.scheduleTick())

	case transitionedMsg:
		if msg.err != nil {
			m.lastErr = msg.err
			m.status = ""
		} else {
			m.lastErr = nil
			m.status = fmt.Sprintf("%s → %s", msg.id, msg.req.Status)
		}
		return m, m.refresh()

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keymap.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keymap.Help):
		m.help.ShowAll = !m.help.ShowAll
		return m, nil

	case key.Matches(msg, m.keymap.Refresh):
		return m, m.refresh()

	case key.Matches(msg, m.keymap.Step), key.Matches(msg, m.keymap.Cancel):
		if m.config.Transitioner == nil {
			m.status = "board is read-only"
			return m, nil
		}
		id, ok := m.selectedID()
		if !ok {
			return m, nil
		}
		if key.Matches(msg, m.keymap.Cancel) {
			return m, m.cancel(id)
		}
		return m, m.step(id)
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) selectedID() (string, bool) {
	i := m.table.Cursor()
	if i < 0 || i >= len(m.rows) {
		return "", false
	}
	return m.rows[i].ID, true
}

func (m Model) tableRows() []table.Row {
	now := m.config.Now()
	rows := make([]table.Row, len(m.rows))
	for i, r := range m.rows {
		item := r.ItemName
		if item == "" {
			item = r.CatalogItemID
		}
		account := r.AccountName
		if account == "" {
			account = r.AccountID
		}
		rows[i] = table.Row{
			r.ID,
			item,
			strconv.Itoa(r.Quantity),
			account,
			string(r.AccountClass),
			string(r.Status),
			formatAge(now.Sub(r.CreatedAt)),
		}
	}
	return rows
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}

// View renders the board.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	theme := m.config.Theme

	var b strings.Builder
	b.WriteString(theme.Title.Render("Queue board"))
	b.WriteString("\n")

	if m.loading {
		b.WriteString(m.spinner.View() + " Loading board...\n")
		return b.String()
	}

	b.WriteString(theme.RoundedBox.Render(m.table.View()))
	b.WriteString("\n")
	b.WriteString(m.countsLine())
	b.WriteString("\n")

	switch {
	case m.lastErr != nil:
		b.WriteString(theme.StatusError.Render(fmt.Sprintf("%s: %v", common.Kind(m.lastErr), m.lastErr)))
	case m.status != "":
		b.WriteString(theme.StatusInfo.Render(m.status))
	default:
		b.WriteString(theme.Subtitle.Render("updated " + m.lastRefresh.Local().Format("15:04:05")))
	}
	b.WriteString("\n")
	b.WriteString(m.help.View(m.keymap))
	return b.String()
}

func (m Model) countsLine() string {
	counts := make(map[model.Status]int)
	for _, r := range m.rows {
		counts[r.Status]++
	}

	parts := make([]string, 0, 3)
	for _, s := range []model.Status{model.StatusPending, model.StatusPreparing, model.StatusReady} {
		parts = append(parts, m.config.Theme.Status(s).Render(fmt.Sprintf("%s %d", s.Label(), counts[s])))
	}
	return strings.Join(parts, "   ")
}
