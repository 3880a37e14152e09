package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func (m Model) refresh() tea.Cmd {
	source := m.config.Source
	now := m.config.Now
	ctx := m.ctx
	return func() tea.Msg {
		rows, err := source.ActiveAll(ctx)
		return rowsLoadedMsg{rows: rows, err: err, at: now()}
	}
}

func (m Model) scheduleTick() tea.Cmd {
	if m.config.PollInterval <= 0 {
		return nil
	}
	return tea.Tick(m.config.PollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) step(id string) tea.Cmd {
	engine := m.config.Transitioner
	ctx := m.ctx
	return func() tea.Msg {
		req, err := engine.Step(ctx, id)
		return transitionedMsg{id: id, action: "step", req: req, err: err}
	}
}

func (m Model) cancel(id string) tea.Cmd {
	engine := m.config.Transitioner
	ctx := m.ctx
	return func() tea.Msg {
		req, err := engine.Cancel(ctx, id)
		return transitionedMsg{id: id, action: "cancel", req: req, err: err}
	}
}
