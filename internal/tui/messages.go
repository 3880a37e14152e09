package tui

import (
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

// rowsLoadedMsg carries a board refresh.
type rowsLoadedMsg struct {
	at   time.Time
	err  error
	rows []query.RequestRow
}

// tickMsg fires every poll interval.
type tickMsg time.Time

// transitionedMsg reports the outcome of a step or cancel.
type transitionedMsg struct {
	err    error
	req    *model.QueueRequest
	id     string
	action string
}
