package tui

import (
	"context"
	"time"

	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
	"github.com/Veraticus/the-queue-must-flow/internal/tui/themes"
)

// Source supplies the active board.
type Source interface {
	ActiveAll(ctx context.Context) ([]query.RequestRow, error)
}

// Transitioner moves requests from the board. A board without one is read-only.
type Transitioner interface {
	Step(ctx context.Context, requestID string) (*model.QueueRequest, error)
	Cancel(ctx context.Context, requestID string) (*model.QueueRequest, error)
}

// Config holds board configuration.
type Config struct {
	Theme        themes.Theme
	Source       Source
	Transitioner Transitioner
	Now          func() time.Time
	PollInterval time.Duration
	Width        int
	Height       int
}

// Option is a functional option for configuring the board.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() Config {
	return Config{
		Theme:        themes.Default,
		Now:          time.Now,
		PollInterval: 10 * time.Second,
		Width:        100,
		Height:       24,
	}
}

// WithTransitioner enables step and cancel keys.
func WithTransitioner(t Transitioner) Option {
	return func(c *Config) {
		c.Transitioner = t
	}
}

// WithPollInterval sets how often the board reloads. Zero disables polling.
func WithPollInterval(d time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = d
	}
}

// WithTheme sets the color theme.
func WithTheme(theme themes.Theme) Option {
	return func(c *Config) {
		c.Theme = theme
	}
}

// WithSize sets the initial terminal size.
func WithSize(width, height int) Option {
	return func(c *Config) {
		c.Width = width
		c.Height = height
	}
}

// WithClock sets the clock used for the refresh timestamp.
func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.Now = now
	}
}
