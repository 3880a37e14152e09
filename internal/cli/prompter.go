package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/Veraticus/the-queue-must-flow/internal/common"
	"github.com/Veraticus/the-queue-must-flow/internal/model"
	"github.com/Veraticus/the-queue-must-flow/internal/query"
)

// ErrInputTerminated is returned when input ends before a valid answer.
var ErrInputTerminated = errors.New("input terminated")

// Transitioner moves requests during a review session.
type Transitioner interface {
	Step(ctx context.Context, requestID string) (*model.QueueRequest, error)
	Cancel(ctx context.Context, requestID string) (*model.QueueRequest, error)
}

// SessionStats summarizes a review session.
type SessionStats struct {
	Duration  time.Duration
	Reviewed  int
	Advanced  int
	Completed int
	Cancelled int
	Skipped   int
	Failed    int
}

// Prompter walks an operator through the board one request at a time.
type Prompter struct {
	startTime   time.Time
	writer      io.Writer
	reader      *LineReader
	progressBar *progressbar.ProgressBar
	stats       SessionStats
	statsMutex  sync.RWMutex
}

// NewPrompter creates a prompter reading answers from reader.
func NewPrompter(reader io.Reader, writer io.Writer) *Prompter {
	if reader == nil {
		reader = os.Stdin
	}
	if writer == nil {
		writer = os.Stdout
	}
	return &Prompter{
		reader:    NewLineReader(reader),
		writer:    writer,
		startTime: time.Now(),
	}
}

// Confirm asks a yes/no question.
func (p *Prompter) Confirm(ctx context.Context, question string) (bool, error) {
	choice, err := p.promptChoice(ctx, question+" [y/N]", []string{"y", "n", ""})
	if err != nil {
		return false, err
	}
	return choice == "y", nil
}

// PromptLine asks for a non-empty line.
func (p *Prompter) PromptLine(ctx context.Context, label string) (string, error) {
	for {
		if _, err := fmt.Fprint(p.writer, FormatPrompt(label)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		line, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}
		if line != "" {
			return line, nil
		}
		if _, err := fmt.Fprintln(p.writer, FormatError(label+" cannot be empty. Please try again.")); err != nil {
			slog.Warn("Failed to write empty input error", "error", err)
		}
	}
}

// Review presents each request and applies the operator's choice. Failed
// transitions are reported and counted; the session moves on. Choosing quit
// ends the session early without error.
func (p *Prompter) Review(ctx context.Context, t Transitioner, rows []query.RequestRow) error {
	p.initProgressBar(len(rows))

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return err
		}

		quit, err := p.reviewOne(ctx, t, row)
		if err != nil {
			return err
		}
		p.updateProgress()
		if quit {
			break
		}
	}
	return nil
}

func (p *Prompter) reviewOne(ctx context.Context, t Transitioner, row query.RequestRow) (bool, error) {
	if _, err := fmt.Fprintln(p.writer, RenderBox("Request "+row.ID, formatRequest(row))); err != nil {
		return false, fmt.Errorf("failed to write request box: %w", err)
	}

	next, hasNext := row.Status.Next()
	var options strings.Builder
	valid := []string{"x", "s", "q"}
	if hasNext {
		fmt.Fprintf(&options, "  [N] Move to %s\n", FormatStatus(next))
		valid = append(valid, "n")
	}
	options.WriteString("  [X] Cancel request\n")
	options.WriteString("  [S] Skip\n")
	options.WriteString("  [Q] Quit session\n")
	if _, err := fmt.Fprint(p.writer, options.String()); err != nil {
		return false, fmt.Errorf("failed to write options: %w", err)
	}

	choice, err := p.promptChoice(ctx, "Choice", valid)
	if err != nil {
		return false, err
	}

	if choice == "q" {
		return true, nil
	}
	p.count(func(s *SessionStats) { s.Reviewed++ })

	switch choice {
	case "n":
		req, err := t.Step(ctx, row.ID)
		if err != nil {
			p.reportFailure(err)
			return false, nil
		}
		p.count(func(s *SessionStats) {
			if req.Status == model.StatusCompleted {
				s.Completed++
			} else {
				s.Advanced++
			}
		})
		p.say(FormatSuccess(fmt.Sprintf("%s is now %s", row.ID, req.Status)))
	case "x":
		if _, err := t.Cancel(ctx, row.ID); err != nil {
			p.reportFailure(err)
			return false, nil
		}
		p.count(func(s *SessionStats) { s.Cancelled++ })
		p.say(FormatWarning(row.ID + " cancelled"))
	case "s":
		p.count(func(s *SessionStats) { s.Skipped++ })
	}
	return false, nil
}

func formatRequest(row query.RequestRow) string {
	return fmt.Sprintf("  Item: %s\n", orID(row.ItemName, row.CatalogItemID)) +
		fmt.Sprintf("  Quantity: %d\n", row.Quantity) +
		fmt.Sprintf("  Account: %s (%s)\n", orID(row.AccountName, row.AccountID), row.AccountClass) +
		fmt.Sprintf("  Status: %s\n", FormatStatus(row.Status)) +
		fmt.Sprintf("  Requested: %s", row.CreatedAt.Local().Format(timeLayout))
}

func (p *Prompter) reportFailure(err error) {
	p.count(func(s *SessionStats) { s.Failed++ })
	p.say(FormatError(fmt.Sprintf("%s: %v", common.Kind(err), err)))
}

func (p *Prompter) count(fn func(*SessionStats)) {
	p.statsMutex.Lock()
	defer p.statsMutex.Unlock()
	fn(&p.stats)
}

func (p *Prompter) say(msg string) {
	if _, err := fmt.Fprintln(p.writer, msg); err != nil {
		slog.Warn("Failed to write message", "error", err)
	}
}

// Stats returns the session statistics so far.
func (p *Prompter) Stats() SessionStats {
	p.statsMutex.RLock()
	defer p.statsMutex.RUnlock()

	stats := p.stats
	stats.Duration = time.Since(p.startTime)
	return stats
}

// ShowCompletion displays the session summary.
func (p *Prompter) ShowCompletion() {
	if p.progressBar != nil {
		if err := p.progressBar.Finish(); err != nil {
			slog.Warn("Failed to finish progress bar", "error", err)
		}
	}

	stats := p.Stats()
	summary := fmt.Sprintf("%s Statistics:\n", ChartIcon) +
		fmt.Sprintf("  • Reviewed: %d\n", stats.Reviewed) +
		fmt.Sprintf("  • Advanced: %d\n", stats.Advanced) +
		fmt.Sprintf("  • Completed: %d\n", stats.Completed) +
		fmt.Sprintf("  • Cancelled: %d\n", stats.Cancelled) +
		fmt.Sprintf("  • Skipped: %d\n", stats.Skipped) +
		fmt.Sprintf("  • Failed: %d\n", stats.Failed) +
		fmt.Sprintf("  • Time taken: %s", stats.Duration.Round(time.Second))

	if _, err := fmt.Fprintln(p.writer, RenderBox("Review Complete", summary)); err != nil {
		slog.Warn("Failed to write completion box", "error", err)
	}
}

func (p *Prompter) initProgressBar(total int) {
	if total == 0 {
		return
	}
	p.progressBar = progressbar.NewOptions(total,
		progressbar.OptionSetWriter(p.writer),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("[cyan][bold]Reviewing queue...[reset]"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionOnCompletion(func() {
			if _, err := fmt.Fprintln(p.writer); err != nil {
				slog.Warn("Failed to write newline after progress bar", "error", err)
			}
		}),
	)
}

func (p *Prompter) updateProgress() {
	if p.progressBar != nil {
		if err := p.progressBar.Add(1); err != nil {
			slog.Warn("Failed to update progress bar", "error", err)
		}
	}
}

func (p *Prompter) readLine(ctx context.Context) (string, error) {
	line, err := p.reader.ReadLine(ctx)
	if errors.Is(err, io.EOF) {
		return "", ErrInputTerminated
	}
	return line, err
}

func (p *Prompter) promptChoice(ctx context.Context, prompt string, validChoices []string) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		if _, err := fmt.Fprint(p.writer, FormatPrompt(prompt)); err != nil {
			return "", fmt.Errorf("failed to write prompt: %w", err)
		}

		input, err := p.readLine(ctx)
		if err != nil {
			return "", err
		}

		choice := strings.ToLower(input)
		if slices.Contains(validChoices, choice) {
			return choice, nil
		}

		if _, err := fmt.Fprintln(p.writer, FormatError("Invalid choice. Please try again.")); err != nil {
			slog.Warn("Failed to write error message", "error", err)
		}
	}
}
