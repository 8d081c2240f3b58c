package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/boshu2/sessionwatch/internal/detector"
)

// ErrNotTerminal is returned when the live view is started without a
// terminal on stdout.
var ErrNotTerminal = errors.New("watch needs an interactive terminal")

// Config configures Run.
type Config struct {
	ProjectsDir string
	StateDir    string
	Options     []Option
	Logger      *slog.Logger
}

// Run shows the live view until the user quits or ctx is cancelled.
// Filesystem changes mark activity on the engine and trigger a poll.
func Run(ctx context.Context, eng *detector.Engine, cfg Config) error {
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return ErrNotTerminal
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	opts := cfg.Options
	n, err := NewNotifier(cfg.ProjectsDir, cfg.StateDir, eng.MarkActivity, logger)
	if err != nil {
		logger.Warn("filesystem notifications unavailable, polling only", "error", err)
	} else {
		defer n.Close() //nolint:errcheck // best effort on exit
		go n.Run(ctx)
		opts = append(opts, WithWake(n.C()))
	}

	p := tea.NewProgram(NewModel(ctx, eng, opts...), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run live view: %w", err)
	}
	return nil
}
