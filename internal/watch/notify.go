package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"github.com/boshu2/sessionwatch/internal/storage"
)

// Notifier turns writes under the projects and hook-state directories into
// coalesced wakeups. fsnotify is not recursive, so every project
// subdirectory is watched individually and new ones are added as they
// appear.
type Notifier struct {
	watcher     *fsnotify.Watcher
	projectsDir string
	onChange    func()
	wake        chan struct{}
	logger      *slog.Logger
}

// NewNotifier watches projectsDir (and its subdirectories) and stateDir.
// Missing directories are skipped; onChange may be nil.
func NewNotifier(projectsDir, stateDir string, onChange func(), logger *slog.Logger) (*Notifier, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	n := &Notifier{
		watcher:     w,
		projectsDir: filepath.Clean(projectsDir),
		onChange:    onChange,
		wake:        make(chan struct{}, 1),
		logger:      logger,
	}

	n.add(stateDir)
	n.add(projectsDir)
	entries, err := os.ReadDir(projectsDir)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Debug("listing projects failed", "dir", projectsDir, "error", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			n.add(filepath.Join(projectsDir, e.Name()))
		}
	}
	return n, nil
}

// C delivers one value per burst of relevant changes.
func (n *Notifier) C() <-chan struct{} {
	return n.wake
}

// Watching lists the directories currently watched.
func (n *Notifier) Watching() []string {
	return n.watcher.WatchList()
}

// Run processes events until ctx is done or the watcher is closed.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-n.watcher.Events:
			if !ok {
				return
			}
			n.handle(event)
		case err, ok := <-n.watcher.Errors:
			if !ok {
				return
			}
			n.logger.Debug("watch error", "error", err)
		}
	}
}

// Close stops watching.
func (n *Notifier) Close() error {
	return n.watcher.Close()
}

func (n *Notifier) handle(event fsnotify.Event) {
	if event.Has(fsnotify.Create) && filepath.Dir(event.Name) == n.projectsDir {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			n.add(event.Name)
			return
		}
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
		return
	}
	if !relevant(event.Name) {
		return
	}

	if n.onChange != nil {
		n.onChange()
	}
	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notifier) add(dir string) {
	if err := n.watcher.Add(dir); err != nil {
		n.logger.Debug("watch failed", "dir", dir, "error", err)
	}
}

// relevant reports whether a changed file can affect the session list:
// a main transcript or a hook-state document.
func relevant(path string) bool {
	name := filepath.Base(path)
	if storage.IsTranscript(name) {
		return true
	}
	return strings.HasSuffix(name, ".json")
}
