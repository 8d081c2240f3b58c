// Package continuation links a compacted transcript to the transcript the
// session continued in.
//
// When an agent compacts its history it may start a fresh transcript in
// the same project directory. The follow-up is recognised by timing alone:
// it is the sibling whose first record lands within a short window after
// the compaction, in the same working directory. Links are cached per
// session and trusted until the project directory or the source transcript
// changes.
package continuation

import (
	"bufio"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/parser"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
)

// DefaultWindow is how long after a compaction a continuation may start.
const DefaultWindow = 60 * time.Second

// peekLines bounds how far into a candidate we look for its first
// timestamp and cwd.
const peekLines = 50

// SiblingLister lists the other transcripts next to a transcript.
type SiblingLister interface {
	Siblings(path string) ([]storage.Transcript, error)
}

type link struct {
	next     string
	found    bool
	dirMod   time.Time
	srcMod   time.Time
	cachedAt time.Time
}

// Linker finds and caches continuation links.
type Linker struct {
	parser   *parser.Parser
	siblings SiblingLister
	clock    clock.Clock
	window   time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	links map[string]link
}

// Option configures a Linker.
type Option func(*Linker)

// WithParser sets the transcript parser.
func WithParser(p *parser.Parser) Option {
	return func(l *Linker) { l.parser = p }
}

// WithSiblings sets how sibling transcripts are listed.
func WithSiblings(s SiblingLister) Option {
	return func(l *Linker) { l.siblings = s }
}

// WithClock sets the clock used to age cache entries.
func WithClock(c clock.Clock) Option {
	return func(l *Linker) { l.clock = c }
}

// WithWindow sets the continuation window.
func WithWindow(d time.Duration) Option {
	return func(l *Linker) {
		if d > 0 {
			l.window = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Linker) { l.logger = logger }
}

// NewLinker creates a Linker.
func NewLinker(opts ...Option) *Linker {
	l := &Linker{
		parser:   parser.NewParser(),
		siblings: storage.NewFileStorage(),
		clock:    clock.Real(),
		window:   DefaultWindow,
		logger:   slog.New(slog.DiscardHandler),
		links:    make(map[string]link),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Continuation returns the session the transcript at path continued in.
// The answer, including "none", is cached until the project directory or
// the transcript itself is modified.
func (l *Linker) Continuation(path string) (string, bool) {
	id := storage.SessionIDFromPath(path)
	dir := filepath.Dir(path)

	dirMod, err := storage.DirModTime(dir)
	if err != nil {
		return "", false
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", false
	}
	if next, found, ok := l.cached(id, dirMod, info.ModTime()); ok {
		return next, found
	}

	next, found := "", false
	c, compacted, err := DetectCompaction(l.parser, path)
	if err != nil {
		l.logger.Debug("compaction scan failed", "path", path, "error", err)
		return "", false
	}
	if compacted {
		next, found = l.search(path, c)
	}

	l.mu.Lock()
	l.links[id] = link{next: next, found: found, dirMod: dirMod, srcMod: info.ModTime(), cachedAt: l.clock.Now()}
	l.mu.Unlock()
	return next, found
}

// FindContinuation returns the sibling of the transcript at path that
// started within the window after c.At. When several qualify the earliest
// wins, with ties going to the smaller session id. Results are not cached.
func (l *Linker) FindContinuation(path string, c Compaction) (string, bool) {
	return l.search(path, c)
}

func (l *Linker) cached(id string, dirMod, srcMod time.Time) (string, bool, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.links[id]
	if !ok || dirMod.After(e.dirMod) || !srcMod.Equal(e.srcMod) {
		return "", false, false
	}
	return e.next, e.found, true
}

func (l *Linker) search(path string, c Compaction) (string, bool) {
	siblings, err := l.siblings.Siblings(path)
	if err != nil {
		l.logger.Debug("listing siblings failed", "path", path, "error", err)
		return "", false
	}

	var (
		best      string
		bestDelta time.Duration
	)
	for _, t := range siblings {
		start, cwd, ok := peek(t.Path)
		if !ok {
			continue
		}
		delta := start.Sub(c.At)
		if delta < 0 || delta >= l.window {
			continue
		}
		if c.WorkingDirectory != "" && cwd != c.WorkingDirectory {
			continue
		}
		if best == "" || delta < bestDelta || (delta == bestDelta && t.SessionID < best) {
			best, bestDelta = t.SessionID, delta
		}
	}
	return best, best != ""
}

// peek returns the first timestamp and first cwd recorded near the top of
// a transcript.
func peek(path string) (time.Time, string, bool) {
	f, err := os.Open(path)
	if err != nil {
		return time.Time{}, "", false
	}
	defer f.Close()

	var (
		start   time.Time
		cwd     string
		haveTS  bool
		scanned int
	)
	r := bufio.NewReader(f)
	for scanned < peekLines && (!haveTS || cwd == "") {
		line, err := r.ReadBytes('\n')
		if len(line) > 0 {
			scanned++
			res := gjson.GetManyBytes(line, "timestamp", "cwd")
			if !haveTS {
				start, haveTS = types.ParseTimestamp(res[0].String())
			}
			if cwd == "" {
				cwd = res[1].String()
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				return time.Time{}, "", false
			}
			break
		}
	}
	return start, cwd, haveTS
}

// ExtractConversation returns the conversation in the transcript at path
// followed, across each compaction, by the conversation it continued in.
// A system marker separates the segments. A session is never visited
// twice.
func (l *Linker) ExtractConversation(path string) ([]types.ConversationMessage, error) {
	visited := make(map[string]bool)
	var out []types.ConversationMessage

	for path != "" {
		id := storage.SessionIDFromPath(path)
		visited[id] = true

		msgs, err := l.parser.ReadConversation(path)
		if err != nil {
			if len(out) == 0 {
				return nil, err
			}
			l.logger.Debug("reading continuation failed", "path", path, "error", err)
			break
		}
		out = append(out, msgs...)

		next, ok := l.Continuation(path)
		if !ok || visited[next] {
			break
		}
		out = append(out, types.ConversationMessage{
			Role:           types.RoleSystem,
			Content:        "Session continued in " + next,
			SessionID:      next,
			IsContinuation: true,
		})
		path = filepath.Join(filepath.Dir(path), next+storage.TranscriptExt)
	}
	return out, nil
}

// Sweep drops links cached longer than maxAge and returns how many were
// removed.
func (l *Linker) Sweep(maxAge time.Duration) int {
	now := l.clock.Now()
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for id, e := range l.links {
		if now.Sub(e.cachedAt) > maxAge {
			delete(l.links, id)
			n++
		}
	}
	return n
}

// Len returns the number of cached links.
func (l *Linker) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.links)
}
