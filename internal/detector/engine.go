// Package detector is the session detection engine. It joins running agent
// processes to their transcripts and derives what each session is doing.
//
// An Engine owns every cache involved (process list, transcript metadata,
// continuation links) together with the clock they expire against, so
// independent engines never share state. Callers poll Sessions; each poll
// discovers processes (cached briefly), opportunistically sweeps old cache
// entries, reads live hook states, indexes the candidate transcripts, and
// hands everything to the matcher.
package detector

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/config"
	"github.com/boshu2/sessionwatch/internal/continuation"
	"github.com/boshu2/sessionwatch/internal/hookstate"
	"github.com/boshu2/sessionwatch/internal/matcher"
	"github.com/boshu2/sessionwatch/internal/parser"
	"github.com/boshu2/sessionwatch/internal/process"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
	"github.com/boshu2/sessionwatch/internal/worker"
)

// Engine is the session detection engine.
type Engine struct {
	cfg    *config.Config
	clock  clock.Clock
	logger *slog.Logger

	store     *storage.FileStorage
	procs     *process.Cache
	parser    *parser.Parser
	extractor *parser.Extractor
	linker    *continuation.Linker
	hooks     *hookstate.Reader
	pool      *worker.Pool[storage.Transcript, types.SessionMetadata]

	sweepMu   sync.Mutex
	lastSweep time.Time

	hookMu      sync.Mutex
	lastHookMod time.Time

	activity atomic.Int64
}

type options struct {
	clock       clock.Clock
	logger      *slog.Logger
	runner      process.Runner
	lister      process.Lister
	concurrency int
}

// Option configures an Engine.
type Option func(*options)

// WithClock sets the clock every cache expires against.
func WithClock(c clock.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithLogger sets the logger handed to every component.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithRunner sets the command runner used for process discovery.
func WithRunner(r process.Runner) Option {
	return func(o *options) { o.runner = r }
}

// WithLister replaces process discovery entirely.
func WithLister(l process.Lister) Option {
	return func(o *options) { o.lister = l }
}

// WithConcurrency bounds parallel transcript extraction.
func WithConcurrency(n int) Option {
	return func(o *options) { o.concurrency = n }
}

// New creates an Engine from cfg. A nil cfg uses config.Default().
func New(cfg *config.Config, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	o := options{
		clock:  clock.Real(),
		logger: slog.New(slog.DiscardHandler),
		runner: process.ExecRunner{},
	}
	for _, opt := range opts {
		opt(&o)
	}

	e := &Engine{
		cfg:    cfg,
		clock:  o.clock,
		logger: o.logger,
		store:  storage.NewFileStorage(storage.WithBaseDir(cfg.Paths.ProjectsDir)),
		parser: &parser.Parser{MaxLineSize: parser.DefaultMaxLineSize, Logger: o.logger},
		pool:   worker.NewPool[storage.Transcript, types.SessionMetadata](o.concurrency),
	}

	e.extractor = parser.NewExtractor(
		parser.WithClock(o.clock),
		parser.WithTTL(cfg.Detection.MetadataCacheTTL),
		parser.WithPricing(cfg.Pricing),
		parser.WithMaxContextTokens(cfg.MaxContextTokens),
		parser.WithLogger(o.logger),
		parser.OnRefresh(e.MarkActivity),
	)
	e.linker = continuation.NewLinker(
		continuation.WithParser(e.parser),
		continuation.WithSiblings(e.store),
		continuation.WithClock(o.clock),
		continuation.WithWindow(cfg.Timeline.ContinuationWindow),
		continuation.WithLogger(o.logger),
	)
	e.hooks = hookstate.NewReader(cfg.Paths.StateDir,
		hookstate.WithMaxAge(cfg.Detection.StateMaxAge),
		hookstate.WithClock(o.clock),
		hookstate.WithLogger(o.logger),
	)

	lister := o.lister
	if lister == nil {
		lister = process.NewDiscoverer(
			process.WithRunner(o.runner),
			process.WithClock(o.clock),
			process.WithTarget(cfg.Detection.ProcessName),
			process.WithCommandTimeout(cfg.Detection.CommandTimeout),
			process.WithLogger(o.logger),
		)
	}
	e.procs = process.NewCache(lister, cfg.Detection.ProcessCacheTTL, o.clock)
	if o.lister == nil {
		e.procs.SetLivenessCheck(process.Alive)
	}

	e.MarkActivity()
	return e
}

// Sessions runs one poll and returns the running sessions, active ones
// first, then by CPU descending. Process-table failures are returned
// alongside an empty list; every other failure degrades to fewer sessions.
func (e *Engine) Sessions(ctx context.Context) ([]types.SessionRecord, error) {
	procs, err := e.procs.Get(ctx)
	if err != nil {
		e.logger.Debug("process discovery failed", "error", err)
		return []types.SessionRecord{}, err
	}
	e.maybeSweep()

	states := e.liveStates()
	hints := make([]matcher.Hint, 0, len(states))
	byID := make(map[string]hookstate.State, len(states))
	for _, st := range states {
		hints = append(hints, matcher.Hint{SessionID: st.SessionID, WorkingDirectory: st.WorkingDirectory})
		byID[st.SessionID] = st
	}

	idx := e.buildIndex(ctx, procs, hints)
	assigned := matcher.Match(procs, hints, idx)

	now := e.clock.Now()
	records := make([]types.SessionRecord, 0, len(assigned))
	for _, p := range procs {
		a, ok := assigned[p.PID]
		if !ok {
			continue
		}
		st, hooked := byID[a.Session.SessionID]
		if !hooked {
			st, hooked = e.hooks.Read(a.Session.SessionID)
		}
		records = append(records, e.record(p, a, st, hooked, now))
	}
	SortRecords(records)
	return records, nil
}

// liveStates lists fresh hook states and bumps the activity stamp when one
// has been written since the last poll.
func (e *Engine) liveStates() []hookstate.State {
	states := e.hooks.Live()

	e.hookMu.Lock()
	newest := e.lastHookMod
	for _, st := range states {
		if st.ModTime.After(newest) {
			newest = st.ModTime
		}
	}
	changed := newest.After(e.lastHookMod)
	e.lastHookMod = newest
	e.hookMu.Unlock()

	if changed {
		e.MarkActivity()
	}
	return states
}

// buildIndex collects every transcript the matcher may consider: those
// named by resume flags and hook states, and those recorded for each
// process working directory.
func (e *Engine) buildIndex(ctx context.Context, procs []types.ProcessRecord, hints []matcher.Hint) *matcher.StaticIndex {
	idx := matcher.NewStaticIndex()

	ids := make(map[string]bool)
	for _, p := range procs {
		if p.ResumeSessionID != "" {
			ids[p.ResumeSessionID] = true
		}
	}
	for _, h := range hints {
		ids[h.SessionID] = true
	}
	for id := range ids {
		t, err := e.store.FindTranscript(id)
		if err != nil {
			continue
		}
		idx.Add(e.metadata(t))
	}

	dirs := make(map[string]bool)
	for _, p := range procs {
		if p.WorkingDirectory == "" || dirs[p.WorkingDirectory] {
			continue
		}
		dirs[p.WorkingDirectory] = true

		transcripts, err := e.store.ForDir(p.WorkingDirectory)
		if err != nil {
			e.logger.Debug("listing transcripts failed", "cwd", p.WorkingDirectory, "error", err)
			continue
		}
		for _, m := range e.extractAll(ctx, transcripts) {
			if m.WorkingDirectory == p.WorkingDirectory {
				idx.Add(m)
			}
		}
	}
	return idx
}

// metadata extracts a transcript's metadata. The file stem is the session
// identity even when records inside carry another id.
func (e *Engine) metadata(t storage.Transcript) types.SessionMetadata {
	m := e.extractor.Extract(t.Path)
	m.SessionID = t.SessionID
	return m
}

func (e *Engine) extractAll(ctx context.Context, transcripts []storage.Transcript) []types.SessionMetadata {
	results := e.pool.Process(ctx, transcripts, func(_ context.Context, t storage.Transcript) (types.SessionMetadata, error) {
		return e.metadata(t), nil
	})
	return worker.Values(results)
}

func (e *Engine) record(p types.ProcessRecord, a matcher.Assignment, st hookstate.State, hooked bool, now time.Time) types.SessionRecord {
	m := a.Session
	rec := types.SessionRecord{
		SessionID:         m.SessionID,
		Slug:              m.Slug,
		WorkingDirectory:  m.WorkingDirectory,
		Branch:            m.Branch,
		Summary:           m.Summary,
		ContextTokens:     m.ContextTokens,
		ContextPercentage: m.ContextPercentage,
		Usage:             m.Usage,
		EstimatedCost:     m.EstimatedCost,
		RecentActivity:    m.RecentActivity,
		PID:               p.PID,
		TTY:               p.TTY,
		CPUPercent:        p.CPUPercent,
		LastActivity:      m.FileModTime,
		RecencySeconds:    recency(now, m.FileModTime),
		MatchSource:       string(a.Source),
		Role:              p.Role,
	}
	if rec.WorkingDirectory == "" {
		rec.WorkingDirectory = p.WorkingDirectory
	}
	if rec.Role == types.RoleNone {
		rec.Role = m.Role
	}

	if hooked {
		rec.State = st.State
		rec.StateSource = types.StateSourceHooks
		rec.CurrentActivity = st.CurrentActivity
		return rec
	}
	rec.StateSource = types.StateSourcePolling
	rec.State = types.StateWaiting
	if rec.RecencySeconds < e.cfg.Detection.ActiveRecency.Seconds() || p.CPUPercent > e.cfg.Detection.ActiveCPUThreshold {
		rec.State = types.StateActive
	}
	return rec
}

// recency is the age of a transcript write in seconds. An unknown write
// time counts from the epoch so it never reads as recent.
func recency(now, mod time.Time) float64 {
	if mod.IsZero() {
		return float64(now.Unix())
	}
	return types.Round(now.Sub(mod).Seconds(), 1)
}

// SortRecords orders sessions active first, then by CPU descending, then
// by PID.
func SortRecords(records []types.SessionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if (a.State == types.StateActive) != (b.State == types.StateActive) {
			return a.State == types.StateActive
		}
		if a.CPUPercent != b.CPUPercent {
			return a.CPUPercent > b.CPUPercent
		}
		return a.PID < b.PID
	})
}

// maybeSweep evicts old cache entries at most once per sweep interval.
func (e *Engine) maybeSweep() {
	now := e.clock.Now()
	e.sweepMu.Lock()
	if !e.lastSweep.IsZero() && now.Sub(e.lastSweep) < e.cfg.Detection.SweepInterval {
		e.sweepMu.Unlock()
		return
	}
	e.lastSweep = now
	e.sweepMu.Unlock()

	meta := e.extractor.Sweep(e.cfg.Detection.MetadataCacheTTL)
	links := e.linker.Sweep(e.cfg.Detection.MaxSessionAge)
	if meta+links > 0 {
		e.logger.Debug("swept caches", "metadata", meta, "links", links)
	}
}
