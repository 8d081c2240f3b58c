package parser

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
)

// Extraction window defaults.
const (
	DefaultHeadLines    = 20
	DefaultTailBytes    = 100_000
	DefaultMetadataTTL  = 60 * time.Second
	MaxRecentActivities = 10
)

// Extractor derives SessionMetadata from transcript files and caches the
// result keyed by path. A cached value is served only while the file's
// mtime is unchanged and the entry is younger than the TTL.
//
// Extractor is safe for concurrent use. Two callers racing on the same
// path both extract; the last write wins.
type Extractor struct {
	clock     clock.Clock
	ttl       time.Duration
	headLines int
	tailBytes int64
	pricing   types.Pricing
	maxTokens int
	logger    *slog.Logger
	parser    *Parser
	onRefresh func()

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	modTime  time.Time
	cachedAt time.Time
	meta     types.SessionMetadata
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithClock sets the time source used for cache ages.
func WithClock(c clock.Clock) ExtractorOption {
	return func(e *Extractor) { e.clock = c }
}

// WithTTL sets how long a cache entry is trusted.
func WithTTL(ttl time.Duration) ExtractorOption {
	return func(e *Extractor) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithTailBytes sets the size of the window read from the end of the file.
func WithTailBytes(n int64) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.tailBytes = n
		}
	}
}

// WithPricing sets the rates used for cost estimates.
func WithPricing(p types.Pricing) ExtractorOption {
	return func(e *Extractor) { e.pricing = p }
}

// WithMaxContextTokens sets the context window used for percentages.
func WithMaxContextTokens(n int) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithLogger sets the logger for skipped lines and failed reads.
func WithLogger(l *slog.Logger) ExtractorOption {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// OnRefresh registers a callback invoked after every cache (re)population.
func OnRefresh(fn func()) ExtractorOption {
	return func(e *Extractor) { e.onRefresh = fn }
}

// NewExtractor creates an Extractor with default windows and pricing.
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		clock:     clock.Real(),
		ttl:       DefaultMetadataTTL,
		headLines: DefaultHeadLines,
		tailBytes: DefaultTailBytes,
		pricing:   types.DefaultPricing,
		maxTokens: types.DefaultMaxContextTokens,
		logger:    slog.New(slog.DiscardHandler),
		entries:   make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.parser = &Parser{MaxLineSize: DefaultMaxLineSize, Logger: e.logger}
	return e
}

// Extract returns metadata for the transcript at path. It never fails:
// when the file cannot be read the result carries only the session id
// and slug derived from the file name.
func (e *Extractor) Extract(path string) types.SessionMetadata {
	stem := storage.SessionIDFromPath(path)

	info, err := os.Stat(path)
	if err != nil {
		e.logger.Debug("transcript stat failed", "path", path, "error", err)
		return types.SessionMetadata{SessionID: stem, Slug: stem}
	}
	modTime := info.ModTime()
	now := e.clock.Now()

	e.mu.Lock()
	entry, ok := e.entries[path]
	e.mu.Unlock()
	if ok && entry.modTime.Equal(modTime) && now.Sub(entry.cachedAt) < e.ttl {
		return entry.meta.Clone()
	}

	meta := e.extract(path, stem, info)

	e.mu.Lock()
	e.entries[path] = cacheEntry{modTime: modTime, cachedAt: now, meta: meta}
	e.mu.Unlock()

	if e.onRefresh != nil {
		e.onRefresh()
	}
	return meta.Clone()
}

// Sweep evicts entries cached longer than maxAge ago and returns how many
// were removed.
func (e *Extractor) Sweep(maxAge time.Duration) int {
	now := e.clock.Now()
	e.mu.Lock()
	defer e.mu.Unlock()

	removed := 0
	for path, entry := range e.entries {
		if now.Sub(entry.cachedAt) > maxAge {
			delete(e.entries, path)
			removed++
		}
	}
	return removed
}

// Len returns the number of cached entries.
func (e *Extractor) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.entries)
}

// extract reads the head and tail windows of the file. Read errors stop
// extraction but keep whatever was recovered so far.
func (e *Extractor) extract(path, stem string, info os.FileInfo) types.SessionMetadata {
	meta := types.SessionMetadata{
		SessionID:      stem,
		Slug:           stem,
		FileModTime:    info.ModTime(),
		FilePath:       path,
		RecentActivity: []string{},
	}

	if err := e.readHead(path, &meta); err != nil {
		e.logger.Debug("transcript head read failed", "path", path, "error", err)
	}
	if err := e.readTail(path, info.Size(), &meta); err != nil {
		e.logger.Debug("transcript tail read failed", "path", path, "error", err)
	}

	meta.ContextPercentage = types.ContextPercentage(meta.ContextTokens, e.maxTokens)
	meta.EstimatedCost = types.EstimateCost(meta.Usage, e.pricing)

	if meta.Slug == meta.SessionID {
		if meta.WorkingDirectory != "" {
			meta.Slug = lastSegment(meta.WorkingDirectory)
		} else if label := storage.ProjectLabel(path); label != "" {
			meta.Slug = label
		}
	}
	meta.Role = types.RoleFromPath(meta.WorkingDirectory)
	return meta
}

// readHead finds the first timestamp among the first headLines lines.
func (e *Extractor) readHead(path string, meta *types.SessionMetadata) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	ts, err := headTimestamp(f, e.headLines)
	meta.StartTimestamp = ts
	return err
}

// headTimestamp returns the first non-empty "timestamp" field among the
// first n lines of r.
func headTimestamp(r io.Reader, n int) (string, error) {
	reader := bufio.NewReader(r)
	for i := 0; i < n; i++ {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 && gjson.ValidBytes(line) {
			if ts := gjson.GetBytes(line, "timestamp").String(); ts != "" {
				return ts, nil
			}
		}
		if errors.Is(err, io.EOF) {
			return "", nil
		}
		if err != nil {
			return "", err
		}
	}
	return "", nil
}

// tailReader returns a reader over the last n bytes of f, starting at the
// first complete line inside that window.
func tailReader(f *os.File, size, n int64) (io.Reader, error) {
	if size <= n {
		return f, nil
	}
	if _, err := f.Seek(size-n, io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek: %w", err)
	}
	reader := bufio.NewReader(f)
	// Drop the partial line the seek landed in.
	if _, err := reader.ReadBytes('\n'); err != nil {
		if errors.Is(err, io.EOF) {
			return strings.NewReader(""), nil
		}
		return nil, err
	}
	return reader, nil
}

// readTail scans the last tailBytes of the file for identity fields,
// usage, and activity.
func (e *Extractor) readTail(path string, size int64, meta *types.SessionMetadata) (err error) {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	r, err := tailReader(f, size, e.tailBytes)
	if err != nil {
		return err
	}

	var activities []string
	_, err = e.parser.Each(r, func(rec *Record) bool {
		applyRecord(rec, meta, &activities)
		return true
	})
	if n := len(activities); n > MaxRecentActivities {
		activities = activities[n-MaxRecentActivities:]
	}
	if activities != nil {
		meta.RecentActivity = activities
	}
	return err
}

// applyRecord folds one tail record into meta.
func applyRecord(rec *Record, meta *types.SessionMetadata, activities *[]string) {
	if rec.SessionID != "" {
		meta.SessionID = rec.SessionID
	}
	if rec.Slug != "" {
		meta.Slug = rec.Slug
	}
	if rec.Cwd != "" {
		meta.WorkingDirectory = rec.Cwd
	}
	if rec.GitBranch != "" {
		meta.Branch = rec.GitBranch
	}
	if rec.Timestamp != "" {
		meta.LastEventTimestamp = rec.Timestamp
	}
	if rec.Type == TypeSummary && rec.Summary != "" {
		meta.Summary = rec.Summary
	}
	if rec.Type != TypeAssistant {
		return
	}
	msg, ok := rec.Msg()
	if !ok {
		return
	}
	if u := msg.Usage; u != nil {
		meta.ContextTokens = u.CacheReadInputTokens + u.InputTokens
		meta.Usage.Add(*u)
	}
	for _, item := range msg.Content.Items {
		if activity := DescribeItem(item); activity != "" {
			*activities = append(*activities, activity)
		}
	}
}

func lastSegment(p string) string {
	p = strings.TrimRight(p, "/")
	return p[strings.LastIndexByte(p, '/')+1:]
}
