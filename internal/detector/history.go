package detector

import (
	"bytes"
	"context"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/boshu2/sessionwatch/internal/types"
)

// AllSessions lists every transcript written within maxAge, newest first,
// marking the ones a running process is attached to. A non-positive maxAge
// uses the configured default.
func (e *Engine) AllSessions(ctx context.Context, maxAge time.Duration) []types.HistoricSession {
	running := e.runningIDs(ctx)
	return e.history(ctx, maxAge, func(types.SessionMetadata) bool { return true }, running)
}

// DeadSessions lists recently written transcripts that no running process
// is attached to, newest first. A non-empty query keeps only sessions whose
// slug, summary, cwd, branch or recent activity contain it, ignoring case;
// with searchContent the transcript body is searched as well.
func (e *Engine) DeadSessions(ctx context.Context, maxAge time.Duration, query string, searchContent bool) []types.HistoricSession {
	running := e.runningIDs(ctx)
	query = strings.ToLower(strings.TrimSpace(query))

	keep := func(m types.SessionMetadata) bool {
		if running[m.SessionID] {
			return false
		}
		if query == "" || metadataContains(m, query) {
			return true
		}
		return searchContent && fileContains(m.FilePath, query)
	}
	return e.history(ctx, maxAge, keep, running)
}

func (e *Engine) runningIDs(ctx context.Context) map[string]bool {
	ids := make(map[string]bool)
	records, err := e.Sessions(ctx)
	if err != nil {
		e.logger.Debug("live sessions unavailable", "error", err)
	}
	for _, r := range records {
		ids[r.SessionID] = true
	}
	return ids
}

func (e *Engine) history(ctx context.Context, maxAge time.Duration, keep func(types.SessionMetadata) bool, running map[string]bool) []types.HistoricSession {
	if maxAge <= 0 {
		maxAge = e.cfg.Detection.MaxSessionAge
	}
	now := e.clock.Now()

	transcripts, err := e.store.Recent(now.Add(-maxAge))
	if err != nil {
		e.logger.Debug("listing recent transcripts failed", "error", err)
		return []types.HistoricSession{}
	}

	out := []types.HistoricSession{}
	for _, m := range e.extractAll(ctx, transcripts) {
		if !keep(m) {
			continue
		}
		out = append(out, types.HistoricSession{
			SessionMetadata: m,
			RecencySeconds:  recency(now, m.FileModTime),
			Running:         running[m.SessionID],
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FileModTime.After(out[j].FileModTime)
	})
	return out
}

func metadataContains(m types.SessionMetadata, query string) bool {
	fields := append([]string{m.Slug, m.Summary, m.WorkingDirectory, m.Branch, m.SessionID}, m.RecentActivity...)
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), query) {
			return true
		}
	}
	return false
}

// fileContains scans a transcript for query, case-insensitively.
func fileContains(path, query string) bool {
	if path == "" {
		return false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}
	return bytes.Contains(bytes.ToLower(data), []byte(query))
}
