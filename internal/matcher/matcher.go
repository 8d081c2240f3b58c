// Package matcher binds running processes to transcripts.
//
// Match is a pure function: every lookup it needs goes through an Index
// built by the caller, so the algorithm is testable without a filesystem
// or a process table. Three passes run in priority order and share one set
// of claimed session ids and one set of claimed PIDs, which is what keeps
// the result one-to-one:
//
//  1. resume: a process started with --resume <id> gets exactly that
//     session, or nothing.
//  2. hooks: a live hook state whose cwd equals an unclaimed process's cwd
//     binds them. This recovers sessions whose transcript cwd no longer
//     matches the directory the process reports.
//  3. heuristic: remaining processes are grouped by cwd and each takes the
//     unclaimed transcript whose start time is closest to its own, or the
//     most recently written one when no start times are usable.
//
// Processes left over are not reported.
package matcher

import (
	"sort"
	"time"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Source records which pass produced an assignment.
type Source string

const (
	SourceResume    Source = "resume"
	SourceHooks     Source = "hooks"
	SourceStartTime Source = "start-time"
	SourceRecent    Source = "recent"
)

// Assignment is the session bound to one process.
type Assignment struct {
	Session types.SessionMetadata
	Source  Source
}

// Hint is a live hook state naming the directory its session runs in.
type Hint struct {
	SessionID        string
	WorkingDirectory string
}

type claims struct {
	ids  map[string]bool
	pids map[int]bool
}

// Match assigns sessions to processes. The result is keyed by PID and never
// maps two processes to the same session id. Input order does not affect
// the result.
func Match(procs []types.ProcessRecord, hints []Hint, idx Index) map[int]Assignment {
	procs = append([]types.ProcessRecord(nil), procs...)
	sort.Slice(procs, func(i, j int) bool { return procs[i].PID < procs[j].PID })
	hints = append([]Hint(nil), hints...)
	sort.Slice(hints, func(i, j int) bool { return hints[i].SessionID < hints[j].SessionID })

	c := claims{ids: make(map[string]bool), pids: make(map[int]bool)}
	out := make(map[int]Assignment)

	matchResumed(procs, idx, &c, out)
	matchHinted(procs, hints, idx, &c, out)
	matchByDirectory(procs, idx, &c, out)
	return out
}

// matchResumed claims every process that names a known, unclaimed session.
// A process whose id is unknown or already taken is left for later passes.
func matchResumed(procs []types.ProcessRecord, idx Index, c *claims, out map[int]Assignment) {
	for _, p := range procs {
		id := p.ResumeSessionID
		if id == "" || c.ids[id] {
			continue
		}
		meta, ok := idx.ByID(id)
		if !ok {
			continue
		}
		c.ids[id] = true
		c.pids[p.PID] = true
		out[p.PID] = Assignment{Session: meta, Source: SourceResume}
	}
}

func matchHinted(procs []types.ProcessRecord, hints []Hint, idx Index, c *claims, out map[int]Assignment) {
	for _, h := range hints {
		if h.SessionID == "" || h.WorkingDirectory == "" || c.ids[h.SessionID] {
			continue
		}
		meta, ok := idx.ByID(h.SessionID)
		if !ok {
			continue
		}
		start, hasStart := meta.StartTime()

		// Prefer the closest start time; a timed process beats an untimed
		// one and the lowest PID wins otherwise.
		best, bestDiff := -1, time.Duration(-1)
		for i, p := range procs {
			if c.pids[p.PID] || p.WorkingDirectory != h.WorkingDirectory {
				continue
			}
			d := time.Duration(-1)
			if hasStart && p.HasStartTime() {
				d = absDiff(start, p.StartTime)
			}
			if best < 0 || (d >= 0 && (bestDiff < 0 || d < bestDiff)) {
				best, bestDiff = i, d
			}
		}
		if best < 0 {
			continue
		}

		p := procs[best]
		c.pids[p.PID] = true
		c.ids[meta.SessionID] = true
		out[p.PID] = Assignment{Session: meta, Source: SourceHooks}
	}
}

func matchByDirectory(procs []types.ProcessRecord, idx Index, c *claims, out map[int]Assignment) {
	byDir := make(map[string][]types.ProcessRecord)
	for _, p := range procs {
		if c.pids[p.PID] || p.WorkingDirectory == "" {
			continue
		}
		byDir[p.WorkingDirectory] = append(byDir[p.WorkingDirectory], p)
	}
	dirs := make([]string, 0, len(byDir))
	for dir := range byDir {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	for _, dir := range dirs {
		var pool []types.SessionMetadata
		for _, m := range idx.ForDir(dir) {
			if m.SessionID != "" && !c.ids[m.SessionID] {
				pool = append(pool, m)
			}
		}
		sort.SliceStable(pool, func(i, j int) bool { return pool[i].SessionID < pool[j].SessionID })

		for _, p := range byDir[dir] {
			i, src := pick(p, pool)
			if i < 0 {
				break
			}
			meta := pool[i]
			c.pids[p.PID] = true
			c.ids[meta.SessionID] = true
			out[p.PID] = Assignment{Session: meta, Source: src}
			pool = removeID(pool, meta.SessionID)
		}
	}
}

// pick chooses a candidate for p: the closest start time when both sides
// have one, otherwise the most recently written transcript.
func pick(p types.ProcessRecord, pool []types.SessionMetadata) (int, Source) {
	if len(pool) == 0 {
		return -1, ""
	}

	if p.HasStartTime() {
		best := -1
		var bestDiff time.Duration
		for i, m := range pool {
			start, ok := m.StartTime()
			if !ok {
				continue
			}
			if d := absDiff(start, p.StartTime); best < 0 || d < bestDiff {
				best, bestDiff = i, d
			}
		}
		if best >= 0 {
			return best, SourceStartTime
		}
	}

	// Known approximation: with several untimed transcripts in one
	// directory the newest may belong to a different process.
	best := 0
	for i := 1; i < len(pool); i++ {
		if pool[i].FileModTime.After(pool[best].FileModTime) {
			best = i
		}
	}
	return best, SourceRecent
}

func absDiff(a, b time.Time) time.Duration {
	if d := a.Sub(b); d >= 0 {
		return d
	}
	return b.Sub(a)
}
