package detector

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/config"
	"github.com/boshu2/sessionwatch/internal/process"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
)

var now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

const resumedID = "0b6f5a3e-9c2d-4e1f-8a7b-1234567890ab"

type staticLister struct {
	procs []types.ProcessRecord
	err   error
}

func (l *staticLister) Discover(context.Context) ([]types.ProcessRecord, error) {
	return l.procs, l.err
}

type fixture struct {
	t      *testing.T
	cfg    *config.Config
	clock  *clock.FakeClock
	lister *staticLister
	engine *Engine
}

func newFixture(t *testing.T, procs ...types.ProcessRecord) *fixture {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.ProjectsDir = filepath.Join(base, "projects")
	cfg.Paths.StateDir = filepath.Join(base, "state")

	f := &fixture{t: t, cfg: cfg, clock: clock.Fake(now), lister: &staticLister{procs: procs}}
	f.engine = New(cfg, WithClock(f.clock), WithLister(f.lister), WithConcurrency(2))
	return f
}

// transcript writes a transcript whose first record is at start and whose
// file was last written at mod.
func (f *fixture) transcript(cwd, id string, start, mod time.Time, extra ...map[string]any) string {
	f.t.Helper()
	records := append([]map[string]any{{
		"type": "user", "timestamp": types.FormatTimestamp(start), "sessionId": id, "cwd": cwd,
		"message": map[string]any{"role": "user", "content": "hello from " + id},
	}}, extra...)

	var b strings.Builder
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			f.t.Fatal(err)
		}
		b.Write(data)
		b.WriteByte('\n')
	}

	dir := filepath.Join(f.cfg.Paths.ProjectsDir, storage.EncodePath(cwd))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		f.t.Fatal(err)
	}
	path := filepath.Join(dir, id+storage.TranscriptExt)
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		f.t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		f.t.Fatal(err)
	}
	return path
}

func (f *fixture) hookState(id, body string, mod time.Time) {
	f.t.Helper()
	if err := os.MkdirAll(f.cfg.Paths.StateDir, 0o755); err != nil {
		f.t.Fatal(err)
	}
	path := filepath.Join(f.cfg.Paths.StateDir, id+".json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		f.t.Fatal(err)
	}
	if err := os.Chtimes(path, mod, mod); err != nil {
		f.t.Fatal(err)
	}
}

func byPID(records []types.SessionRecord) map[int]types.SessionRecord {
	out := make(map[int]types.SessionRecord, len(records))
	for _, r := range records {
		out[r.PID] = r
	}
	return out
}

func standardProcs() []types.ProcessRecord {
	return []types.ProcessRecord{
		{PID: 100, CPUPercent: 0.1, TTY: "s001", WorkingDirectory: "/w/app", StartTime: now.Add(-time.Minute)},
		{PID: 200, CPUPercent: 0.0, TTY: "s002", WorkingDirectory: "/w/app", StartTime: now.Add(-3 * time.Hour)},
		{PID: 300, CPUPercent: 5.0, TTY: "s003", WorkingDirectory: "/w/app", StartTime: now.Add(-time.Hour), ResumeSessionID: resumedID},
		{PID: 400, CPUPercent: 0.0, TTY: "s004", WorkingDirectory: "/w/none", StartTime: now},
	}
}

func TestSessions(t *testing.T) {
	f := newFixture(t, standardProcs()...)
	f.transcript("/w/app", "s-new", now.Add(-62*time.Second), now.Add(-10*time.Second))
	f.transcript("/w/app", "s-old", now.Add(-3*time.Hour+5*time.Second), now.Add(-2*time.Hour))
	f.transcript("/w/other", resumedID, now.Add(-48*time.Hour), now.Add(-time.Hour))

	records, err := f.engine.Sessions(context.Background())
	if err != nil {
		t.Fatalf("Sessions() error = %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Sessions() = %d records, want 3: %+v", len(records), records)
	}

	got := byPID(records)
	checks := []struct {
		pid     int
		session string
		source  string
		state   types.State
	}{
		{100, "s-new", "start-time", types.StateActive},
		{200, "s-old", "start-time", types.StateWaiting},
		{300, resumedID, "resume", types.StateActive},
	}
	for _, c := range checks {
		r := got[c.pid]
		if r.SessionID != c.session || r.MatchSource != c.source || r.State != c.state {
			t.Errorf("pid %d = %s/%s/%s, want %s/%s/%s", c.pid, r.SessionID, r.MatchSource, r.State, c.session, c.source, c.state)
		}
		if r.StateSource != types.StateSourcePolling {
			t.Errorf("pid %d state source = %q, want polling", c.pid, r.StateSource)
		}
	}
	if got[300].WorkingDirectory != "/w/other" {
		t.Errorf("resumed session cwd = %q, want transcript cwd", got[300].WorkingDirectory)
	}
	if got[100].RecencySeconds != 10 {
		t.Errorf("recency = %v, want 10", got[100].RecencySeconds)
	}

	// Active first, then CPU descending.
	order := []int{records[0].PID, records[1].PID, records[2].PID}
	if order[0] != 300 || order[1] != 100 || order[2] != 200 {
		t.Errorf("order = %v, want [300 100 200]", order)
	}
}

func TestSessions_HookStateOverridesPolling(t *testing.T) {
	f := newFixture(t, standardProcs()[:2]...)
	f.transcript("/w/app", "s-new", now.Add(-62*time.Second), now.Add(-10*time.Second))
	f.transcript("/w/app", "s-old", now.Add(-3*time.Hour+5*time.Second), now.Add(-2*time.Hour))
	f.hookState("s-old", `{"state":"active","current_activity":"Running tests","cwd":"/w/app","updated_at":"x"}`, now.Add(-5*time.Second))
	f.hookState("s-new", `{"state":"waiting","updated_at":"x"}`, now.Add(-10*time.Minute))

	records, err := f.engine.Sessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	got := byPID(records)

	old := got[200]
	if old.SessionID != "s-old" || old.MatchSource != "hooks" {
		t.Fatalf("pid 200 = %s via %s, want s-old via hooks", old.SessionID, old.MatchSource)
	}
	if old.State != types.StateActive || old.StateSource != types.StateSourceHooks || old.CurrentActivity != "Running tests" {
		t.Errorf("pid 200 state = %s/%s/%q", old.State, old.StateSource, old.CurrentActivity)
	}
	// The stale hook file for s-new is ignored.
	if n := got[100]; n.SessionID != "s-new" || n.StateSource != types.StateSourcePolling {
		t.Errorf("pid 100 = %s/%s, want s-new from polling", n.SessionID, n.StateSource)
	}
}

func TestSessions_UniquePerPoll(t *testing.T) {
	var procs []types.ProcessRecord
	for pid := 1; pid <= 6; pid++ {
		procs = append(procs, types.ProcessRecord{PID: pid, WorkingDirectory: "/w/app", StartTime: now.Add(-time.Duration(pid) * time.Minute)})
	}
	f := newFixture(t, procs...)
	for i := 0; i < 4; i++ {
		id := string(rune('a' + i))
		f.transcript("/w/app", id, now.Add(-time.Duration(i)*time.Minute), now.Add(-time.Duration(i)*time.Second))
	}

	records, err := f.engine.Sessions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 4 {
		t.Errorf("Sessions() = %d records, want one per transcript (4)", len(records))
	}
	seenIDs, seenPIDs := map[string]bool{}, map[int]bool{}
	for _, r := range records {
		if seenIDs[r.SessionID] || seenPIDs[r.PID] {
			t.Fatalf("duplicate in poll: %+v", r)
		}
		seenIDs[r.SessionID], seenPIDs[r.PID] = true, true
	}
}

func TestSessions_DiscoveryFailure(t *testing.T) {
	f := newFixture(t)
	f.lister.err = process.ErrListFailed

	records, err := f.engine.Sessions(context.Background())
	if !errors.Is(err, process.ErrListFailed) {
		t.Errorf("Sessions() error = %v, want ErrListFailed", err)
	}
	if records == nil || len(records) != 0 {
		t.Errorf("Sessions() = %v, want empty list", records)
	}
}

func TestChanged(t *testing.T) {
	f := newFixture(t, standardProcs()[:1]...)
	f.transcript("/w/app", "s-new", now.Add(-62*time.Second), now.Add(-10*time.Second))
	e := f.engine

	stamp := e.ActivityStamp()
	if changed, _ := e.Changed(stamp); changed {
		t.Fatal("Changed() = true before anything happened")
	}

	if _, err := e.Sessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	changed, stamp := e.Changed(stamp)
	if !changed {
		t.Fatal("Changed() = false after metadata was extracted")
	}

	if _, err := e.Sessions(context.Background()); err != nil {
		t.Fatal(err)
	}
	if changed, _ := e.Changed(stamp); changed {
		t.Error("Changed() = true after a poll served entirely from cache")
	}

	f.hookState("s-new", `{"state":"active","updated_at":"x"}`, now)
	if changed, _ := e.Changed(stamp); !changed {
		t.Error("Changed() = false after a hook state was written")
	}
}

func TestMarkActivityIsMonotonic(t *testing.T) {
	e := newFixture(t).engine
	prev := e.ActivityStamp()
	for i := 0; i < 5; i++ {
		e.MarkActivity()
		cur := e.ActivityStamp()
		if cur <= prev {
			t.Fatalf("stamp went from %d to %d", prev, cur)
		}
		prev = cur
	}
}

func TestMaybeSweep(t *testing.T) {
	f := newFixture(t)
	f.transcript("/w/app", "s1", now, now)
	e := f.engine

	if _, ok := e.Session("s1"); !ok {
		t.Fatal("Session(s1) not found")
	}
	f.clock.Advance(2 * time.Minute)
	e.maybeSweep()
	if n := e.extractor.Len(); n != 0 {
		t.Errorf("extractor entries after sweep = %d, want 0", n)
	}

	e.Session("s1")
	f.clock.Advance(2 * time.Second)
	f.cfg.Detection.MetadataCacheTTL = time.Second
	e.maybeSweep()
	if n := e.extractor.Len(); n != 1 {
		t.Errorf("extractor entries = %d, want 1 (sweep inside interval must not run)", n)
	}
}

func TestSortRecords(t *testing.T) {
	records := []types.SessionRecord{
		{PID: 3, State: types.StateWaiting, CPUPercent: 9},
		{PID: 2, State: types.StateActive, CPUPercent: 1},
		{PID: 1, State: types.StateActive, CPUPercent: 1},
		{PID: 4, State: types.StateActive, CPUPercent: 7},
	}
	SortRecords(records)
	want := []int{4, 1, 2, 3}
	for i, r := range records {
		if r.PID != want[i] {
			t.Fatalf("order = %v, want %v", records, want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	base := []types.SessionRecord{{
		SessionID:      "s1",
		State:          types.StateActive,
		ContextTokens:  100,
		LastActivity:   now,
		RecentActivity: []string{"a", "b", "c", "d", "e", "f", "g"},
	}}
	fp := Fingerprint(base)
	if len(fp) != 64 {
		t.Errorf("Fingerprint() length = %d, want 64 hex chars", len(fp))
	}
	if Fingerprint(base) != fp {
		t.Error("Fingerprint() is not deterministic")
	}

	older := []types.SessionRecord{base[0]}
	older[0].RecentActivity = []string{"x", "x", "c", "d", "e", "f", "g"}
	if Fingerprint(older) != fp {
		t.Error("activities beyond the last five changed the fingerprint")
	}

	waiting := []types.SessionRecord{base[0]}
	waiting[0].State = types.StateWaiting
	if Fingerprint(waiting) == fp {
		t.Error("state change did not change the fingerprint")
	}
	if Fingerprint(nil) == fp {
		t.Error("empty list collides")
	}
}
