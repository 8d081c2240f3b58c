package watch

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/types"
)

var now = time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC)

type fakeSource struct {
	mu      sync.Mutex
	records []types.SessionRecord
	err     error
	calls   int
}

func (s *fakeSource) Sessions(context.Context) ([]types.SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return s.records, s.err
}

func testRecords() []types.SessionRecord {
	return []types.SessionRecord{
		{PID: 101, SessionID: "s-1", Slug: "fix-auth-flow", WorkingDirectory: "/w/app", State: types.StateActive, CurrentActivity: "Running tests", LastActivity: now.Add(-5 * time.Second)},
		{PID: 202, SessionID: "s-2", WorkingDirectory: "/w/api", State: types.StateWaiting, RecentActivity: []string{"Edit handler.go"}, LastActivity: now.Add(-10 * time.Minute)},
		{PID: 303, SessionID: "s-3", Slug: "docs", WorkingDirectory: "/w/docs", State: types.StateWaiting},
	}
}

func newTestModel(src Source) Model {
	return NewModel(context.Background(), src, WithClock(clock.Fake(now)))
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T, want Model", next)
	}
	return model, cmd
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func TestModelPollsAndRenders(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	m := newTestModel(src)

	msg := m.poll()()
	m, _ = update(t, m, msg)
	if src.calls != 1 {
		t.Errorf("Sessions called %d times, want 1", src.calls)
	}

	view := m.View()
	for _, want := range []string{"3 sessions, 1 active", "fix-auth-flow", "Running tests", "s-2", "Edit handler.go", "/w/docs", "5 seconds ago"} {
		if !strings.Contains(view, want) {
			t.Errorf("View() missing %q:\n%s", want, view)
		}
	}
}

func TestModelSkipsUnchangedFingerprint(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	m := newTestModel(src)

	m, _ = update(t, m, m.poll()())
	m, _ = update(t, m, m.poll()())
	if m.changes != 1 {
		t.Errorf("changes = %d after identical polls, want 1", m.changes)
	}

	changed := testRecords()
	changed[1].State = types.StateActive
	src.records = changed
	m, _ = update(t, m, m.poll()())
	if m.changes != 2 {
		t.Errorf("changes = %d after a state change, want 2", m.changes)
	}
}

func TestModelShowsPollError(t *testing.T) {
	src := &fakeSource{records: []types.SessionRecord{}, err: errors.New("list processes failed")}
	m := newTestModel(src)
	m, _ = update(t, m, m.poll()())

	view := m.View()
	if !strings.Contains(view, "list processes failed") || !strings.Contains(view, "no running sessions") {
		t.Errorf("View() =\n%s", view)
	}
}

func TestModelNavigation(t *testing.T) {
	m := newTestModel(&fakeSource{records: testRecords()})
	m, _ = update(t, m, m.poll()())

	steps := []struct {
		key  rune
		want int
	}{
		{'j', 1}, {'j', 2}, {'j', 2}, {'k', 1}, {'g', 0}, {'k', 0}, {'G', 2},
	}
	for _, s := range steps {
		m, _ = update(t, m, keyRune(s.key))
		if m.cursor != s.want {
			t.Fatalf("after %q cursor = %d, want %d", s.key, m.cursor, s.want)
		}
	}
	if r, ok := m.Selected(); !ok || r.PID != 303 {
		t.Errorf("Selected() = %d, %v", r.PID, ok)
	}
}

func TestModelCursorClampsWhenListShrinks(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	m := newTestModel(src)
	m, _ = update(t, m, m.poll()())
	m, _ = update(t, m, keyRune('G'))

	src.records = testRecords()[:1]
	m, _ = update(t, m, m.poll()())
	if m.cursor != 0 {
		t.Errorf("cursor = %d, want 0", m.cursor)
	}
}

func TestModelScrollsToCursor(t *testing.T) {
	var records []types.SessionRecord
	for pid := 1; pid <= 20; pid++ {
		records = append(records, types.SessionRecord{PID: pid, SessionID: "s", State: types.StateWaiting})
	}
	m := newTestModel(&fakeSource{records: records})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 8})
	m, _ = update(t, m, m.poll()())
	m, _ = update(t, m, keyRune('G'))

	if m.offset != 15 {
		t.Errorf("offset = %d, want 15 with 5 visible rows", m.offset)
	}
}

func TestModelQuit(t *testing.T) {
	m := newTestModel(&fakeSource{})
	_, cmd := update(t, m, keyRune('q'))
	if cmd == nil {
		t.Fatal("q key should return a command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected QuitMsg")
	}
}

func TestModelRefreshKeyPolls(t *testing.T) {
	src := &fakeSource{records: testRecords()}
	m := newTestModel(src)
	_, cmd := update(t, m, keyRune('r'))
	if cmd == nil {
		t.Fatal("r key should return a command")
	}
	if _, ok := cmd().(sessionsMsg); !ok || src.calls != 1 {
		t.Errorf("refresh did not poll (calls = %d)", src.calls)
	}
}

func TestModelWake(t *testing.T) {
	wake := make(chan struct{}, 1)
	m := NewModel(context.Background(), &fakeSource{}, WithWake(wake))

	wake <- struct{}{}
	if _, ok := m.waitWake()().(wakeMsg); !ok {
		t.Fatal("waitWake did not deliver a wakeMsg")
	}

	close(wake)
	if msg := m.waitWake()(); msg != nil {
		t.Errorf("closed wake channel delivered %T", msg)
	}

	if cmd := newTestModel(&fakeSource{}).waitWake(); cmd != nil {
		t.Error("waitWake without a channel should be nil")
	}
}

func TestPad(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"abc", 5, "abc  "},
		{"abcdef", 4, "abc…"},
		{"", 2, "  "},
		{"日本語", 5, "日本…"},
	}
	for _, tt := range tests {
		if got := pad(tt.in, tt.width); got != tt.want {
			t.Errorf("pad(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}
