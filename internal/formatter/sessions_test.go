package formatter

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/boshu2/sessionwatch/internal/types"
)

var now = time.Date(2026, 1, 25, 12, 0, 0, 0, time.UTC)

func TestSessionsTable(t *testing.T) {
	records := []types.SessionRecord{
		{
			PID: 4021, SessionID: "s-1", Slug: "fix-auth-flow", WorkingDirectory: "/w/app",
			ContextTokens: 45210, ContextPercentage: 22.6, EstimatedCost: 1.5, CPUPercent: 12.34,
			LastActivity: now.Add(-3 * time.Minute), State: types.StateActive, StateSource: types.StateSourceHooks,
			CurrentActivity: "Running tests", RecentActivity: []string{"Read main.go"},
		},
		{
			PID: 4388, SessionID: "s-2", WorkingDirectory: "/w/api", State: types.StateWaiting,
			StateSource: types.StateSourcePolling, RecentActivity: []string{"Read a.go", "Edit b.go"},
		},
	}

	var buf bytes.Buffer
	if err := SessionsTable(&buf, records, now); err != nil {
		t.Fatalf("SessionsTable() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}

	first := lines[2]
	for _, want := range []string{"4021", "active*", "fix-auth-flow", "45,210 (23%)", "$1.50", "12.3%", "3 minutes ago", "Running tests"} {
		if !strings.Contains(first, want) {
			t.Errorf("row %q missing %q", first, want)
		}
	}
	second := lines[3]
	for _, want := range []string{"4388", "waiting", "s-2", "Edit b.go", " - "} {
		if !strings.Contains(second, want) {
			t.Errorf("row %q missing %q", second, want)
		}
	}
	if strings.Contains(second, "waiting*") {
		t.Errorf("polling state should not be starred: %q", second)
	}
}

func TestHistoryTable(t *testing.T) {
	sessions := []types.HistoricSession{
		{SessionMetadata: types.SessionMetadata{SessionID: "0b6f5a3e-9c2d-4e1f-8a7b-1234567890ab", Slug: "live-one", FileModTime: now.Add(-time.Minute)}, Running: true},
		{SessionMetadata: types.SessionMetadata{SessionID: "dead", Summary: "Refactor parser", FileModTime: now.Add(-2 * time.Hour)}},
		{SessionMetadata: types.SessionMetadata{SessionID: "quiet", RecentActivity: []string{"Read go.mod"}}},
	}

	var buf bytes.Buffer
	if err := HistoryTable(&buf, sessions, now); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 5 {
		t.Fatalf("expected 5 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.HasPrefix(lines[2], "* live-one") || !strings.Contains(lines[2], "0b6f5a3e ") {
		t.Errorf("running row = %q", lines[2])
	}
	if !strings.Contains(lines[3], "2 hours ago") || !strings.Contains(lines[3], "Refactor parser") {
		t.Errorf("dead row = %q", lines[3])
	}
	if !strings.Contains(lines[4], "Read go.mod") {
		t.Errorf("summary should fall back to last activity: %q", lines[4])
	}
}

func TestTimelineTable(t *testing.T) {
	periods := []types.ActivityPeriod{{
		Start:      now,
		End:        now.Add(5 * time.Minute),
		State:      types.StateActive,
		Activities: []string{"Read a.go", "Bash: go test"},
		ToolCounts: map[string]int{"Read": 1, "Bash": 1},
	}}
	var buf bytes.Buffer
	if err := TimelineTable(&buf, periods); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "Bash×1 Read×1") || !strings.Contains(out, "Bash: go test") {
		t.Errorf("TimelineTable() =\n%s", out)
	}
}

func TestMetricsText(t *testing.T) {
	m := types.Metrics{
		ResponseTime:      types.ResponseTimes{Min: 4, Avg: 7, Max: 10, Median: 7},
		ToolCounts:        map[string]int{"Read": 2, "Bash": 1},
		TotalToolCalls:    3,
		TurnCount:         2,
		AvgTokensPerTurn:  1800,
		DurationSeconds:   3600,
		ToolCallsPerHour:  3,
		ResponseTimeCount: 2,
		HumanMessageCount: 3,
	}
	var buf bytes.Buffer
	if err := MetricsText(&buf, "s-1", m); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"Session:        s-1",
		"Duration:       1h0m0s",
		"Turns:          2 (3 human messages)",
		"Tokens/turn:    1,800",
		"Tool calls:     3 (3.0/h)",
		"min 4.0s  avg 7.0s  median 7.0s  max 10.0s (n=2)",
		"Tools:          Read×2 Bash×1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("MetricsText() missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	if err := MetricsText(&buf, "s-2", types.Metrics{}); err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "Response time") || !strings.Contains(buf.String(), "Duration:       -") {
		t.Errorf("empty metrics =\n%s", buf.String())
	}
}

func TestAge(t *testing.T) {
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "-"},
		{now, "now"},
		{now.Add(-90 * time.Second), "1 minute ago"},
		{now.Add(-26 * time.Hour), "1 day ago"},
	}
	for _, tt := range tests {
		if got := Age(tt.t, now); got != tt.want {
			t.Errorf("Age(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestCost(t *testing.T) {
	tests := map[float64]string{1.5: "$1.50", 1234.567: "$1,234.57"}
	for in, want := range tests {
		if got := Cost(in); got != want {
			t.Errorf("Cost(%v) = %q, want %q", in, got, want)
		}
	}
}
