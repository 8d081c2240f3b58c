package formatter

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Column widths for session listings.
const (
	slugWidth     = 28
	cwdWidth      = 40
	activityWidth = 48
	summaryWidth  = 48
)

// SessionsTable writes live sessions as a table. Ages are relative to now.
func SessionsTable(w io.Writer, records []types.SessionRecord, now time.Time) error {
	tbl := NewTable(w, "PID", "STATE", "SESSION", "CWD", "CTX", "COST", "CPU", "LAST", "ACTIVITY")
	tbl.SetMaxWidth(2, slugWidth).SetMaxWidth(3, cwdWidth).SetMaxWidth(8, activityWidth)
	for _, r := range records {
		tbl.AddRow(
			strconv.Itoa(r.PID),
			stateLabel(r.State, r.StateSource),
			label(r.Slug, r.SessionID),
			r.WorkingDirectory,
			contextLabel(r.ContextTokens, r.ContextPercentage),
			Cost(r.EstimatedCost),
			fmt.Sprintf("%.1f%%", r.CPUPercent),
			Age(r.LastActivity, now),
			currentActivity(r),
		)
	}
	return tbl.Render()
}

// HistoryTable writes transcripts from AllSessions or DeadSessions.
func HistoryTable(w io.Writer, sessions []types.HistoricSession, now time.Time) error {
	tbl := NewTable(w, "SESSION", "ID", "CWD", "CTX", "COST", "LAST", "SUMMARY")
	tbl.SetMaxWidth(0, slugWidth).SetMaxWidth(2, cwdWidth).SetMaxWidth(6, summaryWidth)
	for _, s := range sessions {
		name := label(s.Slug, s.SessionID)
		if s.Running {
			name = "* " + name
		}
		summary := s.Summary
		if summary == "" && len(s.RecentActivity) > 0 {
			summary = s.RecentActivity[len(s.RecentActivity)-1]
		}
		tbl.AddRow(
			name,
			shortID(s.SessionID),
			s.WorkingDirectory,
			contextLabel(s.ContextTokens, s.ContextPercentage),
			Cost(s.EstimatedCost),
			Age(s.FileModTime, now),
			summary,
		)
	}
	return tbl.Render()
}

// TimelineTable writes activity periods, one row per period.
func TimelineTable(w io.Writer, periods []types.ActivityPeriod) error {
	tbl := NewTable(w, "START", "END", "TOOLS", "ACTIVITY")
	tbl.SetMaxWidth(3, activityWidth+12)
	for _, p := range periods {
		last := ""
		if n := len(p.Activities); n > 0 {
			last = p.Activities[n-1]
		}
		tbl.AddRow(
			p.Start.Local().Format("15:04:05"),
			p.End.Local().Format("15:04:05"),
			ToolCounts(p.ToolCounts),
			last,
		)
	}
	return tbl.Render()
}

// MetricsText writes a human-readable metrics report.
func MetricsText(w io.Writer, sessionID string, m types.Metrics) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Session:        %s\n", sessionID)
	fmt.Fprintf(&b, "Duration:       %s\n", duration(m.DurationSeconds))
	fmt.Fprintf(&b, "Turns:          %s (%s human messages)\n", humanize.Comma(int64(m.TurnCount)), humanize.Comma(int64(m.HumanMessageCount)))
	fmt.Fprintf(&b, "Tokens/turn:    %s\n", humanize.Comma(int64(m.AvgTokensPerTurn)))
	fmt.Fprintf(&b, "Tool calls:     %s (%s/h)\n", humanize.Comma(int64(m.TotalToolCalls)), humanize.FormatFloat("#,###.#", m.ToolCallsPerHour))
	if m.ResponseTimeCount > 0 {
		rt := m.ResponseTime
		fmt.Fprintf(&b, "Response time:  min %.1fs  avg %.1fs  median %.1fs  max %.1fs (n=%d)\n",
			rt.Min, rt.Avg, rt.Median, rt.Max, m.ResponseTimeCount)
	}
	if len(m.ToolCounts) > 0 {
		fmt.Fprintf(&b, "Tools:          %s\n", ToolCounts(m.ToolCounts))
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Age renders how long before now t was, e.g. "3 minutes ago". A zero t
// renders as "-".
func Age(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	if now.Sub(t) < time.Second {
		return "now"
	}
	return humanize.RelTime(t, now, "ago", "from now")
}

// Cost renders a dollar estimate.
func Cost(v float64) string {
	return "$" + humanize.FormatFloat("#,###.##", v)
}

// ToolCounts renders tool usage as "Bash×3 Read×2", most used first.
func ToolCounts(counts map[string]int) string {
	names := make([]string, 0, len(counts))
	for name := range counts {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if counts[names[i]] != counts[names[j]] {
			return counts[names[i]] > counts[names[j]]
		}
		return names[i] < names[j]
	})
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s×%d", name, counts[name])
	}
	return strings.Join(parts, " ")
}

func stateLabel(s types.State, src types.StateSource) string {
	if src == types.StateSourceHooks {
		return string(s) + "*"
	}
	return string(s)
}

func contextLabel(tokens int, pct float64) string {
	if tokens == 0 {
		return "-"
	}
	return fmt.Sprintf("%s (%.0f%%)", humanize.Comma(int64(tokens)), pct)
}

func currentActivity(r types.SessionRecord) string {
	if r.CurrentActivity != "" {
		return r.CurrentActivity
	}
	if n := len(r.RecentActivity); n > 0 {
		return r.RecentActivity[n-1]
	}
	return ""
}

func label(slug, id string) string {
	if slug != "" {
		return slug
	}
	return id
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func duration(seconds float64) string {
	d := time.Duration(seconds * float64(time.Second)).Round(time.Second)
	if d <= 0 {
		return "-"
	}
	return d.String()
}
