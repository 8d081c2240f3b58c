// Package timeline turns a transcript into a chronological event stream
// and folds that stream into fixed-width activity periods.
package timeline

import (
	"sort"
	"strings"
	"time"

	"github.com/boshu2/sessionwatch/internal/parser"
	"github.com/boshu2/sessionwatch/internal/types"
)

// DefaultWindow is the bucket width used when none is given.
const DefaultWindow = 5 * time.Minute

// MaxActivities caps the activity strings kept per period.
const MaxActivities = 10

const (
	eventText  = "text"
	toolHuman  = "human"
	textLimit  = 80
	promptText = 60
)

// Extract reads the whole transcript at path and returns its events in file
// order. Records without a timestamp produce no event. A nil parser uses
// the defaults.
func Extract(p *parser.Parser, path string) ([]types.TimelineEvent, error) {
	if p == nil {
		p = parser.NewParser()
	}
	var events []types.TimelineEvent
	_, err := p.EachFile(path, func(rec *parser.Record) bool {
		if rec.Timestamp != "" {
			events = append(events, recordEvents(rec)...)
		}
		return true
	})
	return events, err
}

func isActiveType(t string) bool {
	return t == parser.TypeAssistant || t == parser.TypeToolUse || t == parser.TypeToolResult
}

func recordEvents(rec *parser.Record) []types.TimelineEvent {
	switch {
	case rec.Type == parser.TypeAssistant:
		return assistantEvents(rec)
	case rec.IsUserTurn():
		return []types.TimelineEvent{userEvent(rec)}
	}
	return []types.TimelineEvent{{
		Timestamp: rec.Timestamp,
		Type:      rec.Type,
		Active:    isActiveType(rec.Type),
	}}
}

// assistantEvents emits one event per tool call plus one for the first text
// part. A message with neither still marks the moment as active.
func assistantEvents(rec *parser.Record) []types.TimelineEvent {
	var events []types.TimelineEvent
	m, ok := rec.Msg()
	if ok {
		for _, item := range m.Content.ToolUses() {
			activity := parser.ClassifyTool(item.Name, item.Input).Describe()
			if activity == "" {
				activity = item.Name
			}
			events = append(events, types.TimelineEvent{
				Timestamp: rec.Timestamp,
				Type:      parser.TypeToolUse,
				Active:    true,
				Tool:      item.Name,
				Activity:  activity,
			})
		}
		for _, text := range m.Content.Texts() {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			events = append(events, types.TimelineEvent{
				Timestamp: rec.Timestamp,
				Type:      eventText,
				Active:    true,
				Activity:  clip(firstLine(text), textLimit),
			})
			break
		}
	}
	if len(events) == 0 {
		events = append(events, types.TimelineEvent{
			Timestamp: rec.Timestamp,
			Type:      rec.Type,
			Active:    true,
		})
	}
	return events
}

// userEvent marks a human prompt. Records that only carry tool output are
// tool results, not prompts.
func userEvent(rec *parser.Record) types.TimelineEvent {
	m, ok := rec.Msg()
	if ok && m.Content.OnlyToolResults() {
		return types.TimelineEvent{
			Timestamp: rec.Timestamp,
			Type:      parser.TypeToolResult,
			Active:    true,
		}
	}

	activity := "User prompt"
	if ok {
		if texts := m.Content.Texts(); len(texts) > 0 && texts[0] != "" {
			activity = "User: " + clip(texts[0], promptText)
		}
	}
	return types.TimelineEvent{
		Timestamp: rec.Timestamp,
		Type:      rec.Type,
		Tool:      toolHuman,
		Activity:  activity,
	}
}

type timedEvent struct {
	at time.Time
	types.TimelineEvent
}

// Bucket folds events into periods of the given width. Each period starts
// at the first event that does not fit the previous one. Periods without an
// active event are dropped. Events with unparsable timestamps are skipped.
func Bucket(events []types.TimelineEvent, window time.Duration) []types.ActivityPeriod {
	if window <= 0 {
		window = DefaultWindow
	}

	timed := make([]timedEvent, 0, len(events))
	for _, e := range events {
		if at, ok := types.ParseTimestamp(e.Timestamp); ok {
			timed = append(timed, timedEvent{at: at.UTC(), TimelineEvent: e})
		}
	}
	sort.SliceStable(timed, func(i, j int) bool { return timed[i].at.Before(timed[j].at) })

	var (
		periods []types.ActivityPeriod
		cur     *bucket
	)
	for _, e := range timed {
		if cur == nil || !e.at.Before(cur.end) {
			if p, ok := cur.period(); ok {
				periods = append(periods, p)
			}
			cur = &bucket{start: e.at, end: e.at.Add(window), tools: make(map[string]int)}
		}
		cur.add(e.TimelineEvent)
	}
	if p, ok := cur.period(); ok {
		periods = append(periods, p)
	}
	return periods
}

type bucket struct {
	start, end time.Time
	active     bool
	activities []string
	tools      map[string]int
}

func (b *bucket) add(e types.TimelineEvent) {
	b.active = b.active || e.Active
	if e.Activity != "" {
		if n := len(b.activities); n == 0 || b.activities[n-1] != e.Activity {
			b.activities = append(b.activities, e.Activity)
		}
	}
	if e.Tool != "" {
		b.tools[e.Tool]++
	}
}

func (b *bucket) period() (types.ActivityPeriod, bool) {
	if b == nil || !b.active {
		return types.ActivityPeriod{}, false
	}
	activities := b.activities
	if len(activities) > MaxActivities {
		activities = activities[len(activities)-MaxActivities:]
	}
	return types.ActivityPeriod{
		Start:      b.start,
		End:        b.end,
		State:      types.StateActive,
		Activities: append([]string{}, activities...),
		ToolCounts: b.tools,
	}, true
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// clip returns at most n runes of s.
func clip(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
