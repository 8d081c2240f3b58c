package parser

import (
	"sort"
	"time"

	"github.com/boshu2/sessionwatch/internal/types"
)

// maxResponseTime discards prompt/response gaps that are really idle time.
const maxResponseTime = 300 * time.Second

// ExtractMetrics scans the whole transcript and computes response-time,
// tool, and token statistics. A read failure yields whatever was
// accumulated before it.
func (p *Parser) ExtractMetrics(path string) (types.Metrics, error) {
	var (
		responseTimes []float64
		turnTokens    []int
		toolCounts    = make(map[string]int)
		first, last   string
		prompt        time.Time
		humanCount    int
	)

	_, err := p.EachFile(path, func(rec *Record) bool {
		if rec.Timestamp != "" {
			if first == "" {
				first = rec.Timestamp
			}
			last = rec.Timestamp
		}
		ts, tsOK := types.ParseTimestamp(rec.Timestamp)

		switch {
		case rec.IsUserTurn():
			if m, ok := rec.Msg(); ok && m.Content.OnlyToolResults() {
				return true
			}
			humanCount++
			if tsOK {
				prompt = ts
			}

		case rec.Type == TypeAssistant:
			if !prompt.IsZero() && tsOK {
				if d := ts.Sub(prompt); d > 0 && d < maxResponseTime {
					responseTimes = append(responseTimes, d.Seconds())
				}
				prompt = time.Time{}
			}
			m, ok := rec.Msg()
			if !ok {
				return true
			}
			if u := m.Usage; u != nil {
				turnTokens = append(turnTokens, u.InputTokens+u.OutputTokens)
			}
			for _, item := range m.Content.ToolUses() {
				name := item.Name
				if name == "" {
					name = "Unknown"
				}
				toolCounts[name]++
			}
		}
		return true
	})

	m := types.Metrics{
		ResponseTime:      summarize(responseTimes),
		ToolCounts:        toolCounts,
		TurnCount:         len(turnTokens),
		FirstEventTime:    first,
		LastEventTime:     last,
		ResponseTimeCount: len(responseTimes),
		HumanMessageCount: humanCount,
	}
	for _, n := range toolCounts {
		m.TotalToolCalls += n
	}
	if len(turnTokens) > 0 {
		total := 0
		for _, n := range turnTokens {
			total += n
		}
		m.AvgTokensPerTurn = int(types.Round(float64(total)/float64(len(turnTokens)), 0))
	}

	t1, ok1 := types.ParseTimestamp(first)
	t2, ok2 := types.ParseTimestamp(last)
	if ok1 && ok2 {
		if d := t2.Sub(t1); d > 0 {
			m.DurationSeconds = float64(int64(d.Seconds()))
			m.ToolCallsPerHour = types.Round(float64(m.TotalToolCalls)/d.Hours(), 1)
		}
	}
	return m, err
}

func summarize(values []float64) types.ResponseTimes {
	if len(values) == 0 {
		return types.ResponseTimes{}
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}
	n := len(sorted)
	median := sorted[n/2]
	if n%2 == 0 {
		median = (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return types.ResponseTimes{
		Min:    types.Round(sorted[0], 2),
		Avg:    types.Round(sum/float64(n), 2),
		Max:    types.Round(sorted[n-1], 2),
		Median: types.Round(median, 2),
	}
}
