package continuation

import (
	"time"

	"github.com/boshu2/sessionwatch/internal/parser"
	"github.com/boshu2/sessionwatch/internal/types"
)

// Compaction describes how a transcript ended.
type Compaction struct {
	// At is when history was compacted.
	At time.Time

	// WorkingDirectory is the last cwd recorded in the transcript, or ""
	// when none was recorded.
	WorkingDirectory string
}

// DetectCompaction reports whether the transcript at path ends in a
// compaction marker: a compact_boundary system record, a trailing summary
// record, or a compact-summary user message, with no conversation turn
// after it.
func DetectCompaction(p *parser.Parser, path string) (Compaction, bool, error) {
	if p == nil {
		p = parser.NewParser()
	}

	var (
		c         Compaction
		lastTime  time.Time
		compacted bool
	)
	_, err := p.EachFile(path, func(rec *parser.Record) bool {
		if rec.Cwd != "" {
			c.WorkingDirectory = rec.Cwd
		}
		ts, hasTime := types.ParseTimestamp(rec.Timestamp)

		switch {
		case isMarker(rec):
			compacted = true
			c.At = lastTime
			if hasTime {
				c.At = ts
			}
		case rec.IsUserTurn() || rec.Type == parser.TypeAssistant:
			compacted = false
		}

		if hasTime {
			lastTime = ts
		}
		return true
	})
	if err != nil {
		return Compaction{}, false, err
	}
	if !compacted || c.At.IsZero() {
		return Compaction{}, false, nil
	}
	return c, true, nil
}

func isMarker(rec *parser.Record) bool {
	switch {
	case rec.Type == parser.TypeSystem && rec.Subtype == parser.SubtypeCompactBoundary:
		return true
	case rec.Type == parser.TypeSummary:
		return true
	case rec.IsCompactSummary:
		return true
	}
	return false
}
