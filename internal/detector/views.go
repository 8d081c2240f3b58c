package detector

import (
	"time"

	"github.com/boshu2/sessionwatch/internal/parser"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/timeline"
	"github.com/boshu2/sessionwatch/internal/types"
)

// TimelineView is the bucketed activity of one session.
type TimelineView struct {
	SessionID  string                 `json:"session_id"`
	Periods    []types.ActivityPeriod `json:"activity_periods"`
	EventCount int                    `json:"event_count"`
}

// Timeline buckets a session's events into windows of the given width.
// A non-positive window uses the configured bucket size. The bool is false
// when no transcript exists for sessionID.
func (e *Engine) Timeline(sessionID string, window time.Duration) (TimelineView, bool) {
	t, ok := e.find(sessionID)
	if !ok {
		return TimelineView{}, false
	}
	if window <= 0 {
		window = time.Duration(e.cfg.Timeline.BucketMinutes) * time.Minute
	}

	events, err := timeline.Extract(e.parser, t.Path)
	if err != nil {
		e.logger.Debug("timeline read incomplete", "session", sessionID, "error", err)
	}
	periods := timeline.Bucket(events, window)
	if periods == nil {
		periods = []types.ActivityPeriod{}
	}
	return TimelineView{SessionID: sessionID, Periods: periods, EventCount: len(events)}, true
}

// Conversation returns a session's messages, following compactions into
// the transcripts that continue them when follow is set. A positive limit
// keeps only the last limit messages.
func (e *Engine) Conversation(sessionID string, limit int, follow bool) ([]types.ConversationMessage, bool) {
	t, ok := e.find(sessionID)
	if !ok {
		return nil, false
	}

	var (
		msgs []types.ConversationMessage
		err  error
	)
	if follow {
		msgs, err = e.linker.ExtractConversation(t.Path)
	} else {
		msgs, err = e.parser.ReadConversation(t.Path)
	}
	if err != nil {
		e.logger.Debug("conversation read failed", "session", sessionID, "error", err)
	}
	if msgs == nil {
		msgs = []types.ConversationMessage{}
	}
	return parser.LastN(msgs, limit), true
}

// Continuation returns the session a compacted session continued in.
func (e *Engine) Continuation(sessionID string) (string, bool) {
	t, ok := e.find(sessionID)
	if !ok {
		return "", false
	}
	return e.linker.Continuation(t.Path)
}

// Metrics computes response-time and tool statistics for a session.
func (e *Engine) Metrics(sessionID string) (types.Metrics, bool) {
	t, ok := e.find(sessionID)
	if !ok {
		return types.Metrics{}, false
	}
	m, err := e.parser.ExtractMetrics(t.Path)
	if err != nil {
		e.logger.Debug("metrics read incomplete", "session", sessionID, "error", err)
	}
	return m, true
}

// Session returns the metadata of one transcript.
func (e *Engine) Session(sessionID string) (types.SessionMetadata, bool) {
	t, ok := e.find(sessionID)
	if !ok {
		return types.SessionMetadata{}, false
	}
	return e.metadata(t), true
}

func (e *Engine) find(sessionID string) (storage.Transcript, bool) {
	t, err := e.store.FindTranscript(sessionID)
	if err != nil {
		e.logger.Debug("transcript lookup failed", "session", sessionID, "error", err)
		return storage.Transcript{}, false
	}
	return t, true
}
