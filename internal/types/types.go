// Package types defines the data structures shared across sessionwatch:
// discovered processes, transcript metadata, matched session records,
// timeline events and periods, and conversation messages.
package types

import "time"

// State is the coarse activity state of a running session.
type State string

const (
	// StateActive means the agent is working (producing output or running tools).
	StateActive State = "active"

	// StateWaiting means the agent is idle, usually waiting on the user.
	StateWaiting State = "waiting"
)

// Valid reports whether s is one of the known states.
func (s State) Valid() bool {
	return s == StateActive || s == StateWaiting
}

// StateSource records where a session's state came from.
type StateSource string

const (
	// StateSourceHooks means the state was reported by an external hook-state file.
	StateSourceHooks StateSource = "hooks"

	// StateSourcePolling means the state was inferred from CPU usage and transcript recency.
	StateSourcePolling StateSource = "polling"
)

// ProcessRecord is one running agent CLI process, as seen by the OS.
type ProcessRecord struct {
	// PID is the operating-system process identifier.
	PID int `json:"pid"`

	// CPUPercent is the instantaneous CPU usage reported by the process table.
	CPUPercent float64 `json:"cpu_percent"`

	// TTY is the controlling terminal as printed by ps (e.g. "s012", "pts/3").
	TTY string `json:"tty"`

	// OSState is the raw process state column (e.g. "S+", "R").
	OSState string `json:"os_state"`

	// CommandLine is the full command line of the process.
	CommandLine string `json:"command_line"`

	// WorkingDirectory is the process's current directory. Empty when unknown.
	WorkingDirectory string `json:"working_directory,omitempty"`

	// StartTime is when the process started. Zero when unknown.
	StartTime time.Time `json:"start_time,omitempty"`

	// ResumeSessionID is the session id passed via --resume, if any.
	ResumeSessionID string `json:"resume_session_id,omitempty"`

	// Role is the orchestration role, if the process belongs to an orchestrator.
	Role Role `json:"role,omitempty"`
}

// HasStartTime reports whether the process start time is known.
func (p ProcessRecord) HasStartTime() bool {
	return !p.StartTime.IsZero()
}

// TokenUsage holds the token counters reported on assistant messages.
type TokenUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
}

// Add accumulates o into u.
func (u *TokenUsage) Add(o TokenUsage) {
	u.InputTokens += o.InputTokens
	u.OutputTokens += o.OutputTokens
	u.CacheReadInputTokens += o.CacheReadInputTokens
	u.CacheCreationInputTokens += o.CacheCreationInputTokens
}

// SessionMetadata is what can be learned about a session from its
// transcript file alone.
type SessionMetadata struct {
	// SessionID is the conversation identifier (the transcript's file stem by default).
	SessionID string `json:"session_id"`

	// Slug is a short human-readable label for the session.
	Slug string `json:"slug"`

	// WorkingDirectory is the cwd recorded in the transcript. Empty when unknown.
	WorkingDirectory string `json:"cwd"`

	// Branch is the git branch recorded in the transcript.
	Branch string `json:"git_branch,omitempty"`

	// Summary is the latest conversation summary, if one was written.
	Summary string `json:"summary,omitempty"`

	// ContextTokens is the prompt size of the most recent assistant turn.
	ContextTokens int `json:"context_tokens"`

	// ContextPercentage is ContextTokens as a share of the model context window.
	ContextPercentage float64 `json:"context_percentage"`

	// Usage is the cumulative token usage over the scanned window.
	Usage TokenUsage `json:"usage"`

	// EstimatedCost is the dollar cost estimate for Usage.
	EstimatedCost float64 `json:"estimated_cost"`

	// StartTimestamp is the first event timestamp in the transcript, as written.
	StartTimestamp string `json:"start_timestamp,omitempty"`

	// LastEventTimestamp is the last event timestamp seen, as written.
	LastEventTimestamp string `json:"last_event_timestamp,omitempty"`

	// RecentActivity holds up to ten human-readable activity strings, oldest first.
	RecentActivity []string `json:"recent_activity"`

	// FileModTime is the transcript's modification time.
	FileModTime time.Time `json:"file_mod_time"`

	// FilePath is the transcript location on disk.
	FilePath string `json:"file_path,omitempty"`

	// Role is the orchestration role inferred from WorkingDirectory.
	Role Role `json:"role,omitempty"`
}

// StartTime parses StartTimestamp.
func (m SessionMetadata) StartTime() (time.Time, bool) {
	return ParseTimestamp(m.StartTimestamp)
}

// Clone returns a copy of m that shares no slices with it.
func (m SessionMetadata) Clone() SessionMetadata {
	if m.RecentActivity != nil {
		m.RecentActivity = append([]string(nil), m.RecentActivity...)
	}
	return m
}

// SessionRecord is a running session: a process bound to its transcript.
type SessionRecord struct {
	SessionID         string     `json:"session_id"`
	Slug              string     `json:"slug"`
	WorkingDirectory  string     `json:"cwd"`
	Branch            string     `json:"git_branch,omitempty"`
	Summary           string     `json:"summary,omitempty"`
	ContextTokens     int        `json:"context_tokens"`
	ContextPercentage float64    `json:"context_percentage"`
	Usage             TokenUsage `json:"usage"`
	EstimatedCost     float64    `json:"estimated_cost"`
	RecentActivity    []string   `json:"recent_activity"`

	PID        int     `json:"pid"`
	TTY        string  `json:"tty"`
	CPUPercent float64 `json:"cpu_percent"`

	// LastActivity is the transcript modification time.
	LastActivity time.Time `json:"last_activity"`

	// RecencySeconds is how long ago the transcript was last written.
	RecencySeconds float64 `json:"recency_seconds"`

	State           State       `json:"state"`
	StateSource     StateSource `json:"state_source"`
	CurrentActivity string      `json:"current_activity,omitempty"`

	// MatchSource names the matching pass that bound the process to the transcript.
	MatchSource string `json:"match_source"`

	Role Role `json:"role,omitempty"`
}

// HistoricSession is a transcript listed by modification time, whether or
// not a process is still attached to it.
type HistoricSession struct {
	SessionMetadata
	RecencySeconds float64 `json:"recency_seconds"`
	Running        bool    `json:"running"`
}

// TimelineEvent is one timestamped occurrence in a transcript.
type TimelineEvent struct {
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Active    bool   `json:"active"`
	Tool      string `json:"tool,omitempty"`
	Activity  string `json:"activity,omitempty"`
}

// ActivityPeriod is a fixed-width window of timeline events in which the
// agent was active.
type ActivityPeriod struct {
	Start      time.Time      `json:"start"`
	End        time.Time      `json:"end"`
	State      State          `json:"state"`
	Activities []string       `json:"activities"`
	ToolCounts map[string]int `json:"tool_counts"`
}

// Conversation roles.
const (
	RoleHuman     = "human"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ConversationMessage is one displayable turn of a conversation.
type ConversationMessage struct {
	Role      string   `json:"role"`
	Content   string   `json:"content"`
	Tools     []string `json:"tools,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`

	// SessionID is set on continuation markers to the session that follows.
	SessionID string `json:"session_id,omitempty"`

	// IsContinuation marks a synthetic message inserted between chained transcripts.
	IsContinuation bool `json:"is_continuation,omitempty"`
}

// ResponseTimes summarizes human-to-assistant latencies in seconds.
type ResponseTimes struct {
	Min    float64 `json:"min"`
	Avg    float64 `json:"avg"`
	Max    float64 `json:"max"`
	Median float64 `json:"median"`
}

// Metrics is the per-session analytics view.
type Metrics struct {
	ResponseTime      ResponseTimes  `json:"response_time"`
	ToolCounts        map[string]int `json:"tool_counts"`
	TotalToolCalls    int            `json:"total_tool_calls"`
	TurnCount         int            `json:"turn_count"`
	AvgTokensPerTurn  int            `json:"avg_tokens_per_turn"`
	DurationSeconds   float64        `json:"duration_seconds"`
	ToolCallsPerHour  float64        `json:"tool_calls_per_hour"`
	FirstEventTime    string         `json:"first_event_time,omitempty"`
	LastEventTime     string         `json:"last_event_time,omitempty"`
	ResponseTimeCount int            `json:"response_time_count"`
	HumanMessageCount int            `json:"human_message_count"`
}
