// Package hookstate reads the per-session state files written by agent
// hooks. A hook file is fresher than anything polling can infer, but hooks
// can die without cleaning up, so files past a staleness ceiling are ignored.
//
// Files live at <dir>/<session-id>.json and look like:
//
//	{"state": "active", "current_activity": "Reading main.go",
//	 "cwd": "/work/app", "updated_at": "2026-02-01T10:00:00Z"}
//
// current_activity may also be an object with a description, activity or
// tool key. Hooks written by shell scripts sometimes leave comments or
// trailing commas, so documents are normalized with jsonc before decoding.
package hookstate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"

	"github.com/boshu2/sessionwatch/internal/clock"
	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
)

// DefaultMaxAge is the staleness ceiling for state files.
const DefaultMaxAge = 5 * time.Minute

const stateExt = ".json"

// State is a validated hook state for one session.
type State struct {
	SessionID        string      `json:"session_id"`
	State            types.State `json:"state"`
	CurrentActivity  string      `json:"current_activity,omitempty"`
	WorkingDirectory string      `json:"cwd,omitempty"`
	UpdatedAt        string      `json:"updated_at"`
	ModTime          time.Time   `json:"mod_time"`
}

type document struct {
	State           string          `json:"state"`
	CurrentActivity json.RawMessage `json:"current_activity"`
	Cwd             string          `json:"cwd"`
	UpdatedAt       json.RawMessage `json:"updated_at"`
}

// Reader loads hook state files from a directory.
type Reader struct {
	Dir    string
	MaxAge time.Duration
	Clock  clock.Clock
	Logger *slog.Logger
}

// Option configures a Reader.
type Option func(*Reader)

// WithMaxAge sets the staleness ceiling.
func WithMaxAge(d time.Duration) Option {
	return func(r *Reader) {
		if d > 0 {
			r.MaxAge = d
		}
	}
}

// WithClock sets the clock used for staleness checks.
func WithClock(c clock.Clock) Option {
	return func(r *Reader) { r.Clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reader) { r.Logger = l }
}

// NewReader creates a Reader over dir.
func NewReader(dir string, opts ...Option) *Reader {
	r := &Reader{
		Dir:    dir,
		MaxAge: DefaultMaxAge,
		Clock:  clock.Real(),
		Logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Read returns the fresh, valid hook state for sessionID.
func (r *Reader) Read(sessionID string) (State, bool) {
	if r.Dir == "" || !storage.ValidSessionID(sessionID) {
		return State{}, false
	}
	st, err := r.Load(filepath.Join(r.Dir, sessionID+stateExt))
	if err != nil {
		if !os.IsNotExist(err) {
			r.Logger.Debug("ignoring hook state", "session", sessionID, "error", err)
		}
		return State{}, false
	}
	return st, true
}

// Live returns every fresh, valid hook state in the directory, sorted by
// session id. A missing directory yields no states.
func (r *Reader) Live() []State {
	if r.Dir == "" {
		return nil
	}
	entries, err := os.ReadDir(r.Dir)
	if err != nil {
		if !os.IsNotExist(err) {
			r.Logger.Debug("listing hook states failed", "dir", r.Dir, "error", err)
		}
		return nil
	}

	var states []State
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), stateExt) {
			continue
		}
		st, err := r.Load(filepath.Join(r.Dir, e.Name()))
		if err != nil {
			r.Logger.Debug("ignoring hook state", "file", e.Name(), "error", err)
			continue
		}
		states = append(states, st)
	}
	sort.Slice(states, func(i, j int) bool { return states[i].SessionID < states[j].SessionID })
	return states
}

// Load reads and validates one state file. The session id is the file stem.
func (r *Reader) Load(path string) (State, error) {
	info, err := os.Stat(path)
	if err != nil {
		return State{}, err
	}
	if age := r.Clock.Now().Sub(info.ModTime()); age > r.MaxAge {
		return State{}, fmt.Errorf("%w: %s old", ErrStale, age.Round(time.Second))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var doc document
	if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
		return State{}, fmt.Errorf("%w: %w", ErrInvalidState, err)
	}

	state := types.State(doc.State)
	if !state.Valid() {
		return State{}, fmt.Errorf("%w: state %q", ErrInvalidState, doc.State)
	}
	updated, ok := scalarString(doc.UpdatedAt)
	if !ok {
		return State{}, fmt.Errorf("%w: missing updated_at", ErrInvalidState)
	}

	return State{
		SessionID:        strings.TrimSuffix(filepath.Base(path), stateExt),
		State:            state,
		CurrentActivity:  activityText(doc.CurrentActivity),
		WorkingDirectory: doc.Cwd,
		UpdatedAt:        updated,
		ModTime:          info.ModTime(),
	}, nil
}

// scalarString renders a JSON string or number. Null and absent values
// report false.
func scalarString(raw json.RawMessage) (string, bool) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// activityText flattens current_activity, which hooks write either as a
// string or as an object.
func activityText(raw json.RawMessage) string {
	if s, ok := scalarString(raw); ok {
		return s
	}
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		return ""
	}
	for _, key := range []string{"description", "activity", "tool"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
