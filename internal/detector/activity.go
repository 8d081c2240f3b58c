package detector

import (
	"encoding/hex"
	"encoding/json"

	"github.com/zeebo/blake3"

	"github.com/boshu2/sessionwatch/internal/types"
)

// MarkActivity advances the activity stamp. Stamps are nanosecond wall
// times forced to increase strictly, so a caller holding an old stamp
// always sees a change.
func (e *Engine) MarkActivity() {
	now := e.clock.Now().UnixNano()
	for {
		old := e.activity.Load()
		next := now
		if next <= old {
			next = old + 1
		}
		if e.activity.CompareAndSwap(old, next) {
			return
		}
	}
}

// ActivityStamp returns the current activity stamp.
func (e *Engine) ActivityStamp() int64 {
	return e.activity.Load()
}

// Changed reports whether anything was observed since the stamp a caller
// last saw, and returns the current stamp. Fresh hook states are picked
// up before answering.
func (e *Engine) Changed(since int64) (bool, int64) {
	e.liveStates()
	current := e.activity.Load()
	return current > since, current
}

type fingerprintEntry struct {
	SessionID       string      `json:"session_id"`
	State           types.State `json:"state"`
	CurrentActivity string      `json:"current_activity"`
	ContextTokens   int         `json:"context_tokens"`
	LastActivity    int64       `json:"last_activity"`
	Activities      []string    `json:"activities"`
}

// fingerprintActivities is how many trailing activities feed a fingerprint.
const fingerprintActivities = 5

// Fingerprint hashes the parts of a session list a viewer displays. Equal
// fingerprints mean nothing worth redrawing changed.
func Fingerprint(records []types.SessionRecord) string {
	entries := make([]fingerprintEntry, len(records))
	for i, r := range records {
		acts := r.RecentActivity
		if len(acts) > fingerprintActivities {
			acts = acts[len(acts)-fingerprintActivities:]
		}
		entries[i] = fingerprintEntry{
			SessionID:       r.SessionID,
			State:           r.State,
			CurrentActivity: r.CurrentActivity,
			ContextTokens:   r.ContextTokens,
			LastActivity:    r.LastActivity.UnixMilli(),
			Activities:      acts,
		}
	}
	// Entries hold only strings and numbers, which always encode.
	data, _ := json.Marshal(entries)
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}
