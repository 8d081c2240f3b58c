package matcher

import (
	"sort"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Index answers the two transcript lookups matching needs.
type Index interface {
	// ByID returns the metadata of the transcript with the given session id.
	ByID(sessionID string) (types.SessionMetadata, bool)

	// ForDir returns the transcripts recorded for a working directory.
	ForDir(cwd string) []types.SessionMetadata
}

// StaticIndex is an in-memory Index built ahead of a Match call.
type StaticIndex struct {
	byID  map[string]types.SessionMetadata
	byDir map[string][]types.SessionMetadata
}

// NewStaticIndex indexes metas by session id and working directory.
func NewStaticIndex(metas ...types.SessionMetadata) *StaticIndex {
	idx := &StaticIndex{
		byID:  make(map[string]types.SessionMetadata),
		byDir: make(map[string][]types.SessionMetadata),
	}
	for _, m := range metas {
		idx.Add(m)
	}
	return idx
}

// Add indexes one transcript. A later entry for the same session id
// replaces the earlier one.
func (s *StaticIndex) Add(m types.SessionMetadata) {
	if m.SessionID == "" {
		return
	}
	if old, ok := s.byID[m.SessionID]; ok && old.WorkingDirectory != "" {
		s.byDir[old.WorkingDirectory] = removeID(s.byDir[old.WorkingDirectory], m.SessionID)
	}
	s.byID[m.SessionID] = m
	if m.WorkingDirectory != "" {
		s.byDir[m.WorkingDirectory] = append(s.byDir[m.WorkingDirectory], m)
	}
}

// ByID implements Index.
func (s *StaticIndex) ByID(sessionID string) (types.SessionMetadata, bool) {
	m, ok := s.byID[sessionID]
	return m, ok
}

// ForDir implements Index. Results are ordered by session id.
func (s *StaticIndex) ForDir(cwd string) []types.SessionMetadata {
	out := append([]types.SessionMetadata(nil), s.byDir[cwd]...)
	sort.Slice(out, func(i, j int) bool { return out[i].SessionID < out[j].SessionID })
	return out
}

// Len returns the number of indexed sessions.
func (s *StaticIndex) Len() int {
	return len(s.byID)
}

func removeID(metas []types.SessionMetadata, id string) []types.SessionMetadata {
	out := metas[:0]
	for _, m := range metas {
		if m.SessionID != id {
			out = append(out, m)
		}
	}
	return out
}
