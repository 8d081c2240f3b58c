// Package storage locates agent transcripts on disk.
//
// Transcripts live under a projects directory with one subdirectory per
// working directory. Subdirectory names encode the working directory by
// replacing '/', '.', and '_' with '-'. Each subdirectory holds one
// <session-id>.jsonl file per session; files whose name starts with
// "agent-" belong to background sub-agents and are never treated as
// top-level sessions.
package storage

import (
	"path/filepath"
	"strings"
	"time"
)

// Storage is the read-only view of the transcript tree used by the
// detection engine.
type Storage interface {
	// FindTranscript locates the transcript for a session id.
	FindTranscript(sessionID string) (Transcript, error)

	// ForDir lists transcripts in the project directory for cwd.
	ForDir(cwd string) ([]Transcript, error)

	// Siblings lists the other transcripts in the same project directory.
	Siblings(path string) ([]Transcript, error)

	// Recent lists transcripts modified at or after since, newest first.
	Recent(since time.Time) ([]Transcript, error)
}

// Transcript is one session log file.
type Transcript struct {
	// Path is the absolute file path.
	Path string `json:"path"`

	// SessionID is the file stem.
	SessionID string `json:"session_id"`

	// ProjectDir is the containing project directory.
	ProjectDir string `json:"project_dir"`

	// ModTime is the file modification time.
	ModTime time.Time `json:"mod_time"`

	// Size is the file size in bytes.
	Size int64 `json:"size"`
}

const (
	// TranscriptExt is the transcript file extension.
	TranscriptExt = ".jsonl"

	// AuxiliaryPrefix marks background sub-agent transcripts.
	AuxiliaryPrefix = "agent-"
)

// EncodePath converts a working directory to its project directory name.
func EncodePath(cwd string) string {
	return strings.NewReplacer("/", "-", ".", "-", "_", "-").Replace(cwd)
}

// SessionIDFromPath returns the file stem of a transcript path.
func SessionIDFromPath(path string) string {
	return strings.TrimSuffix(filepath.Base(path), TranscriptExt)
}

// IsAuxiliary reports whether a transcript file name belongs to a sub-agent.
func IsAuxiliary(name string) bool {
	return strings.HasPrefix(filepath.Base(name), AuxiliaryPrefix)
}

// IsTranscript reports whether a file name is a top-level transcript.
func IsTranscript(name string) bool {
	return strings.HasSuffix(name, TranscriptExt) && !IsAuxiliary(name)
}

// ProjectLabel derives a short label from the project directory holding
// path: the last '-'-separated part of the encoded name.
func ProjectLabel(path string) string {
	dir := filepath.Base(filepath.Dir(path))
	if dir == "." || dir == string(filepath.Separator) {
		return ""
	}
	parts := strings.Split(dir, "-")
	return parts[len(parts)-1]
}

// ValidSessionID reports whether id is safe to use as a file stem.
func ValidSessionID(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.ContainsRune(id, 0)
}
