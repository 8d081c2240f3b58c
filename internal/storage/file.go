package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"
)

// FileStorage implements Storage over the local filesystem.
type FileStorage struct {
	// BaseDir is the projects directory (e.g. ~/.claude/projects).
	BaseDir string
}

// FileStorageOption configures a FileStorage instance.
type FileStorageOption func(*FileStorage)

// WithBaseDir sets the projects directory.
func WithBaseDir(dir string) FileStorageOption {
	return func(s *FileStorage) {
		s.BaseDir = dir
	}
}

// NewFileStorage creates a new file-based transcript locator.
func NewFileStorage(opts ...FileStorageOption) *FileStorage {
	s := &FileStorage{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProjectDir returns the project directory that holds transcripts for cwd.
func (s *FileStorage) ProjectDir(cwd string) string {
	return filepath.Join(s.BaseDir, EncodePath(cwd))
}

// FindTranscript searches every project directory for <sessionID>.jsonl.
func (s *FileStorage) FindTranscript(sessionID string) (Transcript, error) {
	if !ValidSessionID(sessionID) {
		return Transcript{}, fmt.Errorf("%w: %q", ErrInvalidSessionID, sessionID)
	}

	projects, err := s.projectDirs()
	if err != nil {
		return Transcript{}, err
	}
	name := sessionID + TranscriptExt
	for _, dir := range projects {
		path := filepath.Join(dir, name)
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		return newTranscript(path, info), nil
	}
	return Transcript{}, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
}

// ForDir lists transcripts for cwd. A missing project directory yields
// an empty list.
func (s *FileStorage) ForDir(cwd string) ([]Transcript, error) {
	if cwd == "" {
		return nil, nil
	}
	return listTranscripts(s.ProjectDir(cwd))
}

// Siblings lists transcripts next to path, excluding path itself.
func (s *FileStorage) Siblings(path string) ([]Transcript, error) {
	all, err := listTranscripts(filepath.Dir(path))
	if err != nil {
		return nil, err
	}
	out := all[:0]
	for _, t := range all {
		if filepath.Base(t.Path) != filepath.Base(path) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Recent lists transcripts across all projects modified at or after
// since, newest first.
func (s *FileStorage) Recent(since time.Time) ([]Transcript, error) {
	projects, err := s.projectDirs()
	if err != nil {
		return nil, err
	}

	var out []Transcript
	for _, dir := range projects {
		ts, err := listTranscripts(dir)
		if err != nil {
			continue
		}
		for _, t := range ts {
			if !t.ModTime.Before(since) {
				out = append(out, t)
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.After(out[j].ModTime)
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// DirModTime returns the modification time of a directory.
func DirModTime(dir string) (time.Time, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return time.Time{}, err
	}
	return info.ModTime(), nil
}

// projectDirs lists the project subdirectories of BaseDir.
func (s *FileStorage) projectDirs() ([]string, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrProjectsDirMissing, s.BaseDir)
	}
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	dirs := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(s.BaseDir, e.Name()))
		}
	}
	return dirs, nil
}

// listTranscripts returns the top-level transcripts in dir sorted by name.
func listTranscripts(dir string) ([]Transcript, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read project dir: %w", err)
	}

	out := make([]Transcript, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsTranscript(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		out = append(out, newTranscript(filepath.Join(dir, e.Name()), info))
	}
	return out, nil
}

func newTranscript(path string, info fs.FileInfo) Transcript {
	return Transcript{
		Path:       path,
		SessionID:  SessionIDFromPath(path),
		ProjectDir: filepath.Dir(path),
		ModTime:    info.ModTime(),
		Size:       info.Size(),
	}
}
