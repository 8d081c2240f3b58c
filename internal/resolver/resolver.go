// Package resolver turns the session references users type into session
// ids: a full id, a path to a transcript, or an unambiguous id prefix.
package resolver

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boshu2/sessionwatch/internal/storage"
)

// ErrAmbiguous is returned when a prefix matches more than one session.
var ErrAmbiguous = errors.New("ambiguous session reference")

// maxListed bounds how many candidates an ambiguity error names.
const maxListed = 3

// SessionResolver resolves session references to session ids.
type SessionResolver interface {
	Resolve(ref string) (id string, err error)
}

// FileResolver resolves references against a projects directory.
type FileResolver struct {
	Root string // projects dir (e.g. ~/.claude/projects)
}

// NewFileResolver creates a FileResolver rooted at the given projects directory.
func NewFileResolver(root string) *FileResolver {
	return &FileResolver{Root: root}
}

// Resolve locates a session by reference. It tries, in order: an existing
// transcript path, an exact id, and an id prefix that names exactly one
// main transcript.
func (r *FileResolver) Resolve(ref string) (string, error) {
	normalized := strings.TrimSpace(ref)

	// A path to a transcript names its session by file stem, wherever it lives.
	if strings.ContainsRune(normalized, filepath.Separator) || strings.HasSuffix(normalized, storage.TranscriptExt) {
		if probeDirect(normalized) {
			return storage.SessionIDFromPath(normalized), nil
		}
		normalized = storage.SessionIDFromPath(normalized)
	}
	if !storage.ValidSessionID(normalized) {
		return "", fmt.Errorf("%w: %q", storage.ErrInvalidSessionID, ref)
	}

	store := storage.NewFileStorage(storage.WithBaseDir(r.Root))
	if _, err := store.FindTranscript(normalized); err == nil {
		return normalized, nil
	} else if errors.Is(err, storage.ErrProjectsDirMissing) {
		return "", err
	}

	matches, err := probePrefix(r.Root, normalized)
	if err != nil {
		return "", err
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w: %s", storage.ErrSessionNotFound, ref)
	case 1:
		return matches[0], nil
	}
	listed := matches
	if len(listed) > maxListed {
		listed = listed[:maxListed]
	}
	return "", fmt.Errorf("%w: %q matches %d sessions (%s)", ErrAmbiguous, ref, len(matches), strings.Join(listed, ", "))
}

// probeDirect reports whether path is an existing main transcript.
func probeDirect(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular() && storage.IsTranscript(filepath.Base(path))
}

// probePrefix lists the distinct session ids in any project directory
// whose file stem starts with prefix, sorted.
func probePrefix(root, prefix string) ([]string, error) {
	if strings.ContainsAny(prefix, `*?[\`) {
		return nil, nil
	}
	projects, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("read projects dir: %w", err)
	}

	seen := make(map[string]bool)
	var ids []string
	for _, p := range projects {
		if !p.IsDir() {
			continue
		}
		files, err := filepath.Glob(filepath.Join(root, p.Name(), prefix+"*"+storage.TranscriptExt))
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			if !storage.IsTranscript(filepath.Base(f)) {
				continue
			}
			id := storage.SessionIDFromPath(f)
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids, nil
}
