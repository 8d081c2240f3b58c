package resolver

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boshu2/sessionwatch/internal/storage"
)

const (
	idA = "0b6f5a3e-9c2d-4e1f-8a7b-1234567890ab"
	idB = "0b6f9999-0000-4e1f-8a7b-1234567890ab"
	idC = "7c1d2e3f-0000-4000-8000-000000000000"
)

func setupTestProjects(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"-w-app":   idA,
		"-w-api":   idB,
		"-w-docs":  idC,
		"-w-agent": "agent-7c1d",
	}
	for dir, id := range files {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(root, dir, id+storage.TranscriptExt), []byte("{}\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	// Same id in a second project resolves once.
	if err := os.WriteFile(filepath.Join(root, "-w-api", idC+storage.TranscriptExt), []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestFileResolver_Resolve(t *testing.T) {
	root := setupTestProjects(t)
	r := NewFileResolver(root)

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"exact id", idA, idA},
		{"surrounding space", "  " + idA + " ", idA},
		{"unique prefix", "7c1d", idC},
		{"longer prefix disambiguates", "0b6f5", idA},
		{"transcript path", filepath.Join(root, "-w-api", idB+storage.TranscriptExt), idB},
		{"file name of known transcript", idA + storage.TranscriptExt, idA},
		{"exact auxiliary id", "agent-7c1d", "agent-7c1d"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Resolve(tt.ref)
			if err != nil {
				t.Fatalf("Resolve(%q) error = %v", tt.ref, err)
			}
			if got != tt.want {
				t.Errorf("Resolve(%q) = %q, want %q", tt.ref, got, tt.want)
			}
		})
	}
}

func TestFileResolver_Resolve_Ambiguous(t *testing.T) {
	r := NewFileResolver(setupTestProjects(t))
	_, err := r.Resolve("0b6f")
	if !errors.Is(err, ErrAmbiguous) {
		t.Fatalf("Resolve(0b6f) error = %v, want ErrAmbiguous", err)
	}
	if !strings.Contains(err.Error(), idA) || !strings.Contains(err.Error(), idB) {
		t.Errorf("error should list candidates: %v", err)
	}
}

func TestFileResolver_Resolve_NotFoundError(t *testing.T) {
	r := NewFileResolver(setupTestProjects(t))
	tests := []struct {
		ref  string
		want error
	}{
		{"ffff", storage.ErrSessionNotFound},
		{"agent-", storage.ErrSessionNotFound},
		{"0b6f*", storage.ErrSessionNotFound},
		{"..", storage.ErrInvalidSessionID},
		{"", storage.ErrInvalidSessionID},
	}
	for _, tt := range tests {
		if _, err := r.Resolve(tt.ref); !errors.Is(err, tt.want) {
			t.Errorf("Resolve(%q) error = %v, want %v", tt.ref, err, tt.want)
		}
	}
}

func TestFileResolver_Resolve_MissingRoot(t *testing.T) {
	r := NewFileResolver(filepath.Join(t.TempDir(), "nope"))
	if _, err := r.Resolve("abc"); !errors.Is(err, storage.ErrProjectsDirMissing) {
		t.Errorf("Resolve() error = %v, want ErrProjectsDirMissing", err)
	}
}

func TestFileResolver_ImplementsInterface(t *testing.T) {
	var _ SessionResolver = (*FileResolver)(nil)
}
