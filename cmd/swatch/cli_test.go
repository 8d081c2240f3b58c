package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/boshu2/sessionwatch/internal/storage"
	"github.com/boshu2/sessionwatch/internal/types"
)

// isolate points every config source at an empty temp tree and returns
// the projects dir.
func isolate(t *testing.T) string {
	t.Helper()
	base := t.TempDir()
	t.Setenv("HOME", base)
	t.Setenv("SWATCH_CONFIG", filepath.Join(base, "missing.yaml"))
	for _, env := range []string{"SWATCH_OUTPUT", "SWATCH_VERBOSE", "SWATCH_PROCESS_NAME", "SWATCH_COMMAND_TIMEOUT", "SWATCH_BUCKET_MINUTES"} {
		t.Setenv(env, "")
	}
	projects := filepath.Join(base, "projects")
	t.Setenv("SWATCH_PROJECTS_DIR", projects)
	t.Setenv("SWATCH_STATE_DIR", filepath.Join(base, "state"))
	return projects
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	verbose, output, cfgFile = false, "", ""
	timelineBucket, conversationLimit, conversationFollow = 0, 0, false
	configShow = false

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func writeSession(t *testing.T, projects, cwd, id string) {
	t.Helper()
	start := time.Date(2026, 1, 25, 10, 0, 0, 0, time.UTC)
	lines := []string{
		`{"type":"user","timestamp":"` + types.FormatTimestamp(start) + `","cwd":"` + cwd + `","message":{"role":"user","content":"Add a health check"}}`,
		`{"type":"assistant","timestamp":"` + types.FormatTimestamp(start.Add(4*time.Second)) + `","cwd":"` + cwd + `","message":{"role":"assistant","content":[{"type":"text","text":"Adding it."},{"type":"tool_use","id":"t1","name":"Bash","input":{"command":"go test ./..."}}]}}`,
	}
	dir := filepath.Join(projects, storage.EncodePath(cwd))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, id+storage.TranscriptExt), []byte(strings.Join(lines, "\n")+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "swatch version dev") {
		t.Errorf("version output = %q", out)
	}
}

func TestTimelineCommand(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "s-1")

	out, err := execute(t, "timeline", "s-1", "-o", "json")
	if err != nil {
		t.Fatalf("timeline error = %v", err)
	}
	var view struct {
		SessionID  string `json:"session_id"`
		EventCount int    `json:"event_count"`
		Periods    []struct {
			ToolCounts map[string]int `json:"tool_counts"`
		} `json:"activity_periods"`
	}
	if err := json.Unmarshal([]byte(out), &view); err != nil {
		t.Fatalf("parse %q: %v", out, err)
	}
	if view.SessionID != "s-1" || len(view.Periods) != 1 || view.Periods[0].ToolCounts["Bash"] != 1 {
		t.Errorf("timeline = %+v", view)
	}

	out, err = execute(t, "timeline", "s-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "START") || !strings.Contains(out, "Bash×1") {
		t.Errorf("timeline table = %q", out)
	}
}

func TestConversationCommand(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "s-1")

	out, err := execute(t, "conversation", "s-1", "-o", "jsonl")
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("conversation jsonl = %d lines:\n%s", len(lines), out)
	}

	out, err = execute(t, "conversation", "s-1", "--limit", "1", "-o", "markdown")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "---\nsession_id: s-1\nmessages: 1\n") || !strings.Contains(out, "## Assistant") {
		t.Errorf("markdown = %q", out)
	}
	if strings.Contains(out, "## Human") {
		t.Errorf("limit 1 should keep only the assistant message:\n%s", out)
	}
}

func TestMetricsCommand(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "s-1")

	out, err := execute(t, "metrics", "s-1", "-o", "yaml")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "total_tool_calls: 1") {
		t.Errorf("metrics yaml = %q", out)
	}
}

func TestUnknownSession(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "s-1")
	for _, name := range []string{"timeline", "conversation", "metrics"} {
		_, err := execute(t, name, "nope")
		if !errors.Is(err, storage.ErrSessionNotFound) {
			t.Errorf("%s error = %v, want ErrSessionNotFound", name, err)
		}
	}
}

func TestSessionPrefix(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "0b6f5a3e-9c2d-4e1f-8a7b-1234567890ab")

	out, err := execute(t, "metrics", "0b6f", "-o", "json")
	if err != nil {
		t.Fatalf("metrics by prefix error = %v", err)
	}
	if !strings.Contains(out, `"total_tool_calls": 1`) {
		t.Errorf("metrics = %s", out)
	}
}

func TestUnknownOutputFormat(t *testing.T) {
	projects := isolate(t)
	writeSession(t, projects, "/w/app", "s-1")
	_, err := execute(t, "metrics", "s-1", "-o", "xml")
	if err == nil || !strings.Contains(err.Error(), `unknown output format "xml"`) {
		t.Errorf("error = %v", err)
	}
}

func TestConfigShow(t *testing.T) {
	isolate(t)
	t.Setenv("SWATCH_PROCESS_NAME", "claude-beta")

	out, err := execute(t, "config", "--show")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"process_name: claude-beta  (from environment)", "SWATCH_PROCESS_NAME=claude-beta", "(not found)"} {
		if !strings.Contains(out, want) {
			t.Errorf("config output missing %q:\n%s", want, out)
		}
	}

	out, err = execute(t, "config", "--show", "-o", "json")
	if err != nil {
		t.Fatal(err)
	}
	var resolved map[string]struct {
		Value  any    `json:"value"`
		Source string `json:"source"`
	}
	if err := json.Unmarshal([]byte(out), &resolved); err != nil {
		t.Fatalf("parse %q: %v", out, err)
	}
	if resolved["output"].Source != "flag" || resolved["output"].Value != "json" {
		t.Errorf("output = %+v, want json from flag", resolved["output"])
	}
}
