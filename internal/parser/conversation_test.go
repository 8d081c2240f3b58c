package parser

import (
	"reflect"
	"strings"
	"testing"

	"github.com/boshu2/sessionwatch/internal/types"
)

func TestReadConversation(t *testing.T) {
	content := line(t, map[string]any{"type": "user", "timestamp": "T1", "message": map[string]any{"role": "user", "content": "Please fix the build"}}) +
		assistantLine(t, "T2", nil,
			textItem("Looking at the failure."),
			toolUse("Bash", map[string]any{"command": "go build ./..."})) +
		line(t, map[string]any{"type": "user", "timestamp": "T3", "message": map[string]any{"role": "user", "content": []any{
			map[string]any{"type": "tool_result", "content": "ok"},
		}}}) +
		line(t, map[string]any{"type": "human", "timestamp": "T4", "message": map[string]any{"content": "thanks"}}) +
		line(t, map[string]any{"type": "summary", "summary": "ignored"})

	path := writeFile(t, t.TempDir(), "-p", "s.jsonl", content, fixedMtime)
	got, err := NewParser().ReadConversation(path)
	if err != nil {
		t.Fatalf("ReadConversation() error = %v", err)
	}

	want := []types.ConversationMessage{
		{Role: types.RoleHuman, Content: "Please fix the build", Timestamp: "T1"},
		{Role: types.RoleAssistant, Content: "Looking at the failure.", Tools: []string{"Bash: go build ./..."}, Timestamp: "T2"},
		{Role: types.RoleHuman, Content: "thanks", Timestamp: "T4"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ReadConversation() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestReadConversation_Truncation(t *testing.T) {
	long := strings.Repeat("a", 800)
	content := assistantLine(t, "T1", nil, textItem(long), textItem(long), textItem(long))
	path := writeFile(t, t.TempDir(), "-p", "s.jsonl", content, fixedMtime)

	got, err := NewParser().ReadConversation(path)
	if err != nil {
		t.Fatalf("ReadConversation() error = %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("messages = %d, want 1", len(got))
	}
	if n := len([]rune(got[0].Content)); n != maxMessageText {
		t.Errorf("content length = %d, want %d", n, maxMessageText)
	}
	if !strings.HasPrefix(got[0].Content, strings.Repeat("a", maxItemText)+"\n") {
		t.Errorf("each item should be cut to %d chars before joining", maxItemText)
	}
}

func TestReadConversation_MissingFile(t *testing.T) {
	if _, err := NewParser().ReadConversation("/definitely/not/here.jsonl"); err == nil {
		t.Error("ReadConversation(missing) error = nil, want error")
	}
}

func TestLastN(t *testing.T) {
	msgs := []types.ConversationMessage{{Content: "1"}, {Content: "2"}, {Content: "3"}}
	tests := []struct {
		n    int
		want int
	}{
		{0, 3},
		{-1, 3},
		{2, 2},
		{5, 3},
	}
	for _, tt := range tests {
		if got := LastN(msgs, tt.n); len(got) != tt.want {
			t.Errorf("LastN(%d) len = %d, want %d", tt.n, len(got), tt.want)
		}
	}
	if got := LastN(msgs, 1); got[0].Content != "3" {
		t.Errorf("LastN(1) = %v, want newest", got)
	}
}
