package types

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRoleFromPath(t *testing.T) {
	tests := []struct {
		name string
		cwd  string
		want Role
	}{
		{"empty", "", RoleNone},
		{"plain project", "/Users/me/code/app", RoleNone},
		{"rig suffix", "/Users/me/gt/project/rig", RoleRig},
		{"deacon", "/Users/me/gt/deacon", RoleDeacon},
		{"mayor", "/Users/me/gt/mayor/work", RoleMayor},
		{"witness", "/Users/me/gt/project/witness", RoleWitness},
		{"refinery", "/Users/me/gt/project/refinery", RoleRefinery},
		{"refinery under rig", "/Users/me/gt/project/refinery/rig/x", RoleOrchestrated},
		{"polecat", "/Users/me/gt/project/polecats/alpha", RolePolecat},
		{"gt root", "/Users/me/gt", RoleOrchestrated},
		{"inside gt", "/Users/me/gt/scratch", RoleOrchestrated},
		{"gtx is not gt", "/Users/me/gtx", RoleNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RoleFromPath(tt.cwd); got != tt.want {
				t.Errorf("RoleFromPath(%q) = %q, want %q", tt.cwd, got, tt.want)
			}
		})
	}
}

func TestIsOrchestratedPath(t *testing.T) {
	tests := []struct {
		cwd  string
		want bool
	}{
		{"", false},
		{"/home/me/app", false},
		{"/home/me/gt", true},
		{"/home/me/gt/anything", true},
		{"/srv/mayor", true},
		{"/srv/project/polecats/a", true},
		{"/srv/project/refinery/", true},
		{"/srv/project/rigging", true},
	}

	for _, tt := range tests {
		if got := IsOrchestratedPath(tt.cwd); got != tt.want {
			t.Errorf("IsOrchestratedPath(%q) = %v, want %v", tt.cwd, got, tt.want)
		}
	}
}

func TestEstimateCost(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              1_000_000,
		OutputTokens:             100_000,
		CacheReadInputTokens:     2_000_000,
		CacheCreationInputTokens: 400_000,
	}
	// 3.00 + 1.50 + 0.60 + 1.50
	if got, want := EstimateCost(usage, DefaultPricing), 6.60; got != want {
		t.Errorf("EstimateCost() = %v, want %v", got, want)
	}
	if got := EstimateCost(TokenUsage{}, DefaultPricing); got != 0 {
		t.Errorf("EstimateCost(zero) = %v, want 0", got)
	}
}

func TestContextPercentage(t *testing.T) {
	tests := []struct {
		tokens, max int
		want        float64
	}{
		{0, 200_000, 0},
		{50_000, 200_000, 25},
		{123_456, 200_000, 61.7},
		{400_000, 200_000, 100},
		{10, 0, 0},
	}
	for _, tt := range tests {
		if got := ContextPercentage(tt.tokens, tt.max); got != tt.want {
			t.Errorf("ContextPercentage(%d, %d) = %v, want %v", tt.tokens, tt.max, got, tt.want)
		}
	}
}

func TestTokenUsageAdd(t *testing.T) {
	var u TokenUsage
	u.Add(TokenUsage{InputTokens: 1, OutputTokens: 2, CacheReadInputTokens: 3, CacheCreationInputTokens: 4})
	u.Add(TokenUsage{InputTokens: 10, OutputTokens: 20, CacheReadInputTokens: 30, CacheCreationInputTokens: 40})
	want := TokenUsage{InputTokens: 11, OutputTokens: 22, CacheReadInputTokens: 33, CacheCreationInputTokens: 44}
	if u != want {
		t.Errorf("Add() = %+v, want %+v", u, want)
	}
}

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2026, 1, 15, 10, 30, 0, 0, time.UTC)
	tests := []struct {
		name  string
		in    string
		ok    bool
		check bool
	}{
		{"millis zulu", "2026-01-15T10:30:00.000Z", true, true},
		{"rfc3339", "2026-01-15T10:30:00Z", true, true},
		{"offset", "2026-01-15T11:30:00+01:00", true, true},
		{"naive", "2026-01-15T10:30:00", true, true},
		{"micro", "2026-01-15T10:30:00.123456Z", true, false},
		{"empty", "", false, false},
		{"garbage", "yesterday", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ParseTimestamp(tt.in)
			if ok != tt.ok {
				t.Fatalf("ParseTimestamp(%q) ok = %v, want %v", tt.in, ok, tt.ok)
			}
			if tt.check && !got.Equal(want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.in, got, want)
			}
		})
	}
}

func TestSessionMetadataClone(t *testing.T) {
	m := SessionMetadata{SessionID: "a", RecentActivity: []string{"Reading x"}}
	c := m.Clone()
	c.RecentActivity[0] = "changed"
	if m.RecentActivity[0] != "Reading x" {
		t.Errorf("Clone shares RecentActivity with original")
	}
}

func TestHistoricSessionJSONFlattens(t *testing.T) {
	h := HistoricSession{
		SessionMetadata: SessionMetadata{SessionID: "abc", Slug: "app"},
		RecencySeconds:  12.5,
		Running:         true,
	}
	data, err := json.Marshal(h)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if decoded["session_id"] != "abc" {
		t.Errorf("session_id = %v, want abc", decoded["session_id"])
	}
	if decoded["running"] != true {
		t.Errorf("running = %v, want true", decoded["running"])
	}
}

func TestStateValid(t *testing.T) {
	if !StateActive.Valid() || !StateWaiting.Valid() {
		t.Error("known states reported invalid")
	}
	if State("busy").Valid() {
		t.Error("unknown state reported valid")
	}
}
