package parser

import (
	"encoding/json"
	"strings"
)

// ActionKind enumerates the tool invocations sessionwatch knows how to describe.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionRead
	ActionWrite
	ActionEdit
	ActionBash
	ActionGrep
	ActionGlob
	ActionTask
	ActionTodoWrite
	ActionWebFetch
	ActionSkill
	ActionAskUser
	ActionMCP
)

var actionKindNames = [...]string{
	ActionUnknown:   "unknown",
	ActionRead:      "Read",
	ActionWrite:     "Write",
	ActionEdit:      "Edit",
	ActionBash:      "Bash",
	ActionGrep:      "Grep",
	ActionGlob:      "Glob",
	ActionTask:      "Task",
	ActionTodoWrite: "TodoWrite",
	ActionWebFetch:  "WebFetch",
	ActionSkill:     "Skill",
	ActionAskUser:   "AskUserQuestion",
	ActionMCP:       "mcp",
}

func (k ActionKind) String() string {
	if k < 0 || int(k) >= len(actionKindNames) {
		return "unknown"
	}
	return actionKindNames[k]
}

// Action is a classified tool invocation. Each concrete type carries only
// the inputs its descriptions need.
type Action interface {
	Kind() ActionKind

	// Describe returns the activity string shown in recent-activity lists.
	// Empty means the invocation has nothing worth showing.
	Describe() string

	// Summary returns the short label shown next to conversation messages.
	Summary() string
}

const mcpPrefix = "mcp__"

// toolInput is the union of the input fields read across all known tools.
type toolInput struct {
	FilePath    string `json:"file_path"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Pattern     string `json:"pattern"`
	URL         string `json:"url"`
	Skill       string `json:"skill"`
	Args        string `json:"args"`
	Questions   []struct {
		Question string `json:"question"`
	} `json:"questions"`
}

// ClassifyTool maps a tool_use name and input to an Action. Unrecognised
// or malformed inputs still classify; missing fields are left empty.
func ClassifyTool(name string, input json.RawMessage) Action {
	var in toolInput
	if len(input) > 0 {
		// Type mismatches leave the remaining fields populated.
		_ = json.Unmarshal(input, &in)
	}

	switch name {
	case "Read":
		return ReadAction{Path: in.FilePath}
	case "Write":
		return WriteAction{Path: in.FilePath}
	case "Edit":
		return EditAction{Path: in.FilePath}
	case "Bash":
		return BashAction{Command: in.Command, Description: in.Description}
	case "Grep":
		return GrepAction{Pattern: in.Pattern}
	case "Glob":
		return GlobAction{Pattern: in.Pattern}
	case "Task":
		return TaskAction{Description: in.Description}
	case "TodoWrite":
		return TodoWriteAction{}
	case "WebFetch":
		return WebFetchAction{URL: in.URL}
	case "Skill":
		return SkillAction{Skill: in.Skill, Args: in.Args}
	case "AskUserQuestion":
		a := AskUserAction{}
		if len(in.Questions) > 0 {
			a.Question = in.Questions[0].Question
		}
		return a
	}
	if strings.HasPrefix(name, mcpPrefix) {
		a := MCPAction{Name: name}
		if parts := strings.Split(name, "__"); len(parts) >= 3 {
			a.Server, a.Operation = parts[1], parts[2]
		}
		return a
	}
	return UnknownAction{Name: name}
}

// fileName returns the last path segment, or "file" for an empty path.
func fileName(path string) string {
	if path == "" {
		return "file"
	}
	return path[strings.LastIndexByte(path, '/')+1:]
}

type ReadAction struct{ Path string }

func (ReadAction) Kind() ActionKind   { return ActionRead }
func (a ReadAction) Describe() string { return "Reading " + fileName(a.Path) }
func (a ReadAction) Summary() string  { return "Read " + fileName(a.Path) }

type WriteAction struct{ Path string }

func (WriteAction) Kind() ActionKind   { return ActionWrite }
func (a WriteAction) Describe() string { return "Writing " + fileName(a.Path) }
func (a WriteAction) Summary() string  { return "Write " + fileName(a.Path) }

type EditAction struct{ Path string }

func (EditAction) Kind() ActionKind   { return ActionEdit }
func (a EditAction) Describe() string { return "Editing " + fileName(a.Path) }
func (a EditAction) Summary() string  { return "Edit " + fileName(a.Path) }

// BashAction prefers the human-written description over the raw command.
type BashAction struct{ Command, Description string }

func (BashAction) Kind() ActionKind { return ActionBash }

func (a BashAction) Describe() string {
	switch {
	case a.Description != "":
		return truncate(a.Description, 60)
	case a.Command != "":
		return "Running: " + truncate(a.Command, 50)
	}
	return ""
}

func (a BashAction) Summary() string {
	switch {
	case a.Description != "":
		return "Bash: " + truncate(a.Description, 40)
	case a.Command != "":
		return "Bash: " + truncate(a.Command, 40)
	}
	return "Bash"
}

type GrepAction struct{ Pattern string }

func (GrepAction) Kind() ActionKind { return ActionGrep }
func (a GrepAction) Describe() string {
	return "Searching for '" + truncate(a.Pattern, 30) + "'"
}
func (a GrepAction) Summary() string { return "Grep '" + truncate(a.Pattern, 25) + "'" }

type GlobAction struct{ Pattern string }

func (GlobAction) Kind() ActionKind   { return ActionGlob }
func (a GlobAction) Describe() string { return "Finding files: " + truncate(a.Pattern, 30) }
func (a GlobAction) Summary() string  { return "Glob " + truncate(a.Pattern, 25) }

// TaskAction is a sub-agent spawn.
type TaskAction struct{ Description string }

func (TaskAction) Kind() ActionKind { return ActionTask }

func (a TaskAction) Describe() string {
	if a.Description == "" {
		return "Spawning agent"
	}
	return "Spawning agent: " + truncate(a.Description, 50)
}

func (a TaskAction) Summary() string {
	if a.Description == "" {
		return "Task"
	}
	return "Task: " + truncate(a.Description, 30)
}

type TodoWriteAction struct{}

func (TodoWriteAction) Kind() ActionKind { return ActionTodoWrite }
func (TodoWriteAction) Describe() string { return "Updating task list" }
func (TodoWriteAction) Summary() string  { return "Update todos" }

type WebFetchAction struct{ URL string }

func (WebFetchAction) Kind() ActionKind   { return ActionWebFetch }
func (a WebFetchAction) Describe() string { return "Fetching " + truncate(a.URL, 40) }

// Summary names the host: the third slash-separated segment of the URL.
func (a WebFetchAction) Summary() string {
	if strings.Count(a.URL, "/") >= 2 {
		return "Fetch " + strings.Split(a.URL, "/")[2]
	}
	return "Fetch " + truncate(a.URL, 30)
}

type SkillAction struct{ Skill, Args string }

func (SkillAction) Kind() ActionKind { return ActionSkill }

func (a SkillAction) Describe() string {
	switch {
	case a.Skill == "":
		return "Running skill"
	case a.Args != "":
		return "Running /" + a.Skill + " " + truncate(a.Args, 30)
	}
	return "Running /" + a.Skill + " skill"
}

func (SkillAction) Summary() string { return "Skill" }

type AskUserAction struct{ Question string }

func (AskUserAction) Kind() ActionKind { return ActionAskUser }

func (a AskUserAction) Describe() string {
	if q := truncate(a.Question, 40); q != "" {
		return "Asking: " + q
	}
	return "Asking user question"
}

func (AskUserAction) Summary() string { return "AskUserQuestion" }

// MCPAction is a tool served by an MCP server, named mcp__<server>__<operation>.
type MCPAction struct{ Name, Server, Operation string }

func (MCPAction) Kind() ActionKind { return ActionMCP }

func (a MCPAction) Describe() string {
	if a.Server != "" {
		return a.Server + ": " + a.Operation
	}
	return "MCP: " + strings.TrimPrefix(a.Name, mcpPrefix)
}

func (a MCPAction) Summary() string { return a.Name }

// UnknownAction is any tool without a dedicated description.
type UnknownAction struct{ Name string }

func (UnknownAction) Kind() ActionKind { return ActionUnknown }

func (a UnknownAction) Describe() string {
	if a.Name == "" {
		return ""
	}
	return "Using " + a.Name
}

func (a UnknownAction) Summary() string {
	if a.Name == "" {
		return "Unknown"
	}
	return a.Name
}

// DescribeText reduces free text to its first sentence or clause.
func DescribeText(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}
	line := truncate(firstLine(text), 100)
	if i := strings.Index(line, ". "); i >= 0 {
		return line[:i] + "."
	}
	if len([]rune(line)) > 60 {
		return truncate(line, 60) + "..."
	}
	return line
}

// DescribeItem returns the activity string for one content item, or ""
// when the item carries nothing worth showing.
func DescribeItem(item ContentItem) string {
	switch item.Type {
	case TypeToolUse:
		return ClassifyTool(item.Name, item.Input).Describe()
	case TypeText:
		return DescribeText(item.Text)
	}
	return ""
}

// ToolSummaries returns the short label of every tool_use item in content.
func ToolSummaries(content Content) []string {
	var out []string
	for _, item := range content.ToolUses() {
		out = append(out, ClassifyTool(item.Name, item.Input).Summary())
	}
	return out
}
