// Package parser streams agent transcripts (one JSON object per line) and
// derives session metadata, activity descriptions, conversations, and
// per-session metrics from them.
package parser

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Record type constants for transcript entries.
const (
	TypeUser       = "user"
	TypeHuman      = "human"
	TypeAssistant  = "assistant"
	TypeToolUse    = "tool_use"
	TypeToolResult = "tool_result"
	TypeSummary    = "summary"
	TypeSystem     = "system"
	TypeText       = "text"

	SubtypeCompactBoundary = "compact_boundary"
)

// DefaultMaxLineSize bounds a single transcript line. Tool results can be large.
const DefaultMaxLineSize = 16 * 1024 * 1024

// Error classification constants for parse errors.
const (
	errClassJSON     = "json"
	errClassSchema   = "schema"
	errClassEncoding = "encoding"
)

// Record is one decoded transcript line. Only the fields sessionwatch
// reads are decoded; everything else is ignored.
type Record struct {
	Type             string          `json:"type"`
	Subtype          string          `json:"subtype,omitempty"`
	Timestamp        string          `json:"timestamp"`
	SessionID        string          `json:"sessionId"`
	Slug             string          `json:"slug"`
	Cwd              string          `json:"cwd"`
	GitBranch        string          `json:"gitBranch"`
	Summary          string          `json:"summary"`
	IsCompactSummary bool            `json:"isCompactSummary"`
	Message          json.RawMessage `json:"message,omitempty"`
}

// Msg decodes the record's message. It reports false when the record has
// no message or the message is not a JSON object.
func (r *Record) Msg() (*Message, bool) {
	raw := bytes.TrimSpace(r.Message)
	if len(raw) == 0 || raw[0] != '{' {
		return nil, false
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, false
	}
	return &m, true
}

// IsUserTurn reports whether the record is a user or legacy human turn.
func (r *Record) IsUserTurn() bool {
	return r.Type == TypeUser || r.Type == TypeHuman
}

// Message is the message envelope carried by user and assistant records.
type Message struct {
	Role    string            `json:"role"`
	Content Content           `json:"content"`
	Usage   *types.TokenUsage `json:"usage,omitempty"`
}

// Content is a message body, which transcripts write either as a plain
// string or as an array of typed items.
type Content struct {
	Text  string
	Items []ContentItem
}

// ContentItem is one element of an array-valued message content.
type ContentItem struct {
	Type  string          `json:"type"`
	Text  string          `json:"text,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`
}

// UnmarshalJSON accepts a string, an array of items, or anything else
// (which decodes to empty content). Array elements that are not objects
// are skipped.
func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil
	}
	switch data[0] {
	case '"':
		return json.Unmarshal(data, &c.Text)
	case '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		for _, elem := range raw {
			var item ContentItem
			if err := json.Unmarshal(elem, &item); err != nil {
				continue
			}
			c.Items = append(c.Items, item)
		}
	}
	return nil
}

// Texts returns the non-empty text parts of the content in order.
func (c Content) Texts() []string {
	if c.Text != "" {
		return []string{c.Text}
	}
	var out []string
	for _, item := range c.Items {
		if item.Type == TypeText && item.Text != "" {
			out = append(out, item.Text)
		}
	}
	return out
}

// ToolUses returns the tool_use items of the content.
func (c Content) ToolUses() []ContentItem {
	var out []ContentItem
	for _, item := range c.Items {
		if item.Type == TypeToolUse {
			out = append(out, item)
		}
	}
	return out
}

// OnlyToolResults reports whether the content is made up entirely of
// tool_result items, which is how tool output is fed back on user records.
func (c Content) OnlyToolResults() bool {
	if c.Text != "" || len(c.Items) == 0 {
		return false
	}
	for _, item := range c.Items {
		if item.Type != TypeToolResult {
			return false
		}
	}
	return true
}

// Parser streams JSONL transcripts record by record.
type Parser struct {
	// MaxLineSize is the longest line the scanner accepts.
	MaxLineSize int

	// Logger receives debug output for skipped lines.
	Logger *slog.Logger
}

// NewParser creates a parser with default settings.
func NewParser() *Parser {
	return &Parser{
		MaxLineSize: DefaultMaxLineSize,
		Logger:      slog.New(slog.DiscardHandler),
	}
}

// Stats counts what a pass over a transcript saw.
type Stats struct {
	TotalLines     int
	MalformedLines int
}

// ParseError provides structured error information for transcript parsing failures.
type ParseError struct {
	Line       int    `json:"line"`
	Message    string `json:"message"`
	RawContent string `json:"raw_content,omitempty"`
	ErrorType  string `json:"error_type"` // "json", "schema", "encoding"
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s (%s)", e.Line, e.Message, e.ErrorType)
}

// Each decodes every line of r and calls fn with the record. Malformed
// lines are counted, logged at debug level, and skipped. Returning false
// from fn stops the pass early.
func (p *Parser) Each(r io.Reader, fn func(rec *Record) bool) (Stats, error) {
	var stats Stats

	maxLine := p.MaxLineSize
	if maxLine <= 0 {
		maxLine = DefaultMaxLineSize
	}
	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, min(64*1024, maxLine))
	scanner.Buffer(buf, maxLine)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		stats.TotalLines = lineNum
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.MalformedLines++
			p.logger().Debug("skipping malformed transcript line",
				"error", &ParseError{
					Line:       lineNum,
					Message:    err.Error(),
					ErrorType:  classifyError(err),
					RawContent: truncateForError(string(line), 100),
				})
			continue
		}
		if !fn(&rec) {
			break
		}
	}

	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("scanner error: %w", err)
	}
	return stats, nil
}

// EachFile runs Each over the file at path.
func (p *Parser) EachFile(path string, fn func(rec *Record) bool) (stats Stats, err error) {
	f, err := os.Open(path)
	if err != nil {
		return stats, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	return p.Each(f, fn)
}

func (p *Parser) logger() *slog.Logger {
	if p.Logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.Logger
}

// classifyError determines the error type for structured reporting.
func classifyError(err error) string {
	errStr := err.Error()
	switch {
	case strings.Contains(errStr, "invalid character"):
		return errClassJSON
	case strings.Contains(errStr, "unexpected end"):
		return errClassJSON
	case strings.Contains(errStr, "cannot unmarshal"):
		return errClassSchema
	case strings.Contains(errStr, "invalid UTF-8"):
		return errClassEncoding
	default:
		return errClassJSON
	}
}

// truncateForError limits error context to a reasonable size.
func truncateForError(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

// truncate returns at most n runes of s.
func truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// firstLine returns s up to the first newline.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
