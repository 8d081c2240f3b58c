package formatter

import (
	"fmt"
	"io"
	"strings"
	"text/template"

	"github.com/boshu2/sessionwatch/internal/types"
)

// MarkdownFormatter renders a conversation as markdown.
type MarkdownFormatter struct {
	// Frontmatter adds a YAML header with the session id and message count.
	Frontmatter bool
}

// NewMarkdownFormatter creates a markdown formatter with frontmatter enabled.
func NewMarkdownFormatter() *MarkdownFormatter {
	return &MarkdownFormatter{Frontmatter: true}
}

// Format writes the conversation of sessionID as markdown. Continuation
// markers become horizontal rules announcing the next session.
func (mf *MarkdownFormatter) Format(w io.Writer, sessionID string, msgs []types.ConversationMessage) error {
	tmpl, err := template.New("conversation").Funcs(mf.templateFuncs()).Parse(markdownTemplate)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}
	return tmpl.Execute(w, mf.buildTemplateData(sessionID, msgs))
}

// Extension returns the file extension for markdown.
func (mf *MarkdownFormatter) Extension() string {
	return ".md"
}

// templateData holds all data for the markdown template.
type templateData struct {
	SessionID   string
	Frontmatter bool
	Sessions    []string
	Messages    []types.ConversationMessage
}

func (mf *MarkdownFormatter) buildTemplateData(sessionID string, msgs []types.ConversationMessage) *templateData {
	data := &templateData{
		SessionID:   sessionID,
		Frontmatter: mf.Frontmatter,
		Sessions:    []string{sessionID},
		Messages:    msgs,
	}
	for _, m := range msgs {
		if m.IsContinuation && m.SessionID != "" {
			data.Sessions = append(data.Sessions, m.SessionID)
		}
	}
	return data
}

func (mf *MarkdownFormatter) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"heading": func(role string) string {
			switch role {
			case types.RoleHuman:
				return "Human"
			case types.RoleAssistant:
				return "Assistant"
			case "":
				return "Message"
			default:
				return strings.ToUpper(role[:1]) + role[1:]
			}
		},
		"quote": func(s string) string {
			return "> " + strings.ReplaceAll(strings.TrimSpace(s), "\n", "\n> ")
		},
		"hasContent": func(s []string) bool {
			return len(s) > 0
		},
		"timeOf": func(ts string) string {
			if t, ok := types.ParseTimestamp(ts); ok {
				return t.UTC().Format("15:04:05")
			}
			return ""
		},
	}
}

const markdownTemplate = `
{{- if .Frontmatter -}}
---
session_id: {{ .SessionID }}
messages: {{ len .Messages }}
sessions:
{{- range .Sessions }}
  - {{ . }}
{{- end }}
---

{{ end -}}
# Conversation {{ .SessionID }}
{{- range .Messages }}
{{- if .IsContinuation }}

---

*Continued in session {{ .SessionID }}*

---
{{- else }}

## {{ heading .Role }}{{ with timeOf .Timestamp }} · {{ . }}{{ end }}
{{- if .Content }}

{{ quote .Content }}
{{- end }}
{{- if hasContent .Tools }}
{{ range .Tools }}
- ` + "`{{ . }}`" + `
{{- end }}
{{- end }}
{{- end }}
{{- end }}
`
