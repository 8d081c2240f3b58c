package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/boshu2/sessionwatch/internal/types"
)

// Conversation limits.
const (
	ConversationTailBytes = 500_000
	maxItemText           = 500
	maxMessageText        = 1000
)

// ReadConversation returns the human and assistant turns found in the
// last ConversationTailBytes of the transcript, oldest first. User records
// that only carry tool results are not turns and are skipped.
func (p *Parser) ReadConversation(path string) (msgs []types.ConversationMessage, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	r, err := tailReader(f, info.Size(), ConversationTailBytes)
	if err != nil {
		return nil, err
	}

	_, err = p.Each(r, func(rec *Record) bool {
		if msg, ok := conversationMessage(rec); ok {
			msgs = append(msgs, msg)
		}
		return true
	})
	return msgs, err
}

func conversationMessage(rec *Record) (types.ConversationMessage, bool) {
	switch {
	case rec.IsUserTurn():
		m, ok := rec.Msg()
		if ok && m.Content.OnlyToolResults() {
			return types.ConversationMessage{}, false
		}
		var text string
		if ok {
			text = messageText(m.Content)
		}
		return types.ConversationMessage{
			Role:      types.RoleHuman,
			Content:   text,
			Timestamp: rec.Timestamp,
		}, true

	case rec.Type == TypeAssistant:
		out := types.ConversationMessage{
			Role:      types.RoleAssistant,
			Timestamp: rec.Timestamp,
		}
		if m, ok := rec.Msg(); ok {
			out.Content = messageText(m.Content)
			out.Tools = ToolSummaries(m.Content)
		}
		return out, true
	}
	return types.ConversationMessage{}, false
}

// messageText joins text parts, truncating each and the result.
func messageText(c Content) string {
	if c.Text != "" {
		return truncate(c.Text, maxItemText)
	}
	var parts []string
	for _, text := range c.Texts() {
		parts = append(parts, truncate(text, maxItemText))
	}
	return truncate(strings.Join(parts, "\n"), maxMessageText)
}

// LastN returns the last n messages, or all of them when n <= 0.
func LastN(msgs []types.ConversationMessage, n int) []types.ConversationMessage {
	if n <= 0 || len(msgs) <= n {
		return msgs
	}
	return msgs[len(msgs)-n:]
}
