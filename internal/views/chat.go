package views

import (
	"github.com/csheth/paperdesk/internal/api"
)

// ChatLine is one rendered transcript entry.
type ChatLine struct {
	Role       api.Role
	Content    string
	SourceHint string
}

// NewChatLine projects a stored or returned message.
func NewChatLine(msg api.ChatMessage) ChatLine {
	role := msg.Role
	if role != api.RoleUser {
		role = api.RoleAssistant
	}
	return ChatLine{Role: role, Content: msg.Content, SourceHint: msg.SourceHint}
}

// UserLine is the optimistic entry for text the user just sent.
func UserLine(text string) ChatLine {
	return ChatLine{Role: api.RoleUser, Content: text}
}

// ErrorLine reports a failure in-line as an assistant entry.
func ErrorLine(prefix string, err error) ChatLine {
	return ChatLine{Role: api.RoleAssistant, Content: prefix + ": " + api.Message(err)}
}

// Transcript projects a full chat history.
func Transcript(messages []api.ChatMessage) []ChatLine {
	lines := make([]ChatLine, 0, len(messages))
	for _, msg := range messages {
		lines = append(lines, NewChatLine(msg))
	}
	return lines
}

// Speaker labels the author of a line.
func (l ChatLine) Speaker() string {
	if l.Role == api.RoleUser {
		return "You"
	}
	return "Assistant"
}
