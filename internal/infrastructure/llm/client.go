// Package llm provides the reply-generation client used by conversations.
package llm

import (
	"context"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn of chat history passed to the model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Generator produces a reply from a system prompt and message history.
// Implementations must honor ctx deadlines; the conversation loop calls
// with the remaining turn budget and falls back to canned responses on
// error.
type Generator interface {
	Generate(ctx context.Context, system string, messages []Message) (string, error)
}
