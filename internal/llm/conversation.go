package llm

import (
	"fmt"
	"strings"
)

// Conversation is an append-only transcript that always starts with exactly
// one system message. It is not safe for concurrent use; a single session
// owns it.
type Conversation struct {
	messages []Message
}

func NewConversation(systemPrompt string) (*Conversation, error) {
	if strings.TrimSpace(systemPrompt) == "" {
		return nil, fmt.Errorf("system prompt: %w", ErrEmptyContent)
	}
	return &Conversation{
		messages: []Message{{Role: RoleSystem, Content: systemPrompt}},
	}, nil
}

// Append adds a message to the end. A rejected message leaves the
// conversation untouched.
func (c *Conversation) Append(m Message) error {
	if !m.Role.valid() {
		return fmt.Errorf("%w: %q", ErrUnknownRole, m.Role)
	}
	if m.Role == RoleSystem {
		return ErrSystemMessage
	}
	if strings.TrimSpace(m.Content) == "" {
		return fmt.Errorf("%s message: %w", m.Role, ErrEmptyContent)
	}
	c.messages = append(c.messages, m)
	return nil
}

// Snapshot returns a copy of the transcript, exactly as it would be sent.
func (c *Conversation) Snapshot() []Message {
	out := make([]Message, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) Len() int {
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() Message {
	return c.messages[len(c.messages)-1]
}
