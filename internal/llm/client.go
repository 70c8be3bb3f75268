package llm

import (
	"context"
	"errors"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

func (r Role) valid() bool {
	return r == RoleSystem || r == RoleUser || r == RoleAssistant
}

type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"` // optional participant name
}

// Usage is the provider's own token accounting for one exchange.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// normalize fills TotalTokens for providers that only report the parts.
func (u Usage) normalize() Usage {
	if u.TotalTokens == 0 {
		u.TotalTokens = u.PromptTokens + u.CompletionTokens
	}
	return u
}

type Request struct {
	Model     string
	Messages  []Message
	MaxTokens int // 0 leaves the limit to the provider
}

type Completion struct {
	Content string
	Usage   Usage
}

// Client is a provider transport. Implementations must not retry.
type Client interface {
	Complete(ctx context.Context, req Request) (*Completion, error)
}

var (
	ErrEmptyContent     = errors.New("message content is empty")
	ErrSystemMessage    = errors.New("system message can only be first")
	ErrUnknownRole      = errors.New("unknown message role")
	ErrUnsupportedModel = errors.New("unsupported model")
	ErrCompletionFailed = errors.New("completion failed")
)
