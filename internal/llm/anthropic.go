package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// The messages API requires an output cap.
const defaultAnthropicMaxTokens = 1024

type AnthropicClient struct {
	client anthropic.Client
}

// NewAnthropicClient authenticates with an API key (X-Api-Key) or, when
// authToken is set, an OAuth bearer token.
func NewAnthropicClient(apiKey, authToken, baseURL string, opts ...option.RequestOption) *AnthropicClient {
	var all []option.RequestOption
	if apiKey != "" {
		all = append(all, option.WithAPIKey(apiKey))
	}
	if authToken != "" {
		all = append(all, option.WithHeader("Authorization", "Bearer "+authToken))
	}
	if baseURL != "" {
		all = append(all, option.WithBaseURL(baseURL))
	}
	all = append(all, option.WithMaxRetries(0))
	all = append(all, opts...)
	return &AnthropicClient{client: anthropic.NewClient(all...)}
}

func (c *AnthropicClient) Complete(ctx context.Context, req Request) (*Completion, error) {
	var (
		system []anthropic.TextBlockParam
		msgs   []anthropic.MessageParam
	)
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			system = append(system, anthropic.TextBlockParam{Text: m.Content})
		case RoleUser:
			msgs = append(msgs, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		case RoleAssistant:
			msgs = append(msgs, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownRole, m.Role)
		}
	}

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(req.Model),
		MaxTokens: maxTokens,
		System:    system,
		Messages:  msgs,
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic messages: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}

	return &Completion{
		Content: text.String(),
		Usage: Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
		},
	}, nil
}
