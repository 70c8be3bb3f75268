package llm

import (
	"context"
	"fmt"
	"strings"
)

// Send transmits a snapshot of conv to the client and, only if the call
// succeeds with a non-empty reply, appends that reply as an assistant
// message. Every failure matches ErrCompletionFailed and leaves conv as it was.
func Send(ctx context.Context, client Client, conv *Conversation, req Request) (*Completion, error) {
	req.Messages = conv.Snapshot()

	resp, err := client.Complete(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCompletionFailed, err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, fmt.Errorf("%w: %s returned an empty reply", ErrCompletionFailed, req.Model)
	}

	if err := conv.Append(Message{Role: RoleAssistant, Content: resp.Content}); err != nil {
		return nil, fmt.Errorf("%w: recording reply: %w", ErrCompletionFailed, err)
	}
	return &Completion{Content: resp.Content, Usage: resp.Usage.normalize()}, nil
}
