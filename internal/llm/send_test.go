package llm

import (
	"context"
	"errors"
	"testing"
)

type stubClient struct {
	resp *Completion
	err  error
	got  []Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (*Completion, error) {
	s.got = append(s.got, req)
	return s.resp, s.err
}

func TestSend_Success(t *testing.T) {
	conv, _ := NewConversation(SystemPrompt)
	conv.Append(Message{Role: RoleUser, Content: "Hello"})
	client := &stubClient{resp: &Completion{
		Content: "Hi there!",
		Usage:   Usage{PromptTokens: 17, CompletionTokens: 3, TotalTokens: 20},
	}}

	got, err := Send(context.Background(), client, conv, Request{Model: "gpt-3.5-turbo", MaxTokens: 150})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if conv.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", conv.Len())
	}
	if last := conv.Last(); last.Role != RoleAssistant || last.Content != "Hi there!" {
		t.Errorf("last message = %+v", last)
	}
	if got.Usage.TotalTokens != 20 {
		t.Errorf("TotalTokens = %d, want 20", got.Usage.TotalTokens)
	}

	if len(client.got) != 1 {
		t.Fatalf("expected 1 call, got %d", len(client.got))
	}
	req := client.got[0]
	if req.Model != "gpt-3.5-turbo" || req.MaxTokens != 150 {
		t.Errorf("request = %+v", req)
	}
	if len(req.Messages) != 2 || req.Messages[1].Content != "Hello" {
		t.Errorf("request messages = %+v, want the two-message snapshot", req.Messages)
	}
}

func TestSend_NormalizesTotal(t *testing.T) {
	conv, _ := NewConversation(SystemPrompt)
	conv.Append(Message{Role: RoleUser, Content: "Hello"})
	client := &stubClient{resp: &Completion{Content: "Hi", Usage: Usage{PromptTokens: 10, CompletionTokens: 2}}}

	got, err := Send(context.Background(), client, conv, Request{Model: "claude-3-5-haiku-latest"})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got.Usage.TotalTokens != 12 {
		t.Errorf("TotalTokens = %d, want 12", got.Usage.TotalTokens)
	}
}

func TestSend_Failures(t *testing.T) {
	cause := errors.New("401 unauthorized")
	tests := []struct {
		name   string
		client *stubClient
	}{
		{"transport error", &stubClient{err: cause}},
		{"nil response", &stubClient{}},
		{"blank reply", &stubClient{resp: &Completion{Content: "  "}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conv, _ := NewConversation(SystemPrompt)
			conv.Append(Message{Role: RoleUser, Content: "Hello"})

			_, err := Send(context.Background(), tt.client, conv, Request{Model: "gpt-4"})
			if !errors.Is(err, ErrCompletionFailed) {
				t.Fatalf("Send() error = %v, want ErrCompletionFailed", err)
			}
			if conv.Len() != 2 {
				t.Errorf("Len() = %d, want 2 (no partial assistant turn)", conv.Len())
			}
		})
	}
}

func TestSend_WrapsCause(t *testing.T) {
	conv, _ := NewConversation(SystemPrompt)
	conv.Append(Message{Role: RoleUser, Content: "Hello"})

	_, err := Send(context.Background(), &stubClient{err: context.DeadlineExceeded}, conv, Request{Model: "gpt-4"})
	if !errors.Is(err, ErrCompletionFailed) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Send() error = %v, want both ErrCompletionFailed and the cause", err)
	}
}
