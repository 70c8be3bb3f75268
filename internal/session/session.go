// Package session runs the estimate, confirm, send and record loop of one
// interactive conversation.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/ledger"
	"github.com/chris/tally/internal/llm"
)

type Options struct {
	Model        catalog.Profile
	SystemPrompt string
	MaxTokens    int
	// Timeout bounds each completion call; expiry fails the turn. Zero means
	// no limit beyond the caller's context.
	Timeout time.Duration

	Client   llm.Client
	Counter  *llm.Counter
	Prompter Prompter
	Reporter Reporter
	Recorder Recorder // optional
	Logger   *zerolog.Logger
}

// Stats accumulates authoritative usage over a session.
type Stats struct {
	SessionID        string
	Model            string
	Turns            int
	Declined         int
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	Spent            decimal.Decimal
	Duration         time.Duration
}

// turn carries what was estimated so the send can be checked against it.
type turn struct {
	length     int
	estimate   catalog.Estimate
	completion *llm.Completion
}

// Session owns one Conversation for the length of a run. It is not safe for
// concurrent use.
type Session struct {
	id    string
	opts  Options
	conv  *llm.Conversation
	state State
	cur   turn
	stats Stats
	start time.Time
	log   zerolog.Logger
}

func New(opts Options) (*Session, error) {
	if opts.Client == nil || opts.Prompter == nil || opts.Reporter == nil {
		return nil, errors.New("session: client, prompter and reporter are required")
	}
	if opts.Counter == nil {
		opts.Counter = llm.NewCounter()
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = llm.SystemPrompt
	}
	conv, err := llm.NewConversation(opts.SystemPrompt)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	id := uuid.NewString()
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	return &Session{
		id:    id,
		opts:  opts,
		conv:  conv,
		state: AwaitingTopic,
		stats: Stats{SessionID: id, Model: opts.Model.ID},
		log:   log.With().Str("session", id).Str("model", opts.Model.ID).Logger(),
	}, nil
}

func (s *Session) ID() string { return s.id }
func (s *Session) State() State { return s.state }
func (s *Session) Len() int { return s.conv.Len() }
func (s *Session) Stats() Stats { return s.stats }

// Transcript returns a copy of the conversation so far.
func (s *Session) Transcript() []llm.Message { return s.conv.Snapshot() }

// Run drives the session until it ends. It returns nil when the operator
// stops, and the fatal error (ErrUnsupportedModel, ErrCompletionFailed, or a
// collaborator failure) otherwise. The summary is reported either way.
func (s *Session) Run(ctx context.Context) error {
	s.start = time.Now()
	defer func() {
		s.stats.Duration = time.Since(s.start)
		s.opts.Reporter.Summary(s.stats)
	}()

	for s.state != Ended {
		if err := s.step(ctx); err != nil {
			s.transition(Ended)
			s.log.Error().Err(err).Msg("session ended")
			return err
		}
	}
	return nil
}

func (s *Session) transition(to State) {
	s.log.Debug().Stringer("from", s.state).Stringer("to", to).Msg("transition")
	s.state = to
}

func (s *Session) step(ctx context.Context) error {
	switch s.state {
	case AwaitingTopic:
		return s.awaitTopic(ctx)
	case Estimating:
		return s.estimate()
	case ConfirmingCost:
		return s.confirmCost(ctx)
	case Sending:
		return s.send(ctx)
	case Recording:
		return s.recordReply(ctx)
	case AwaitingContinue:
		return s.awaitContinue(ctx)
	}
	return fmt.Errorf("session: no step for state %s", s.state)
}

func (s *Session) awaitTopic(ctx context.Context) error {
	topic, err := s.opts.Prompter.Topic(ctx)
	if errors.Is(err, io.EOF) {
		s.transition(Ended)
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading topic: %w", err)
	}
	if IsQuit(topic) {
		s.transition(Ended)
		return nil
	}

	if err := s.conv.Append(llm.Message{Role: llm.RoleUser, Content: topic}); err != nil {
		if errors.Is(err, llm.ErrEmptyContent) {
			// stay in AwaitingTopic and ask again
			s.opts.Reporter.Rejected(err)
			return nil
		}
		return err
	}
	s.transition(Estimating)
	return nil
}

func (s *Session) estimate() error {
	snapshot := s.conv.Snapshot()
	tokens, err := s.opts.Counter.Count(snapshot, s.opts.Model)
	if err != nil {
		return fmt.Errorf("counting tokens: %w", err)
	}
	s.cur = turn{length: len(snapshot), estimate: catalog.EstimateCost(tokens, s.opts.Model)}
	s.log.Debug().Int("tokens", tokens).Str("amount", s.cur.estimate.Amount.String()).Msg("estimated")

	s.opts.Reporter.Estimate(s.opts.Model, s.cur.estimate)
	s.transition(ConfirmingCost)
	return nil
}

func (s *Session) confirmCost(ctx context.Context) error {
	ok, err := s.opts.Prompter.Confirm(ctx, ConfirmSpend)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	if !ok {
		// The user message stays in the transcript; nothing was sent.
		s.stats.Declined++
		s.record(ctx, ledger.StatusDeclined)
		s.transition(Ended)
		return nil
	}
	s.transition(Sending)
	return nil
}

func (s *Session) send(ctx context.Context) error {
	if s.conv.Len() != s.cur.length {
		return fmt.Errorf("session: conversation changed after estimate (%d -> %d messages)", s.cur.length, s.conv.Len())
	}

	callCtx := ctx
	if s.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.opts.Timeout)
		defer cancel()
	}

	started := time.Now()
	resp, err := llm.Send(callCtx, s.opts.Client, s.conv, llm.Request{
		Model:     s.opts.Model.ID,
		MaxTokens: s.opts.MaxTokens,
	})
	if err != nil {
		s.record(ctx, ledger.StatusFailed)
		return err
	}
	s.log.Debug().Dur("elapsed", time.Since(started)).Int("total_tokens", resp.Usage.TotalTokens).Msg("completion received")

	s.cur.completion = resp
	s.transition(Recording)
	return nil
}

func (s *Session) recordReply(ctx context.Context) error {
	resp := s.cur.completion
	actual := catalog.EstimateCost(resp.Usage.TotalTokens, s.opts.Model)

	s.stats.Turns++
	s.stats.PromptTokens += resp.Usage.PromptTokens
	s.stats.CompletionTokens += resp.Usage.CompletionTokens
	s.stats.TotalTokens += resp.Usage.TotalTokens
	s.stats.Spent = s.stats.Spent.Add(actual.Amount)

	s.opts.Reporter.Reply(s.opts.Model, resp.Content, resp.Usage, actual)
	s.record(ctx, ledger.StatusCompleted)
	s.transition(AwaitingContinue)
	return nil
}

func (s *Session) awaitContinue(ctx context.Context) error {
	ok, err := s.opts.Prompter.Confirm(ctx, ConfirmContinue)
	if err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("reading confirmation: %w", err)
	}
	s.cur = turn{}
	if !ok {
		s.transition(Ended)
		return nil
	}
	s.transition(AwaitingTopic)
	return nil
}

// record writes the current turn to the ledger. Ledger problems never end
// the session.
func (s *Session) record(ctx context.Context, status ledger.Status) {
	if s.opts.Recorder == nil {
		return
	}
	t := ledger.Turn{
		SessionID:       s.id,
		Model:           s.opts.Model.ID,
		Status:          status,
		EstimatedTokens: s.cur.estimate.Tokens,
		EstimatedCost:   s.cur.estimate.Amount,
	}
	if resp := s.cur.completion; resp != nil {
		t.PromptTokens = resp.Usage.PromptTokens
		t.CompletionTokens = resp.Usage.CompletionTokens
		t.TotalTokens = resp.Usage.TotalTokens
		t.Cost = s.opts.Model.Cost(resp.Usage.TotalTokens)
	}
	if _, err := s.opts.Recorder.RecordTurn(context.WithoutCancel(ctx), t); err != nil {
		s.log.Warn().Err(err).Str("status", string(status)).Msg("recording turn")
	}
}
