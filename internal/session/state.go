package session

import (
	"context"
	"strings"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/ledger"
	"github.com/chris/tally/internal/llm"
)

type State int

const (
	AwaitingTopic State = iota
	Estimating
	ConfirmingCost
	Sending
	Recording
	AwaitingContinue
	Ended
)

var stateNames = [...]string{
	AwaitingTopic:    "awaiting-topic",
	Estimating:       "estimating",
	ConfirmingCost:   "confirming-cost",
	Sending:          "sending",
	Recording:        "recording",
	AwaitingContinue: "awaiting-continue",
	Ended:            "ended",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Question identifies which yes/no decision the operator is asked for.
type Question int

const (
	// ConfirmSpend gates the network call for the current turn.
	ConfirmSpend Question = iota
	// ConfirmContinue asks whether to start another turn.
	ConfirmContinue
)

// Prompter collects operator input. Returning io.EOF from either method
// means the operator closed input and ends the session cleanly.
type Prompter interface {
	Topic(ctx context.Context) (string, error)
	Confirm(ctx context.Context, q Question) (bool, error)
}

// Reporter renders session events to the operator.
type Reporter interface {
	Estimate(model catalog.Profile, est catalog.Estimate)
	Reply(model catalog.Profile, content string, usage llm.Usage, cost catalog.Estimate)
	Rejected(err error)
	Summary(stats Stats)
}

// Recorder persists turn accounting. *ledger.DB satisfies it.
type Recorder interface {
	RecordTurn(ctx context.Context, t ledger.Turn) (int64, error)
}

var quitWords = map[string]bool{"q": true, "quit": true, "exit": true}

// IsQuit reports whether a topic is a request to leave.
func IsQuit(topic string) bool {
	return quitWords[strings.ToLower(strings.TrimSpace(topic))]
}
