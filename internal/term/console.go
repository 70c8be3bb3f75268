// Package term is the operator-facing side of a chat session: prompts,
// confirmations, and rendering of estimates, replies and summaries.
package term

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/peterh/liner"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/llm"
	"github.com/chris/tally/internal/session"
)

const (
	topicPrompt = "You: "
	wordWrap    = 80
)

var (
	speakerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("5")).Bold(true)
	costStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)
)

type Options struct {
	// In defaults to stdin. Line editing is only used when In is unset and
	// stdin is a terminal.
	In  io.Reader
	Out io.Writer

	HistoryFile string
	// Markdown renders replies with glamour when Out is a terminal.
	Markdown bool
}

// Console implements session.Prompter and session.Reporter.
type Console struct {
	in  lineReader
	out io.Writer
	md  *glamour.TermRenderer
}

func New(opts Options) *Console {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	c := &Console{out: out}

	if opts.In == nil && isTerminal(os.Stdin) && liner.TerminalSupported() {
		c.in = newLinerReader(opts.HistoryFile)
	} else {
		in := opts.In
		if in == nil {
			in = os.Stdin
		}
		c.in = newScanReader(in, out)
	}

	if opts.Markdown && isTerminal(out) {
		// plain text if the renderer cannot be built
		c.md, _ = newRenderer(glamour.WithAutoStyle())
	}
	return c
}

func newRenderer(style glamour.TermRendererOption) (*glamour.TermRenderer, error) {
	return glamour.NewTermRenderer(style, glamour.WithWordWrap(wordWrap))
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Close releases the terminal and saves input history.
func (c *Console) Close() error {
	return c.in.Close()
}

func (c *Console) Topic(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return c.in.Prompt(topicPrompt, true)
}

var questions = map[session.Question]string{
	session.ConfirmSpend:    "Send this request? [y/N] ",
	session.ConfirmContinue: "Continue the conversation? [y/N] ",
}

// Confirm asks a yes/no question. A bare return means no.
func (c *Console) Confirm(ctx context.Context, q session.Question) (bool, error) {
	prompt, ok := questions[q]
	if !ok {
		return false, fmt.Errorf("unknown question %d", q)
	}
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		answer, err := c.in.Prompt(prompt, false)
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y", "yes":
			return true, nil
		case "", "n", "no":
			return false, nil
		}
		c.Warn("Please answer y or n.")
	}
}

func (c *Console) Estimate(model catalog.Profile, est catalog.Estimate) {
	fmt.Fprintln(c.out, costStyle.Render(fmt.Sprintf(
		"Estimated prompt: %s tokens, %s on %s (reply not included)",
		humanize.Comma(int64(est.Tokens)), catalog.FormatAmount(est.Amount), displayName(model))))
	if !model.Fits(est.Tokens) {
		c.Warn(fmt.Sprintf("This prompt is larger than the %s-token context window; the provider will likely reject it.",
			humanize.Comma(int64(model.ContextWindow))))
	}
}

func (c *Console) Reply(model catalog.Profile, content string, usage llm.Usage, cost catalog.Estimate) {
	if c.md != nil {
		if rendered, err := c.md.Render(content); err == nil {
			fmt.Fprintln(c.out, speakerStyle.Render("AI:"))
			fmt.Fprint(c.out, rendered)
		} else {
			fmt.Fprintln(c.out, speakerStyle.Render("AI:")+" "+content)
		}
	} else {
		fmt.Fprintln(c.out, speakerStyle.Render("AI:")+" "+content)
	}

	fmt.Fprintln(c.out, mutedStyle.Render(fmt.Sprintf(
		"%s prompt + %s completion = %s tokens, cost %s",
		humanize.Comma(int64(usage.PromptTokens)),
		humanize.Comma(int64(usage.CompletionTokens)),
		humanize.Comma(int64(cost.Tokens)),
		catalog.FormatAmount(cost.Amount))))
}

func (c *Console) Rejected(err error) {
	if errors.Is(err, llm.ErrEmptyContent) {
		c.Warn("Please enter a topic, or q to quit.")
		return
	}
	c.Warn(err.Error())
}

func (c *Console) Summary(stats session.Stats) {
	fmt.Fprintln(c.out, speakerStyle.Render("AI:")+" Goodbye!")
	if stats.Turns == 0 && stats.Declined == 0 {
		return
	}

	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, headerStyle.Render("Session summary"))
	fmt.Fprintf(c.out, "  Model:    %s\n", stats.Model)
	fmt.Fprintf(c.out, "  Turns:    %d (%d declined)\n", stats.Turns, stats.Declined)
	fmt.Fprintf(c.out, "  Tokens:   %s (%s prompt, %s completion)\n",
		humanize.Comma(int64(stats.TotalTokens)),
		humanize.Comma(int64(stats.PromptTokens)),
		humanize.Comma(int64(stats.CompletionTokens)))
	fmt.Fprintf(c.out, "  Spent:    %s\n", catalog.FormatAmount(stats.Spent))
	fmt.Fprintf(c.out, "  Duration: %s\n", stats.Duration.Round(time.Second))
}

func (c *Console) Notice(msg string) {
	fmt.Fprintln(c.out, mutedStyle.Render(msg))
}

func (c *Console) Warn(msg string) {
	fmt.Fprintln(c.out, warnStyle.Render(msg))
}

// SelectModel offers a numbered menu of profiles. An empty answer picks def;
// a model id is accepted as well as a number.
func (c *Console) SelectModel(ctx context.Context, profiles []catalog.Profile, def string) (catalog.Profile, error) {
	if len(profiles) == 0 {
		return catalog.Profile{}, errors.New("no models to choose from")
	}

	defIdx := 0
	fmt.Fprintln(c.out, headerStyle.Render("Choose a model:"))
	for i, p := range profiles {
		if p.ID == def {
			defIdx = i
		}
		fmt.Fprintf(c.out, "  %d) %-28s %s / 1K tokens\n", i+1, displayName(p), catalog.FormatAmount(p.PricePer1K))
	}

	prompt := fmt.Sprintf("Model [%d]: ", defIdx+1)
	for {
		if err := ctx.Err(); err != nil {
			return catalog.Profile{}, err
		}
		answer, err := c.in.Prompt(prompt, false)
		if err != nil {
			return catalog.Profile{}, err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			return profiles[defIdx], nil
		}
		if n, err := strconv.Atoi(answer); err == nil && n >= 1 && n <= len(profiles) {
			return profiles[n-1], nil
		}
		for _, p := range profiles {
			if p.ID == answer {
				return p, nil
			}
		}
		c.Warn(fmt.Sprintf("Pick a number between 1 and %d.", len(profiles)))
	}
}

func displayName(p catalog.Profile) string {
	if p.DisplayName != "" {
		return p.DisplayName
	}
	return p.ID
}
