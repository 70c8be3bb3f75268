package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/chris/tally/config"
	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/llm"
	"github.com/chris/tally/internal/session"
	"github.com/chris/tally/internal/term"
)

type chatFlags struct {
	model     string
	system    string
	maxTokens int
	plain     bool
}

func (f *chatFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.model, "model", "m", "", "model id (see `tally models`)")
	cmd.Flags().StringVar(&f.system, "system", "", "system prompt for this session")
	cmd.Flags().IntVar(&f.maxTokens, "max-tokens", 0, "reply length limit, 0 for the provider default")
	cmd.Flags().BoolVar(&f.plain, "plain", false, "print replies without markdown rendering")
}

func runChat(cmd *cobra.Command, f chatFlags) error {
	app := fromCmd(cmd)
	cfg := app.Config
	ctx := cmd.Context()
	log := app.Log()

	maxTokens := cfg.MaxTokens
	if cmd.Flags().Changed("max-tokens") {
		if f.maxTokens < 0 {
			return fmt.Errorf("--max-tokens must be >= 0, got %d", f.maxTokens)
		}
		maxTokens = f.maxTokens
	}
	systemPrompt := cfg.SystemPrompt
	if cmd.Flags().Changed("system") {
		systemPrompt = f.system
	}

	in := inputFor(cmd)
	console := term.New(term.Options{
		In:          in,
		Out:         cmd.OutOrStdout(),
		HistoryFile: cfg.HistoryFile,
		Markdown:    cfg.Markdown && !f.plain,
	})
	defer func() {
		if err := console.Close(); err != nil {
			log.Warn().Err(err).Msg("closing console")
		}
	}()

	reg := catalog.Default()
	profile, err := chooseModel(ctx, cmd, f, cfg, reg, console, in == nil)
	if err != nil {
		return err
	}

	apiKey, authToken, baseURL := cfg.Credentials(profile.Provider)
	if err := requireCredentials(profile.Provider, apiKey, authToken); err != nil {
		return err
	}
	client, err := llm.NewClient(llm.ProviderConfig{
		Provider:  profile.Provider,
		APIKey:    apiKey,
		AuthToken: authToken,
		BaseURL:   baseURL,
	})
	if err != nil {
		return err
	}

	opts := session.Options{
		Model:        profile,
		SystemPrompt: systemPrompt,
		MaxTokens:    maxTokens,
		Timeout:      cfg.RequestTimeout,
		Client:       client,
		Counter:      llm.NewCounter(),
		Prompter:     console,
		Reporter:     console,
		Logger:       log,
	}
	if cfg.LedgerEnabled() {
		db, err := app.Ledger()
		if err != nil {
			log.Warn().Err(err).Str("path", cfg.LedgerPath).Msg("ledger unavailable, spend will not be recorded")
		} else {
			opts.Recorder = db
		}
	}

	sess, err := session.New(opts)
	if err != nil {
		return err
	}
	log.Info().Str("session", sess.ID()).Str("model", profile.ID).Msg("session started")
	console.Notice(fmt.Sprintf("Chatting with %s. Type q to quit.", profile.DisplayName))
	return sess.Run(ctx)
}

// inputFor returns nil for the process stdin so the console can use line
// editing, and the injected reader otherwise.
func inputFor(cmd *cobra.Command) io.Reader {
	if r := cmd.InOrStdin(); r != os.Stdin {
		return r
	}
	return nil
}

// chooseModel resolves the model from, in order: --model, an explicitly
// configured model, an interactive menu, the default.
func chooseModel(ctx context.Context, cmd *cobra.Command, f chatFlags, cfg *config.Config, reg *catalog.Registry, console *term.Console, stdin bool) (catalog.Profile, error) {
	var id string
	switch {
	case cmd.Flags().Changed("model"):
		id = f.model
	case cfg.ModelSet:
		id = cfg.Model
	case stdin && isatty.IsTerminal(os.Stdin.Fd()):
		p, err := console.SelectModel(ctx, reg.Profiles(), cfg.Model)
		if errors.Is(err, io.EOF) {
			return catalog.Profile{}, errors.New("no model selected")
		}
		return p, err
	default:
		id = cfg.Model
	}

	p, ok := reg.Lookup(id)
	if !ok {
		return catalog.Profile{}, fmt.Errorf("%w: %q (see `tally models`)", llm.ErrUnsupportedModel, id)
	}
	return p, nil
}

func requireCredentials(provider, apiKey, authToken string) error {
	switch provider {
	case catalog.ProviderOpenAI:
		if apiKey == "" {
			return errors.New("OPENAI_API_KEY is not set (export it or add it to .env)")
		}
	case catalog.ProviderAnthropic:
		if apiKey == "" && authToken == "" {
			return errors.New("ANTHROPIC_API_KEY or ANTHROPIC_AUTH_TOKEN must be set")
		}
	}
	return nil
}
