package cli

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/chris/tally/config"
	"github.com/chris/tally/internal/ledger"
	"github.com/chris/tally/internal/logger"
)

type contextKey struct{}

// appContext carries loaded configuration and shared resources to
// subcommands.
type appContext struct {
	Config     *config.Config
	ConfigPath string
	Logger     *zerolog.Logger

	ledgerOnce sync.Once
	ledger     *ledger.DB
	ledgerErr  error
}

// Ledger opens the spend ledger on first use.
func (a *appContext) Ledger() (*ledger.DB, error) {
	a.ledgerOnce.Do(func() {
		a.ledger, a.ledgerErr = ledger.Open(a.Config.LedgerPath)
	})
	return a.ledger, a.ledgerErr
}

func (a *appContext) Close() error {
	if a.ledger != nil {
		return a.ledger.Close()
	}
	return nil
}

func (a *appContext) Log() *zerolog.Logger {
	if a.Logger != nil {
		return a.Logger
	}
	return logger.Get()
}

func fromCmd(cmd *cobra.Command) *appContext {
	if cmd.Context() == nil {
		return nil
	}
	app, _ := cmd.Context().Value(contextKey{}).(*appContext)
	return app
}
