// Package cli defines the tally command tree.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/chris/tally/config"
	"github.com/chris/tally/internal/logger"
)

type globalFlags struct {
	ConfigPath string
	Verbose    bool
	Quiet      bool
}

// NewRootCmd builds the command tree. Running it without a subcommand starts
// a chat.
func NewRootCmd() *cobra.Command {
	var (
		global globalFlags
		chat   chatFlags
	)

	root := &cobra.Command{
		Use:   "tally",
		Short: "Chat with an LLM, confirming the cost of every turn",
		Long: `tally is a terminal chat client. Before each request it counts the
prompt tokens, shows what the turn will cost, and only sends once you say yes.
Actual usage reported by the provider is recorded in a local ledger.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "init" {
				return nil
			}
			return setup(cmd, global)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if app := fromCmd(cmd); app != nil {
				return app.Close()
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, chat)
		},
	}

	root.PersistentFlags().StringVarP(&global.ConfigPath, "config", "c", "", "config file (default ~/.tally/config.yaml)")
	root.PersistentFlags().BoolVarP(&global.Verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().BoolVarP(&global.Quiet, "quiet", "q", false, "only log errors")
	chat.register(root)

	root.AddCommand(newModelsCmd())
	root.AddCommand(newUsageCmd())
	root.AddCommand(newConfigCmd(&global))

	return root
}

func setup(cmd *cobra.Command, global globalFlags) error {
	path, err := configPath(global)
	if err != nil {
		return err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}

	logCfg := cfg.Log
	if global.Verbose {
		logCfg.Level = "debug"
	}
	if global.Quiet {
		logCfg.Level = "error"
	}
	if err := logger.InitWriter(logCfg, cmd.ErrOrStderr()); err != nil {
		return err
	}

	app := &appContext{Config: cfg, ConfigPath: path, Logger: logger.Get()}
	app.Log().Debug().Str("config", path).Str("model", cfg.Model).Msg("config loaded")
	cmd.SetContext(context.WithValue(cmd.Context(), contextKey{}, app))
	return nil
}

func configPath(global globalFlags) (string, error) {
	if global.ConfigPath != "" {
		return global.ConfigPath, nil
	}
	return config.DefaultPath()
}
