package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/term"
)

func newModelsCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "models",
		Short: "List the models tally can price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fromCmd(cmd)
			profiles := catalog.Default().Profiles()
			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(profiles)
			}
			return term.PrintModels(cmd.OutOrStdout(), profiles, app.Config.Model)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}
