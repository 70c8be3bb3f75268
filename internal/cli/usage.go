package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/chris/tally/internal/ledger"
	"github.com/chris/tally/internal/term"
)

func newUsageCmd() *cobra.Command {
	var (
		count      int
		days       int
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show recorded spend",
		Long:  `Summarize the ledger per model and list the most recent turns.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 0 || days < 0 {
				return errors.New("--count and --days must not be negative")
			}
			app := fromCmd(cmd)
			if !app.Config.LedgerEnabled() {
				_, err := fmt.Fprintln(cmd.OutOrStdout(), "The ledger is off (ledger_path: off).")
				return err
			}
			db, err := app.Ledger()
			if err != nil {
				return err
			}

			var since time.Time
			if days > 0 {
				since = time.Now().AddDate(0, 0, -days)
			}
			totals, err := db.ModelTotals(cmd.Context(), since)
			if err != nil {
				return err
			}
			var recent []ledger.Turn
			if count > 0 {
				if recent, err = db.Recent(cmd.Context(), count); err != nil {
					return err
				}
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Totals []ledger.ModelTotal `json:"totals"`
					Recent []ledger.Turn       `json:"recent"`
				}{totals, recent})
			}
			return term.PrintUsage(cmd.OutOrStdout(), totals, recent)
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of recent turns to list")
	cmd.Flags().IntVar(&days, "days", 0, "only total the last N days (0 for all)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	return cmd
}
