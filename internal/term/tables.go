package term

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"

	"github.com/chris/tally/internal/catalog"
	"github.com/chris/tally/internal/ledger"
)

// PrintModels lists the catalog, marking current with an asterisk.
func PrintModels(w io.Writer, profiles []catalog.Profile, current string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tID\tNAME\tPROVIDER\tPER 1K TOKENS")
	for _, p := range profiles {
		mark := ""
		if p.ID == current {
			mark = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", mark, p.ID, displayName(p), p.Provider, catalog.FormatAmount(p.PricePer1K))
	}
	return tw.Flush()
}

// PrintUsage shows per-model totals followed by the most recent turns.
func PrintUsage(w io.Writer, totals []ledger.ModelTotal, recent []ledger.Turn) error {
	if len(totals) == 0 && len(recent) == 0 {
		_, err := fmt.Fprintln(w, "No turns recorded yet.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tSENT\tDECLINED\tFAILED\tTOKENS\tSPENT")
	var (
		tokens int
		spent  decimal.Decimal
	)
	for _, t := range totals {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%s\t%s\n",
			t.Model, t.Completed, t.Declined, t.Failed, humanize.Comma(int64(t.Tokens)), catalog.FormatAmount(t.Cost))
		tokens += t.Tokens
		spent = spent.Add(t.Cost)
	}
	fmt.Fprintf(tw, "TOTAL\t\t\t\t%s\t%s\n", humanize.Comma(int64(tokens)), catalog.FormatAmount(spent))
	if err := tw.Flush(); err != nil {
		return err
	}

	if len(recent) == 0 {
		return nil
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN (UTC)\tMODEL\tSTATUS\tESTIMATE\tTOKENS\tCOST")
	for _, t := range recent {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.CreatedAt, t.Model, t.Status,
			catalog.FormatAmount(t.EstimatedCost),
			humanize.Comma(int64(t.TotalTokens)),
			catalog.FormatAmount(t.Cost))
	}
	return tw.Flush()
}
