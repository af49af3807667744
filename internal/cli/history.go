package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// newHistoryCmd lists recent sync runs from the bookkeeping store.
func newHistoryCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent sync runs",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.RecentRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sync runs recorded yet")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "WHEN\tMAILBOX\tMESSAGES\tNEW\tRESULT")
			for _, r := range runs {
				result := "ok"
				if !r.Success {
					result = r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n",
					r.StartedAt.Local().Format("2006-01-02 15:04:05"),
					r.Mailbox, r.UIDCount, r.NewCount, result)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}
