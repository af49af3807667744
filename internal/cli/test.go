package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// newTestCmd verifies the persisted account's credentials.
func newTestCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Test the configured IMAP connection",
		RunE: func(cmd *cobra.Command, args []string) error {
			res := a.svc.TestConnection(cmd.Context(), nil)

			out := cmd.OutOrStdout()
			if !res.Success {
				return fmt.Errorf("connection test failed: %s", res.Error)
			}

			fmt.Fprintln(out, "Connection OK")
			if res.Greeting != "" {
				fmt.Fprintf(out, "greeting:     %s\n", res.Greeting)
			}
			if len(res.Capabilities) > 0 {
				fmt.Fprintf(out, "capabilities: %s\n", strings.Join(res.Capabilities, " "))
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning:      %s\n", w)
			}
			return nil
		},
	}
}
