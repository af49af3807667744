package cli

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/model"
)

// newSetupCmd builds the interactive account setup flow. The account
// is only persisted after a successful connection test.
func newSetupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Configure the IMAP account interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			account := &model.AccountConfig{Port: 993, TLS: true}
			if prior, err := a.creds.LoadAccount(); err == nil {
				account = prior
			}

			portStr := strconv.Itoa(account.Port)
			useTLS := account.TLS

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Email address").
						Value(&account.Email),
					huh.NewInput().
						Title("App password").
						EchoMode(huh.EchoModePassword).
						Value(&account.AppPassword),
					huh.NewInput().
						Title("IMAP host").
						Placeholder("imap.example.com").
						Value(&account.Host),
					huh.NewInput().
						Title("IMAP port").
						Value(&portStr),
					huh.NewConfirm().
						Title("Use TLS?").
						Value(&useTLS),
				),
			)
			if err := form.Run(); err != nil {
				return fmt.Errorf("setup aborted: %w", err)
			}

			port, err := strconv.Atoi(strings.TrimSpace(portStr))
			if err != nil {
				return fmt.Errorf("invalid port %q", portStr)
			}
			account.Port = port
			account.TLS = useTLS
			if account.CreatedAt.IsZero() {
				account.CreatedAt = time.Now().UTC()
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Testing connection to %s...\n", account.Addr())

			res := a.svc.TestConnection(cmd.Context(), account)
			if !res.Success {
				return fmt.Errorf("connection test failed: %s", res.Error)
			}
			for _, w := range res.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}

			if err := a.creds.SaveAccount(account); err != nil {
				return fmt.Errorf("saving account: %w", err)
			}

			fmt.Fprintf(out, "Account %s saved.\n", account.Email)
			return nil
		},
	}
}
