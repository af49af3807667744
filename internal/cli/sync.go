package cli

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	syncer "github.com/nhle/mailsync/internal/sync"
)

// newSyncCmd performs a one-shot mailbox sync and records it.
func newSyncCmd(a *app) *cobra.Command {
	var (
		mailboxName string
		limit       int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync recent message ids from the mailbox once",
		RunE: func(cmd *cobra.Command, args []string) error {
			if st := a.svc.IsSyncSupported(); !st.Supported {
				return fmt.Errorf("sync unsupported: %s", st.Reason)
			}

			if mailboxName != "" {
				a.cfg.IMAP.Mailbox = mailboxName
			}
			if limit != 0 {
				a.cfg.IMAP.SyncLimit = limit
			}

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			p := syncer.New(a.svc, db, a.cfg, a.log)
			run, res := p.RunOnce(cmd.Context())
			if !res.Success {
				return fmt.Errorf("sync failed: %s", res.Error)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Synced %s: %d messages, %d new\n",
				run.Mailbox, run.UIDCount, run.NewCount)
			if a.log.IsLevelEnabled(logrus.DebugLevel) && len(res.MessageUIDs) > 0 {
				fmt.Fprintf(out, "uids: %s\n", strings.Join(res.MessageUIDs, " "))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&mailboxName, "mailbox", "", "mailbox to sync (default from config)")
	cmd.Flags().IntVar(&limit, "limit", 0, "keep only the most recent N uids (-1 for all)")
	return cmd
}
