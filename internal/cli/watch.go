package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	syncer "github.com/nhle/mailsync/internal/sync"
)

// newWatchCmd runs the sync scheduler until interrupted.
func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Sync the mailbox on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if st := a.svc.IsSyncSupported(); !st.Supported {
				return fmt.Errorf("sync unsupported: %s", st.Reason)
			}

			db, err := a.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			ctx, stop := signal.NotifyContext(
				cmd.Context(), syscall.SIGINT, syscall.SIGTERM,
			)
			defer stop()

			p := syncer.New(a.svc, db, a.cfg, a.log)
			p.Start()
			defer p.Stop()

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Watching %s every %ds (ctrl-c to stop)\n",
				a.cfg.IMAP.Mailbox, a.cfg.Sync.PollIntervalSec)

			for {
				select {
				case <-ctx.Done():
					fmt.Fprintln(out, "stopping")
					return nil
				case r := <-p.Results():
					if r.Run.Success {
						fmt.Fprintf(out, "%s  %s: %d messages, %d new\n",
							r.Run.FinishedAt.Format("15:04:05"),
							r.Run.Mailbox, r.Run.UIDCount, r.Run.NewCount)
					} else {
						fmt.Fprintf(out, "%s  sync failed: %s\n",
							r.Run.FinishedAt.Format("15:04:05"), r.Run.Error)
					}
				}
			}
		},
	}
}
