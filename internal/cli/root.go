// Package cli wires the mailsync commands: account setup, connection
// testing, one-shot and scheduled mailbox sync, and sync history.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/nhle/mailsync/internal/credential"
	"github.com/nhle/mailsync/internal/mailbox"
	"github.com/nhle/mailsync/internal/model"
	"github.com/nhle/mailsync/internal/store"
)

// app carries the shared dependencies built once per invocation and
// injected into every command.
type app struct {
	configPath string
	logLevel   string

	cfg   *model.AppConfig
	log   *logrus.Logger
	creds *credential.Store
	svc   *mailbox.Service
}

// NewRootCmd builds the mailsync command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "mailsync",
		Short:         "Verify IMAP credentials and sync recent message ids",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}

	root.PersistentFlags().StringVar(
		&a.configPath, "config", model.DefaultConfigPath(), "path to the config file",
	)
	root.PersistentFlags().StringVar(
		&a.logLevel, "log-level", "", "override the log level (trace, debug, info, warn, error)",
	)

	root.AddCommand(
		newSetupCmd(a),
		newTestCmd(a),
		newSyncCmd(a),
		newWatchCmd(a),
		newHistoryCmd(a),
	)

	return root
}

// init loads configuration, sets up logging, and builds the service.
func (a *app) init() error {
	cfg, err := model.LoadConfig(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	a.log = logrus.New()
	level := cfg.Log.Level
	if a.logLevel != "" {
		level = a.logLevel
	}
	lv, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	a.log.SetLevel(lv)

	creds, err := credential.Open()
	if err != nil {
		return err
	}
	a.creds = creds

	a.svc = mailbox.NewService(creds, cfg, a.log)
	return nil
}

// openStore opens the bookkeeping database for commands that need it,
// creating its directory when missing. The caller closes it.
func (a *app) openStore() (store.Store, error) {
	if dir := filepath.Dir(a.cfg.Storage.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(a.cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening sync database: %w", err)
	}
	return st, nil
}
