// Package mailbox orchestrates single IMAP operations end to end:
// verify credentials and list recent message UIDs. Every operation
// loads the account, opens one connection, runs an ordered command
// sequence, guarantees teardown, and reports the outcome as a result
// value instead of an error.
package mailbox

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nhle/mailsync/internal/imap"
	"github.com/nhle/mailsync/internal/model"
)

// TestResult reports the outcome of a credential test.
type TestResult struct {
	Success      bool     `json:"success"`
	Error        string   `json:"error,omitempty"`
	Greeting     string   `json:"greeting,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`

	// Warnings holds non-fatal failures (CAPABILITY, LOGOUT) from an
	// otherwise successful test.
	Warnings []string `json:"warnings,omitempty"`
}

// SyncResult reports the outcome of a mailbox sync.
type SyncResult struct {
	Success      bool     `json:"success"`
	Mailbox      string   `json:"mailbox,omitempty"`
	MessageUIDs  []string `json:"messageUids,omitempty"`
	Greeting     string   `json:"greeting,omitempty"`
	Capabilities []string `json:"capabilities,omitempty"`
	Error        string   `json:"error,omitempty"`
	Warnings     []string `json:"warnings,omitempty"`
}

// SyncOptions tune a single sync operation. Zero values fall back to
// the app configuration.
type SyncOptions struct {
	// Mailbox to select; defaults to the configured mailbox, then
	// INBOX.
	Mailbox string

	// Limit caps the result to the most recent N UIDs. Zero keeps the
	// configured limit; negative disables truncation.
	Limit int
}

// CredentialSource provides the persisted account configuration. The
// service only ever reads it; the setup flow owns writes.
type CredentialSource interface {
	LoadAccount() (*model.AccountConfig, error)
}

// Service is the public surface of the IMAP engine. Construct one
// instance and inject it wherever operations are needed; connections
// are opened per operation and never reused.
type Service struct {
	creds CredentialSource
	cfg   *model.AppConfig
	log   *logrus.Logger

	// dial and probe are swapped out by tests.
	dial  imap.DialFunc
	probe func() imap.SupportStatus
}

// NewService builds a Service over the given credential source and app
// configuration.
func NewService(creds CredentialSource, cfg *model.AppConfig, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Service{
		creds: creds,
		cfg:   cfg,
		log:   log,
		dial:  imap.NetDial,
		probe: imap.Probe,
	}
}

// IsSyncSupported reports whether the current runtime can open raw TCP
// sockets. It performs no socket I/O and is safe to call repeatedly.
func (s *Service) IsSyncSupported() imap.SupportStatus {
	return s.probe()
}

// TestConnection verifies mailbox credentials: connect, LOGIN,
// best-effort CAPABILITY, NOOP, best-effort LOGOUT. cfg overrides the
// persisted account when non-nil. The connection is closed on every
// path and no failure escapes as an error.
func (s *Service) TestConnection(ctx context.Context, cfg *model.AccountConfig) TestResult {
	account, err := s.resolveAccount(cfg)
	if err != nil {
		return TestResult{Error: err.Error()}
	}

	conn, err := s.open(ctx, account)
	if err != nil {
		return TestResult{Error: fmt.Sprintf("connecting to %s: %v", account.Addr(), err)}
	}
	defer conn.Close()

	res := TestResult{Greeting: conn.Greeting()}

	if err := conn.Login(ctx, account.Email, account.AppPassword); err != nil {
		res.Error = loginFailureMessage(err)
		return res
	}

	caps, err := conn.Capability(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("capability: %v", err))
	} else {
		res.Capabilities = caps
	}

	if err := conn.Noop(ctx); err != nil {
		res.Error = err.Error()
		return res
	}

	if err := conn.Logout(ctx); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("logout: %v", err))
	}

	res.Success = true
	return res
}

// SyncMailbox logs in, selects a mailbox, and lists recent message
// UIDs: UID SEARCH RECENT first, falling back to UID SEARCH ALL when
// RECENT comes back empty, then keeps the tail of the ordered list
// when a limit applies. Requires a persisted account and a runtime
// with raw socket support. Never returns an error to the caller.
func (s *Service) SyncMailbox(ctx context.Context, opts SyncOptions) SyncResult {
	if st := s.probe(); !st.Supported {
		return SyncResult{Error: st.Reason}
	}

	account, err := s.resolveAccount(nil)
	if err != nil {
		return SyncResult{Error: err.Error()}
	}

	name := opts.Mailbox
	if name == "" {
		name = s.cfg.IMAP.Mailbox
	}
	if name == "" {
		name = "INBOX"
	}

	limit := opts.Limit
	if limit == 0 {
		limit = s.cfg.IMAP.SyncLimit
	}

	conn, err := s.open(ctx, account)
	if err != nil {
		return SyncResult{Error: fmt.Sprintf("connecting to %s: %v", account.Addr(), err)}
	}
	defer conn.Close()

	res := SyncResult{Mailbox: name, Greeting: conn.Greeting()}

	if err := conn.Login(ctx, account.Email, account.AppPassword); err != nil {
		res.Error = loginFailureMessage(err)
		return res
	}

	if err := conn.Select(ctx, name); err != nil {
		res.Error = err.Error()
		return res
	}

	uids, err := conn.UIDSearch(ctx, "RECENT")
	if err != nil {
		res.Error = err.Error()
		return res
	}
	if len(uids) == 0 {
		uids, err = conn.UIDSearch(ctx, "ALL")
		if err != nil {
			res.Error = err.Error()
			return res
		}
	}

	// The server returns UIDs oldest-first, so the most recent
	// messages are the tail of the list.
	if limit > 0 && len(uids) > limit {
		uids = uids[len(uids)-limit:]
	}
	res.MessageUIDs = uids

	caps, err := conn.Capability(ctx)
	if err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("capability: %v", err))
	} else {
		res.Capabilities = caps
	}

	if err := conn.Logout(ctx); err != nil {
		res.Warnings = append(res.Warnings, fmt.Sprintf("logout: %v", err))
	}

	s.log.WithFields(logrus.Fields{
		"mailbox": name,
		"uids":    len(res.MessageUIDs),
	}).Debug("mailbox sync complete")

	res.Success = true
	return res
}

// resolveAccount returns the explicit account when given, otherwise
// the persisted one, validated either way.
func (s *Service) resolveAccount(cfg *model.AccountConfig) (*model.AccountConfig, error) {
	account := cfg
	if account == nil {
		loaded, err := s.creds.LoadAccount()
		if err != nil {
			return nil, fmt.Errorf("loading account: %w", err)
		}
		account = loaded
	}
	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// open dials and waits for the greeting using the app-level timeouts.
func (s *Service) open(ctx context.Context, account *model.AccountConfig) (*imap.Conn, error) {
	opts := imap.DialOptions{
		Host:          account.Host,
		Port:          account.Port,
		TLS:           account.TLS,
		TLSSkipVerify: s.cfg.IMAP.TLSSkipVerify,
		Logger:        s.log,
	}
	if s.cfg.IMAP.ConnectTimeoutSec > 0 {
		opts.ConnectTimeout = time.Duration(s.cfg.IMAP.ConnectTimeoutSec) * time.Second
	}
	if s.cfg.IMAP.CommandTimeoutSec > 0 {
		opts.CommandTimeout = time.Duration(s.cfg.IMAP.CommandTimeoutSec) * time.Second
	}
	return imap.Dial(ctx, opts, s.dial)
}

// loginFailureMessage adds a credential hint to LOGIN rejections.
// NO/BAD from LOGIN almost always means the email address or app
// password needs fixing, which the engine itself stays agnostic about.
func loginFailureMessage(err error) string {
	if imap.IsProtocolError(err) {
		return fmt.Sprintf("login failed, check your email address and app password: %v", err)
	}
	return fmt.Sprintf("login failed: %v", err)
}
