package mailbox

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/imap"
	"github.com/nhle/mailsync/internal/model"
)

// fakeCreds is an in-memory CredentialSource.
type fakeCreds struct {
	account *model.AccountConfig
	err     error
}

func (f *fakeCreds) LoadAccount() (*model.AccountConfig, error) {
	return f.account, f.err
}

func testAccount() *model.AccountConfig {
	return &model.AccountConfig{
		Email:       "user@example.com",
		AppPassword: "secret",
		Host:        "imap.example.com",
		Port:        993,
		TLS:         true,
	}
}

func testConfig() *model.AppConfig {
	return &model.AppConfig{
		IMAP: model.IMAPConfig{
			Mailbox:           "INBOX",
			ConnectTimeoutSec: 2,
			CommandTimeoutSec: 2,
		},
	}
}

// countingConn counts how often the underlying transport is closed.
type countingConn struct {
	net.Conn
	closes *int32
}

func (c *countingConn) Close() error {
	atomic.AddInt32(c.closes, 1)
	return c.Conn.Close()
}

// fakeServer scripts the server half of an in-memory connection. Its
// helpers run on a non-test goroutine, so they report failures with
// t.Errorf and bail out instead of aborting.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	br   *bufio.Reader
}

func (s *fakeServer) expect(prefix string) string {
	line, err := s.br.ReadString('\n')
	if err != nil {
		s.t.Errorf("reading client command (want prefix %q): %v", prefix, err)
		return ""
	}
	line = strings.TrimRight(line, "\r\n")
	if !strings.HasPrefix(line, prefix) {
		s.t.Errorf("expected client line with prefix %q, got %q", prefix, line)
	}
	return line
}

func (s *fakeServer) send(lines ...string) {
	for _, line := range lines {
		if _, err := s.conn.Write([]byte(line + "\r\n")); err != nil {
			return
		}
	}
}

// newTestService wires a Service whose dialer hands the server half of
// a net.Pipe to script and counts transport closes.
func newTestService(t *testing.T, creds CredentialSource, script func(s *fakeServer), closes *int32) *Service {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := NewService(creds, testConfig(), logger)
	svc.dial = func(ctx context.Context, opts imap.DialOptions) (net.Conn, error) {
		client, server := net.Pipe()
		go script(&fakeServer{t: t, conn: server, br: bufio.NewReader(server)})
		return &countingConn{Conn: client, closes: closes}, nil
	}
	return svc
}

func TestConnectionSuccessScenario(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK IMAP4rev1 ready")
		s.expect(`A001 LOGIN "user@example.com" "secret"`)
		s.send("A001 OK LOGIN completed")
		s.expect("A002 CAPABILITY")
		s.send("* CAPABILITY IMAP4rev1 UIDPLUS", "A002 OK")
		s.expect("A003 NOOP")
		s.send("A003 OK NOOP completed")
		s.expect("A004 LOGOUT")
		s.send("A004 OK LOGOUT completed")
	}, &closes)

	res := svc.TestConnection(context.Background(), nil)

	require.True(t, res.Success, "unexpected failure: %s", res.Error)
	assert.Equal(t, "* OK IMAP4rev1 ready", res.Greeting)
	assert.Equal(t, []string{"IMAP4rev1", "UIDPLUS"}, res.Capabilities)
	assert.Empty(t, res.Warnings)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes), "transport must close exactly once")
}

func TestConnectionInvalidCredentials(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK IMAP4rev1 ready")
		s.expect("A001 LOGIN")
		s.send("A001 NO Invalid credentials")
	}, &closes)

	res := svc.TestConnection(context.Background(), nil)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "Invalid credentials")
	assert.Contains(t, res.Error, "app password")
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestConnectionExplicitConfigOverridesPersisted(t *testing.T) {
	var closes int32
	override := testAccount()
	override.Email = "other@example.com"
	override.AppPassword = "pw2"

	svc := newTestService(t, &fakeCreds{err: errors.New("keyring empty")}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect(`A001 LOGIN "other@example.com" "pw2"`)
		s.send("A001 OK")
		s.expect("A002 CAPABILITY")
		s.send("A002 OK")
		s.expect("A003 NOOP")
		s.send("A003 OK")
		s.expect("A004 LOGOUT")
		s.send("A004 OK")
	}, &closes)

	res := svc.TestConnection(context.Background(), override)
	assert.True(t, res.Success, "unexpected failure: %s", res.Error)
}

func TestConnectionMissingAccount(t *testing.T) {
	svc := NewService(&fakeCreds{err: errors.New("no email account configured")}, testConfig(), nil)
	svc.dial = func(ctx context.Context, opts imap.DialOptions) (net.Conn, error) {
		t.Fatal("dial must not be called without an account")
		return nil, nil
	}

	res := svc.TestConnection(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no email account configured")
}

func TestConnectionInvalidAccountConfig(t *testing.T) {
	account := testAccount()
	account.Host = ""

	svc := NewService(&fakeCreds{}, testConfig(), nil)
	res := svc.TestConnection(context.Background(), account)

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "host")
}

func TestConnectionDialFailure(t *testing.T) {
	svc := NewService(&fakeCreds{account: testAccount()}, testConfig(), nil)
	svc.dial = func(ctx context.Context, opts imap.DialOptions) (net.Conn, error) {
		return nil, &imap.TransportError{Op: "dial", Err: errors.New("connection refused")}
	}

	res := svc.TestConnection(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "connection refused")
}

func TestConnectionCapabilityFailureIsWarning(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect("A001 LOGIN")
		s.send("A001 OK")
		s.expect("A002 CAPABILITY")
		s.send("A002 NO not today")
		s.expect("A003 NOOP")
		s.send("A003 OK")
		s.expect("A004 LOGOUT")
		s.send("A004 OK")
	}, &closes)

	res := svc.TestConnection(context.Background(), nil)
	require.True(t, res.Success, "unexpected failure: %s", res.Error)
	assert.Empty(t, res.Capabilities)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "capability")
}

func TestSyncMailboxRecent(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect("A001 LOGIN")
		s.send("A001 OK")
		s.expect(`A002 SELECT "INBOX"`)
		s.send("* 5 EXISTS", "* 2 RECENT", "A002 OK [READ-WRITE] SELECT completed")
		s.expect("A003 UID SEARCH RECENT")
		s.send("* SEARCH 101 102", "A003 OK")
		s.expect("A004 CAPABILITY")
		s.send("* CAPABILITY IMAP4rev1", "A004 OK")
		s.expect("A005 LOGOUT")
		s.send("A005 OK")
	}, &closes)

	res := svc.SyncMailbox(context.Background(), SyncOptions{})

	require.True(t, res.Success, "unexpected failure: %s", res.Error)
	assert.Equal(t, "INBOX", res.Mailbox)
	assert.Equal(t, []string{"101", "102"}, res.MessageUIDs)
	assert.Equal(t, []string{"IMAP4rev1"}, res.Capabilities)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestSyncMailboxFallbackToAllWithLimit(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect("A001 LOGIN")
		s.send("A001 OK")
		s.expect("A002 SELECT")
		s.send("A002 OK")
		s.expect("A003 UID SEARCH RECENT")
		s.send("* SEARCH", "A003 OK")
		s.expect("A004 UID SEARCH ALL")
		s.send("* SEARCH 4 8 15 16 23 42", "A004 OK")
		s.expect("A005 CAPABILITY")
		s.send("A005 OK")
		s.expect("A006 LOGOUT")
		s.send("A006 OK")
	}, &closes)

	res := svc.SyncMailbox(context.Background(), SyncOptions{Limit: 2})

	require.True(t, res.Success, "unexpected failure: %s", res.Error)
	// Truncation keeps the tail: the most recently returned UIDs.
	assert.Equal(t, []string{"23", "42"}, res.MessageUIDs)
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestSyncMailboxUnsupportedPlatform(t *testing.T) {
	svc := NewService(&fakeCreds{account: testAccount()}, testConfig(), nil)
	svc.probe = func() imap.SupportStatus {
		return imap.SupportStatus{Supported: false, Reason: "raw TCP sockets are not available here"}
	}
	svc.dial = func(ctx context.Context, opts imap.DialOptions) (net.Conn, error) {
		t.Fatal("dial must not be called on an unsupported platform")
		return nil, nil
	}

	res := svc.SyncMailbox(context.Background(), SyncOptions{})
	assert.False(t, res.Success)
	assert.Equal(t, "raw TCP sockets are not available here", res.Error)
}

func TestSyncMailboxSelectFailure(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect("A001 LOGIN")
		s.send("A001 OK")
		s.expect("A002 SELECT")
		s.send("A002 NO no such mailbox")
	}, &closes)

	res := svc.SyncMailbox(context.Background(), SyncOptions{Mailbox: "Missing"})

	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no such mailbox")
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes))
}

func TestSyncMailboxServerDropsAfterLogout(t *testing.T) {
	var closes int32
	svc := newTestService(t, &fakeCreds{account: testAccount()}, func(s *fakeServer) {
		s.send("* OK ready")
		s.expect("A001 LOGIN")
		s.send("A001 OK")
		s.expect("A002 SELECT")
		s.send("A002 OK")
		s.expect("A003 UID SEARCH RECENT")
		s.send("* SEARCH 7", "A003 OK")
		s.expect("A004 CAPABILITY")
		s.send("A004 OK")
		s.expect("A005 LOGOUT")
		// Drop the connection instead of answering, as many servers do.
		_ = s.conn.Close()
	}, &closes)

	res := svc.SyncMailbox(context.Background(), SyncOptions{})

	require.True(t, res.Success, "logout failure must not fail the sync: %s", res.Error)
	assert.Equal(t, []string{"7"}, res.MessageUIDs)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "logout")
	assert.Equal(t, int32(1), atomic.LoadInt32(&closes), "transport must close exactly once")
}

func TestIsSyncSupportedNative(t *testing.T) {
	svc := NewService(&fakeCreds{}, testConfig(), nil)
	st := svc.IsSyncSupported()
	assert.True(t, st.Supported)
	assert.Empty(t, st.Reason)
}
