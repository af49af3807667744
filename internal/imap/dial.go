package imap

import (
	"context"
	"crypto/tls"
	"net"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
)

// DialOptions bundle everything needed to open a connection.
type DialOptions struct {
	Host string
	Port int

	// TLS wraps the connection in implicit TLS.
	TLS bool

	// TLSSkipVerify disables certificate validation, for self-signed
	// or test servers.
	TLSSkipVerify bool

	// ConnectTimeout bounds dialing plus the greeting wait. Zero means
	// DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// CommandTimeout bounds each command. Zero means
	// DefaultCommandTimeout.
	CommandTimeout time.Duration

	// Logger receives the protocol trace. Nil falls back to the
	// standard logger.
	Logger *logrus.Logger
}

// DialFunc opens the raw transport for a connection. The engine
// depends only on net.Conn, so tests and the facade can substitute an
// in-memory pipe for the TCP/TLS dialer.
type DialFunc func(ctx context.Context, opts DialOptions) (net.Conn, error)

// NetDial is the production DialFunc: TCP, optionally wrapped in TLS.
func NetDial(ctx context.Context, opts DialOptions) (net.Conn, error) {
	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	d := &net.Dialer{Timeout: timeout}
	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))

	if opts.TLS {
		td := &tls.Dialer{
			NetDialer: d,
			Config: &tls.Config{
				ServerName:         opts.Host,
				InsecureSkipVerify: opts.TLSSkipVerify,
			},
		}
		conn, err := td.DialContext(ctx, "tcp", addr)
		if err != nil {
			return nil, &TransportError{Op: "dial tls", Err: err}
		}
		return conn, nil
	}

	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}
	return conn, nil
}

// Dial opens a connection with dial (NetDial when nil) and waits for
// the server greeting. The returned Conn is Ready; the caller must
// Close it.
func Dial(ctx context.Context, opts DialOptions, dial DialFunc) (*Conn, error) {
	if dial == nil {
		dial = NetDial
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	nc, err := dial(ctx, opts)
	if err != nil {
		return nil, err
	}

	entry := logger.WithField("host", opts.Host)
	c := NewConn(nc, opts.CommandTimeout, entry)
	if err := c.WaitGreeting(opts.ConnectTimeout); err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}
