package imap

import (
	"errors"
	"fmt"
	"time"
)

// ErrConnectionClosed is returned for commands outstanding (or issued)
// on a connection that has been closed.
var ErrConnectionClosed = errors.New("connection closed")

// ProtocolError indicates that the server completed a command with a
// NO or BAD status. NO means the server declined the command (for
// example, bad credentials); BAD means the command was malformed.
type ProtocolError struct {
	// Status is "NO" or "BAD".
	Status string

	// Line is the literal tagged completion line from the server.
	Line string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("server responded %s: %s", e.Status, e.Line)
}

// IsProtocolError reports whether err (or any error in its chain) is a
// ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}

// TransportError indicates a network-level failure: DNS, refused or
// reset connections, a failed TLS handshake, or an unexpected close.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("imap %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// TimeoutError indicates the greeting or a command exceeded its
// deadline. It is kept distinct from TransportError so callers can
// tell a slow server apart from a broken connection.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s", e.Op, e.After)
}

// IsTimeout reports whether err (or any error in its chain) is a
// TimeoutError.
func IsTimeout(err error) bool {
	var te *TimeoutError
	return errors.As(err, &te)
}
