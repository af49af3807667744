package imap

import (
	"context"
	"fmt"
	"strings"
)

// quoteString renders s as an IMAP quoted string, escaping backslashes
// and double quotes.
func quoteString(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '\\' || ch == '"' {
			b.WriteByte('\\')
		}
		b.WriteByte(ch)
	}
	b.WriteByte('"')
	return b.String()
}

// Login authenticates with a username and password. The credentials
// are quoted on the wire and redacted from the protocol trace.
func (c *Conn) Login(ctx context.Context, username, password string) error {
	cmd := fmt.Sprintf("LOGIN %s %s", quoteString(username), quoteString(password))
	if _, err := c.execute(ctx, cmd, 0, "LOGIN <credentials redacted>"); err != nil {
		return fmt.Errorf("login: %w", err)
	}
	return nil
}

// Capability asks the server for its capability list and returns the
// flat token list from every untagged CAPABILITY line. Diagnostic
// only; nothing in this client gates behavior on it.
func (c *Conn) Capability(ctx context.Context) ([]string, error) {
	res, err := c.execute(ctx, "CAPABILITY", 0, "")
	if err != nil {
		return nil, fmt.Errorf("capability: %w", err)
	}

	var caps []string
	for _, line := range res.lines {
		if !strings.HasPrefix(strings.ToUpper(line), "* CAPABILITY") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 2 {
			caps = append(caps, fields[2:]...)
		}
	}
	return caps, nil
}

// Select establishes the mailbox context for subsequent searches. Only
// the completion status matters here; EXISTS/RECENT counts are not
// parsed.
func (c *Conn) Select(ctx context.Context, mailbox string) error {
	if _, err := c.execute(ctx, "SELECT "+quoteString(mailbox), 0, ""); err != nil {
		return fmt.Errorf("select %s: %w", mailbox, err)
	}
	return nil
}

// UIDSearch runs UID SEARCH with the given criteria and returns the
// UIDs from every untagged SEARCH line, preserving server order. UIDs
// are kept as opaque strings; servers are not required to return them
// numerically sorted.
func (c *Conn) UIDSearch(ctx context.Context, criteria string) ([]string, error) {
	res, err := c.execute(ctx, "UID SEARCH "+criteria, 0, "")
	if err != nil {
		return nil, fmt.Errorf("uid search %s: %w", criteria, err)
	}

	var uids []string
	for _, line := range res.lines {
		if !strings.HasPrefix(strings.ToUpper(line), "* SEARCH") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) > 2 {
			uids = append(uids, fields[2:]...)
		}
	}
	return uids, nil
}

// Noop is a liveness probe with no side effects.
func (c *Conn) Noop(ctx context.Context) error {
	if _, err := c.execute(ctx, "NOOP", 0, ""); err != nil {
		return fmt.Errorf("noop: %w", err)
	}
	return nil
}

// Logout tells the server we are done. It runs under a short timeout
// because many servers close the socket immediately after (or instead
// of) responding; callers treat Logout failures as non-fatal.
func (c *Conn) Logout(ctx context.Context) error {
	if _, err := c.execute(ctx, "LOGOUT", logoutTimeout, ""); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}
