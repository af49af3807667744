package imap

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultConnectTimeout bounds dialing plus the greeting wait.
	DefaultConnectTimeout = 15 * time.Second

	// DefaultCommandTimeout bounds a single command round trip.
	DefaultCommandTimeout = 15 * time.Second

	// logoutTimeout is deliberately short: many servers drop the
	// socket right after answering LOGOUT, sometimes before.
	logoutTimeout = 5 * time.Second
)

// State describes the lifecycle of a connection. Dialing happens
// before a Conn exists, so a fresh Conn is already awaiting the
// server greeting.
type State int

const (
	StateAwaitingGreeting State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateAwaitingGreeting:
		return "awaiting-greeting"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// response carries the outcome of a tagged command from the read loop
// to the waiting caller.
type response struct {
	lines []string
	line  string
	err   error
}

// pendingCommand is one outstanding tagged command. Commands are
// appended to a FIFO queue when sent and removed when their completion
// line arrives, their timer fires, or the connection closes.
type pendingCommand struct {
	tag   string
	text  string
	lines []string
	done  chan response
	timer *time.Timer
}

// Conn is a single IMAP connection. It owns the underlying transport,
// frames the byte stream into lines, generates tags, and correlates
// tagged completion lines back to outstanding commands.
//
// IMAP answers commands strictly in issue order on one connection, so
// a completion line always belongs to the earliest outstanding tag;
// any other line is untagged data for that command.
type Conn struct {
	conn       net.Conn
	log        *logrus.Entry
	cmdTimeout time.Duration

	mu       sync.Mutex
	state    State
	tagSeq   int
	pending  []*pendingCommand
	greeting string
	closeErr error

	greeted   chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
}

// NewConn wraps an established transport connection and starts the
// read loop. The connection is not usable for commands until the
// server greeting arrives; use WaitGreeting. cmdTimeout bounds each
// command and defaults to DefaultCommandTimeout when zero.
func NewConn(conn net.Conn, cmdTimeout time.Duration, log *logrus.Entry) *Conn {
	if cmdTimeout <= 0 {
		cmdTimeout = DefaultCommandTimeout
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	c := &Conn{
		conn:       conn,
		log:        log,
		cmdTimeout: cmdTimeout,
		state:      StateAwaitingGreeting,
		greeted:    make(chan struct{}),
		closed:     make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// State returns the current connection state.
func (c *Conn) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Greeting returns the literal greeting line, once received.
func (c *Conn) Greeting() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.greeting
}

// WaitGreeting blocks until the server greeting arrives, the
// connection fails, or the timeout elapses. On timeout the socket is
// torn down before returning.
func (c *Conn) WaitGreeting(timeout time.Duration) error {
	if timeout <= 0 {
		timeout = DefaultConnectTimeout
	}
	t := time.NewTimer(timeout)
	defer t.Stop()

	select {
	case <-c.greeted:
		return nil
	case <-c.closed:
		c.mu.Lock()
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = ErrConnectionClosed
		}
		return err
	case <-t.C:
		terr := &TimeoutError{Op: "greeting", After: timeout}
		c.closeWith(terr)
		return terr
	}
}

// Close shuts the connection down. Any outstanding commands fail with
// ErrConnectionClosed. Close is idempotent.
func (c *Conn) Close() error {
	c.closeWith(nil)
	return nil
}

// closeWith performs the one-time teardown: mark the state, close the
// socket, and fail every outstanding command.
func (c *Conn) closeWith(cause error) {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = StateClosed
		c.closeErr = cause
		pending := c.pending
		c.pending = nil
		c.mu.Unlock()

		_ = c.conn.Close()

		for _, pc := range pending {
			if pc.timer != nil {
				pc.timer.Stop()
			}
			pc.done <- response{err: ErrConnectionClosed}
		}
		close(c.closed)
	})
}

// readLoop feeds raw transport chunks through the line framer and
// dispatches each complete line. It exits when the transport errors
// out or is closed.
func (c *Conn) readLoop() {
	var frame lineBuffer
	buf := make([]byte, 4096)
	for {
		n, err := c.conn.Read(buf)
		if n > 0 {
			for _, line := range frame.Feed(buf[:n]) {
				c.handleLine(line)
			}
		}
		if err != nil {
			c.closeWith(&TransportError{Op: "read", Err: err})
			return
		}
	}
}

// handleLine processes one complete protocol line.
func (c *Conn) handleLine(line string) {
	c.log.WithField("dir", "S").Trace(line)

	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateAwaitingGreeting:
		c.handleGreeting(line)
	case StateReady:
		c.handleResponse(line)
	default:
		// Lines racing a close are dropped.
	}
}

// handleGreeting classifies the server's first line. OK and PREAUTH
// make the connection Ready; BYE (or anything else) fails it.
func (c *Conn) handleGreeting(line string) {
	upper := strings.ToUpper(line)
	switch {
	case strings.HasPrefix(upper, "* OK"), strings.HasPrefix(upper, "* PREAUTH"):
		c.mu.Lock()
		if c.state != StateAwaitingGreeting {
			// A close raced the greeting; the connection stays dead.
			c.mu.Unlock()
			return
		}
		c.state = StateReady
		c.greeting = line
		c.mu.Unlock()
		close(c.greeted)
	case strings.HasPrefix(upper, "* BYE"):
		c.closeWith(&TransportError{
			Op:  "greeting",
			Err: fmt.Errorf("server rejected connection: %s", line),
		})
	default:
		c.closeWith(&TransportError{
			Op:  "greeting",
			Err: fmt.Errorf("unexpected greeting: %s", line),
		})
	}
}

// handleResponse correlates a post-greeting line. A line starting with
// the earliest outstanding tag completes that command; everything else
// is untagged or continuation data accumulated for it.
func (c *Conn) handleResponse(line string) {
	c.mu.Lock()
	if len(c.pending) == 0 {
		c.mu.Unlock()
		c.log.WithField("line", line).Debug("unsolicited server line")
		return
	}

	front := c.pending[0]
	if line != front.tag && !strings.HasPrefix(line, front.tag+" ") {
		front.lines = append(front.lines, line)
		c.mu.Unlock()
		return
	}

	c.pending = c.pending[1:]
	if front.timer != nil {
		front.timer.Stop()
	}
	lines := front.lines
	c.mu.Unlock()

	resp := response{lines: lines, line: line}
	if status := completionStatus(line, front.tag); status != "OK" {
		resp.err = &ProtocolError{Status: status, Line: line}
	}
	front.done <- resp
}

// completionStatus parses the status token following the tag. NO and
// BAD are recognized explicitly; any other token, including absence,
// defaults to OK so that extension result codes do not break commands.
func completionStatus(line, tag string) string {
	rest := strings.TrimSpace(strings.TrimPrefix(line, tag))
	token := rest
	if i := strings.IndexByte(rest, ' '); i >= 0 {
		token = rest[:i]
	}
	switch strings.ToUpper(token) {
	case "NO":
		return "NO"
	case "BAD":
		return "BAD"
	default:
		return "OK"
	}
}

// expire rejects a command whose timer fired. The command is dequeued
// without closing the connection; a slow server can still answer later
// commands.
func (c *Conn) expire(pc *pendingCommand, timeout time.Duration) {
	if !c.remove(pc) {
		return
	}
	word := commandWord(pc.text)
	c.log.WithFields(logrus.Fields{"tag": pc.tag, "command": word}).
		Warn("command timed out")
	pc.done <- response{err: &TimeoutError{Op: word, After: timeout}}
}

// remove drops pc from the outstanding queue, reporting whether it was
// still queued.
func (c *Conn) remove(pc *pendingCommand) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, p := range c.pending {
		if p == pc {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			return true
		}
	}
	return false
}

// outstandingLocked reports whether pc is still queued. Caller holds c.mu.
func (c *Conn) outstandingLocked(pc *pendingCommand) bool {
	for _, p := range c.pending {
		if p == pc {
			return true
		}
	}
	return false
}

// result holds the server lines for one completed command.
type result struct {
	// lines are the untagged lines accumulated for the command.
	lines []string

	// line is the tagged completion line.
	line string
}

// execute sends one tagged command and waits for its completion,
// timeout, or cancellation. logText replaces the command text in the
// protocol trace when the command carries credentials.
func (c *Conn) execute(ctx context.Context, command string, timeout time.Duration, logText string) (result, error) {
	if timeout <= 0 {
		timeout = c.cmdTimeout
	}

	c.mu.Lock()
	if c.state != StateReady {
		err := c.closeErr
		c.mu.Unlock()
		if err == nil {
			err = ErrConnectionClosed
		}
		return result{}, err
	}
	c.tagSeq++
	tag := fmt.Sprintf("A%03d", c.tagSeq)
	pc := &pendingCommand{
		tag:  tag,
		text: command,
		done: make(chan response, 1),
	}
	c.pending = append(c.pending, pc)
	c.mu.Unlock()

	if logText == "" {
		logText = command
	}
	c.log.WithField("dir", "C").Trace(tag + " " + logText)

	if _, err := c.conn.Write([]byte(tag + " " + command + "\r\n")); err != nil {
		c.remove(pc)
		werr := &TransportError{Op: "write", Err: err}
		c.closeWith(werr)
		return result{}, werr
	}

	// The read loop may already have completed the command by the time
	// the write returns, so arm the timer under the lock and only while
	// the command is still outstanding.
	c.mu.Lock()
	if c.outstandingLocked(pc) {
		pc.timer = time.AfterFunc(timeout, func() { c.expire(pc, timeout) })
		defer pc.timer.Stop()
	}
	c.mu.Unlock()

	select {
	case resp := <-pc.done:
		return result{lines: resp.lines, line: resp.line}, resp.err
	case <-ctx.Done():
		c.remove(pc)
		return result{}, fmt.Errorf("%s: %w", commandWord(command), ctx.Err())
	}
}

// commandWord returns the leading keyword of a command for logs and
// error messages, so credentials in arguments never leak. UID-prefixed
// commands keep both words.
func commandWord(command string) string {
	fields := strings.Fields(command)
	switch {
	case len(fields) == 0:
		return command
	case strings.EqualFold(fields[0], "UID") && len(fields) > 1:
		return fields[0] + " " + fields[1]
	default:
		return fields[0]
	}
}
