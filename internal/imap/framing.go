package imap

import "bytes"

var crlf = []byte("\r\n")

// lineBuffer splits an incoming byte stream into CRLF-terminated
// lines. The transport may deliver data at arbitrary chunk boundaries,
// including splits in the middle of a CRLF pair, so the buffer keeps
// any partial trailing fragment until the next chunk completes it.
type lineBuffer struct {
	buf []byte
}

// Feed appends chunk to the buffer and returns every complete line it
// now holds, in order, without the trailing CRLF.
func (b *lineBuffer) Feed(chunk []byte) []string {
	b.buf = append(b.buf, chunk...)

	var lines []string
	for {
		i := bytes.Index(b.buf, crlf)
		if i < 0 {
			break
		}
		lines = append(lines, string(b.buf[:i]))
		b.buf = b.buf[i+2:]
	}

	if len(b.buf) == 0 {
		b.buf = nil
	}
	return lines
}

// Pending returns the partial line held back for the next chunk.
func (b *lineBuffer) Pending() string {
	return string(b.buf)
}
