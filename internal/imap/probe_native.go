//go:build !js && !wasip1

package imap

// Probe reports whether raw TCP sockets are available. It never opens
// a socket and is cheap to call repeatedly. On native platforms the
// net package always provides real sockets.
func Probe() SupportStatus {
	return SupportStatus{Supported: true}
}
