//go:build js || wasip1

package imap

import (
	"fmt"
	"runtime"
)

// Probe reports whether raw TCP sockets are available. Browser and
// WASI runtimes have no raw socket access, so sync is unsupported
// there with an explicit reason. It never opens a socket.
func Probe() SupportStatus {
	return SupportStatus{
		Supported: false,
		Reason: fmt.Sprintf(
			"raw TCP sockets are not available on %s/%s; mailbox sync requires a native build",
			runtime.GOOS, runtime.GOARCH,
		),
	}
}
