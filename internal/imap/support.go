package imap

// SupportStatus reports whether raw-socket IMAP sync is available in
// the current runtime.
type SupportStatus struct {
	Supported bool   `json:"supported"`
	Reason    string `json:"reason,omitempty"`
}
