package model

import (
	"fmt"
	"time"
)

// AccountConfig holds the IMAP account settings persisted in the
// platform secret store. The JSON shape is shared with the setup flow
// and must stay stable: {email, appPassword, host, port, tls,
// provider?, createdAt?}.
type AccountConfig struct {
	// Email is the login name, usually the full mailbox address.
	Email string `json:"email"`

	// AppPassword is an application-specific password. It must never
	// appear in logs or error messages.
	AppPassword string `json:"appPassword"`

	// Host is the IMAP server hostname.
	Host string `json:"host"`

	// Port is the IMAP server port (typically 993 for TLS, 143 plain).
	Port int `json:"port"`

	// TLS enables an implicit TLS connection.
	TLS bool `json:"tls"`

	// Provider is an optional label for the mail provider preset
	// (e.g., "gmail", "fastmail").
	Provider string `json:"provider,omitempty"`

	// CreatedAt records when the account was first configured.
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// Validate checks that the account has everything needed for a real
// connection attempt.
func (c *AccountConfig) Validate() error {
	if c == nil {
		return fmt.Errorf("no account configured")
	}
	if c.Host == "" {
		return fmt.Errorf("account is missing an IMAP host")
	}
	if c.Port <= 0 {
		return fmt.Errorf("account has an invalid IMAP port %d", c.Port)
	}
	if c.Email == "" {
		return fmt.Errorf("account is missing an email address")
	}
	if c.AppPassword == "" {
		return fmt.Errorf("account is missing an app password")
	}
	return nil
}

// Addr returns the host:port dial address for the account.
func (c *AccountConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
