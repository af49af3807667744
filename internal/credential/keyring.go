// Package credential persists the IMAP account configuration in the
// platform secret store, falling back to an encrypted file where no
// native keychain is available.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/99designs/keyring"

	"github.com/nhle/mailsync/internal/model"
)

const (
	serviceName = "mailsync"
	accountKey  = "account"
)

// ErrNotConfigured is returned when no account has been saved yet.
var ErrNotConfigured = errors.New("no email account configured; run setup first")

// Store reads and writes the account configuration in a keyring.
type Store struct {
	ring keyring.Keyring
}

// Open returns a Store over the system keyring.
func Open() (*Store, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  "~/.config/mailsync/credentials",
		FilePasswordFunc:         keyring.FixedStringPrompt("mailsync-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return &Store{ring: ring}, nil
}

// NewStore wraps an existing keyring, mainly for tests.
func NewStore(ring keyring.Keyring) *Store {
	return &Store{ring: ring}
}

// SaveAccount stores the account configuration as JSON. Callers should
// only persist accounts that passed a connection test.
func (s *Store) SaveAccount(cfg *model.AccountConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding account: %w", err)
	}

	err = s.ring.Set(keyring.Item{
		Key:  accountKey,
		Data: data,
	})
	if err != nil {
		return fmt.Errorf("storing account: %w", err)
	}
	return nil
}

// LoadAccount retrieves the persisted account configuration. Returns
// ErrNotConfigured when none has been saved.
func (s *Store) LoadAccount() (*model.AccountConfig, error) {
	item, err := s.ring.Get(accountKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("reading account: %w", err)
	}

	var cfg model.AccountConfig
	if err := json.Unmarshal(item.Data, &cfg); err != nil {
		return nil, fmt.Errorf("decoding account: %w", err)
	}
	return &cfg, nil
}

// DeleteAccount removes the persisted account configuration.
func (s *Store) DeleteAccount() error {
	err := s.ring.Remove(accountKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("deleting account: %w", err)
	}
	return nil
}
