package credential

import (
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhle/mailsync/internal/model"
)

func newTestStore() *Store {
	return NewStore(keyring.NewArrayKeyring(nil))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := newTestStore()

	account := &model.AccountConfig{
		Email:       "user@example.com",
		AppPassword: "secret",
		Host:        "imap.example.com",
		Port:        993,
		TLS:         true,
		Provider:    "fastmail",
		CreatedAt:   time.Date(2026, 8, 30, 9, 0, 0, 0, time.UTC),
	}
	require.NoError(t, s.SaveAccount(account))

	got, err := s.LoadAccount()
	require.NoError(t, err)
	assert.Equal(t, account, got)
}

func TestLoadMissingAccount(t *testing.T) {
	s := newTestStore()
	_, err := s.LoadAccount()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestSaveRejectsInvalidAccount(t *testing.T) {
	s := newTestStore()
	err := s.SaveAccount(&model.AccountConfig{Email: "user@example.com"})
	require.Error(t, err)

	_, err = s.LoadAccount()
	assert.ErrorIs(t, err, ErrNotConfigured, "invalid account must not be persisted")
}

func TestDeleteAccount(t *testing.T) {
	s := newTestStore()

	account := &model.AccountConfig{
		Email:       "user@example.com",
		AppPassword: "secret",
		Host:        "imap.example.com",
		Port:        143,
	}
	require.NoError(t, s.SaveAccount(account))
	require.NoError(t, s.DeleteAccount())

	_, err := s.LoadAccount()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDeleteMissingAccountIsNoop(t *testing.T) {
	s := newTestStore()
	assert.NoError(t, s.DeleteAccount())
}
