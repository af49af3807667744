package model

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// IMAPConfig holds tunables for the IMAP protocol engine.
type IMAPConfig struct {
	// Mailbox is the mailbox selected during sync.
	Mailbox string `mapstructure:"mailbox" yaml:"mailbox"`

	// SyncLimit caps how many of the most recent UIDs a sync keeps.
	// Zero means no limit.
	SyncLimit int `mapstructure:"sync_limit" yaml:"sync_limit"`

	// ConnectTimeoutSec bounds dialing plus the greeting wait.
	ConnectTimeoutSec int `mapstructure:"connect_timeout_sec" yaml:"connect_timeout_sec"`

	// CommandTimeoutSec bounds each individual command.
	CommandTimeoutSec int `mapstructure:"command_timeout_sec" yaml:"command_timeout_sec"`

	// TLSSkipVerify disables TLS certificate validation, for
	// self-signed or test servers. Off by default.
	TLSSkipVerify bool `mapstructure:"tls_skip_verify" yaml:"tls_skip_verify"`
}

// SyncConfig holds settings for the background sync scheduler.
type SyncConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// StorageConfig holds settings for the local bookkeeping database.
type StorageConfig struct {
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// LogConfig holds logging preferences.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	IMAP    IMAPConfig    `mapstructure:"imap" yaml:"imap"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Storage StorageConfig `mapstructure:"storage" yaml:"storage"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/mailsync/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailsync", "config.yaml")
}

// DefaultDBPath returns the default path for the bookkeeping database.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailsync.db")
	}
	return filepath.Join(home, ".local", "share", "mailsync", "mailsync.db")
}

// defaultAppConfig returns a sensible default configuration.
func defaultAppConfig() *AppConfig {
	return &AppConfig{
		IMAP: IMAPConfig{
			Mailbox:           "INBOX",
			SyncLimit:         50,
			ConnectTimeoutSec: 15,
			CommandTimeoutSec: 15,
		},
		Sync: SyncConfig{
			PollIntervalSec: 300,
		},
		Storage: StorageConfig{
			DBPath: DefaultDBPath(),
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("imap.mailbox", "INBOX")
	v.SetDefault("imap.sync_limit", 50)
	v.SetDefault("imap.connect_timeout_sec", 15)
	v.SetDefault("imap.command_timeout_sec", 15)
	v.SetDefault("imap.tls_skip_verify", false)
	v.SetDefault("sync.poll_interval_sec", 300)
	v.SetDefault("storage.db_path", DefaultDBPath())
	v.SetDefault("log.level", "info")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultAppConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultAppConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}
