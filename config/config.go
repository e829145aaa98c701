// Package config loads walletsession settings from a TOML file and the
// environment. Env var overrides use the prefix WALLETSESSION_, with dots in
// keys replaced by underscores (WALLETSESSION_STORE_DRIVER=toml).
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/0xWizop/incubator-sub002"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WALLETSESSION"

// Config holds application configuration.
type Config struct {
	Session SessionConfig `mapstructure:"session"`
	Store   StoreConfig   `mapstructure:"store"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	MCP     MCPConfig     `mapstructure:"mcp"`
	Log     LogConfig     `mapstructure:"log"`
	Signers SignersConfig `mapstructure:"signers"`
}

// SessionConfig holds lock gate settings.
type SessionConfig struct {
	UnlockTimeout       time.Duration `mapstructure:"unlock_timeout"`
	SelectionTimeout    time.Duration `mapstructure:"selection_timeout"`
	RechallengeOnSwitch bool          `mapstructure:"rechallenge_on_switch"`
}

// StoreConfig selects the registry persistence backend.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	Path   string `mapstructure:"path"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr   string `mapstructure:"addr"`
	Router string `mapstructure:"router"`
}

// MCPConfig toggles the MCP tool server.
type MCPConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SignersConfig holds local signer key sources. Secrets are better supplied
// through the environment than written to the config file.
type SignersConfig struct {
	EVM EVMSignerConfig `mapstructure:"evm"`
	SVM SVMSignerConfig `mapstructure:"svm"`
	CDP CDPSignerConfig `mapstructure:"cdp"`
}

// EVMSignerConfig configures the local EVM signer. At most one key source
// should be set.
type EVMSignerConfig struct {
	PrivateKey       string   `mapstructure:"private_key"`
	Keystore         string   `mapstructure:"keystore"`
	KeystorePassword string   `mapstructure:"keystore_password"`
	Mnemonic         string   `mapstructure:"mnemonic"`
	AccountIndex     uint32   `mapstructure:"account_index"`
	Chains           []string `mapstructure:"chains"`
}

// Enabled reports whether a key source is configured.
func (c EVMSignerConfig) Enabled() bool {
	return c.PrivateKey != "" || c.Keystore != "" || c.Mnemonic != ""
}

// SVMSignerConfig configures the local Solana signer.
type SVMSignerConfig struct {
	PrivateKey string `mapstructure:"private_key"`
	KeygenFile string `mapstructure:"keygen_file"`
}

// Enabled reports whether a key source is configured.
func (c SVMSignerConfig) Enabled() bool {
	return c.PrivateKey != "" || c.KeygenFile != ""
}

// CDPSignerConfig configures hosted Coinbase Developer Platform accounts.
// Accounts are looked up by name and created when missing.
type CDPSignerConfig struct {
	APIKeyName   string `mapstructure:"api_key_name"`
	APIKeySecret string `mapstructure:"api_key_secret"`
	WalletSecret string `mapstructure:"wallet_secret"`
	EVMAccount   string `mapstructure:"evm_account"`
	SVMAccount   string `mapstructure:"svm_account"`
	BaseURL      string `mapstructure:"base_url"`
}

// Enabled reports whether credentials and at least one account are configured.
func (c CDPSignerConfig) Enabled() bool {
	return c.APIKeyName != "" && (c.EVMAccount != "" || c.SVMAccount != "")
}

// DefaultPath returns the config file used when neither an explicit path nor
// WALLETSESSION_CONFIG is set.
func DefaultPath() string {
	return filepath.Join(homeDir(), ".config", "walletsession", "config.toml")
}

// Load reads configuration from file and env. path overrides the file
// location; when empty, WALLETSESSION_CONFIG and then DefaultPath are used.
// A missing file is not an error.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.SetConfigName("config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("session.unlock_timeout", walletsession.DefaultUnlockTimeout)
	v.SetDefault("session.selection_timeout", walletsession.DefaultSelectionTimeout)
	v.SetDefault("session.rechallenge_on_switch", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", filepath.Join(homeDir(), ".local", "share", "walletsession", "wallets.db"))
	v.SetDefault("http.addr", "127.0.0.1:8547")
	v.SetDefault("http.router", "chi")
	v.SetDefault("mcp.enabled", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("signers.evm.private_key", "")
	v.SetDefault("signers.evm.keystore", "")
	v.SetDefault("signers.evm.keystore_password", "")
	v.SetDefault("signers.evm.mnemonic", "")
	v.SetDefault("signers.evm.account_index", 0)
	v.SetDefault("signers.evm.chains", []string{})
	v.SetDefault("signers.svm.private_key", "")
	v.SetDefault("signers.svm.keygen_file", "")
	v.SetDefault("signers.cdp.api_key_name", "")
	v.SetDefault("signers.cdp.api_key_secret", "")
	v.SetDefault("signers.cdp.wallet_secret", "")
	v.SetDefault("signers.cdp.evm_account", "")
	v.SetDefault("signers.cdp.svm_account", "")
	v.SetDefault("signers.cdp.base_url", "")
}

// Validate checks enumerated and bounded settings.
func (c Config) Validate() error {
	if c.Session.UnlockTimeout < 0 {
		return fmt.Errorf("session.unlock_timeout cannot be negative: %s", c.Session.UnlockTimeout)
	}
	if c.Session.SelectionTimeout < 0 {
		return fmt.Errorf("session.selection_timeout cannot be negative: %s", c.Session.SelectionTimeout)
	}
	switch c.Store.Driver {
	case "sqlite", "toml", "memory":
	default:
		return fmt.Errorf("store.driver must be sqlite, toml or memory, got %q", c.Store.Driver)
	}
	if c.Store.Driver != "memory" && c.Store.Path == "" {
		return fmt.Errorf("store.path is required for driver %s", c.Store.Driver)
	}
	switch c.HTTP.Router {
	case "chi", "gin":
	default:
		return fmt.Errorf("http.router must be chi or gin, got %q", c.HTTP.Router)
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	for _, chain := range c.Signers.EVM.Chains {
		if _, err := walletsession.ParseChain(chain); err != nil {
			return fmt.Errorf("signers.evm.chains: %w", err)
		}
	}
	if c.Signers.CDP.Enabled() && c.Signers.CDP.APIKeySecret == "" {
		return fmt.Errorf("signers.cdp.api_key_secret is required with signers.cdp.api_key_name")
	}
	return nil
}

// SessionOptions returns the session options derived from the configuration.
func (c Config) SessionOptions() []walletsession.Option {
	return []walletsession.Option{
		walletsession.WithUnlockTimeout(c.Session.UnlockTimeout),
		walletsession.WithSelectionTimeout(c.Session.SelectionTimeout),
		walletsession.WithRechallengeOnSwitch(c.Session.RechallengeOnSwitch),
	}
}

// NewLogger builds the structured logger described by c, writing to w.
func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

func homeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	return os.Getenv("HOME")
}
