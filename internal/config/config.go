// Package config loads folio settings from ~/.config/folio/config.yml and FOLIO_* env vars.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"folio/internal/caps"

	"github.com/spf13/viper"
)

const (
	DefaultListen        = "127.0.0.1:3335"
	DefaultLogLevel      = "info"
	DefaultCommitTimeout = 10 * time.Second
	DefaultGlyphs        = "unicode"
)

type Config struct {
	// Dir is the workspace directory holding folio.sqlite.
	Dir string `mapstructure:"dir"`
	// Remote, when set, is the base URL of a `folio serve` instance. Commands then talk
	// HTTP instead of opening Dir.
	Remote string `mapstructure:"remote"`
	Listen string `mapstructure:"listen"`

	LogLevel string `mapstructure:"log-level"`
	LogFile  string `mapstructure:"log-file"`

	CommitTimeout time.Duration `mapstructure:"commit-timeout"`

	// Caps replaces the built-in limits when non-empty.
	Caps []caps.Rule `mapstructure:"caps"`

	TUI TUIConfig `mapstructure:"tui"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-"`
}

type TUIConfig struct {
	Glyphs     string `mapstructure:"glyphs"`
	Collection string `mapstructure:"collection"`
}

// DefaultPath returns ~/.config/folio/config.yml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "folio", "config.yml"), nil
}

// Load reads configPath (or the default path). A missing file is not an error.
func Load(configPath string) (Config, error) {
	var cfg Config

	home, err := os.UserHomeDir()
	if err != nil {
		return cfg, fmt.Errorf("finding home directory: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("FOLIO")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))

	v.SetDefault("dir", filepath.Join(home, ".folio"))
	v.SetDefault("remote", "")
	v.SetDefault("listen", DefaultListen)
	v.SetDefault("log-level", DefaultLogLevel)
	v.SetDefault("log-file", "")
	v.SetDefault("commit-timeout", DefaultCommitTimeout)
	v.SetDefault("tui.glyphs", DefaultGlyphs)
	v.SetDefault("tui.collection", "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigFile(filepath.Join(home, ".config", "folio", "config.yml"))
	}

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFound) && !os.IsNotExist(err) {
			return cfg, err
		}
	} else {
		cfg.File = v.ConfigFileUsed()
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.CommitTimeout < 0 {
		return fmt.Errorf("commit-timeout must not be negative (got %s)", c.CommitTimeout)
	}
	switch strings.ToLower(strings.TrimSpace(c.TUI.Glyphs)) {
	case "", "unicode", "ascii":
	default:
		return fmt.Errorf("tui.glyphs: expected unicode|ascii (got %q)", c.TUI.Glyphs)
	}
	if err := caps.Set(c.Caps).Validate(); err != nil {
		return fmt.Errorf("caps: %w", err)
	}
	return nil
}

// CapSet returns the configured limits, or the built-in ones when none are configured.
func (c Config) CapSet() caps.Set {
	if len(c.Caps) == 0 {
		return caps.Default()
	}
	return append(caps.Set(nil), c.Caps...)
}
