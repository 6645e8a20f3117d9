// Package config provides the host configuration, its defaults and its
// loading from YAML files and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreSQLite = "sqlite"
)

// Config holds all configuration options for a host.
type Config struct {
	// SearchPath lists the directories scanned for bundles, in priority order.
	SearchPath []string `mapstructure:"search_path" yaml:"search_path" json:"search_path" validate:"dive,required" jsonschema:"description=Directories scanned for bundles"`

	// FilterLang restricts multilingual literals to Lang.
	FilterLang bool `mapstructure:"filter_lang" yaml:"filter_lang" json:"filter_lang"`

	// Lang is the preferred language of literals, e.g. "en-gb".
	Lang string `mapstructure:"lang" yaml:"lang" json:"lang" jsonschema:"description=Preferred language tag"`

	Store      string `mapstructure:"store" yaml:"store" json:"store" validate:"oneof=memory sqlite" jsonschema:"enum=memory,enum=sqlite"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path,omitempty" json:"sqlite_path,omitempty" validate:"required_if=Store sqlite"`

	// MaxBlockLength is the largest number of frames handed to a
	// WebAssembly unit per run call; it sizes the port buffers in guest memory.
	MaxBlockLength uint32 `mapstructure:"max_block_length" yaml:"max_block_length" json:"max_block_length" validate:"min=1,max=1048576"`

	WatchDebounce time.Duration `mapstructure:"watch_debounce" yaml:"watch_debounce" json:"watch_debounce" validate:"min=0"`

	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level" validate:"oneof=debug info warn error" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// validate is a package-level singleton; building a validator is expensive.
var validate = validator.New()

// DefaultSearchPath returns the conventional bundle directories.
func DefaultSearchPath() []string {
	paths := []string{"/usr/local/lib/lv2", "/usr/lib/lv2"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append([]string{filepath.Join(home, ".lv2")}, paths...)
	}
	return paths
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		SearchPath:     DefaultSearchPath(),
		FilterLang:     true,
		Lang:           NormalizeLang(os.Getenv("LANG")),
		Store:          StoreMemory,
		MaxBlockLength: 4096,
		WatchDebounce:  200 * time.Millisecond,
		LogLevel:       "info",
	}
}

// Load reads configuration from the YAML file at path, if any, and from the
// environment. LV2HOST_* variables override file values; LV2_PATH (a
// list separated like PATH) overrides the search path and LANG supplies the
// language when nothing else does.
func Load(path string) (Config, error) {
	d := Default()
	v := viper.New()
	v.SetDefault("search_path", d.SearchPath)
	v.SetDefault("filter_lang", d.FilterLang)
	v.SetDefault("lang", d.Lang)
	v.SetDefault("store", d.Store)
	v.SetDefault("sqlite_path", d.SQLitePath)
	v.SetDefault("max_block_length", d.MaxBlockLength)
	v.SetDefault("watch_debounce", d.WatchDebounce)
	v.SetDefault("log_level", d.LogLevel)

	v.SetEnvPrefix("LV2HOST")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
			}
		}
	}

	cfg := Config{
		FilterLang:     v.GetBool("filter_lang"),
		Lang:           NormalizeLang(v.GetString("lang")),
		Store:          v.GetString("store"),
		SQLitePath:     v.GetString("sqlite_path"),
		MaxBlockLength: v.GetUint32("max_block_length"),
		WatchDebounce:  v.GetDuration("watch_debounce"),
		LogLevel:       strings.ToLower(v.GetString("log_level")),
	}
	if err := v.UnmarshalKey("search_path", &cfg.SearchPath); err != nil {
		return Config{}, fmt.Errorf("failed to decode search_path: %w", err)
	}
	if env := os.Getenv("LV2HOST_SEARCH_PATH"); env != "" {
		cfg.SearchPath = filepath.SplitList(env)
	} else if env := os.Getenv("LV2_PATH"); env != "" {
		cfg.SearchPath = filepath.SplitList(env)
	}
	for i, p := range cfg.SearchPath {
		cfg.SearchPath[i] = expandHome(p)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Save writes cfg as YAML to path, creating parent directories.
func Save(path string, cfg Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// Schema returns the JSON schema of Config.
func Schema() ([]byte, error) {
	s := jsonschema.Reflect(&Config{})
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config schema: %w", err)
	}
	return data, nil
}

// NormalizeLang converts a POSIX locale such as "de_DE.UTF-8" into a
// lowercase language tag such as "de-de". "C" and "POSIX" yield "".
func NormalizeLang(locale string) string {
	if i := strings.IndexAny(locale, ".@"); i >= 0 {
		locale = locale[:i]
	}
	if locale == "C" || locale == "POSIX" {
		return ""
	}
	return strings.ToLower(strings.ReplaceAll(locale, "_", "-"))
}

func expandHome(p string) string {
	if p != "~" && !strings.HasPrefix(p, "~/") {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	return filepath.Join(home, strings.TrimPrefix(p, "~"))
}
