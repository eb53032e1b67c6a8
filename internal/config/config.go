// Package config loads CLI settings from defaults, an optional
// wasm-pack.toml file and WASM_PACK_* environment variables.
package config

import (
	stderrors "errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/wippyai/wasm-pack/errors"
	"github.com/wippyai/wasm-pack/js"
)

const (
	// FileName is the config file looked up in the working directory.
	FileName = "wasm-pack.toml"
	// EnvPrefix prefixes every environment override, e.g. WASM_PACK_VERBOSE.
	EnvPrefix = "WASM_PACK"
)

// Output formats understood by "wasm-pack show".
const (
	FormatText = "text"
	FormatJSON = "json"
)

// Config holds the CLI settings.
type Config struct {
	// OutDir is where generated packages go. Empty means "<namespace>/<name>".
	OutDir string `mapstructure:"out_dir"`
	// Verbose switches to a development logger at debug level.
	Verbose bool `mapstructure:"verbose"`
	// Format selects the "show" output format.
	Format string `mapstructure:"format"`
	// WASIVersion is the @wasmer/wasi range written into package.json.
	WASIVersion string `mapstructure:"wasi_version"`
}

// Default returns the settings used when nothing is configured.
func Default() Config {
	return Config{
		Format:      FormatText,
		WASIVersion: js.DefaultWASIVersion,
	}
}

// LoadOptions control where configuration is read from.
type LoadOptions struct {
	// File is an explicit config file. It must exist.
	File string
	// Dir is searched for FileName when File is empty. Defaults to ".".
	Dir string
}

// Load resolves the configuration. A missing wasm-pack.toml is not an error;
// a missing explicit file is.
func Load(opts LoadOptions) (*Config, string, error) {
	v := viper.New()

	defaults := Default()
	v.SetDefault("out_dir", defaults.OutDir)
	v.SetDefault("verbose", defaults.Verbose)
	v.SetDefault("format", defaults.Format)
	v.SetDefault("wasi_version", defaults.WASIVersion)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	resolved := ""
	switch {
	case opts.File != "":
		if _, err := os.Stat(opts.File); err != nil {
			return nil, "", errors.New(errors.PhaseLoad, errors.KindNotFound).
				Path(opts.File).
				Cause(err).
				Detail("config file not found").
				Build()
		}
		resolved = opts.File
	default:
		dir := opts.Dir
		if dir == "" {
			dir = "."
		}
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			resolved = candidate
		}
	}

	if resolved != "" {
		v.SetConfigFile(resolved)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !stderrors.As(err, &notFound) {
				return nil, "", errors.New(errors.PhaseLoad, errors.KindInvalidData).
					Path(resolved).
					Cause(err).
					Detail("read config file").
					Build()
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, "", errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", err
	}
	return &cfg, resolved, nil
}

// Validate checks values viper cannot type-check.
func (c *Config) Validate() error {
	switch c.Format {
	case FormatText, FormatJSON:
		return nil
	}
	return errors.New(errors.PhaseValidate, errors.KindInvalidInput).
		Value(c.Format).
		Detail("format must be %q or %q, got %q", FormatText, FormatJSON, c.Format).
		Build()
}
