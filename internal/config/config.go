// Package config resolves the image layout settings from defaults, an
// optional efidisk.yaml, EFIDISK_* environment variables and command-line
// flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/deploymenttheory/go-efidisk/internal/layout"
)

// Keys shared by the config file, the environment and flag binding.
const (
	KeyLBASize   = "lba_size"
	KeyESPSize   = "esp_size"
	KeyDataSize  = "data_size"
	KeyAlignment = "alignment"
	KeyAtomic    = "atomic"
	KeyVerify    = "verify"

	EnvPrefix = "EFIDISK"
)

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"lba-size":  KeyLBASize,
	"esp-size":  KeyESPSize,
	"data-size": KeyDataSize,
	"alignment": KeyAlignment,
	"atomic":    KeyAtomic,
	"verify":    KeyVerify,
}

// Settings holds configuration as read, before sizes are parsed. Sizes are
// human strings such as "33MiB" or "4096".
type Settings struct {
	LBASize   string `mapstructure:"lba_size"`
	ESPSize   string `mapstructure:"esp_size"`
	DataSize  string `mapstructure:"data_size"`
	Alignment string `mapstructure:"alignment"`
	Atomic    bool   `mapstructure:"atomic"`
	Verify    bool   `mapstructure:"verify"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// Load reads settings using Viper. configFile, when set, must exist; otherwise
// efidisk.yaml is searched for and its absence is not an error. flags may be
// nil.
func Load(configFile string, flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("efidisk")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.efidisk")
		v.AddConfigPath("/etc/efidisk")
	}

	// Set defaults
	v.SetDefault(KeyLBASize, humanize.IBytes(layout.DefaultLBASize))
	v.SetDefault(KeyESPSize, humanize.IBytes(layout.DefaultESPSize))
	v.SetDefault(KeyDataSize, humanize.IBytes(layout.DefaultDataSize))
	v.SetDefault(KeyAlignment, humanize.IBytes(layout.DefaultAlignment))
	v.SetDefault(KeyAtomic, false)
	v.SetDefault(KeyVerify, false)

	// Allow environment variables
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("error binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	settings.File = v.ConfigFileUsed()

	return &settings, nil
}

// Layout parses the size settings into a layout.Config. Every unparsable
// size is reported. The result is not validated; layout.NewPlan does that.
func (s *Settings) Layout() (layout.Config, error) {
	var cfg layout.Config
	var err error

	fields := []struct {
		key   string
		value string
		dst   *uint64
	}{
		{KeyLBASize, s.LBASize, &cfg.LBASize},
		{KeyESPSize, s.ESPSize, &cfg.ESPSize},
		{KeyDataSize, s.DataSize, &cfg.DataSize},
		{KeyAlignment, s.Alignment, &cfg.Alignment},
	}
	for _, f := range fields {
		n, perr := humanize.ParseBytes(f.value)
		if perr != nil {
			err = multierr.Append(err, fmt.Errorf("%s %q: %w", f.key, f.value, perr))
			continue
		}
		*f.dst = n
	}

	if err != nil {
		return layout.Config{}, fmt.Errorf("%w: %w", layout.ErrInvalidConfig, err)
	}
	return cfg, nil
}
