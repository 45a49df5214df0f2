// Package config resolves CLI settings from flags, environment, .env files
// and an optional .quacksql.yaml.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AppFs is the filesystem config files and .env files are probed on.
var AppFs = afero.NewOsFs()

const (
	EnvPrefix  = "QUACKSQL"
	ConfigName = ".quacksql"
)

// Config holds the resolved CLI configuration.
type Config struct {
	Database string   `mapstructure:"database"`
	ReadOnly bool     `mapstructure:"read_only"`
	Driver   string   `mapstructure:"driver"`
	Modules  []string `mapstructure:"modules"`
	Format   string   `mapstructure:"format"`
	Debug    bool     `mapstructure:"debug"`
}

// New returns a viper instance with defaults, search paths and environment
// binding set up. configFile, when non-empty, replaces the search.
func New(configFile string) (*viper.Viper, error) {
	v := viper.New()
	v.SetFs(AppFs)

	v.SetDefault("database", ":memory:")
	v.SetDefault("read_only", false)
	v.SetDefault("driver", "duckdb")
	v.SetDefault("modules", []string{})
	v.SetDefault("format", "table")
	v.SetDefault("debug", false)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v, nil
	}

	home, err := homedir.Dir()
	if err != nil {
		return nil, err
	}
	v.SetConfigName(ConfigName)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(home)
	v.AddConfigPath(filepath.Join(home, ".config", "quacksql"))
	return v, nil
}

// Load reads .env files and the config file into v and decodes the result.
// A missing config file is not an error unless it was named explicitly.
func Load(v *viper.Viper, explicit bool) (*Config, error) {
	if err := loadDotEnv(); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if explicit || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// loadDotEnv loads .env, then lets .env.local override it. Variables that
// are already set in the process environment keep their values for .env.
func loadDotEnv() error {
	if _, err := AppFs.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return fmt.Errorf("loading .env: %w", err)
		}
	}
	if _, err := AppFs.Stat(".env.local"); err == nil {
		if err := godotenv.Overload(".env.local"); err != nil {
			return fmt.Errorf("loading .env.local: %w", err)
		}
	}
	return nil
}
