package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. PYLOADER_LOG_LEVEL.
const EnvPrefix = "PYLOADER"

// Config holds the complete application configuration.
type Config struct {
	WorkingDir    string        `mapstructure:"working_dir"`
	TestMatch     string        `mapstructure:"test_match"`
	Include       []string      `mapstructure:"include"`
	Exclude       []string      `mapstructure:"exclude"`
	IgnoreFiles   []string      `mapstructure:"ignore_files"`
	SrcDirs       []string      `mapstructure:"src_dirs"`
	AddPaths      bool          `mapstructure:"add_paths"`
	IncludeExe    bool          `mapstructure:"include_exe"`
	TestCaseBases []string      `mapstructure:"testcase_bases"`
	SortMethods   bool          `mapstructure:"sort_methods"`
	Paths         []string      `mapstructure:"paths"`         // Doublestar globs a collected file must match
	ExcludePaths  []string      `mapstructure:"exclude_paths"` // Doublestar globs skipped during walks
	Doctest       DoctestConfig `mapstructure:"doctest"`
	Preload       PreloadConfig `mapstructure:"preload"`
	Log           LogConfig     `mapstructure:"log"`
	Output        OutputConfig  `mapstructure:"output"`
	Watch         WatchConfig   `mapstructure:"watch"`
}

// DoctestConfig holds the doctest file extractor configuration.
type DoctestConfig struct {
	Enabled    bool     `mapstructure:"enabled"`
	Extensions []string `mapstructure:"extensions"`
}

// PreloadConfig holds the parallel preloader configuration.
type PreloadConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Workers     int           `mapstructure:"workers"` // 0 means GOMAXPROCS
	Timeout     time.Duration `mapstructure:"timeout"`
	MaxFileSize int64         `mapstructure:"max_file_size"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// OutputConfig holds report output configuration.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  string `mapstructure:"color"`
}

// WatchConfig holds watch mode configuration.
type WatchConfig struct {
	Debounce time.Duration `mapstructure:"debounce"`
}

// SetDefaults registers the default value of every key.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("working_dir", ".")
	v.SetDefault("test_match", `(?:^|[_./-])[Tt]est`)
	v.SetDefault("add_paths", true)
	v.SetDefault("include_exe", false)
	v.SetDefault("sort_methods", true)

	// Doctest defaults
	v.SetDefault("doctest.enabled", true)
	v.SetDefault("doctest.extensions", []string{".txt", ".rst"})

	// Preload defaults
	v.SetDefault("preload.enabled", true)
	v.SetDefault("preload.workers", 0)
	v.SetDefault("preload.timeout", "5m")
	v.SetDefault("preload.max_file_size", 10*1024*1024)

	// Logging defaults
	v.SetDefault("log.level", "warn")
	v.SetDefault("log.format", "text")

	// Output defaults
	v.SetDefault("output.format", "text")
	v.SetDefault("output.color", "auto")

	v.SetDefault("watch.debounce", "300ms")
}

// ConfigureEnv binds PYLOADER_* environment variables, mapping nested keys
// with underscores (PYLOADER_PRELOAD_WORKERS).
func ConfigureEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// New creates a Config from Viper and validates it.
func New(v *viper.Viper) (*Config, error) {
	var config Config

	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.WorkingDir == "" {
		return errors.New("working_dir is required")
	}

	if _, err := regexp.Compile(c.TestMatch); err != nil {
		return fmt.Errorf("test_match: %w", err)
	}
	for _, group := range []struct {
		key      string
		patterns []string
	}{
		{"include", c.Include},
		{"exclude", c.Exclude},
		{"ignore_files", c.IgnoreFiles},
	} {
		for _, p := range group.patterns {
			if _, err := regexp.Compile(p); err != nil {
				return fmt.Errorf("%s %q: %w", group.key, p, err)
			}
		}
	}

	for _, ext := range c.Doctest.Extensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("doctest.extensions: %q must start with a dot", ext)
		}
	}

	// Validate numeric ranges
	if c.Preload.Workers < 0 {
		return errors.New("preload.workers must not be negative")
	}
	if c.Preload.MaxFileSize < 0 {
		return errors.New("preload.max_file_size must not be negative")
	}
	if c.Preload.Timeout < 0 {
		return errors.New("preload.timeout must not be negative")
	}
	if c.Watch.Debounce < 0 {
		return errors.New("watch.debounce must not be negative")
	}

	if err := oneOf("log.level", c.Log.Level, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	if err := oneOf("log.format", c.Log.Format, "json", "text"); err != nil {
		return err
	}
	if err := oneOf("output.format", c.Output.Format, "text", "json", "yaml"); err != nil {
		return err
	}
	return oneOf("output.color", c.Output.Color, "auto", "always", "never")
}

func oneOf(key, value string, allowed ...string) error {
	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return nil
		}
	}
	return fmt.Errorf("%s must be one of %s, got %q", key, strings.Join(allowed, ", "), value)
}
