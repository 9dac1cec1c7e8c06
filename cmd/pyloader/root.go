package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/specvital/pyloader/internal/config"
	"github.com/specvital/pyloader/pkg/report"
)

// app carries the state shared by all subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	cfg     *config.Config
	log     *zap.Logger
	// ownLog is set when the logger was built here and must be synced.
	ownLog bool
}

func newApp(log *zap.Logger) *app {
	v := viper.New()
	config.SetDefaults(v)
	return &app{v: v, log: log}
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pyloader",
		Short: "Static test loader for Python test trees",
		Long: `pyloader finds the tests of a Python project without running it.

Sources are parsed with tree-sitter; names, files, directories and packages
are resolved the way a nose-style loader would resolve them, and the
resulting suite tree can be listed, checked for load failures or watched.

Names default to the working directory. Accepted forms:
  path/to/dir            walk a directory
  path/to/test_file.py   load one file
  package.module         import a module by name
  module:Class.method    load one attribute of a module`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.ownLog && a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default: ./pyloader.yaml)")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")
	flags.StringP("working-dir", "w", "", "directory names are resolved against")
	flags.StringP("format", "f", "", "output format (text, json, yaml)")
	flags.String("color", "", "colorize text output (auto, always, never)")
	flags.StringP("match", "m", "", "regular expression test names must match")
	flags.StringSlice("include", nil, "additional name patterns to collect")
	flags.StringSlice("exclude", nil, "name patterns never collected")
	flags.Bool("exe", false, "collect executable files too")
	flags.Int("workers", 0, "preload workers (0 means GOMAXPROCS)")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.String("log-format", "", "log format (json, text)")

	for key, name := range map[string]string{
		"working_dir":     "working-dir",
		"output.format":   "format",
		"output.color":    "color",
		"test_match":      "match",
		"include":         "include",
		"exclude":         "exclude",
		"include_exe":     "exe",
		"preload.workers": "workers",
		"log.level":       "log-level",
		"log.format":      "log-format",
	} {
		if err := a.v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(fmt.Errorf("bind flag %s: %w", name, err))
		}
	}

	root.AddCommand(
		a.listCommand(),
		a.checkCommand(),
		a.watchCommand(),
		versionCommand(),
	)
	return root
}

// init reads the config file and environment, then builds the logger.
func (a *app) init() error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("pyloader")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
	}
	config.ConfigureEnv(a.v)

	if err := a.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	cfg, err := config.New(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.log == nil {
		log, err := newLogger(cfg.Log, a.verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.log = log
		a.ownLog = true
	}
	a.log.Debug("configuration loaded", zap.String("file", a.v.ConfigFileUsed()))
	return nil
}

func newLogger(cfg config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	if verbose {
		level = zapcore.DebugLevel
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	if cfg.Format == "text" {
		zc.Encoding = "console"
		zc.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	}
	return zc.Build()
}

func (a *app) renderer() (*report.Renderer, error) {
	format, err := report.ParseFormat(a.cfg.Output.Format)
	if err != nil {
		return nil, err
	}
	var useColor bool
	switch a.cfg.Output.Color {
	case "always":
		useColor = true
	case "never":
		useColor = false
	default:
		useColor = !color.NoColor
	}
	return report.NewRenderer(format, useColor), nil
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printVersion(cmd.OutOrStdout())
		},
	}
}

// Version is set at build time with -ldflags "-X main.Version=...".
var Version = "dev"

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "pyloader %s\n", Version)
}
