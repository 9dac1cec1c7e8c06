package loader

import (
	"strings"

	"go.uber.org/zap"
)

// DefaultTestCaseBases are the qualified names of unittest-style base
// classes. A class deriving from one of them is enumerated per method.
var DefaultTestCaseBases = []string{
	"unittest.TestCase",
	"unittest.case.TestCase",
	"unittest.IsolatedAsyncioTestCase",
	"unittest2.TestCase",
	"django.test.TestCase",
	"django.test.SimpleTestCase",
	"django.test.TransactionTestCase",
	"twisted.trial.unittest.TestCase",
}

// Options configures a Loader.
type Options struct {
	// WorkingDir anchors relative test names. Defaults to the process
	// working directory.
	WorkingDir string

	// Selector decides what is collected. Defaults to DefaultSelector().
	Selector *Selector

	// Plugins receive hook calls. Defaults to an empty manager.
	Plugins *Plugins

	// Importer caches parsed modules. A shared importer lets a preloaded
	// cache serve several loaders.
	Importer *Importer

	// Logger receives debug traces of the loading process.
	Logger *zap.Logger

	// AddPaths puts the working directory and every walked directory on
	// the search path.
	AddPaths bool

	// SrcDirs are subdirectories added to the search path alongside a
	// walked directory.
	SrcDirs []string

	// TestCaseBases lists qualified base class names that mark unittest
	// cases.
	TestCaseBases []string

	// MethodOrder compares test method names. Nil keeps definition order.
	MethodOrder func(a, b string) int

	// MaxFileSize caps the size of imported source files. Zero means no cap.
	MaxFileSize int64
}

// Option is a functional option for configuring Loader.
type Option func(*Options)

// WithWorkingDir sets the directory relative names are resolved against.
func WithWorkingDir(dir string) Option {
	return func(o *Options) {
		o.WorkingDir = dir
	}
}

// WithSelector sets the selection policy.
func WithSelector(s *Selector) Option {
	return func(o *Options) {
		o.Selector = s
	}
}

// WithPlugins sets the plugin manager.
func WithPlugins(p *Plugins) Option {
	return func(o *Options) {
		o.Plugins = p
	}
}

// WithImporter shares a module cache.
func WithImporter(im *Importer) Option {
	return func(o *Options) {
		o.Importer = im
	}
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(o *Options) {
		if log != nil {
			o.Logger = log
		}
	}
}

// WithAddPaths enables or disables search path updates.
// Default: true.
func WithAddPaths(enabled bool) Option {
	return func(o *Options) {
		o.AddPaths = enabled
	}
}

// WithSrcDirs sets the source subdirectories added next to walked
// directories.
func WithSrcDirs(dirs []string) Option {
	return func(o *Options) {
		o.SrcDirs = dirs
	}
}

// WithTestCaseBases replaces the unittest base class names.
func WithTestCaseBases(bases []string) Option {
	return func(o *Options) {
		o.TestCaseBases = bases
	}
}

// WithMethodOrder sets the test method comparator. Nil keeps definition
// order.
func WithMethodOrder(cmp func(a, b string) int) Option {
	return func(o *Options) {
		o.MethodOrder = cmp
	}
}

// WithMaxFileSize caps imported file sizes.
// Negative values are ignored.
func WithMaxFileSize(size int64) Option {
	return func(o *Options) {
		if size >= 0 {
			o.MaxFileSize = size
		}
	}
}

// newDefaultOptions returns Options with default values.
func newDefaultOptions() Options {
	return Options{
		AddPaths:      true,
		SrcDirs:       DefaultSrcDirs,
		TestCaseBases: DefaultTestCaseBases,
		MethodOrder:   strings.Compare,
	}
}
