// Package loader resolves test names, files, directories, modules and
// classes into lazy suites of test units, without running any Python.
package loader

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// Loader finds tests. It is single-threaded: one Loader must not be used
// from several goroutines at once.
type Loader struct {
	workingDir    string
	selector      *Selector
	plugins       *Plugins
	importer      *Importer
	log           *zap.Logger
	addPaths      bool
	srcDirs       []string
	testCaseBases map[string]bool
	methodOrder   func(a, b string) int
	root          *PathGuard
}

// New creates a loader.
func New(opts ...Option) (*Loader, error) {
	o := newDefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	if o.WorkingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("loader: working dir: %w", err)
		}
		o.WorkingDir = wd
	}
	wd, err := filepath.Abs(o.WorkingDir)
	if err != nil {
		return nil, fmt.Errorf("loader: working dir: %w", err)
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Plugins == nil {
		o.Plugins = NewPlugins()
	}
	if o.Selector == nil {
		o.Selector = DefaultSelector()
	}
	if o.Importer == nil {
		o.Importer = NewImporter(o.Logger, o.MaxFileSize)
	}

	l := &Loader{
		workingDir:    wd,
		selector:      o.Selector.withPlugins(o.Plugins),
		plugins:       o.Plugins,
		importer:      o.Importer,
		log:           o.Logger.Named("loader"),
		addPaths:      o.AddPaths,
		srcDirs:       o.SrcDirs,
		testCaseBases: make(map[string]bool),
		methodOrder:   o.MethodOrder,
	}
	for _, base := range o.TestCaseBases {
		l.testCaseBases[base] = true
	}
	if l.addPaths {
		l.root = l.importer.Path.Acquire(l.searchDirs(wd)...)
	}
	return l, nil
}

// Close removes the working directory from the search path.
func (l *Loader) Close() {
	l.root.Release()
}

// WorkingDir returns the absolute directory names are resolved against.
func (l *Loader) WorkingDir() string {
	return l.workingDir
}

// Importer returns the loader's module cache.
func (l *Loader) Importer() *Importer {
	return l.importer
}

// Selector returns the effective selection policy.
func (l *Loader) Selector() *Selector {
	return l.selector
}

// searchDirs returns the import root for dir and its source dirs.
func (l *Loader) searchDirs(dir string) []string {
	root := dir
	if pyast.IsPackage(dir) {
		root = pyast.ImportRoot(filepath.Join(dir, pyast.InitFile))
	}
	dirs := []string{root}
	for _, src := range l.srcDirs {
		candidate := filepath.Join(dir, src)
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			dirs = append(dirs, candidate)
		}
	}
	return dirs
}
