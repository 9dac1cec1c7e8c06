package loader

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// LoadTestsFromDir walks path lazily. Each wanted entry becomes one test
// or suite, produced only when the previous one has been consumed.
func (l *Loader) LoadTestsFromDir(ctx context.Context, path string) *Suite {
	suite := NewLazySuite(func(ctx context.Context) Iterator {
		return l.newDirWalk(path)
	}, nil)
	suite.Name = path
	return suite
}

type walkPhase int

const (
	phaseStart walkPhase = iota
	phaseEntries
	phasePlugins
	phaseDone
)

// dirWalk is the iterator behind LoadTestsFromDir.
type dirWalk struct {
	l       *Loader
	path    string
	phase   walkPhase
	entries []string
	pos     int
	guard   *PathGuard
	started bool
}

func (l *Loader) newDirWalk(path string) *dirWalk {
	return &dirWalk{l: l, path: path}
}

func (w *dirWalk) Next(ctx context.Context) (Test, error) {
	for {
		if err := ctx.Err(); err != nil {
			w.finish()
			return nil, err
		}

		switch w.phase {
		case phaseStart:
			if err := w.start(); err != nil {
				w.finish()
				return nil, err
			}
			w.phase = phaseEntries

		case phaseEntries:
			if w.pos >= len(w.entries) {
				w.phase = phasePlugins
				continue
			}
			entry := w.entries[w.pos]
			w.pos++
			if t := w.load(ctx, entry); t != nil {
				return t, nil
			}

		case phasePlugins:
			w.phase = phaseDone
			if tests := w.l.plugins.LoadTestsFromDir(ctx, w.path); len(tests) > 0 {
				return NewSuite(tests, nil), nil
			}

		default:
			w.finish()
			return nil, ErrExhausted
		}
	}
}

func (w *dirWalk) start() error {
	w.l.log.Debug("load from dir", zap.String("path", w.path))

	w.started = true
	w.l.plugins.BeforeDirectory(w.path)
	if w.l.addPaths {
		w.guard = w.l.importer.Path.Acquire(w.l.searchDirs(w.path)...)
	}

	dirEntries, err := os.ReadDir(w.path)
	if err != nil {
		return &LoadError{Kind: IOFailure, Name: w.path, Err: err}
	}
	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		names = append(names, e.Name())
	}
	w.entries = sortEntries(names, w.l.selector)
	return nil
}

// load produces the test for one directory entry, or nil when the entry is
// not wanted.
func (w *dirWalk) load(ctx context.Context, entry string) Test {
	if strings.HasPrefix(entry, ".") {
		return nil
	}
	entryPath := filepath.Join(w.path, entry)

	info, err := os.Stat(entryPath)
	if err != nil {
		return nil
	}
	l := w.l

	if info.Mode().IsRegular() {
		if !l.selector.WantFile(entryPath) {
			return nil
		}
		l.plugins.BeforeContext()
		defer l.plugins.AfterContext()
		if strings.HasSuffix(entry, ".py") {
			return l.LoadTestsFromName(ctx, entryPath, nil, true)
		}
		return l.LoadTestsFromFile(ctx, entryPath)
	}

	if !info.IsDir() || strings.HasPrefix(entry, "_") || !l.selector.WantDirectory(entryPath) {
		return nil
	}
	if pyast.IsPackage(entryPath) {
		return l.LoadTestsFromName(ctx, entryPath, nil, true)
	}
	return l.LoadTestsFromDir(ctx, entryPath)
}

// finish releases the search path entries and ends the directory's
// plugin bracket. Later calls do nothing.
func (w *dirWalk) finish() {
	w.phase = phaseDone
	if !w.started {
		return
	}
	w.started = false
	w.guard.Release()
	w.l.plugins.AfterDirectory(w.path)
}

func (w *dirWalk) Close() error {
	w.finish()
	return nil
}

// sortEntries orders entries lexicographically with names that look like
// tests moved to the end, keeping their relative order.
func sortEntries(names []string, sel *Selector) []string {
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	sort.SliceStable(sorted, func(i, j int) bool {
		return !sel.match.MatchString(sorted[i]) && sel.match.MatchString(sorted[j])
	})
	return sorted
}
