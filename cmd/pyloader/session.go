package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/loader"
	"github.com/specvital/pyloader/pkg/parser"
	"github.com/specvital/pyloader/pkg/plugins/doctest"
	"github.com/specvital/pyloader/pkg/report"
)

// newLoader builds a loader from the configuration and warms its import
// cache for names.
func (a *app) newLoader(ctx context.Context, names []string) (*loader.Loader, error) {
	cfg := a.cfg
	wd, err := filepath.Abs(cfg.WorkingDir)
	if err != nil {
		return nil, err
	}

	selector, err := loader.NewSelector(loader.SelectorConfig{
		TestMatch:    cfg.TestMatch,
		Include:      cfg.Include,
		Exclude:      cfg.Exclude,
		IgnoreFiles:  cfg.IgnoreFiles,
		SrcDirs:      cfg.SrcDirs,
		IncludeExe:   cfg.IncludeExe,
		Paths:        cfg.Paths,
		ExcludePaths: cfg.ExcludePaths,
		Root:         wd,
	})
	if err != nil {
		return nil, err
	}

	plugins := loader.NewPlugins()
	if cfg.Doctest.Enabled {
		plugins.Register(doctest.New(cfg.Doctest.Extensions, a.log))
	}

	importer := loader.NewImporter(a.log, cfg.Preload.MaxFileSize)
	if cfg.Preload.Enabled {
		if err := a.preload(ctx, wd, names, importer); err != nil {
			return nil, err
		}
	}

	opts := []loader.Option{
		loader.WithWorkingDir(wd),
		loader.WithSelector(selector),
		loader.WithPlugins(plugins),
		loader.WithImporter(importer),
		loader.WithLogger(a.log),
		loader.WithAddPaths(cfg.AddPaths),
		loader.WithMaxFileSize(cfg.Preload.MaxFileSize),
	}
	if cfg.SrcDirs != nil {
		opts = append(opts, loader.WithSrcDirs(cfg.SrcDirs))
	}
	if len(cfg.TestCaseBases) > 0 {
		opts = append(opts, loader.WithTestCaseBases(cfg.TestCaseBases))
	}
	if cfg.SortMethods {
		opts = append(opts, loader.WithMethodOrder(strings.Compare))
	} else {
		opts = append(opts, loader.WithMethodOrder(nil))
	}
	return loader.New(opts...)
}

// preload parses the directories and .py files among names in parallel and
// seeds the importer with the result. Parse errors are left for the
// importer to report as load failures.
func (a *app) preload(ctx context.Context, wd string, names []string, importer *loader.Importer) error {
	dirs, files := preloadTargets(wd, names)
	scanner := parser.NewScanner(
		parser.WithWorkers(a.cfg.Preload.Workers),
		parser.WithTimeout(a.cfg.Preload.Timeout),
		parser.WithMaxFileSize(a.cfg.Preload.MaxFileSize),
		parser.WithLogger(a.log.Named("preload")),
	)

	seed := func(result *parser.ScanResult, err error) error {
		if errors.Is(err, parser.ErrScanCancelled) {
			return context.Canceled
		}
		if err != nil {
			a.log.Warn("preload incomplete", zap.Error(err))
		}
		if result == nil {
			return nil
		}
		for _, scanErr := range result.Errors {
			a.log.Debug("preload skipped file", zap.Error(scanErr))
		}
		importer.Seed(result.Modules)
		a.log.Debug("preloaded modules",
			zap.String("root", result.Root),
			zap.Int("modules", len(result.Modules)),
			zap.Duration("duration", result.Stats.Duration))
		return nil
	}

	for _, dir := range dirs {
		if err := seed(scanner.Scan(ctx, dir)); err != nil {
			return err
		}
	}
	if len(files) > 0 {
		return seed(scanner.ScanFiles(ctx, files))
	}
	return nil
}

// preloadTargets picks the directories and files to preload: named
// directories not nested in one another, and named .py files outside them.
// Dotted module names are not located here. With no names the working
// directory is preloaded.
func preloadTargets(wd string, names []string) (dirs, files []string) {
	if len(names) == 0 {
		return []string{wd}, nil
	}

	var candidates []string
	seen := make(map[string]bool)
	for _, name := range names {
		path := loader.ParseAddress(name, wd).Filename
		if path == "" || seen[path] {
			continue
		}
		seen[path] = true
		info, err := os.Stat(path)
		switch {
		case err != nil:
		case info.IsDir():
			candidates = append(candidates, path)
		case strings.HasSuffix(path, ".py"):
			files = append(files, path)
		}
	}

	for _, dir := range candidates {
		if !within(dir, candidates, true) {
			dirs = append(dirs, dir)
		}
	}
	var outside []string
	for _, file := range files {
		if !within(file, dirs, false) {
			outside = append(outside, file)
		}
	}
	return dirs, outside
}

// within reports whether path lies under one of roots. With strict set,
// path itself does not count as one of its own roots.
func within(path string, roots []string, strict bool) bool {
	for _, root := range roots {
		if strict && root == path {
			continue
		}
		rel, err := filepath.Rel(root, path)
		if err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// inventory loads names, or the working directory when there are none,
// and materializes the result.
func (a *app) inventory(ctx context.Context, names []string) (domain.Inventory, error) {
	l, err := a.newLoader(ctx, names)
	if err != nil {
		return domain.Inventory{}, err
	}
	defer l.Close()

	if len(names) == 0 {
		names = []string{l.WorkingDir()}
	}
	suite := l.LoadTestsFromNames(ctx, names, nil)
	return report.Build(ctx, l.WorkingDir(), suite)
}
