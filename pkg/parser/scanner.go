// Package parser preloads Python sources into static module models.
//
// The loader itself is single-threaded and lazy; the scanner parses every
// candidate file of a tree up front, in parallel, so that imports during
// the walk hit a warm cache.
package parser

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

const (
	// DefaultWorkers indicates that the scanner should use GOMAXPROCS as the worker count.
	DefaultWorkers = 0
	// DefaultTimeout is the default scan timeout duration.
	DefaultTimeout = 5 * time.Minute
	// MaxWorkers is the maximum number of concurrent workers allowed.
	MaxWorkers = 1024
	// DefaultMaxFileSize is the default maximum file size for scanning (10MB).
	DefaultMaxFileSize = 10 * 1024 * 1024
)

// DefaultSkipPatterns contains directory names that are skipped by default during scanning.
var DefaultSkipPatterns = []string{
	"node_modules",
	"__pycache__",
	"build",
	"dist",
	"site-packages",
	"venv",
}

var (
	// ErrScanCancelled is returned when scanning is cancelled via context.
	ErrScanCancelled = errors.New("scanner: scan cancelled")
	// ErrScanTimeout is returned when scanning exceeds the timeout duration.
	ErrScanTimeout = errors.New("scanner: scan timeout")
)

// Scanner discovers and parses Python source files in parallel.
type Scanner struct {
	options *ScanOptions
}

// ScanResult contains the outcome of a scan operation.
type ScanResult struct {
	// Root is the absolute scan root; empty for ScanFiles.
	Root string

	// Modules holds every successfully parsed file, sorted by path.
	Modules []*pyast.Module

	// Errors contains non-fatal errors encountered during scanning.
	Errors []ScanError

	// Stats provides scan statistics.
	Stats ScanStats
}

// ScanError represents an error that occurred during a specific phase of scanning.
type ScanError struct {
	// Err is the underlying error.
	Err error

	// Path is the file path where the error occurred (may be empty for non-file errors).
	Path string

	// Phase indicates which phase the error occurred in.
	// Values: "discovery", "parsing"
	Phase string
}

// Error implements the error interface.
func (e ScanError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %v", e.Phase, e.Err)
	}
	return fmt.Sprintf("[%s] %s: %v", e.Phase, e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ScanError) Unwrap() error { return e.Err }

// ScanStats provides statistics about the scan operation.
type ScanStats struct {
	// FilesScanned is the total number of source files discovered.
	FilesScanned int

	// FilesParsed is the number of files that were successfully parsed.
	FilesParsed int

	// FilesFailed is the number of files that failed to read or parse.
	FilesFailed int

	// FilesSkipped counts files left out for size or pattern reasons.
	FilesSkipped int

	// Duration is the total scan duration.
	Duration time.Duration
}

// NewScanner creates a new scanner with the given options.
func NewScanner(opts ...ScanOption) *Scanner {
	options := &ScanOptions{}
	for _, opt := range opts {
		opt(options)
	}
	applyDefaults(options)

	return &Scanner{options: options}
}

// Scan is a shorthand for NewScanner(opts...).Scan(ctx, root).
func Scan(ctx context.Context, root string, opts ...ScanOption) (*ScanResult, error) {
	return NewScanner(opts...).Scan(ctx, root)
}

// Scan walks root and parses every candidate .py file. Each module is named
// after its package layout.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	rootPath, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("scanner: resolve root %s: %w", root, err)
	}

	result := &ScanResult{
		Root:    rootPath,
		Modules: []*pyast.Module{},
		Errors:  []ScanError{},
	}

	files, skipped, errs := s.discoverSourceFiles(ctx, rootPath)
	for _, err := range errs {
		result.Errors = append(result.Errors, ScanError{
			Err:   err,
			Phase: "discovery",
		})
	}
	result.Stats.FilesScanned = len(files) + skipped
	result.Stats.FilesSkipped = skipped

	s.parse(ctx, files, result)
	result.Stats.Duration = time.Since(startTime)

	return result, scanErr(ctx)
}

// ScanFiles parses specific files, bypassing discovery.
func (s *Scanner) ScanFiles(ctx context.Context, files []string) (*ScanResult, error) {
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(ctx, s.options.Timeout)
	defer cancel()

	result := &ScanResult{
		Modules: []*pyast.Module{},
		Errors:  []ScanError{},
		Stats: ScanStats{
			FilesScanned: len(files),
		},
	}

	absFiles := make([]string, 0, len(files))
	for _, file := range files {
		abs, err := filepath.Abs(file)
		if err != nil {
			result.Errors = append(result.Errors, ScanError{Err: err, Path: file, Phase: "discovery"})
			continue
		}
		absFiles = append(absFiles, abs)
	}

	s.parse(ctx, absFiles, result)
	result.Stats.Duration = time.Since(startTime)

	return result, scanErr(ctx)
}

func (s *Scanner) parse(ctx context.Context, files []string, result *ScanResult) {
	if len(files) == 0 {
		return
	}
	modules, scanErrors := s.parseFilesParallel(ctx, files)
	result.Modules = modules
	result.Errors = append(result.Errors, scanErrors...)
	result.Stats.FilesParsed = len(modules)
	result.Stats.FilesFailed = len(scanErrors)
}

func scanErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrScanTimeout
		}
		if errors.Is(err, context.Canceled) {
			return ErrScanCancelled
		}
	}
	return nil
}

// discoverSourceFiles walks the root to find .py files. Returns absolute
// paths and the number of files skipped for size or pattern reasons.
func (s *Scanner) discoverSourceFiles(ctx context.Context, rootPath string) ([]string, int, []error) {
	skipSet := buildSkipSet(append(append([]string{}, DefaultSkipPatterns...), s.options.ExcludePatterns...))

	var (
		files   []string
		skipped int
		errs    []error
	)

	err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, walkErr error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		if walkErr != nil {
			errs = append(errs, fmt.Errorf("access error at %s: %w", path, walkErr))
			return nil
		}

		if d.IsDir() {
			if shouldSkipDir(path, rootPath, skipSet) {
				return filepath.SkipDir
			}
			return nil
		}

		if !isSourceFile(path) {
			return nil
		}

		if len(s.options.Patterns) > 0 && !matchesAnyPattern(path, rootPath, s.options.Patterns) {
			skipped++
			return nil
		}

		info, err := d.Info()
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to get file info for %s: %w", path, err))
			return nil
		}
		if info.Size() > s.options.MaxFileSize {
			skipped++
			return nil
		}

		files = append(files, path)
		return nil
	})

	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			errs = append(errs, err)
		}
	}

	return files, skipped, errs
}

func (s *Scanner) parseFilesParallel(ctx context.Context, files []string) ([]*pyast.Module, []ScanError) {
	workers := s.options.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}

	sem := semaphore.NewWeighted(int64(workers))
	g, gCtx := errgroup.WithContext(ctx)

	var (
		mu         sync.Mutex
		modules    = make([]*pyast.Module, 0, len(files))
		scanErrors = make([]ScanError, 0)
	)

	for _, file := range files {
		file := file
		g.Go(func() error {
			if err := sem.Acquire(gCtx, 1); err != nil {
				return nil
			}
			defer sem.Release(1)

			mod, scanErr := s.parseFile(gCtx, file)

			mu.Lock()
			defer mu.Unlock()

			if scanErr != nil {
				scanErrors = append(scanErrors, *scanErr)
				return nil
			}
			modules = append(modules, mod)
			return nil
		})
	}

	_ = g.Wait()

	// Goroutines finish in arbitrary order.
	sort.Slice(modules, func(i, j int) bool {
		return modules[i].Path < modules[j].Path
	})
	sort.Slice(scanErrors, func(i, j int) bool {
		return scanErrors[i].Path < scanErrors[j].Path
	})

	return modules, scanErrors
}

func (s *Scanner) parseFile(ctx context.Context, path string) (*pyast.Module, *ScanError) {
	if err := ctx.Err(); err != nil {
		return nil, &ScanError{
			Err:   err,
			Path:  path,
			Phase: "parsing",
		}
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, &ScanError{
			Err:   err,
			Path:  path,
			Phase: "parsing",
		}
	}

	name := pyast.PackageName(path)
	mod, err := pyast.Build(ctx, content, path, name)
	if err != nil {
		return nil, &ScanError{
			Err:   fmt.Errorf("parse: %w", err),
			Path:  path,
			Phase: "parsing",
		}
	}

	s.options.Logger.Debug("preloaded module",
		zap.String("module", name),
		zap.String("path", path))
	return mod, nil
}

func buildSkipSet(patterns []string) map[string]bool {
	skipSet := make(map[string]bool, len(patterns))
	for _, p := range patterns {
		skipSet[p] = true
	}
	return skipSet
}

// shouldSkipDir skips configured names and hidden directories below the
// root. Underscore directories are kept: they may hold importable helpers.
func shouldSkipDir(path, rootPath string, skipSet map[string]bool) bool {
	if path == rootPath {
		return false
	}

	base := filepath.Base(path)
	return skipSet[base] || strings.HasPrefix(base, ".")
}

func isSourceFile(path string) bool {
	return strings.HasSuffix(path, ".py")
}

func matchesAnyPattern(path, rootPath string, patterns []string) bool {
	rel, err := filepath.Rel(rootPath, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range patterns {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}
