package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// DefaultTestMatch matches names that look like tests.
const DefaultTestMatch = `(?:^|[_./-])[Tt]est`

// DefaultIgnoreFiles are never collected, whatever the plugins say.
var DefaultIgnoreFiles = []string{`^\.`, `^_`, `^setup\.py$`}

// DefaultSrcDirs are plain directories walked even though their names do
// not look like tests.
var DefaultSrcDirs = []string{"lib", "src"}

// SelectorConfig holds the uncompiled selection policy.
type SelectorConfig struct {
	TestMatch   string
	Include     []string
	Exclude     []string
	IgnoreFiles []string
	SrcDirs     []string
	IncludeExe  bool
	// Paths restricts collected files to these globs, relative to Root.
	Paths []string
	// ExcludePaths skips files and directories matching these globs.
	ExcludePaths []string
	Root         string
}

// Selector decides which files, directories, modules, classes, functions
// and methods are collected. Plugin verdicts override the default policy.
type Selector struct {
	match        *regexp.Regexp
	include      []*regexp.Regexp
	exclude      []*regexp.Regexp
	ignoreFiles  []*regexp.Regexp
	srcDirs      map[string]bool
	includeExe   bool
	paths        []string
	excludePaths []string
	root         string

	plugins *Plugins
}

// NewSelector compiles cfg. Empty fields take the defaults.
func NewSelector(cfg SelectorConfig) (*Selector, error) {
	if cfg.TestMatch == "" {
		cfg.TestMatch = DefaultTestMatch
	}
	if cfg.IgnoreFiles == nil {
		cfg.IgnoreFiles = DefaultIgnoreFiles
	}
	if cfg.SrcDirs == nil {
		cfg.SrcDirs = DefaultSrcDirs
	}

	match, err := regexp.Compile(cfg.TestMatch)
	if err != nil {
		return nil, fmt.Errorf("selector: test match: %w", err)
	}
	s := &Selector{
		match:        match,
		srcDirs:      make(map[string]bool),
		includeExe:   cfg.IncludeExe,
		paths:        cfg.Paths,
		excludePaths: cfg.ExcludePaths,
		root:         cfg.Root,
	}
	if s.include, err = compileAll("include", cfg.Include); err != nil {
		return nil, err
	}
	if s.exclude, err = compileAll("exclude", cfg.Exclude); err != nil {
		return nil, err
	}
	if s.ignoreFiles, err = compileAll("ignore files", cfg.IgnoreFiles); err != nil {
		return nil, err
	}
	for _, dir := range cfg.SrcDirs {
		s.srcDirs[dir] = true
	}
	for _, pattern := range append(append([]string{}, cfg.Paths...), cfg.ExcludePaths...) {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("selector: invalid path pattern %q", pattern)
		}
	}
	return s, nil
}

// DefaultSelector returns the default policy.
func DefaultSelector() *Selector {
	s, err := NewSelector(SelectorConfig{})
	if err != nil {
		panic(err)
	}
	return s
}

func compileAll(field string, patterns []string) ([]*regexp.Regexp, error) {
	var out []*regexp.Regexp
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("selector: %s %q: %w", field, p, err)
		}
		out = append(out, re)
	}
	return out, nil
}

func anyMatch(res []*regexp.Regexp, name string) bool {
	for _, re := range res {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// withPlugins returns a copy consulting plugins.
func (s *Selector) withPlugins(plugins *Plugins) *Selector {
	c := *s
	c.plugins = plugins
	return &c
}

// Matches reports whether name looks like a test: it matches the test
// pattern or an include pattern, and no exclude pattern.
func (s *Selector) Matches(name string) bool {
	return (s.match.MatchString(name) || anyMatch(s.include, name)) &&
		!anyMatch(s.exclude, name)
}

func (s *Selector) verdict(v Verdict, wanted bool) bool {
	switch v {
	case Yes:
		return true
	case No:
		return false
	}
	return wanted
}

// relPath returns path relative to the root in slash form, or "" when it
// is outside the root.
func (s *Selector) relPath(path string) string {
	if s.root == "" {
		return filepath.ToSlash(path)
	}
	rel, err := filepath.Rel(s.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (s *Selector) excludedPath(path string) bool {
	rel := s.relPath(path)
	if rel == "" {
		return false
	}
	for _, pattern := range s.excludePaths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

func (s *Selector) includedPath(path string) bool {
	if len(s.paths) == 0 {
		return true
	}
	rel := s.relPath(path)
	for _, pattern := range s.paths {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// WantFile reports whether a file met during a walk should be collected.
func (s *Selector) WantFile(path string) bool {
	base := filepath.Base(path)
	if anyMatch(s.ignoreFiles, base) {
		return false
	}
	if s.excludedPath(path) {
		return false
	}
	if !s.includeExe && isExecutable(path) {
		return false
	}
	wanted := filepath.Ext(base) == ".py" && s.Matches(base) && s.includedPath(path)
	return s.verdict(s.plugins.WantFile(path), wanted)
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return info.Mode().IsRegular() && info.Mode().Perm()&0o111 != 0
}

// WantDirectory reports whether a directory should be walked. Packages are
// wanted unless excluded; plain directories must look like tests or be a
// source directory.
func (s *Selector) WantDirectory(path string) bool {
	if s.excludedPath(path) {
		return false
	}
	tail := filepath.Base(path)
	var wanted bool
	if pyast.IsPackage(path) {
		wanted = !anyMatch(s.exclude, tail)
	} else {
		wanted = s.Matches(tail) || s.srcDirs[tail]
	}
	return s.verdict(s.plugins.WantDirectory(path), wanted)
}

// WantModule reports whether a discovered module should be collected.
func (s *Selector) WantModule(mod *pyast.Module) bool {
	var wanted bool
	if mod.Test != nil {
		wanted = *mod.Test
	} else {
		parts := strings.Split(mod.Name, ".")
		wanted = s.Matches(parts[len(parts)-1]) || mod.Name == "__main__"
	}
	return s.verdict(s.plugins.WantModule(mod), wanted)
}

// WantClass reports whether a module-level class should be collected.
// declared is the class's effective __test__ value.
func (s *Selector) WantClass(cls *pyast.Class, declared *bool, isTestCase bool) bool {
	var wanted bool
	if declared != nil {
		wanted = *declared
	} else {
		wanted = !strings.HasPrefix(cls.Name, "_") && (isTestCase || s.Matches(cls.Name))
	}
	return s.verdict(s.plugins.WantClass(cls), wanted)
}

// WantFunction reports whether a module-level function should be collected.
func (s *Selector) WantFunction(fn *pyast.Function) bool {
	var wanted bool
	if fn.Test != nil {
		wanted = *fn.Test
	} else {
		wanted = !strings.HasPrefix(fn.Name, "_") && s.Matches(fn.Name)
	}
	return s.verdict(s.plugins.WantFunction(fn), wanted)
}

// WantMethod reports whether a method should be collected. Private names
// are never collected.
func (s *Selector) WantMethod(fn *pyast.Function) bool {
	if strings.HasPrefix(fn.Name, "_") {
		return false
	}
	var wanted bool
	if fn.Test != nil {
		wanted = *fn.Test
	} else {
		wanted = s.Matches(fn.Name)
	}
	return s.verdict(s.plugins.WantMethod(fn), wanted)
}
