package loader

import (
	"context"
	"sort"
	"sync"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// DefaultPriority is the default priority for plugins.
// Higher priority plugins are consulted first.
const DefaultPriority = 100

// Verdict is a plugin's answer to a selection question.
type Verdict int

const (
	// Abstain leaves the decision to the next plugin or the default policy.
	Abstain Verdict = iota
	Yes
	No
)

// Plugin is the base interface of loader extensions. A plugin opts into
// hooks by also implementing any of the interfaces below.
type Plugin interface {
	Name() string
	Priority() int
}

// DirectoryObserver is notified around each directory walk.
type DirectoryObserver interface {
	BeforeDirectory(path string)
	AfterDirectory(path string)
}

// ImportObserver is notified around each import from a path.
type ImportObserver interface {
	BeforeImport(filename, module string)
	AfterImport(filename, module string)
}

// ContextObserver is notified around the creation of each directory entry's
// tests.
type ContextObserver interface {
	BeforeContext()
	AfterContext()
}

// DirLoader contributes tests at the end of a directory walk.
type DirLoader interface {
	LoadTestsFromDir(ctx context.Context, path string) []Test
}

// ModuleLoader contributes tests to a module suite.
type ModuleLoader interface {
	LoadTestsFromModule(ctx context.Context, mod *pyast.Module) []Test
}

// NameLoader gets the first chance at a test name. Any result replaces
// the default resolution.
type NameLoader interface {
	LoadTestsFromName(ctx context.Context, name string, mod *pyast.Module) []Test
}

// NamesLoader may pre-resolve part of a name list. It returns the tests it
// produced and the names left for the loader.
type NamesLoader interface {
	LoadTestsFromNames(ctx context.Context, names []string, mod *pyast.Module) (tests []Test, remaining []string, handled bool)
}

// FileLoader extracts tests from non-Python files. ok is false when the
// plugin does not handle the file, which differs from handling it and
// finding nothing.
type FileLoader interface {
	LoadTestsFromFile(ctx context.Context, path string) (tests []Test, ok bool)
}

// TestCaseLoader contributes tests for unittest case classes.
type TestCaseLoader interface {
	LoadTestsFromTestCase(ctx context.Context, cls *pyast.Class) []Test
}

// TestClassLoader contributes tests for plain test classes.
type TestClassLoader interface {
	LoadTestsFromTestClass(ctx context.Context, cls *pyast.Class) []Test
}

// TestMaker gets the first chance to turn an object into tests.
type TestMaker interface {
	MakeTest(ctx context.Context, obj, parent pyast.Object) []Test
}

// FileSelector votes on files met during a directory walk.
type FileSelector interface {
	WantFile(path string) Verdict
}

// DirectorySelector votes on directories met during a directory walk.
type DirectorySelector interface {
	WantDirectory(path string) Verdict
}

// ModuleSelector votes on discovered modules.
type ModuleSelector interface {
	WantModule(mod *pyast.Module) Verdict
}

// ClassSelector votes on module-level classes.
type ClassSelector interface {
	WantClass(cls *pyast.Class) Verdict
}

// FunctionSelector votes on module-level functions.
type FunctionSelector interface {
	WantFunction(fn *pyast.Function) Verdict
}

// MethodSelector votes on methods of test classes.
type MethodSelector interface {
	WantMethod(fn *pyast.Function) Verdict
}

// Plugins holds registered plugins ordered by priority and dispatches hooks.
type Plugins struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewPlugins creates a manager holding the given plugins.
func NewPlugins(plugins ...Plugin) *Plugins {
	p := &Plugins{}
	for _, plugin := range plugins {
		p.Register(plugin)
	}
	return p
}

// Register adds a plugin.
func (p *Plugins) Register(plugin Plugin) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.plugins = append(p.plugins, plugin)
	sort.SliceStable(p.plugins, func(i, j int) bool {
		return p.plugins[i].Priority() > p.plugins[j].Priority()
	})
}

// All returns a copy of the registered plugins.
func (p *Plugins) All() []Plugin {
	if p == nil {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	result := make([]Plugin, len(p.plugins))
	copy(result, p.plugins)
	return result
}

// FindByName returns the plugin with the given name.
func (p *Plugins) FindByName(name string) Plugin {
	for _, plugin := range p.All() {
		if plugin.Name() == name {
			return plugin
		}
	}
	return nil
}

// BeforeDirectory notifies directory observers that path is about to be walked.
func (p *Plugins) BeforeDirectory(path string) {
	for _, plugin := range p.All() {
		if h, ok := plugin.(DirectoryObserver); ok {
			h.BeforeDirectory(path)
		}
	}
}

// AfterDirectory notifies directory observers that the walk of path ended.
func (p *Plugins) AfterDirectory(path string) {
	for _, plugin := range p.All() {
		if h, ok := plugin.(DirectoryObserver); ok {
			h.AfterDirectory(path)
		}
	}
}

// BeforeImport notifies import observers before module is loaded from filename.
func (p *Plugins) BeforeImport(filename, module string) {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ImportObserver); ok {
			h.BeforeImport(filename, module)
		}
	}
}

// AfterImport notifies import observers after module was loaded from filename.
func (p *Plugins) AfterImport(filename, module string) {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ImportObserver); ok {
			h.AfterImport(filename, module)
		}
	}
}

// BeforeContext notifies context observers before the search path changes.
func (p *Plugins) BeforeContext() {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ContextObserver); ok {
			h.BeforeContext()
		}
	}
}

// AfterContext notifies context observers after the search path is restored.
func (p *Plugins) AfterContext() {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ContextObserver); ok {
			h.AfterContext()
		}
	}
}

// LoadTestsFromDir collects the tests every directory loader adds for path.
func (p *Plugins) LoadTestsFromDir(ctx context.Context, path string) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(DirLoader); ok {
			tests = append(tests, h.LoadTestsFromDir(ctx, path)...)
		}
	}
	return tests
}

// LoadTestsFromModule collects the tests every module loader adds for mod.
func (p *Plugins) LoadTestsFromModule(ctx context.Context, mod *pyast.Module) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(ModuleLoader); ok {
			tests = append(tests, h.LoadTestsFromModule(ctx, mod)...)
		}
	}
	return tests
}

// LoadTestsFromName collects the tests every name loader produces for name.
func (p *Plugins) LoadTestsFromName(ctx context.Context, name string, mod *pyast.Module) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(NameLoader); ok {
			tests = append(tests, h.LoadTestsFromName(ctx, name, mod)...)
		}
	}
	return tests
}

// LoadTestsFromNames asks plugins in order; the first that handles the
// list wins.
func (p *Plugins) LoadTestsFromNames(ctx context.Context, names []string, mod *pyast.Module) ([]Test, []string, bool) {
	for _, plugin := range p.All() {
		if h, ok := plugin.(NamesLoader); ok {
			if tests, remaining, handled := h.LoadTestsFromNames(ctx, names, mod); handled {
				return tests, remaining, true
			}
		}
	}
	return nil, names, false
}

// LoadTestsFromFile merges the results of every applicable plugin.
func (p *Plugins) LoadTestsFromFile(ctx context.Context, path string) ([]Test, bool) {
	var tests []Test
	applicable := false
	for _, plugin := range p.All() {
		h, ok := plugin.(FileLoader)
		if !ok {
			continue
		}
		found, handled := h.LoadTestsFromFile(ctx, path)
		if !handled {
			continue
		}
		applicable = true
		tests = append(tests, found...)
	}
	return tests, applicable
}

// LoadTestsFromTestCase collects the extra tests plugins find in a TestCase class.
func (p *Plugins) LoadTestsFromTestCase(ctx context.Context, cls *pyast.Class) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(TestCaseLoader); ok {
			tests = append(tests, h.LoadTestsFromTestCase(ctx, cls)...)
		}
	}
	return tests
}

// LoadTestsFromTestClass collects the extra tests plugins find in a plain test class.
func (p *Plugins) LoadTestsFromTestClass(ctx context.Context, cls *pyast.Class) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(TestClassLoader); ok {
			tests = append(tests, h.LoadTestsFromTestClass(ctx, cls)...)
		}
	}
	return tests
}

// MakeTest collects the tests plugins build from obj.
func (p *Plugins) MakeTest(ctx context.Context, obj, parent pyast.Object) []Test {
	var tests []Test
	for _, plugin := range p.All() {
		if h, ok := plugin.(TestMaker); ok {
			tests = append(tests, h.MakeTest(ctx, obj, parent)...)
		}
	}
	return tests
}

// WantFile returns the first non-abstaining verdict on collecting the file at path.
func (p *Plugins) WantFile(path string) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(FileSelector); ok {
			if v := h.WantFile(path); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}

// WantDirectory returns the first non-abstaining verdict on walking path.
func (p *Plugins) WantDirectory(path string) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(DirectorySelector); ok {
			if v := h.WantDirectory(path); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}

// WantModule returns the first non-abstaining verdict on collecting tests from mod.
func (p *Plugins) WantModule(mod *pyast.Module) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ModuleSelector); ok {
			if v := h.WantModule(mod); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}

// WantClass returns the first non-abstaining verdict on collecting cls.
func (p *Plugins) WantClass(cls *pyast.Class) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(ClassSelector); ok {
			if v := h.WantClass(cls); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}

// WantFunction returns the first non-abstaining verdict on collecting fn.
func (p *Plugins) WantFunction(fn *pyast.Function) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(FunctionSelector); ok {
			if v := h.WantFunction(fn); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}

// WantMethod returns the first non-abstaining verdict on collecting the method fn.
func (p *Plugins) WantMethod(fn *pyast.Function) Verdict {
	for _, plugin := range p.All() {
		if h, ok := plugin.(MethodSelector); ok {
			if v := h.WantMethod(fn); v != Abstain {
				return v
			}
		}
	}
	return Abstain
}
