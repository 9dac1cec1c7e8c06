package loader

import (
	"context"
	"os"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// LoadTestsFromName loads the tests named by name: a file, a directory, a
// dotted module name, or any of these followed by ":callable.path". When
// mod is set, name is an attribute path inside mod. discovered marks names
// produced by a directory walk, whose modules must look like tests.
func (l *Loader) LoadTestsFromName(ctx context.Context, name string, mod *pyast.Module, discovered bool) *Suite {
	modName := ""
	if mod != nil {
		modName = mod.Name
	}
	l.log.Debug("load from name", zap.String("name", name), zap.String("module", modName))

	if tests := l.plugins.LoadTestsFromName(ctx, name, mod); len(tests) > 0 {
		return NewSuite(tests, nil)
	}

	addr := ParseAddress(name, l.workingDir)

	if mod != nil {
		if addr.Call != "" {
			name = addr.Call
		}
		parent, obj := l.Resolve(ctx, name, mod)
		if f, ok := obj.(*Failure); ok {
			if IsInterrupt(f.Err) {
				return errSuite(f.Err.Err)
			}
			return NewSuite([]Test{f}, nil)
		}
		origin := ""
		if cls, ok := parent.(*pyast.Class); ok && cls.Module != mod.Name {
			origin = mod.Name
		}
		return NewSuite([]Test{l.makeTest(ctx, obj, parent, origin)}, parent)
	}

	switch {
	case addr.Module != "":
		var (
			target *pyast.Module
			call   = addr.Call
			err    error
		)
		if addr.Filename == "" {
			var tail string
			target, tail, err = l.importDotted(ctx, addr.Module)
			call = joinAttr(tail, call)
		} else {
			l.plugins.BeforeImport(addr.Filename, addr.Module)
			target, err = l.importer.ImportFromPath(ctx, addr.Filename, addr.Module)
			l.plugins.AfterImport(addr.Filename, addr.Module)
		}
		if err != nil {
			if IsInterrupt(err) {
				return errSuite(err)
			}
			return NewSuite([]Test{failureFrom(err, ImportFailure, addr.String())}, nil)
		}
		if call != "" {
			return l.LoadTestsFromName(ctx, call, target, false)
		}
		return l.LoadTestsFromModule(ctx, target, discovered)

	case addr.Filename != "":
		path := addr.Filename
		if addr.Call != "" {
			return NewSuite([]Test{Failuref(ResolutionFailure, name,
				"Can't find callable %s in file %s: file is not a python module", addr.Call, path)}, nil)
		}
		info, err := os.Stat(path)
		switch {
		case err != nil:
			return NewSuite([]Test{Failuref(IOFailure, path, "No such file %s", path)}, nil)
		case info.IsDir():
			return l.LoadTestsFromDir(ctx, path)
		default:
			return l.LoadTestsFromFile(ctx, path)
		}
	}

	return NewSuite([]Test{Failuref(ParseFailure, name, "Unresolvable test name %s", name)}, nil)
}

// importDotted imports the longest importable prefix of dotted and returns
// the rest as an attribute path.
func (l *Loader) importDotted(ctx context.Context, dotted string) (*pyast.Module, string, error) {
	parts := strings.Split(dotted, ".")
	var firstErr error
	for i := len(parts); i > 0; i-- {
		mod, err := l.importer.Import(ctx, strings.Join(parts[:i], "."), nil)
		if err == nil {
			return mod, strings.Join(parts[i:], "."), nil
		}
		if IsInterrupt(err) {
			return nil, "", err
		}
		// A module that exists but fails to load is reported as is.
		if !isNotFound(err) {
			return nil, "", err
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

func joinAttr(head, tail string) string {
	switch {
	case head == "":
		return tail
	case tail == "":
		return head
	}
	return head + "." + tail
}

// LoadTestsFromNames loads every name into one suite. A plugin may
// resolve part of the list first.
func (l *Loader) LoadTestsFromNames(ctx context.Context, names []string, mod *pyast.Module) *Suite {
	var tests []Test
	if plugTests, remaining, handled := l.plugins.LoadTestsFromNames(ctx, names, mod); handled {
		if len(plugTests) > 0 {
			tests = append(tests, NewSuite(plugTests, nil))
		}
		names = remaining
	}
	for _, name := range names {
		tests = append(tests, l.LoadTestsFromName(ctx, name, mod, false))
	}
	return NewSuite(tests, nil)
}

// LoadTestsFromModule collects the wanted classes and functions of mod,
// descends into its package directory and appends plugin contributions.
// A discovered module that does not look like a test module contributes
// only its package contents and plugin tests.
func (l *Loader) LoadTestsFromModule(ctx context.Context, mod *pyast.Module, discovered bool) *Suite {
	l.log.Debug("load from module", zap.String("module", mod.Name))

	var tests []Test
	if !discovered || l.selector.WantModule(mod) {
		var (
			classes []*pyast.Class
			funcs   []*pyast.Function
			seen    = make(map[pyast.Object]bool)
		)
		for _, member := range mod.Members() {
			obj, ok := l.moduleAttr(ctx, mod, member.Name, 0, nil)
			if !ok || seen[obj] {
				continue
			}
			switch o := obj.(type) {
			case *pyast.Class:
				declared := l.declaredTest(ctx, o, make(map[*pyast.Class]bool))
				if l.selector.WantClass(o, declared, l.IsTestCase(ctx, o)) {
					seen[obj] = true
					classes = append(classes, o)
				}
			case *pyast.Function:
				if o.Owner == nil && l.selector.WantFunction(o) {
					seen[obj] = true
					funcs = append(funcs, o)
				}
			}
		}

		sort.SliceStable(classes, func(i, j int) bool {
			return classes[i].Name < classes[j].Name
		})
		sort.SliceStable(funcs, func(i, j int) bool {
			return funcs[i].Location.StartLine < funcs[j].Location.StartLine
		})

		for _, cls := range classes {
			tests = append(tests, l.makeTest(ctx, cls, mod, ""))
		}
		for _, fn := range funcs {
			tests = append(tests, l.makeTest(ctx, fn, mod, ""))
		}
	}

	if mod.IsPackage() {
		tests = append(tests, l.LoadTestsFromDir(ctx, mod.Dir))
	}
	tests = append(tests, l.plugins.LoadTestsFromModule(ctx, mod)...)

	return NewSuite(tests, mod)
}

// LoadTestsFromFile asks the file plugins for tests in a non-Python file.
func (l *Loader) LoadTestsFromFile(ctx context.Context, path string) *Suite {
	l.log.Debug("load from non-module file", zap.String("path", path))

	tests, ok := l.plugins.LoadTestsFromFile(ctx, path)
	if ok {
		return NewSuite(tests, nil)
	}

	f, err := os.Open(path)
	if err != nil {
		return NewSuite([]Test{NewFailure(IOFailure, path, err)}, nil)
	}
	f.Close()
	return NewSuite([]Test{Failuref(TypeFailure, path, "Unable to load tests from file %s", path)}, nil)
}
