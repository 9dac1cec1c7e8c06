package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// SearchPath is the loader-local list of import roots.
type SearchPath struct {
	mu   sync.Mutex
	dirs []string
}

// Dirs returns a snapshot of the search path.
func (p *SearchPath) Dirs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]string, len(p.dirs))
	copy(out, p.dirs)
	return out
}

// Acquire prepends the dirs that are not already present. The returned
// guard removes exactly those entries when released.
func (p *SearchPath) Acquire(dirs ...string) *PathGuard {
	p.mu.Lock()
	defer p.mu.Unlock()

	guard := &PathGuard{path: p}
	for _, dir := range dirs {
		if dir == "" || p.contains(dir) {
			continue
		}
		p.dirs = append([]string{dir}, p.dirs...)
		guard.added = append(guard.added, dir)
	}
	return guard
}

func (p *SearchPath) contains(dir string) bool {
	for _, d := range p.dirs {
		if d == dir {
			return true
		}
	}
	return false
}

func (p *SearchPath) remove(dirs []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, dir := range dirs {
		for i, d := range p.dirs {
			if d == dir {
				p.dirs = append(p.dirs[:i], p.dirs[i+1:]...)
				break
			}
		}
	}
}

// PathGuard undoes one Acquire.
type PathGuard struct {
	path  *SearchPath
	added []string
	once  sync.Once
}

// Release removes the guarded entries. Only the first call has an effect.
func (g *PathGuard) Release() {
	if g == nil {
		return
	}
	g.once.Do(func() {
		g.path.remove(g.added)
	})
}

// Importer turns file paths and dotted names into static modules. Modules
// are cached by source path and by dotted name.
type Importer struct {
	Path *SearchPath

	mu     sync.Mutex
	byPath map[string]*pyast.Module
	byName map[string]*pyast.Module
	seeded map[string]*pyast.Module

	log         *zap.Logger
	maxFileSize int64
}

// NewImporter returns an importer with an empty cache.
func NewImporter(log *zap.Logger, maxFileSize int64) *Importer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Importer{
		Path:        &SearchPath{},
		byPath:      make(map[string]*pyast.Module),
		byName:      make(map[string]*pyast.Module),
		seeded:      make(map[string]*pyast.Module),
		log:         log,
		maxFileSize: maxFileSize,
	}
}

// Seed hands already parsed modules to the importer. Each is keyed by its
// source path and consumed by the first import of that path, which assigns
// the final dotted name.
func (im *Importer) Seed(modules []*pyast.Module) {
	im.mu.Lock()
	defer im.mu.Unlock()

	for _, mod := range modules {
		im.seeded[mod.Path] = mod
	}
}

// Loaded returns a module already imported under name.
func (im *Importer) Loaded(name string) (*pyast.Module, bool) {
	im.mu.Lock()
	defer im.mu.Unlock()

	mod, ok := im.byName[name]
	return mod, ok
}

// ImportFromPath imports the module or package at path under the dotted
// name fqname.
func (im *Importer) ImportFromPath(ctx context.Context, path, fqname string) (*pyast.Module, error) {
	path = pyast.SourceFile(path)

	var file, dir string
	info, err := os.Stat(path)
	switch {
	case err != nil:
		return nil, &LoadError{Kind: IOFailure, Name: path, Err: err}
	case info.IsDir():
		dir = path
		file = filepath.Join(path, pyast.InitFile)
	default:
		file = path
	}

	im.mu.Lock()
	if mod, ok := im.byPath[file]; ok && mod.Name == fqname {
		im.byName[fqname] = mod
		im.mu.Unlock()
		return mod, nil
	}
	im.mu.Unlock()

	mod, err := im.build(ctx, file, fqname)
	if err != nil {
		return nil, err
	}
	mod.Dir = dir

	im.mu.Lock()
	im.byPath[file] = mod
	im.byName[fqname] = mod
	im.mu.Unlock()

	im.log.Debug("imported module",
		zap.String("module", fqname),
		zap.String("path", file))
	return mod, nil
}

func (im *Importer) build(ctx context.Context, file, fqname string) (*pyast.Module, error) {
	im.mu.Lock()
	seeded, ok := im.seeded[file]
	delete(im.seeded, file)
	im.mu.Unlock()

	if ok {
		return renamed(seeded, fqname), nil
	}

	if im.maxFileSize > 0 {
		if info, err := os.Stat(file); err == nil && info.Size() > im.maxFileSize {
			return nil, &LoadError{
				Kind: ImportFailure,
				Name: fqname,
				Err:  fmt.Errorf("%s exceeds the %d byte limit", file, im.maxFileSize),
			}
		}
	}

	source, err := os.ReadFile(file)
	if err != nil {
		return nil, &LoadError{Kind: IOFailure, Name: file, Err: err}
	}

	mod, err := pyast.Build(ctx, source, file, fqname)
	if err != nil {
		if IsInterrupt(err) {
			return nil, err
		}
		return nil, &LoadError{Kind: ImportFailure, Name: fqname, Err: err}
	}
	return mod, nil
}

// renamed re-attributes a preloaded module and its definitions to fqname.
func renamed(mod *pyast.Module, fqname string) *pyast.Module {
	if mod.Name == fqname {
		return mod
	}
	old := mod.Name
	mod.Name = fqname
	for _, name := range mod.Names() {
		obj, _ := mod.Lookup(name)
		switch o := obj.(type) {
		case *pyast.Function:
			if o.Module == old {
				o.Module = fqname
			}
		case *pyast.Class:
			if o.Module == old {
				o.Module = fqname
				for _, member := range o.Names() {
					if fn, ok := lookupFunction(&o.Scope, member); ok && fn.Module == old {
						fn.Module = fqname
					}
				}
			}
		}
	}
	return mod
}

func lookupFunction(scope *pyast.Scope, name string) (*pyast.Function, bool) {
	obj, ok := scope.Lookup(name)
	if !ok {
		return nil, false
	}
	fn, ok := obj.(*pyast.Function)
	return fn, ok
}

// Import finds fqname on the search path, trying the import root of from
// first when it is set.
func (im *Importer) Import(ctx context.Context, fqname string, from *pyast.Module) (*pyast.Module, error) {
	if mod, ok := im.Loaded(fqname); ok {
		return mod, nil
	}
	if !pyast.IsDottedName(fqname) {
		return nil, &LoadError{Kind: ImportFailure, Name: fqname, Err: fmt.Errorf("%w %q", ErrModuleNotFound, fqname)}
	}

	roots := im.Path.Dirs()
	if from != nil {
		roots = append([]string{pyast.ImportRoot(from.Path)}, roots...)
	}

	parts := strings.Split(fqname, ".")
	for _, root := range roots {
		path, ok := locate(root, parts)
		if !ok {
			continue
		}
		return im.ImportFromPath(ctx, path, fqname)
	}

	return nil, &LoadError{Kind: ImportFailure, Name: fqname, Err: fmt.Errorf("%w %q", ErrModuleNotFound, fqname)}
}

// locate maps a dotted name to a package directory or .py file under root.
// Every enclosing directory must be a package.
func locate(root string, parts []string) (string, bool) {
	dir := root
	for _, part := range parts[:len(parts)-1] {
		dir = filepath.Join(dir, part)
		if !pyast.IsPackage(dir) {
			return "", false
		}
	}

	last := filepath.Join(dir, parts[len(parts)-1])
	if pyast.IsPackage(last) {
		return last, true
	}
	if info, err := os.Stat(last + ".py"); err == nil && !info.IsDir() {
		return last + ".py", true
	}
	return "", false
}

// isNotFound reports whether err means the module does not exist, as
// opposed to existing but failing to load.
func isNotFound(err error) bool {
	return errors.Is(err, ErrModuleNotFound)
}
