package loader

import (
	"context"
	"sort"
	"strings"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// maxResolveDepth bounds chains of aliases, imports and star imports.
const maxResolveDepth = 32

// External is an object defined outside the loaded sources, known only by
// its qualified name.
type External struct {
	Qualified string
}

func (e *External) Kind() pyast.Kind { return pyast.KindOther }
func (e *External) String() string   { return "<external " + e.Qualified + ">" }

type attrKey struct {
	mod  *pyast.Module
	name string
}

// attrMemo records module attribute lookups made while resolving one
// expression. A nil entry is a lookup in progress or one that failed.
type attrMemo map[attrKey]pyast.Object

// Resolve walks dotted from root one attribute at a time. It returns the
// last object reached and its parent; when a segment is missing the
// target is a *Failure naming the whole path. Attributes of external
// objects are unknown and count as missing.
func (l *Loader) Resolve(ctx context.Context, dotted string, root pyast.Object) (parent, target pyast.Object) {
	obj := root
	for _, part := range strings.Split(dotted, ".") {
		parent = obj
		if _, ok := obj.(*External); ok {
			return parent, Failuref(ResolutionFailure, dotted, "No such test %s", dotted)
		}
		next, ok := l.getattr(ctx, obj, part, 0, nil)
		if !ok {
			if err := ctx.Err(); err != nil {
				return parent, NewFailure(ResolutionFailure, dotted, err)
			}
			return parent, Failuref(ResolutionFailure, dotted, "No such test %s", dotted)
		}
		obj = next
	}
	return parent, obj
}

func (l *Loader) getattr(ctx context.Context, obj pyast.Object, name string, depth int, memo attrMemo) (pyast.Object, bool) {
	if depth > maxResolveDepth || name == "" || ctx.Err() != nil {
		return nil, false
	}
	switch o := obj.(type) {
	case *pyast.Module:
		return l.moduleAttr(ctx, o, name, depth, memo)
	case *pyast.Class:
		return l.classAttr(ctx, o, name, depth, make(map[*pyast.Class]bool), memo)
	case *External:
		return &External{Qualified: o.Qualified + "." + name}, true
	}
	return nil, false
}

// moduleAttr looks name up in the module, then in star-imported modules
// (the last one first, as later imports rebind), then as a submodule of a
// package. memo may be nil.
func (l *Loader) moduleAttr(ctx context.Context, mod *pyast.Module, name string, depth int, memo attrMemo) (pyast.Object, bool) {
	if depth > maxResolveDepth || ctx.Err() != nil {
		return nil, false
	}
	if memo == nil {
		memo = make(attrMemo)
	}
	key := attrKey{mod: mod, name: name}
	if obj, seen := memo[key]; seen {
		return obj, obj != nil
	}
	memo[key] = nil

	obj, ok := l.lookupModuleAttr(ctx, mod, name, depth, memo)
	if ok {
		memo[key] = obj
	}
	return obj, ok
}

func (l *Loader) lookupModuleAttr(ctx context.Context, mod *pyast.Module, name string, depth int, memo attrMemo) (pyast.Object, bool) {
	if obj, ok := mod.Lookup(name); ok {
		return l.deref(ctx, mod, nil, obj, depth+1, memo)
	}

	for i := len(mod.StarImports) - 1; i >= 0; i-- {
		star := mod.StarImports[i]
		target, err := l.importer.Import(ctx, absoluteModule(mod, star.Module, star.Level), mod)
		if err != nil || !exports(target, name) {
			continue
		}
		if obj, ok := l.moduleAttr(ctx, target, name, depth+1, memo); ok {
			return obj, true
		}
	}

	if mod.IsPackage() {
		if sub, err := l.importer.Import(ctx, mod.Name+"."+name, mod); err == nil {
			return sub, true
		}
	}
	return nil, false
}

// exports reports whether "from mod import *" binds name: the names listed
// in __all__ when the module declares it, the public names otherwise.
func exports(mod *pyast.Module, name string) bool {
	if mod.All != nil {
		for _, n := range mod.All {
			if n == name {
				return true
			}
		}
		return false
	}
	return !strings.HasPrefix(name, "_")
}

// classAttr looks name up in the class, then depth-first in its bases.
func (l *Loader) classAttr(ctx context.Context, cls *pyast.Class, name string, depth int, visited map[*pyast.Class]bool, memo attrMemo) (pyast.Object, bool) {
	if visited[cls] || depth > maxResolveDepth || ctx.Err() != nil {
		return nil, false
	}
	visited[cls] = true

	if obj, ok := cls.Lookup(name); ok {
		mod, found := l.importer.Loaded(cls.Module)
		if !found {
			return obj, true
		}
		return l.deref(ctx, mod, cls, obj, depth+1, memo)
	}

	for _, base := range l.bases(ctx, cls, depth) {
		if b, ok := base.(*pyast.Class); ok {
			if obj, ok := l.classAttr(ctx, b, name, depth+1, visited, memo); ok {
				return obj, true
			}
		}
	}
	return nil, false
}

// deref follows imports and aliases to the object they name.
func (l *Loader) deref(ctx context.Context, mod *pyast.Module, cls *pyast.Class, obj pyast.Object, depth int, memo attrMemo) (pyast.Object, bool) {
	switch o := obj.(type) {
	case *pyast.Import:
		return l.resolveImport(ctx, mod, o, depth, memo)
	case *pyast.Alias:
		return l.resolveDotted(ctx, mod, cls, o.Target, depth, memo)
	}
	return obj, true
}

func (l *Loader) resolveImport(ctx context.Context, mod *pyast.Module, imp *pyast.Import, depth int, memo attrMemo) (pyast.Object, bool) {
	abs := absoluteModule(mod, imp.Module, imp.Level)
	if imp.Attr == "" {
		target, err := l.importer.Import(ctx, abs, mod)
		if err != nil {
			return &External{Qualified: abs}, true
		}
		return target, true
	}

	if abs != "" {
		if target, err := l.importer.Import(ctx, abs, mod); err == nil {
			if obj, ok := l.moduleAttr(ctx, target, imp.Attr, depth+1, memo); ok {
				return obj, true
			}
		}
	}
	if abs == "" {
		return &External{Qualified: imp.Attr}, true
	}
	return &External{Qualified: abs + "." + imp.Attr}, true
}

// resolveDotted evaluates a dotted expression in the scope of cls (when
// set) and then mod. Names bound nowhere are treated as builtins.
func (l *Loader) resolveDotted(ctx context.Context, mod *pyast.Module, cls *pyast.Class, dotted string, depth int, memo attrMemo) (pyast.Object, bool) {
	if depth > maxResolveDepth || ctx.Err() != nil {
		return nil, false
	}
	if memo == nil {
		memo = make(attrMemo)
	}
	parts := strings.Split(dotted, ".")

	var (
		obj pyast.Object
		ok  bool
	)
	if cls != nil {
		if obj, ok = cls.Lookup(parts[0]); ok {
			obj, ok = l.deref(ctx, mod, cls, obj, depth+1, memo)
		}
	}
	if !ok {
		obj, ok = l.moduleAttr(ctx, mod, parts[0], depth+1, memo)
	}
	if !ok {
		if ctx.Err() != nil {
			return nil, false
		}
		return &External{Qualified: dotted}, true
	}

	for _, part := range parts[1:] {
		if obj, ok = l.getattr(ctx, obj, part, depth+1, memo); !ok {
			return nil, false
		}
	}
	return obj, true
}

// absoluteModule turns a possibly relative import into a dotted name.
func absoluteModule(mod *pyast.Module, module string, level int) string {
	if level == 0 {
		return module
	}
	parts := strings.Split(mod.Name, ".")
	if !mod.IsPackage() {
		parts = parts[:len(parts)-1]
	}
	if drop := level - 1; drop <= len(parts) {
		parts = parts[:len(parts)-drop]
	}
	if module != "" {
		parts = append(parts, module)
	}
	return strings.Join(parts, ".")
}

// bases resolves the base class expressions of cls.
func (l *Loader) bases(ctx context.Context, cls *pyast.Class, depth int) []pyast.Object {
	mod, found := l.importer.Loaded(cls.Module)

	out := make([]pyast.Object, 0, len(cls.Bases))
	for _, expr := range cls.Bases {
		if !found || !pyast.IsDottedName(expr) {
			out = append(out, &External{Qualified: expr})
			continue
		}
		obj, ok := l.resolveDotted(ctx, mod, nil, expr, depth+1, nil)
		if !ok {
			obj = &External{Qualified: expr}
		}
		out = append(out, obj)
	}
	return out
}

// IsTestCase reports whether cls derives from a unittest base class.
func (l *Loader) IsTestCase(ctx context.Context, cls *pyast.Class) bool {
	return l.isTestCase(ctx, cls, make(map[*pyast.Class]bool))
}

func (l *Loader) isTestCase(ctx context.Context, cls *pyast.Class, visited map[*pyast.Class]bool) bool {
	if visited[cls] {
		return false
	}
	visited[cls] = true

	for _, base := range l.bases(ctx, cls, 0) {
		switch b := base.(type) {
		case *pyast.Class:
			if l.isTestCase(ctx, b, visited) {
				return true
			}
		case *External:
			if l.testCaseBases[b.Qualified] {
				return true
			}
		}
	}
	return false
}

// declaredTest returns the __test__ value cls defines or inherits.
func (l *Loader) declaredTest(ctx context.Context, cls *pyast.Class, visited map[*pyast.Class]bool) *bool {
	if visited[cls] {
		return nil
	}
	visited[cls] = true

	if cls.Test != nil {
		return cls.Test
	}
	for _, base := range l.bases(ctx, cls, 0) {
		if b, ok := base.(*pyast.Class); ok {
			if v := l.declaredTest(ctx, b, visited); v != nil {
				return v
			}
		}
	}
	return nil
}

// attributeNames lists every attribute name of cls, inherited ones
// included, sorted like dir().
func (l *Loader) attributeNames(ctx context.Context, cls *pyast.Class) []string {
	seen := make(map[string]bool)
	var names []string

	var visit func(c *pyast.Class, visited map[*pyast.Class]bool)
	visit = func(c *pyast.Class, visited map[*pyast.Class]bool) {
		if visited[c] {
			return
		}
		visited[c] = true
		for _, name := range c.Names() {
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		for _, base := range l.bases(ctx, c, 0) {
			if b, ok := base.(*pyast.Class); ok {
				visit(b, visited)
			}
		}
	}
	visit(cls, make(map[*pyast.Class]bool))

	sort.Strings(names)
	return names
}
