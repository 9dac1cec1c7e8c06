package loader

import (
	"context"
	"sort"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// TestCaseNames lists the test method names of a unittest case class: its
// own wanted methods, then those of its bases, falling back to runTest.
func (l *Loader) TestCaseNames(ctx context.Context, cls *pyast.Class) []string {
	var names []string
	seen := make(map[string]bool)
	l.collectCaseNames(ctx, cls, &names, seen, make(map[*pyast.Class]bool))

	if len(names) == 0 {
		if fn, ok := l.method(ctx, cls, "runTest"); ok && fn.IsMethod() {
			names = []string{"runTest"}
		}
	}

	if l.methodOrder != nil {
		sort.SliceStable(names, func(i, j int) bool {
			return l.methodOrder(names[i], names[j]) < 0
		})
	}
	return names
}

func (l *Loader) collectCaseNames(ctx context.Context, cls *pyast.Class, names *[]string, seen map[string]bool, visited map[*pyast.Class]bool) {
	if visited[cls] {
		return
	}
	visited[cls] = true

	for _, name := range cls.Names() {
		// An override hides the base attribute even when it is not a test.
		if seen[name] {
			continue
		}
		seen[name] = true
		fn, ok := l.method(ctx, cls, name)
		if !ok || !fn.IsMethod() || !l.selector.WantMethod(fn) {
			continue
		}
		*names = append(*names, name)
	}

	for _, base := range l.bases(ctx, cls, 0) {
		if b, ok := base.(*pyast.Class); ok {
			l.collectCaseNames(ctx, b, names, seen, visited)
		}
	}
}

// method fetches name from cls and returns it when it is a function.
func (l *Loader) method(ctx context.Context, cls *pyast.Class, name string) (*pyast.Function, bool) {
	obj, ok := l.classAttr(ctx, cls, name, 0, make(map[*pyast.Class]bool), nil)
	if !ok {
		return nil, false
	}
	fn, ok := obj.(*pyast.Function)
	return fn, ok
}
