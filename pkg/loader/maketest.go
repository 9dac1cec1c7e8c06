package loader

import (
	"context"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// MakeTest turns a resolved object into a test or suite. parent is the
// module or class obj was reached through, or nil.
func (l *Loader) MakeTest(ctx context.Context, obj, parent pyast.Object) Test {
	return l.makeTest(ctx, obj, parent, "")
}

// makeTest carries origin, the module a test was discovered in when the
// object was defined elsewhere.
func (l *Loader) makeTest(ctx context.Context, obj, parent pyast.Object, origin string) Test {
	if tests := l.plugins.MakeTest(ctx, obj, parent); len(tests) > 0 {
		return NewSuite(tests, nil)
	}

	switch l.Classify(ctx, obj, parent) {
	case ShapeInstance:
		cls, method, _ := l.instanceOf(ctx, obj.(*pyast.Value), parent)
		return l.caseUnit(ctx, cls, method, origin)

	case ShapeClass:
		cls := obj.(*pyast.Class)
		if mod, ok := parent.(*pyast.Module); ok && cls.Module != mod.Name {
			origin = mod.Name
		}
		if l.IsTestCase(ctx, cls) {
			return l.loadTestsFromTestCase(ctx, cls, origin)
		}
		return l.loadTestsFromTestClass(ctx, cls, origin)

	case ShapeBoundMethod, ShapeGeneratorMethod:
		fn := obj.(*pyast.Function)
		cls, ok := parent.(*pyast.Class)
		if !ok {
			cls = fn.Owner
		}
		if l.IsTestCase(ctx, cls) {
			return l.caseUnit(ctx, cls, fn.Name, origin)
		}
		if fn.Generator {
			return l.loadTestsFromGeneratorMethod(ctx, fn, cls, origin)
		}
		return &Unit{
			Kind:     domain.TestKindMethod,
			Callable: fn,
			Class:    cls,
			Origin:   origin,
			Location: fn.Location,
			Status:   methodStatus(fn, cls),
		}

	case ShapeFunction, ShapeGeneratorFunction:
		fn := obj.(*pyast.Function)
		mod, _ := parent.(*pyast.Module)
		if mod != nil && fn.Module != mod.Name {
			origin = mod.Name
		}
		if fn.Generator {
			return l.loadTestsFromGenerator(ctx, fn, mod, origin)
		}
		return &Unit{
			Kind:     domain.TestKindFunction,
			Callable: fn,
			Origin:   origin,
			Location: fn.Location,
			Status:   fn.Status,
		}

	case ShapeModule:
		return l.LoadTestsFromModule(ctx, obj.(*pyast.Module), false)
	}

	name := "<nil>"
	if obj != nil {
		name = obj.String()
	}
	return Failuref(TypeFailure, name, "Can't make a test from %s", name)
}

// caseUnit builds the unit for one method of a unittest case class.
func (l *Loader) caseUnit(ctx context.Context, cls *pyast.Class, method, origin string) Test {
	fn, ok := l.method(ctx, cls, method)
	if !ok {
		name := cls.Module + "." + cls.Name + "." + method
		return Failuref(ResolutionFailure, name, "no such test method in %s: %s", cls, method)
	}
	return &Unit{
		Kind:     domain.TestKindTestCase,
		Callable: fn,
		Class:    cls,
		Name:     method,
		Origin:   origin,
		Location: fn.Location,
		Status:   methodStatus(fn, cls),
	}
}

// methodStatus lets a class-level skip marker apply to its methods.
func methodStatus(fn *pyast.Function, cls *pyast.Class) domain.TestStatus {
	if fn.Status == domain.TestStatusActive && cls != nil {
		return cls.Status
	}
	return fn.Status
}

// LoadTestsFromTestCase loads one unit per test method of a unittest case
// class, after any plugin-provided cases.
func (l *Loader) LoadTestsFromTestCase(ctx context.Context, cls *pyast.Class) *Suite {
	return l.loadTestsFromTestCase(ctx, cls, "")
}

func (l *Loader) loadTestsFromTestCase(ctx context.Context, cls *pyast.Class, origin string) *Suite {
	tests := l.plugins.LoadTestsFromTestCase(ctx, cls)
	for _, name := range l.TestCaseNames(ctx, cls) {
		tests = append(tests, l.caseUnit(ctx, cls, name, origin))
	}
	return NewSuite(tests, cls)
}

// LoadTestsFromTestClass loads the wanted methods of a class that is not
// a unittest case. Inherited methods are included.
func (l *Loader) LoadTestsFromTestClass(ctx context.Context, cls *pyast.Class) *Suite {
	return l.loadTestsFromTestClass(ctx, cls, "")
}

func (l *Loader) loadTestsFromTestClass(ctx context.Context, cls *pyast.Class, origin string) *Suite {
	l.log.Debug("load from class", zap.String("class", cls.String()))

	var tests []Test
	for _, name := range l.attributeNames(ctx, cls) {
		fn, ok := l.method(ctx, cls, name)
		if !ok || !fn.IsMethod() || !l.selector.WantMethod(fn) {
			continue
		}
		tests = append(tests, l.makeTest(ctx, fn, cls, origin))
	}
	tests = append(tests, l.plugins.LoadTestsFromTestClass(ctx, cls)...)
	return NewSuite(tests, cls)
}
