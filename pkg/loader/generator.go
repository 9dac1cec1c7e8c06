package loader

import (
	"context"
	"fmt"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// lambdaName labels units whose callable is an inline lambda.
const lambdaName = "<lambda>"

// loadTestsFromGenerator expands a generator function lazily. String and
// name targets are looked up in mod, the module the generator was reached
// through.
func (l *Loader) loadTestsFromGenerator(ctx context.Context, gen *pyast.Function, mod *pyast.Module, origin string) *Suite {
	producer := func(ctx context.Context) Iterator {
		scope := mod
		if scope == nil {
			scope, _ = l.importer.Loaded(gen.Module)
		}

		pos := 0
		return FuncIterator(func(ctx context.Context) (Test, error) {
			if pos >= len(gen.Yields) {
				return nil, ErrExhausted
			}
			y := gen.Yields[pos]
			pos++
			return l.functionEntry(ctx, gen, y, scope, origin), nil
		}, nil)
	}
	return NewLazySuite(producer, nil)
}

func (l *Loader) functionEntry(ctx context.Context, gen *pyast.Function, y pyast.Yield, mod *pyast.Module, origin string) Test {
	unit := &Unit{
		Kind:       domain.TestKindFunction,
		Args:       y.Args,
		Descriptor: gen,
		Origin:     origin,
		Location:   yieldLocation(gen, y),
		Status:     gen.Status,
	}

	switch y.Target.Kind {
	case pyast.TargetLambda:
		unit.Name = lambdaName
		return unit
	case pyast.TargetName, pyast.TargetString, pyast.TargetAttr:
	default:
		return notInvocable(gen, y)
	}

	if mod == nil {
		return unresolvedTarget(gen, y)
	}
	obj, ok := l.resolveDotted(ctx, mod, nil, y.Target.Name, 0, nil)
	if !ok {
		return unresolvedTarget(gen, y)
	}
	fn, ok := obj.(*pyast.Function)
	if !ok {
		if _, external := obj.(*External); external {
			return unresolvedTarget(gen, y)
		}
		return notInvocable(gen, y)
	}
	unit.Callable = fn
	if fn.IsMethod() {
		unit.Kind = domain.TestKindMethod
	}
	return unit
}

// loadTestsFromGeneratorMethod expands a generator method lazily. Every
// pass creates one instance of cls shared by the units it yields.
func (l *Loader) loadTestsFromGeneratorMethod(ctx context.Context, gen *pyast.Function, cls *pyast.Class, origin string) *Suite {
	producer := func(ctx context.Context) Iterator {
		inst := &Instance{Class: cls}
		mod, _ := l.importer.Loaded(cls.Module)

		pos := 0
		return FuncIterator(func(ctx context.Context) (Test, error) {
			if pos >= len(gen.Yields) {
				return nil, ErrExhausted
			}
			y := gen.Yields[pos]
			pos++
			return l.methodEntry(ctx, gen, y, inst, mod, origin), nil
		}, nil)
	}
	return NewLazySuite(producer, nil)
}

func (l *Loader) methodEntry(ctx context.Context, gen *pyast.Function, y pyast.Yield, inst *Instance, mod *pyast.Module, origin string) Test {
	cls := inst.Class
	unit := &Unit{
		Kind:       domain.TestKindMethod,
		Class:      cls,
		Instance:   inst,
		Args:       y.Args,
		Descriptor: gen,
		Origin:     origin,
		Location:   yieldLocation(gen, y),
		Status:     methodStatus(gen, cls),
	}

	var (
		obj pyast.Object
		ok  bool
	)
	switch y.Target.Kind {
	case pyast.TargetLambda:
		unit.Name = lambdaName
		return unit
	case pyast.TargetSelf, pyast.TargetString:
		obj, ok = l.classAttr(ctx, cls, y.Target.Name, 0, make(map[*pyast.Class]bool), nil)
	case pyast.TargetName, pyast.TargetAttr:
		if mod != nil {
			obj, ok = l.resolveDotted(ctx, mod, nil, y.Target.Name, 0, nil)
		}
	default:
		return notInvocable(gen, y)
	}
	if !ok {
		return unresolvedTarget(gen, y)
	}

	fn, isFunc := obj.(*pyast.Function)
	if !isFunc {
		if _, external := obj.(*External); external {
			return unresolvedTarget(gen, y)
		}
		return notInvocable(gen, y)
	}
	unit.Callable = fn
	return unit
}

func yieldLocation(gen *pyast.Function, y pyast.Yield) domain.Location {
	loc := gen.Location
	if y.Line > 0 {
		loc.StartLine = y.Line
		loc.EndLine = y.Line
		loc.StartCol = 0
		loc.EndCol = 0
	}
	return loc
}

func entryName(gen *pyast.Function, y pyast.Yield) string {
	return fmt.Sprintf("%s.%s:%d", gen.Module, gen.QualName(), y.Line)
}

func notInvocable(gen *pyast.Function, y pyast.Yield) *Failure {
	return Failuref(TypeFailure, entryName(gen, y), "%s is not a function or method", y.Target.Text)
}

func unresolvedTarget(gen *pyast.Function, y pyast.Yield) *Failure {
	return Failuref(ResolutionFailure, entryName(gen, y), "No such test %s", y.Target.Name)
}
