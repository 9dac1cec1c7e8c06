package loader

import (
	"context"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// Shape is the test-relevant kind of a resolved object.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeModule
	ShapeClass
	ShapeBoundMethod
	ShapeFunction
	ShapeGeneratorFunction
	ShapeGeneratorMethod
	// ShapeInstance is a module-level unittest case instance such as
	// "suite_case = MyCase('test_x')".
	ShapeInstance
)

func (s Shape) String() string {
	switch s {
	case ShapeModule:
		return "module"
	case ShapeClass:
		return "class"
	case ShapeBoundMethod:
		return "method"
	case ShapeFunction:
		return "function"
	case ShapeGeneratorFunction:
		return "generator function"
	case ShapeGeneratorMethod:
		return "generator method"
	case ShapeInstance:
		return "instance"
	default:
		return "unknown"
	}
}

// Classify determines the shape of obj, reached through parent.
func (l *Loader) Classify(ctx context.Context, obj, parent pyast.Object) Shape {
	switch o := obj.(type) {
	case *pyast.Module:
		return ShapeModule
	case *pyast.Class:
		return ShapeClass
	case *pyast.Function:
		switch {
		case o.IsMethod() && o.Generator:
			return ShapeGeneratorMethod
		case o.IsMethod():
			return ShapeBoundMethod
		case o.Generator:
			return ShapeGeneratorFunction
		default:
			return ShapeFunction
		}
	case *pyast.Value:
		if _, _, ok := l.instanceOf(ctx, o, parent); ok {
			return ShapeInstance
		}
	}
	return ShapeUnknown
}

// instanceOf recognizes "Case('method')" and "Case()" where Case is a
// unittest case class. The method defaults to runTest.
func (l *Loader) instanceOf(ctx context.Context, v *pyast.Value, parent pyast.Object) (*pyast.Class, string, bool) {
	mod, ok := parent.(*pyast.Module)
	if !ok || v.Call == nil || !pyast.IsDottedName(v.Call.Callee) {
		return nil, "", false
	}
	obj, ok := l.resolveDotted(ctx, mod, nil, v.Call.Callee, 0, nil)
	if !ok {
		return nil, "", false
	}
	cls, ok := obj.(*pyast.Class)
	if !ok || !l.IsTestCase(ctx, cls) {
		return nil, "", false
	}

	method := "runTest"
	if len(v.Call.Args) > 0 {
		name, ok := pyast.Unquote(v.Call.Args[0])
		if !ok {
			return nil, "", false
		}
		method = name
	}
	return cls, method, true
}
