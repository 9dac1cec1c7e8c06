package loader

import (
	"fmt"
	"strings"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// Test is a node of a loaded suite tree: a *Unit, a *Failure or a *Suite.
type Test interface {
	// ID is the dotted address of the test.
	ID() string
	isTest()
}

// Instance is one instantiation of a test class.
type Instance struct {
	Class *pyast.Class
}

// Unit is the smallest executable element: a callable, its arguments and
// the generator that produced it.
type Unit struct {
	Kind domain.TestKind
	// Callable is the function or method to invoke. It is nil for lambdas
	// yielded by generators and for plugin-provided units.
	Callable *pyast.Function
	// Class is the class of record for method and testcase units.
	Class *pyast.Class
	// Instance is shared by all units of one generator-method expansion.
	Instance *Instance
	Args     []string
	// Descriptor is the generator that produced this unit.
	Descriptor *pyast.Function
	// Origin is the module the unit was discovered in when it differs from
	// the defining module.
	Origin   string
	Name     string
	Location domain.Location
	Status   domain.TestStatus
}

func (u *Unit) isTest() {}

// Module returns the module the unit is attributed to.
func (u *Unit) Module() string {
	switch {
	case u.Origin != "":
		return u.Origin
	case u.Class != nil:
		return u.Class.Module
	case u.Descriptor != nil:
		return u.Descriptor.Module
	case u.Callable != nil:
		return u.Callable.Module
	}
	return ""
}

// ID returns module.[Class.]name, with generator arguments appended.
func (u *Unit) ID() string {
	var parts []string
	if mod := u.Module(); mod != "" {
		parts = append(parts, mod)
	}
	if u.Class != nil {
		parts = append(parts, u.Class.Name)
	}
	parts = append(parts, u.TestName())

	id := strings.Join(parts, ".")
	if u.Descriptor != nil {
		id += "(" + strings.Join(u.Args, ", ") + ")"
	}
	return id
}

// TestName is the unqualified name: the generator's for generated units.
func (u *Unit) TestName() string {
	switch {
	case u.Descriptor != nil:
		return u.Descriptor.Name
	case u.Name != "":
		return u.Name
	case u.Callable != nil:
		return u.Callable.Name
	}
	return "<unknown>"
}

func (u *Unit) String() string {
	return u.ID()
}

// Failure is a unit that fails with a captured error when run.
type Failure struct {
	Err *LoadError
}

// NewFailure captures err as a failing test named name.
func NewFailure(kind ErrorKind, name string, err error) *Failure {
	return &Failure{Err: &LoadError{Kind: kind, Name: name, Err: err}}
}

// Failuref is NewFailure with a formatted message.
func Failuref(kind ErrorKind, name string, format string, args ...any) *Failure {
	return NewFailure(kind, name, fmt.Errorf(format, args...))
}

func (f *Failure) isTest() {}

// ID returns the name of the target that failed to load.
func (f *Failure) ID() string {
	return f.Err.Name
}

// Run returns the captured error.
func (f *Failure) Run() error {
	return f.Err
}

// Kind lets a Failure stand in for a resolved object.
func (f *Failure) Kind() pyast.Kind {
	return pyast.KindOther
}

func (f *Failure) String() string {
	return "Failure(" + f.Err.Error() + ")"
}
