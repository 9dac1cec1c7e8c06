package pyast

import (
	"sort"

	"github.com/specvital/pyloader/pkg/domain"
)

// Kind distinguishes what a name is bound to without relying on runtime
// type tags.
type Kind int

const (
	KindOther Kind = iota
	KindModule
	KindClass
	KindFunction
	KindImport
	KindAlias
)

func (k Kind) String() string {
	switch k {
	case KindModule:
		return "module"
	case KindClass:
		return "class"
	case KindFunction:
		return "function"
	case KindImport:
		return "import"
	case KindAlias:
		return "alias"
	default:
		return "other"
	}
}

// Object is anything a Python name can be bound to.
type Object interface {
	Kind() Kind
	String() string
}

// Member is one entry of a namespace listing.
type Member struct {
	Name string
	Kind Kind
}

// Introspectable is a namespace whose bindings can be listed and looked up.
type Introspectable interface {
	Members() []Member
	Lookup(name string) (Object, bool)
}

// Scope is an ordered namespace. Rebinding a name keeps its first
// position and replaces the object, as assignment does in Python.
type Scope struct {
	names   []string
	objects map[string]Object
}

func newScope() Scope {
	return Scope{objects: make(map[string]Object)}
}

func (s *Scope) bind(name string, obj Object) {
	if s.objects == nil {
		s.objects = make(map[string]Object)
	}
	if _, ok := s.objects[name]; !ok {
		s.names = append(s.names, name)
	}
	s.objects[name] = obj
}

// Lookup returns the object bound to name.
func (s *Scope) Lookup(name string) (Object, bool) {
	obj, ok := s.objects[name]
	return obj, ok
}

// Members lists bindings sorted by name, like dir().
func (s *Scope) Members() []Member {
	members := make([]Member, 0, len(s.names))
	for _, name := range s.names {
		members = append(members, Member{Name: name, Kind: s.objects[name].Kind()})
	}
	sort.Slice(members, func(i, j int) bool {
		return members[i].Name < members[j].Name
	})
	return members
}

// Names returns bound names in definition order.
func (s *Scope) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Module is the static view of one Python source file.
type Module struct {
	Scope

	// Name is the dotted module name assigned at import time.
	Name string
	// Path is the source file ("__init__.py" for packages).
	Path string
	// Dir is the package directory; empty for plain modules.
	Dir string
	// StarImports lists modules imported with "from x import *", with their
	// relative level.
	StarImports []Import
	// All holds the names of a literal "__all__" list; nil when the module
	// does not declare one.
	All []string
	// Test holds a module-level "__test__" declaration.
	Test *bool
}

func (m *Module) Kind() Kind     { return KindModule }
func (m *Module) String() string { return "<module '" + m.Name + "'>" }

// IsPackage reports whether the module is a package's __init__.
func (m *Module) IsPackage() bool { return m.Dir != "" }

// Class is a class definition.
type Class struct {
	Scope

	Name string
	// Module is the dotted name of the defining module.
	Module string
	// Bases holds the source text of each base class expression.
	Bases      []string
	Decorators []string
	Location   domain.Location
	Status     domain.TestStatus
	Test       *bool
}

func (c *Class) Kind() Kind     { return KindClass }
func (c *Class) String() string { return "<class '" + c.Module + "." + c.Name + "'>" }

// Function is a function or method definition.
type Function struct {
	Name string
	// Module is the dotted name of the defining module.
	Module string
	// Owner is the defining class for methods.
	Owner      *Class
	Params     []string
	Decorators []string
	Location   domain.Location
	Status     domain.TestStatus
	Test       *bool
	// Generator is set when the body yields.
	Generator bool
	Async     bool
	// Static marks staticmethod-decorated methods, which behave as plain
	// functions when fetched from the class.
	Static bool
	Yields []Yield
}

func (f *Function) Kind() Kind { return KindFunction }

func (f *Function) String() string {
	if f.Owner != nil {
		return "<method '" + f.Owner.Name + "." + f.Name + "'>"
	}
	return "<function " + f.Module + "." + f.Name + ">"
}

// QualName returns the dotted name relative to the defining module.
func (f *Function) QualName() string {
	if f.Owner != nil {
		return f.Owner.Name + "." + f.Name
	}
	return f.Name
}

// IsMethod reports whether fetching the function from its class yields a
// method.
func (f *Function) IsMethod() bool {
	return f.Owner != nil && !f.Static
}

// Import is a name bound by an import statement.
type Import struct {
	Name string
	// Module is the imported module path as written, without leading dots.
	Module string
	// Attr is the imported attribute for "from Module import Attr".
	Attr string
	// Level counts the leading dots of a relative import.
	Level int
	Line  int
}

func (i *Import) Kind() Kind { return KindImport }

func (i *Import) String() string {
	if i.Attr != "" {
		return "<import " + i.Module + "." + i.Attr + ">"
	}
	return "<import " + i.Module + ">"
}

// Alias is "name = other.name".
type Alias struct {
	Name   string
	Target string
	Line   int
}

func (a *Alias) Kind() Kind     { return KindAlias }
func (a *Alias) String() string { return "<alias " + a.Name + " = " + a.Target + ">" }

// Call describes a call expression on the right side of an assignment.
type Call struct {
	Callee string
	// Args holds positional argument source text.
	Args []string
}

// Value is any other assignment.
type Value struct {
	Name     string
	Text     string
	Call     *Call
	Location domain.Location
}

func (v *Value) Kind() Kind     { return KindOther }
func (v *Value) String() string { return v.Text }

// TargetKind classifies the first element of a yielded test entry.
type TargetKind int

const (
	TargetOther TargetKind = iota
	// TargetName is a bare identifier.
	TargetName
	// TargetString is a string literal naming an attribute.
	TargetString
	// TargetSelf is an attribute of the method's receiver, e.g. self.check.
	TargetSelf
	// TargetAttr is a dotted name, e.g. helpers.check.
	TargetAttr
	// TargetLambda is an inline lambda.
	TargetLambda
)

// Target is the callable part of a yielded entry.
type Target struct {
	Kind TargetKind
	// Name is the identifier, attribute or unquoted string.
	Name string
	// Text is the original expression.
	Text string
}

// Yield is one yield site of a generator, read as (target, *args).
type Yield struct {
	Target Target
	Args   []string
	Line   int
}
