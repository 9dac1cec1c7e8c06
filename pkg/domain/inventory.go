// Package domain defines the report types produced from a loaded suite tree.
package domain

// TestKind identifies how a test unit is invoked.
type TestKind string

const (
	// TestKindFunction is a module-level test function.
	TestKindFunction TestKind = "function"
	// TestKindMethod is a method of a plain (non-unittest) test class.
	TestKindMethod TestKind = "method"
	// TestKindTestCase is a method of a unittest.TestCase subclass.
	TestKindTestCase TestKind = "testcase"
	// TestKindDoctest is an example block extracted from a text file.
	TestKindDoctest TestKind = "doctest"
)

// ContextKind identifies what a suite's shared context is.
type ContextKind string

const (
	ContextNone      ContextKind = ""
	ContextModule    ContextKind = "module"
	ContextClass     ContextKind = "class"
	ContextDirectory ContextKind = "directory"
)

// Test is a single loadable test.
type Test struct {
	// Args holds the source text of generator-supplied arguments.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
	// Descriptor names the generator that produced this test, if any.
	Descriptor string     `json:"descriptor,omitempty" yaml:"descriptor,omitempty"`
	ID         string     `json:"id" yaml:"id"`
	Kind       TestKind   `json:"kind" yaml:"kind"`
	Location   Location   `json:"location" yaml:"location"`
	Name       string     `json:"name" yaml:"name"`
	// Origin is the module the test was discovered in when it differs
	// from the module that defines it.
	Origin string     `json:"origin,omitempty" yaml:"origin,omitempty"`
	Status TestStatus `json:"status" yaml:"status"`
}

// Failure is a test that could not be loaded.
type Failure struct {
	Error string `json:"error" yaml:"error"`
	Kind  string `json:"kind" yaml:"kind"`
	Name  string `json:"name" yaml:"name"`
}

// TestSuite groups tests sharing a context.
type TestSuite struct {
	Context  ContextKind `json:"context,omitempty" yaml:"context,omitempty"`
	Failures []Failure   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Location Location    `json:"location" yaml:"location"`
	Name     string      `json:"name" yaml:"name"`
	Suites   []TestSuite `json:"suites,omitempty" yaml:"suites,omitempty"`
	Tests    []Test      `json:"tests,omitempty" yaml:"tests,omitempty"`
}

// CountTests returns the total number of tests in this suite and its children.
func (s *TestSuite) CountTests() int {
	count := len(s.Tests)
	for _, sub := range s.Suites {
		count += sub.CountTests()
	}
	return count
}

// CountFailures returns the total number of failures in this suite and its children.
func (s *TestSuite) CountFailures() int {
	count := len(s.Failures)
	for _, sub := range s.Suites {
		count += sub.CountFailures()
	}
	return count
}

// Inventory is the materialized result of loading one or more names.
type Inventory struct {
	// RootPath is the working directory names were resolved against.
	RootPath string `json:"rootPath" yaml:"rootPath"`
	// Suites contains one suite per requested name.
	Suites []TestSuite `json:"suites" yaml:"suites"`
}

// CountTests returns the total number of tests across all suites.
func (inv Inventory) CountTests() int {
	count := 0
	for i := range inv.Suites {
		count += inv.Suites[i].CountTests()
	}
	return count
}

// CountFailures returns the total number of failures across all suites.
func (inv Inventory) CountFailures() int {
	count := 0
	for i := range inv.Suites {
		count += inv.Suites[i].CountFailures()
	}
	return count
}
