package loader

import (
	"context"
	"errors"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// Iterator pulls tests one at a time. Next returns ErrExhausted when the
// sequence ends. Close releases held resources and is safe to call twice.
type Iterator interface {
	Next(ctx context.Context) (Test, error)
	Close() error
}

// Producer starts a fresh pass over a lazy suite's contents.
type Producer func(ctx context.Context) Iterator

// Suite is an ordered collection of tests sharing an optional context.
type Suite struct {
	// Context is the module or class whose fixtures wrap the suite.
	Context pyast.Object
	// Name labels context-less suites, e.g. the directory of a walk.
	Name string

	tests    []Test
	producer Producer
}

// NewSuite wraps an already materialized list of tests.
func NewSuite(tests []Test, context pyast.Object) *Suite {
	return &Suite{Context: context, tests: tests}
}

// NewLazySuite wraps a producer that is evaluated once per iteration.
func NewLazySuite(producer Producer, context pyast.Object) *Suite {
	return &Suite{Context: context, producer: producer}
}

func (s *Suite) isTest() {}

// ID returns the context name, or the suite's label.
func (s *Suite) ID() string {
	switch c := s.Context.(type) {
	case *pyast.Module:
		return c.Name
	case *pyast.Class:
		return c.Module + "." + c.Name
	}
	return s.Name
}

// IsLazy reports whether the suite's contents are produced on iteration.
func (s *Suite) IsLazy() bool {
	return s.producer != nil
}

// Each calls fn for every direct child. An error raised while producing
// children ends the pass with a Failure; interrupts and errors returned by
// fn are propagated.
func (s *Suite) Each(ctx context.Context, fn func(Test) error) error {
	if s.producer == nil {
		for _, t := range s.tests {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := fn(t); err != nil {
				return err
			}
		}
		return nil
	}

	it := s.producer(ctx)
	defer it.Close()

	for {
		t, err := it.Next(ctx)
		if errors.Is(err, ErrExhausted) {
			return nil
		}
		if err != nil {
			if IsInterrupt(err) {
				return err
			}
			return fn(s.failure(err))
		}
		if t == nil {
			continue
		}
		if err := fn(t); err != nil {
			return err
		}
	}
}

// Collect materializes the direct children.
func (s *Suite) Collect(ctx context.Context) ([]Test, error) {
	var tests []Test
	err := s.Each(ctx, func(t Test) error {
		tests = append(tests, t)
		return nil
	})
	return tests, err
}

// Walk visits every test in the tree depth-first, descending into nested
// suites after visiting them.
func (s *Suite) Walk(ctx context.Context, fn func(Test) error) error {
	return s.Each(ctx, func(t Test) error {
		if err := fn(t); err != nil {
			return err
		}
		if child, ok := t.(*Suite); ok {
			return child.Walk(ctx, fn)
		}
		return nil
	})
}

func (s *Suite) failure(err error) *Failure {
	name := s.ID()
	if name == "" {
		name = "<suite>"
	}
	return failureFrom(err, ImportFailure, name)
}

// errSuite is a suite whose iteration fails with err.
func errSuite(err error) *Suite {
	return NewLazySuite(func(context.Context) Iterator {
		return FuncIterator(func(context.Context) (Test, error) {
			return nil, err
		}, nil)
	}, nil)
}

// SliceIterator yields tests in order.
func SliceIterator(tests []Test) Iterator {
	return &sliceIterator{tests: tests}
}

type sliceIterator struct {
	tests []Test
	pos   int
}

func (it *sliceIterator) Next(ctx context.Context) (Test, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if it.pos >= len(it.tests) {
		return nil, ErrExhausted
	}
	t := it.tests[it.pos]
	it.pos++
	return t, nil
}

func (it *sliceIterator) Close() error {
	it.pos = len(it.tests)
	return nil
}

// FuncIterator adapts a next function and an optional close function.
func FuncIterator(next func(ctx context.Context) (Test, error), closeFn func() error) Iterator {
	return &funcIterator{next: next, close: closeFn}
}

type funcIterator struct {
	next   func(ctx context.Context) (Test, error)
	close  func() error
	closed bool
}

func (it *funcIterator) Next(ctx context.Context) (Test, error) {
	if it.closed {
		return nil, ErrExhausted
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return it.next(ctx)
}

func (it *funcIterator) Close() error {
	if it.closed {
		return nil
	}
	it.closed = true
	if it.close != nil {
		return it.close()
	}
	return nil
}
