// Package report materializes loaded suite trees into domain.Inventory and
// renders them as text, JSON or YAML.
package report

import (
	"context"
	"strings"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/loader"
	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// Build iterates suite once and returns the resulting inventory. Suites
// with neither a context nor a label are flattened into their parent and
// suites left without tests or failures are dropped. Only interrupts are
// returned as errors; load errors are already failures inside the tree.
func Build(ctx context.Context, rootPath string, suite *loader.Suite) (domain.Inventory, error) {
	inv := domain.Inventory{
		RootPath: rootPath,
		Suites:   []domain.TestSuite{},
	}

	root, err := convertSuite(ctx, suite)
	if err != nil {
		return inv, err
	}
	if isEmpty(root) {
		return inv, nil
	}
	if !isAnonymous(root) {
		inv.Suites = append(inv.Suites, root)
		return inv, nil
	}

	// Loose tests at the top get an unnamed holder.
	if len(root.Tests) > 0 || len(root.Failures) > 0 {
		inv.Suites = append(inv.Suites, domain.TestSuite{
			Tests:    root.Tests,
			Failures: root.Failures,
		})
	}
	inv.Suites = append(inv.Suites, root.Suites...)
	return inv, nil
}

func convertSuite(ctx context.Context, s *loader.Suite) (domain.TestSuite, error) {
	out := domain.TestSuite{Name: s.ID()}

	switch c := s.Context.(type) {
	case *pyast.Module:
		out.Context = domain.ContextModule
		out.Location = domain.Location{File: c.Path}
	case *pyast.Class:
		out.Context = domain.ContextClass
		out.Location = c.Location
	default:
		if s.Name != "" {
			out.Context = domain.ContextDirectory
			out.Location = domain.Location{File: s.Name}
		}
	}

	err := s.Each(ctx, func(t loader.Test) error {
		switch t := t.(type) {
		case *loader.Unit:
			out.Tests = append(out.Tests, convertUnit(t))
		case *loader.Failure:
			out.Failures = append(out.Failures, convertFailure(t))
		case *loader.Suite:
			child, err := convertSuite(ctx, t)
			if err != nil {
				return err
			}
			switch {
			case isEmpty(child):
			case isAnonymous(child):
				out.Tests = append(out.Tests, child.Tests...)
				out.Failures = append(out.Failures, child.Failures...)
				out.Suites = append(out.Suites, child.Suites...)
			default:
				out.Suites = append(out.Suites, child)
			}
		}
		return nil
	})
	return out, err
}

func convertUnit(u *loader.Unit) domain.Test {
	test := domain.Test{
		ID:       u.ID(),
		Kind:     u.Kind,
		Location: u.Location,
		Name:     u.TestName(),
		Origin:   u.Origin,
		Status:   u.Status,
	}
	if test.Status == "" {
		test.Status = domain.TestStatusActive
	}
	if u.Descriptor != nil {
		test.Descriptor = u.Descriptor.QualName()
		test.Args = u.Args
	}
	return test
}

func convertFailure(f *loader.Failure) domain.Failure {
	msg := f.Err.Error()
	if f.Err.Err != nil {
		msg = f.Err.Err.Error()
	}
	return domain.Failure{
		Error: msg,
		Kind:  string(f.Err.Kind),
		Name:  f.ID(),
	}
}

func isAnonymous(s domain.TestSuite) bool {
	return s.Context == domain.ContextNone && s.Name == ""
}

func isEmpty(s domain.TestSuite) bool {
	return s.CountTests() == 0 && s.CountFailures() == 0
}

// Failures lists every failure of inv in tree order. Unnamed failures are
// named after the suites leading to them.
func Failures(inv domain.Inventory) []domain.Failure {
	var out []domain.Failure
	var walk func(s domain.TestSuite, path []string)
	walk = func(s domain.TestSuite, path []string) {
		if s.Name != "" {
			path = append(path, s.Name)
		}
		for _, f := range s.Failures {
			if f.Name == "" {
				f.Name = strings.Join(path, " > ")
			}
			out = append(out, f)
		}
		for _, sub := range s.Suites {
			walk(sub, path)
		}
	}
	for _, s := range inv.Suites {
		walk(s, nil)
	}
	return out
}
