package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/specvital/pyloader/pkg/domain"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned for unsupported output formats.
var ErrUnknownFormat = errors.New("report: unknown format")

// ParseFormat validates a format name. Empty means text.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(name)); f {
	case "", FormatText:
		return FormatText, nil
	case FormatJSON, FormatYAML:
		return f, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownFormat, name)
}

// Renderer writes inventories in one format.
type Renderer struct {
	format Format
	color  bool
}

// NewRenderer returns a renderer. Color only affects the text format.
func NewRenderer(format Format, useColor bool) *Renderer {
	return &Renderer{format: format, color: useColor}
}

// Colored reports whether text output carries color escapes.
func (r *Renderer) Colored() bool {
	return r.color && (r.format == FormatText || r.format == "")
}

// Render writes inv to w.
func (r *Renderer) Render(w io.Writer, inv domain.Inventory) error {
	switch r.format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(inv)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(inv); err != nil {
			return fmt.Errorf("report: encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return newTextWriter(w, r.color).inventory(inv)
	}
	return fmt.Errorf("%w %q", ErrUnknownFormat, r.format)
}

type textWriter struct {
	w       io.Writer
	suite   *color.Color
	context *color.Color
	skipped *color.Color
	failure *color.Color
	err     error
}

func newTextWriter(w io.Writer, useColor bool) *textWriter {
	tw := &textWriter{
		w:       w,
		suite:   color.New(color.Bold),
		context: color.New(color.Faint),
		skipped: color.New(color.FgYellow),
		failure: color.New(color.FgRed),
	}
	for _, c := range []*color.Color{tw.suite, tw.context, tw.skipped, tw.failure} {
		if useColor {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}
	return tw
}

// printf keeps the first write error.
func (tw *textWriter) printf(c *color.Color, format string, args ...any) {
	if tw.err != nil {
		return
	}
	if c == nil {
		_, tw.err = fmt.Fprintf(tw.w, format, args...)
		return
	}
	_, tw.err = c.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) inventory(inv domain.Inventory) error {
	for _, s := range inv.Suites {
		tw.testSuite(s, 0)
	}
	tests, failures := inv.CountTests(), inv.CountFailures()
	tw.printf(nil, "\n%d %s", tests, plural(tests, "test", "tests"))
	if failures > 0 {
		tw.printf(nil, ", ")
		tw.printf(tw.failure, "%d %s", failures, plural(failures, "failure", "failures"))
	}
	tw.printf(nil, "\n")
	return tw.err
}

func (tw *textWriter) testSuite(s domain.TestSuite, depth int) {
	indent := strings.Repeat("  ", depth)
	if s.Name != "" || s.Context != domain.ContextNone {
		tw.printf(nil, "%s", indent)
		tw.printf(tw.suite, "%s", s.Name)
		if s.Context != domain.ContextNone {
			tw.printf(tw.context, " (%s)", s.Context)
		}
		tw.printf(nil, "\n")
		depth++
		indent = strings.Repeat("  ", depth)
	}

	for _, t := range s.Tests {
		tw.printf(nil, "%s%s", indent, testLabel(t))
		if t.Status != domain.TestStatusActive && t.Status != "" {
			tw.printf(tw.skipped, " [%s]", t.Status)
		}
		tw.printf(nil, "\n")
	}
	for _, f := range s.Failures {
		tw.printf(nil, "%s", indent)
		tw.printf(tw.failure, "FAIL %s [%s]: %s", f.Name, f.Kind, f.Error)
		tw.printf(nil, "\n")
	}
	for _, sub := range s.Suites {
		tw.testSuite(sub, depth)
	}
}

func testLabel(t domain.Test) string {
	if t.Descriptor != "" {
		return t.Name + "(" + strings.Join(t.Args, ", ") + ")"
	}
	return t.Name
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
