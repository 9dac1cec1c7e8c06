// Package doctest collects interactive ">>>" examples from text files as
// test units.
package doctest

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/specvital/pyloader/pkg/domain"
	"github.com/specvital/pyloader/pkg/loader"
)

// DefaultExtensions are the file extensions searched for examples.
var DefaultExtensions = []string{".txt", ".rst"}

// Plugin extracts example blocks from files with configured extensions.
type Plugin struct {
	extensions map[string]bool
	log        *zap.Logger
}

// New creates the plugin. A nil or empty extension list uses
// DefaultExtensions.
func New(extensions []string, log *zap.Logger) *Plugin {
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	if log == nil {
		log = zap.NewNop()
	}
	p := &Plugin{extensions: make(map[string]bool), log: log.Named("doctest")}
	for _, ext := range extensions {
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		p.extensions[strings.ToLower(ext)] = true
	}
	return p
}

func (p *Plugin) Name() string  { return "doctest" }
func (p *Plugin) Priority() int { return loader.DefaultPriority }

func (p *Plugin) handles(path string) bool {
	return p.extensions[strings.ToLower(filepath.Ext(path))]
}

// WantFile claims files with a handled extension.
func (p *Plugin) WantFile(path string) loader.Verdict {
	if p.handles(path) {
		return loader.Yes
	}
	return loader.Abstain
}

// LoadTestsFromFile returns one unit per example block. Files with a
// handled extension and no examples yield no tests but still count as
// handled.
func (p *Plugin) LoadTestsFromFile(ctx context.Context, path string) ([]loader.Test, bool) {
	if !p.handles(path) {
		return nil, false
	}

	src, err := os.ReadFile(path)
	if err != nil {
		return []loader.Test{loader.NewFailure(loader.IOFailure, path, err)}, true
	}

	blocks := Extract(src)
	p.log.Debug("extracted doctest blocks",
		zap.String("path", path),
		zap.Int("blocks", len(blocks)))

	base := filepath.Base(path)
	tests := make([]loader.Test, 0, len(blocks))
	for _, b := range blocks {
		tests = append(tests, &loader.Unit{
			Kind: domain.TestKindDoctest,
			Name: fmt.Sprintf("%s:%d", base, b.StartLine),
			Location: domain.Location{
				File:      path,
				StartLine: b.StartLine,
				EndLine:   b.EndLine,
			},
			Status: domain.TestStatusActive,
		})
	}
	return tests, true
}
