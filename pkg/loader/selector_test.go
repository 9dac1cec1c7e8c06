package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

func TestSelector_Matches(t *testing.T) {
	t.Parallel()
	sel := DefaultSelector()

	tests := []struct {
		name string
		want bool
	}{
		{"test_foo", true},
		{"TestFoo", true},
		{"foo_test", true},
		{"foo-test.py", true},
		{"tests", true},
		{"contest", false},
		{"helper", false},
		{"latest_result", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sel.Matches(tt.name))
		})
	}
}

func TestSelector_IncludeExclude(t *testing.T) {
	t.Parallel()

	sel, err := NewSelector(SelectorConfig{
		Include: []string{`^check_`},
		Exclude: []string{`slow`},
	})
	require.NoError(t, err)

	assert.True(t, sel.Matches("check_numbers"))
	assert.True(t, sel.Matches("test_fast"))
	assert.False(t, sel.Matches("test_slow"))
}

func TestNewSelector_InvalidPatterns(t *testing.T) {
	t.Parallel()

	_, err := NewSelector(SelectorConfig{TestMatch: "("})
	assert.Error(t, err)

	_, err = NewSelector(SelectorConfig{Paths: []string{"[unclosed"}})
	assert.Error(t, err)
}

func TestSelector_WantFile(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"test_a.py":      "",
		"helper.py":      "",
		"_test_b.py":     "",
		".test_c.py":     "",
		"setup.py":       "",
		"test_notes.txt": "",
		"test_exe.py":    "",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "test_exe.py"), 0o755))
	sel := DefaultSelector()

	tests := []struct {
		file string
		want bool
	}{
		{"test_a.py", true},
		{"helper.py", false},
		{"_test_b.py", false},
		{".test_c.py", false},
		{"setup.py", false},
		{"test_notes.txt", false},
		{"test_exe.py", false},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			assert.Equal(t, tt.want, sel.WantFile(filepath.Join(root, tt.file)))
		})
	}
}

func TestSelector_WantDirectory(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"tests/test_a.py":        "",
		"src/mod.py":             "",
		"docs/index.rst":         "",
		"mypkg/__init__.py":      "",
		"slowpkg/__init__.py":    "",
		"vendor/tests/test_x.py": "",
	})
	sel, err := NewSelector(SelectorConfig{
		Exclude:      []string{`^slow`},
		ExcludePaths: []string{"vendor/**"},
		Root:         root,
	})
	require.NoError(t, err)

	assert.True(t, sel.WantDirectory(filepath.Join(root, "tests")))
	assert.True(t, sel.WantDirectory(filepath.Join(root, "src")))
	assert.False(t, sel.WantDirectory(filepath.Join(root, "docs")))
	assert.True(t, sel.WantDirectory(filepath.Join(root, "mypkg")))
	assert.False(t, sel.WantDirectory(filepath.Join(root, "slowpkg")))
	assert.False(t, sel.WantDirectory(filepath.Join(root, "vendor", "tests")))
}

func TestSelector_PathGlobs(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"unit/test_a.py":        "",
		"integration/test_b.py": "",
	})
	sel, err := NewSelector(SelectorConfig{Paths: []string{"unit/**/*.py"}, Root: root})
	require.NoError(t, err)

	assert.True(t, sel.WantFile(filepath.Join(root, "unit", "test_a.py")))
	assert.False(t, sel.WantFile(filepath.Join(root, "integration", "test_b.py")))
}

func boolPtr(v bool) *bool { return &v }

func TestSelector_Declarations(t *testing.T) {
	t.Parallel()
	sel := DefaultSelector()

	assert.False(t, sel.WantModule(&pyast.Module{Name: "pkg.test_mod", Test: boolPtr(false)}))
	assert.True(t, sel.WantModule(&pyast.Module{Name: "pkg.test_mod"}))
	assert.True(t, sel.WantModule(&pyast.Module{Name: "__main__"}))
	assert.False(t, sel.WantModule(&pyast.Module{Name: "pkg.helpers"}))

	assert.True(t, sel.WantClass(&pyast.Class{Name: "Checks"}, nil, true))
	assert.False(t, sel.WantClass(&pyast.Class{Name: "_TestHidden"}, nil, true))
	assert.False(t, sel.WantClass(&pyast.Class{Name: "TestBase"}, boolPtr(false), false))
	assert.True(t, sel.WantClass(&pyast.Class{Name: "Helper"}, boolPtr(true), false))

	assert.True(t, sel.WantFunction(&pyast.Function{Name: "verify", Test: boolPtr(true)}))
	assert.False(t, sel.WantFunction(&pyast.Function{Name: "_test_private"}))
	assert.False(t, sel.WantFunction(&pyast.Function{Name: "test_off", Test: boolPtr(false)}))

	assert.False(t, sel.WantMethod(&pyast.Function{Name: "_test_private", Test: boolPtr(true)}))
	assert.True(t, sel.WantMethod(&pyast.Function{Name: "test_x"}))
}

type denyFiles struct{}

func (denyFiles) Name() string { return "deny" }
func (denyFiles) Priority() int { return DefaultPriority }
func (denyFiles) WantFile(path string) Verdict { return No }

func TestSelector_PluginVerdictOverrides(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"test_a.py": ""})
	sel := DefaultSelector().withPlugins(NewPlugins(denyFiles{}))

	assert.False(t, sel.WantFile(filepath.Join(root, "test_a.py")))
}

func TestSortEntries(t *testing.T) {
	t.Parallel()

	got := sortEntries([]string{"test_b.py", "zeta", "test_a.py", "alpha", "Test_c"}, DefaultSelector())
	assert.Equal(t, []string{"alpha", "zeta", "Test_c", "test_a.py", "test_b.py"}, got)
}
