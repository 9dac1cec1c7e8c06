package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/specvital/pyloader/pkg/domain"
)

const testModule = `import unittest


def test_plain():
    pass


class TestThing(unittest.TestCase):
    def test_a(self):
        pass
`

func writeTree(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newApp(zap.NewNop()).rootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestList_Text(t *testing.T) {
	root := writeTree(t, map[string]string{"test_mod.py": testModule})

	out, err := run(t, "list", "--working-dir", root, "--color", "never")
	require.NoError(t, err)

	assert.Contains(t, out, "test_mod (module)")
	assert.Contains(t, out, "test_plain")
	assert.Contains(t, out, "test_mod.TestThing (class)")
	assert.Contains(t, out, "\n2 tests\n")
}

func TestList_JSON(t *testing.T) {
	root := writeTree(t, map[string]string{
		"test_mod.py":       testModule,
		"pkg/__init__.py":   "",
		"pkg/test_inner.py": "def test_inner():\n    pass\n",
	})

	out, err := run(t, "list", "-w", root, "-f", "json")
	require.NoError(t, err)

	var inv domain.Inventory
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, root, inv.RootPath)
	assert.Equal(t, 3, inv.CountTests())
	assert.Zero(t, inv.CountFailures())
}

func TestList_Names(t *testing.T) {
	root := writeTree(t, map[string]string{
		"test_mod.py":   testModule,
		"test_other.py": "def test_other():\n    pass\n",
	})

	out, err := run(t, "list", "-w", root, "-f", "json", "test_mod:TestThing")
	require.NoError(t, err)

	var inv domain.Inventory
	require.NoError(t, json.Unmarshal([]byte(out), &inv))
	assert.Equal(t, 1, inv.CountTests())
}

func TestList_Doctest(t *testing.T) {
	root := writeTree(t, map[string]string{
		"test_mod.py": testModule,
		"usage.txt":   ">>> 1 + 1\n2\n",
	})

	out, err := run(t, "list", "-w", root, "--color", "never")
	require.NoError(t, err)
	assert.Contains(t, out, "usage.txt:1")

	t.Setenv("PYLOADER_DOCTEST_ENABLED", "false")
	out, err = run(t, "list", "-w", root, "--color", "never")
	require.NoError(t, err)
	assert.NotContains(t, out, "usage.txt")
}

func TestList_ConfigFile(t *testing.T) {
	root := writeTree(t, map[string]string{"test_mod.py": testModule})
	cfgPath := filepath.Join(t.TempDir(), "pyloader.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("output:\n  format: yaml\npreload:\n  enabled: false\n"), 0o644))

	out, err := run(t, "list", "--config", cfgPath, "-w", root)
	require.NoError(t, err)

	var inv domain.Inventory
	require.NoError(t, yaml.Unmarshal([]byte(out), &inv))
	assert.Equal(t, 2, inv.CountTests())
}

func TestList_InvalidConfig(t *testing.T) {
	_, err := run(t, "list", "--format", "html")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
}

func TestCheck(t *testing.T) {
	t.Run("should report ok when everything loads", func(t *testing.T) {
		root := writeTree(t, map[string]string{"test_mod.py": testModule})

		out, err := run(t, "check", "-w", root, "--color", "never")
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		if out != "ok: 2 tests\n" {
			t.Errorf("output = %q", out)
		}
	})

	t.Run("should fail on unparsable files", func(t *testing.T) {
		root := writeTree(t, map[string]string{
			"test_mod.py":    testModule,
			"test_broken.py": "def broken(:\n    pass\n",
		})

		out, err := run(t, "check", "-w", root, "--color", "never")
		if !errors.Is(err, errLoadFailures) {
			t.Fatalf("err = %v, want errLoadFailures", err)
		}
		assert.Contains(t, out, "test_broken [import]: ")
		assert.Contains(t, out, "FAILED (tests=2, failures=1)")
	})

	t.Run("should fail on unresolvable names", func(t *testing.T) {
		root := writeTree(t, map[string]string{"test_mod.py": testModule})

		out, err := run(t, "check", "-w", root, "--color", "never", "test_mod:test_missing")
		if !errors.Is(err, errLoadFailures) {
			t.Fatalf("err = %v, want errLoadFailures", err)
		}
		assert.Contains(t, out, "[resolution]")
	})
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "pyloader dev\n", out)
}

func TestPreloadTargets(t *testing.T) {
	root := writeTree(t, map[string]string{
		"tests/test_a.py":      "",
		"tests/unit/test_b.py": "",
		"other/test_c.py":      "",
		"test_top.py":          "",
	})
	tests := filepath.Join(root, "tests")
	other := filepath.Join(root, "other")

	tt := []struct {
		name      string
		names     []string
		wantDirs  []string
		wantFiles []string
	}{
		{name: "no names", names: nil, wantDirs: []string{root}},
		{name: "nested dirs collapse", names: []string{"tests", "tests/unit"}, wantDirs: []string{tests}},
		{name: "file inside named dir", names: []string{"tests", "tests/test_a.py"}, wantDirs: []string{tests}},
		{name: "file outside", names: []string{"other", "test_top.py"}, wantDirs: []string{other}, wantFiles: []string{filepath.Join(root, "test_top.py")}},
		{name: "address with callable", names: []string{"test_top.py:test_x"}, wantFiles: []string{filepath.Join(root, "test_top.py")}},
		{name: "duplicates", names: []string{"other", "other"}, wantDirs: []string{other}},
		{name: "dotted module and missing path", names: []string{"pkg.mod", "missing"}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			dirs, files := preloadTargets(root, tc.names)
			assert.Equal(t, tc.wantDirs, dirs)
			assert.Equal(t, tc.wantFiles, files)
		})
	}
}

func TestWithin(t *testing.T) {
	roots := []string{filepath.FromSlash("/a/b")}

	assert.True(t, within(filepath.FromSlash("/a/b/c.py"), roots, false))
	assert.True(t, within(filepath.FromSlash("/a/b"), roots, false))
	assert.False(t, within(filepath.FromSlash("/a/b"), roots, true))
	assert.False(t, within(filepath.FromSlash("/a/bc"), roots, false))
	assert.False(t, within(filepath.FromSlash("/a"), roots, false))
}
