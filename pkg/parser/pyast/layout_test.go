package pyast

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestPackageName(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	writeFile(t, filepath.Join(root, "pkg", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "sub", "__init__.py"), "")
	writeFile(t, filepath.Join(root, "pkg", "sub", "test_mod.py"), "")
	writeFile(t, filepath.Join(root, "plain", "test_loose.py"), "")

	tests := []struct {
		name string
		path string
		want string
	}{
		{"nested module", filepath.Join(root, "pkg", "sub", "test_mod.py"), "pkg.sub.test_mod"},
		{"package init", filepath.Join(root, "pkg", "sub", "__init__.py"), "pkg.sub"},
		{"package dir", filepath.Join(root, "pkg", "sub"), "pkg.sub"},
		{"compiled file", filepath.Join(root, "pkg", "sub", "test_mod.pyc"), "pkg.sub.test_mod"},
		{"top level module", filepath.Join(root, "plain", "test_loose.py"), "test_loose"},
		{"not python", filepath.Join(root, "plain"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PackageName(tt.path); got != tt.want {
				t.Errorf("PackageName(%s) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}

	if got := ImportRoot(filepath.Join(root, "pkg", "sub", "test_mod.py")); got != root {
		t.Errorf("ImportRoot = %q, want %q", got, root)
	}
}

func TestIsDottedName(t *testing.T) {
	t.Parallel()

	for name, want := range map[string]bool{
		"pkg.mod":    true,
		"mod":        true,
		"pkg..mod":   false,
		"pkg/mod.py": false,
		"":           false,
		"1abc":       false,
	} {
		if got := IsDottedName(name); got != want {
			t.Errorf("IsDottedName(%q) = %v, want %v", name, got, want)
		}
	}
}
