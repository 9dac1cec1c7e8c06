package parser_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/specvital/pyloader/pkg/parser"
	"github.com/specvital/pyloader/pkg/parser/pyast"
)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
}

func moduleNames(result *parser.ScanResult) []string {
	names := make([]string, 0, len(result.Modules))
	for _, mod := range result.Modules {
		names = append(names, mod.Name)
	}
	return names
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScan(t *testing.T) {
	t.Run("should return empty result for empty directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		result, err := parser.Scan(context.Background(), tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Modules) != 0 {
			t.Errorf("expected 0 modules, got %d", len(result.Modules))
		}
		if result.Root != tmpDir {
			t.Errorf("expected root %s, got %s", tmpDir, result.Root)
		}
	})

	t.Run("should name modules after the package layout", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			"pkg/__init__.py":     "",
			"pkg/test_a.py":       "def test_a():\n    pass\n",
			"test_top.py":         "def test_top():\n    pass\n",
			".hidden/test_h.py":   "def test_h():\n    pass\n",
			"__pycache__/c.py":    "x = 1\n",
			"node_modules/n.py":   "x = 1\n",
			"_helpers/support.py": "def helper():\n    pass\n",
		})

		result, err := parser.Scan(context.Background(), tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		expected := []string{"support", "pkg", "pkg.test_a", "test_top"}
		if got := moduleNames(result); !equalStrings(got, expected) {
			t.Errorf("expected modules %v, got %v", expected, got)
		}
		if result.Stats.FilesParsed != 4 {
			t.Errorf("expected 4 parsed files, got %d", result.Stats.FilesParsed)
		}

		mod := result.Modules[2]
		if mod.Path != filepath.Join(tmpDir, "pkg", "test_a.py") {
			t.Errorf("expected absolute path, got %s", mod.Path)
		}
		if _, ok := mod.Lookup("test_a"); !ok {
			t.Error("expected test_a to be bound in pkg.test_a")
		}
	})

	t.Run("should collect syntax errors without failing the scan", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			"test_ok.py":  "def test_ok():\n    pass\n",
			"test_bad.py": "def broken(:\n    pass\n",
		})

		result, err := parser.Scan(context.Background(), tmpDir)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Modules) != 1 {
			t.Fatalf("expected 1 module, got %d", len(result.Modules))
		}
		if len(result.Errors) != 1 {
			t.Fatalf("expected 1 error, got %d", len(result.Errors))
		}
		scanErr := result.Errors[0]
		if scanErr.Phase != "parsing" || filepath.Base(scanErr.Path) != "test_bad.py" {
			t.Errorf("unexpected error %v", scanErr)
		}
		if !errors.Is(scanErr, pyast.ErrUnparsable) {
			t.Errorf("expected ErrUnparsable in chain, got %v", scanErr.Err)
		}
		if result.Stats.FilesFailed != 1 {
			t.Errorf("expected 1 failed file, got %d", result.Stats.FilesFailed)
		}
	})

	t.Run("should filter by patterns", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			"tests/test_a.py":     "",
			"tests/sub/test_b.py": "",
			"lib/util.py":         "",
		})

		result, err := parser.Scan(context.Background(), tmpDir, parser.WithPatterns([]string{"tests/**"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Modules) != 2 {
			t.Errorf("expected 2 modules, got %d", len(result.Modules))
		}
		if result.Stats.FilesSkipped != 1 {
			t.Errorf("expected 1 skipped file, got %d", result.Stats.FilesSkipped)
		}
		if result.Stats.FilesScanned != 3 {
			t.Errorf("expected 3 scanned files, got %d", result.Stats.FilesScanned)
		}
	})

	t.Run("should skip excluded directories", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			"test_a.py":          "",
			"fixtures/test_b.py": "",
		})

		result, err := parser.Scan(context.Background(), tmpDir, parser.WithExcludePatterns([]string{"fixtures"}))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := moduleNames(result); !equalStrings(got, []string{"test_a"}) {
			t.Errorf("expected [test_a], got %v", got)
		}
	})

	t.Run("should skip files over the size limit", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{
			"test_small.py": "x = 1\n",
			"test_large.py": "def test_large():\n    return 'a long enough body'\n",
		})

		result, err := parser.Scan(context.Background(), tmpDir, parser.WithMaxFileSize(10))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if got := moduleNames(result); !equalStrings(got, []string{"test_small"}) {
			t.Errorf("expected [test_small], got %v", got)
		}
		if result.Stats.FilesSkipped != 1 {
			t.Errorf("expected 1 skipped file, got %d", result.Stats.FilesSkipped)
		}
	})

	t.Run("should report cancellation", func(t *testing.T) {
		tmpDir := t.TempDir()
		writeFiles(t, tmpDir, map[string]string{"test_a.py": ""})

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := parser.Scan(ctx, tmpDir)
		if !errors.Is(err, parser.ErrScanCancelled) {
			t.Errorf("expected ErrScanCancelled, got %v", err)
		}
	})
}

func TestScanFiles(t *testing.T) {
	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"pkg/__init__.py": "",
		"pkg/test_a.py":   "def test_a():\n    pass\n",
		"pkg/test_b.py":   "def test_b():\n    pass\n",
	})

	result, err := parser.NewScanner().ScanFiles(context.Background(), []string{
		filepath.Join(tmpDir, "pkg", "test_b.py"),
		filepath.Join(tmpDir, "pkg", "missing.py"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := moduleNames(result); !equalStrings(got, []string{"pkg.test_b"}) {
		t.Errorf("expected [pkg.test_b], got %v", got)
	}
	if len(result.Errors) != 1 || !errors.Is(result.Errors[0], os.ErrNotExist) {
		t.Errorf("expected one not-exist error, got %v", result.Errors)
	}
	if result.Stats.FilesScanned != 2 {
		t.Errorf("expected 2 scanned files, got %d", result.Stats.FilesScanned)
	}
}

func TestScan_Concurrency(t *testing.T) {
	t.Run("should safely handle concurrent access", func(t *testing.T) {
		tmpDir := t.TempDir()

		for i := 0; i < 10; i++ {
			writeFiles(t, tmpDir, map[string]string{
				fmt.Sprintf("test_%d.py", i): "def test_it():\n    pass\n",
			})
		}

		var wg sync.WaitGroup
		var errCount atomic.Int32

		for i := 0; i < 5; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := parser.Scan(context.Background(), tmpDir, parser.WithWorkers(4))
				if err != nil {
					errCount.Add(1)
				}
			}()
		}

		wg.Wait()

		if errCount.Load() > 0 {
			t.Errorf("concurrent scans had %d errors", errCount.Load())
		}
	})

	t.Run("should sort results regardless of completion order", func(t *testing.T) {
		tmpDir := t.TempDir()

		for i := 0; i < 20; i++ {
			writeFiles(t, tmpDir, map[string]string{
				fmt.Sprintf("test_%02d.py", i): "class TestSuite:\n    def test_one(self):\n        pass\n",
			})
		}

		result, err := parser.Scan(context.Background(), tmpDir, parser.WithWorkers(8))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if len(result.Modules) != 20 {
			t.Fatalf("expected 20 modules, got %d", len(result.Modules))
		}
		for i, mod := range result.Modules {
			if want := fmt.Sprintf("test_%02d", i); mod.Name != want {
				t.Errorf("position %d: expected %s, got %s", i, want, mod.Name)
			}
		}
	})
}

func TestScanOptions(t *testing.T) {
	t.Run("WithWorkers sets worker count", func(t *testing.T) {
		opts := &parser.ScanOptions{}
		parser.WithWorkers(4)(opts)
		if opts.Workers != 4 {
			t.Errorf("expected 4 workers, got %d", opts.Workers)
		}
	})

	t.Run("WithWorkers ignores negative values", func(t *testing.T) {
		opts := &parser.ScanOptions{Workers: 4}
		parser.WithWorkers(-1)(opts)
		if opts.Workers != 4 {
			t.Errorf("expected 4 (unchanged), got %d", opts.Workers)
		}
	})

	t.Run("WithTimeout sets timeout", func(t *testing.T) {
		opts := &parser.ScanOptions{}
		parser.WithTimeout(30 * time.Second)(opts)
		if opts.Timeout != 30*time.Second {
			t.Errorf("expected 30s timeout, got %v", opts.Timeout)
		}
	})

	t.Run("WithTimeout ignores negative values", func(t *testing.T) {
		opts := &parser.ScanOptions{Timeout: time.Minute}
		parser.WithTimeout(-1)(opts)
		if opts.Timeout != time.Minute {
			t.Errorf("expected 1m (unchanged), got %v", opts.Timeout)
		}
	})

	t.Run("WithMaxFileSize ignores negative values", func(t *testing.T) {
		opts := &parser.ScanOptions{MaxFileSize: 100}
		parser.WithMaxFileSize(-1)(opts)
		if opts.MaxFileSize != 100 {
			t.Errorf("expected 100 (unchanged), got %d", opts.MaxFileSize)
		}
	})

	t.Run("WithPatterns sets patterns", func(t *testing.T) {
		opts := &parser.ScanOptions{}
		parser.WithPatterns([]string{"tests/**/*.py"})(opts)
		if len(opts.Patterns) != 1 {
			t.Errorf("expected 1 pattern, got %d", len(opts.Patterns))
		}
	})
}

func TestScanError(t *testing.T) {
	t.Run("Error with path returns formatted string", func(t *testing.T) {
		err := parser.ScanError{
			Err:   os.ErrNotExist,
			Path:  "/path/to/test_file.py",
			Phase: "parsing",
		}

		expected := "[parsing] /path/to/test_file.py: file does not exist"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})

	t.Run("Error without path returns phase only", func(t *testing.T) {
		err := parser.ScanError{
			Err:   os.ErrPermission,
			Phase: "discovery",
		}

		expected := "[discovery] permission denied"
		if err.Error() != expected {
			t.Errorf("expected %q, got %q", expected, err.Error())
		}
	})
}
