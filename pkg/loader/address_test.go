package loader

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAddress(t *testing.T) {
	t.Parallel()
	wd := t.TempDir()

	tests := []struct {
		name     string
		input    string
		filename string
		module   string
		call     string
	}{
		{
			name:   "module only",
			input:  "mod",
			module: "mod",
		},
		{
			name:   "dotted module with callable",
			input:  "pkg.mod:Class.method",
			module: "pkg.mod",
			call:   "Class.method",
		},
		{
			name:     "python file",
			input:    "test_a.py",
			filename: filepath.Join(wd, "test_a.py"),
			module:   "test_a",
		},
		{
			name:     "file with callable",
			input:    "sub/test_b.py:test_fn",
			filename: filepath.Join(wd, "sub", "test_b.py"),
			module:   "test_b",
			call:     "test_fn",
		},
		{
			name:     "directory",
			input:    "some/dir",
			filename: filepath.Join(wd, "some", "dir"),
		},
		{
			name:     "colon inside directory name",
			input:    "foo:bar/",
			filename: filepath.Join(wd, "foo:bar"),
		},
		{
			name:     "escaped colon",
			input:    `dir/we\:ird.py:test_x`,
			filename: filepath.Join(wd, "dir", "we:ird.py"),
			module:   "we:ird",
			call:     "test_x",
		},
		{
			name:     "absolute path is kept",
			input:    "/abs/path/test_d.py",
			filename: "/abs/path/test_d.py",
			module:   "test_d",
		},
		{
			name:  "ungrammatical",
			input: "a:b:c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := ParseAddress(tt.input, wd)

			assert.Equal(t, tt.input, addr.Raw)
			assert.Equal(t, tt.filename, addr.Filename)
			assert.Equal(t, tt.module, addr.Module)
			assert.Equal(t, tt.call, addr.Call)
		})
	}
}

func TestParseAddress_Ungrammatical(t *testing.T) {
	t.Parallel()

	addr := ParseAddress("foo:bar:baz", t.TempDir())
	assert.True(t, addr.IsEmpty())
}

func TestParseAddress_DriveLetter(t *testing.T) {
	t.Parallel()

	addr := ParseAddress(`C:\work\test_e.py:test_fn`, t.TempDir())
	assert.Equal(t, "test_fn", addr.Call)
	assert.True(t, strings.HasSuffix(addr.Filename, `C:\work\test_e.py`), addr.Filename)
}

func TestAddress_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "pkg.mod:Case.test", Address{Module: "pkg.mod", Call: "Case.test"}.String())
	assert.Equal(t, "/x/test_a.py", Address{Filename: "/x/test_a.py", Module: "test_a"}.String())
}
