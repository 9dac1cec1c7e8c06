package pyast

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// InitFile is the file that turns a directory into a package.
const InitFile = "__init__.py"

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsIdentifier reports whether name is a valid Python identifier.
func IsIdentifier(name string) bool {
	return identPattern.MatchString(name)
}

// IsDottedName reports whether name is a dotted sequence of identifiers.
func IsDottedName(name string) bool {
	if name == "" {
		return false
	}
	for _, part := range strings.Split(name, ".") {
		if !IsIdentifier(part) {
			return false
		}
	}
	return true
}

// IsPackage reports whether dir is an importable package directory.
func IsPackage(dir string) bool {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return false
	}
	if !IsIdentifier(filepath.Base(dir)) {
		return false
	}
	init, err := os.Stat(filepath.Join(dir, InitFile))
	return err == nil && !init.IsDir()
}

// SourceFile maps compiled file names back to their source.
func SourceFile(path string) string {
	switch filepath.Ext(path) {
	case ".pyc", ".pyo":
		return strings.TrimSuffix(path, filepath.Ext(path)) + ".py"
	}
	return path
}

// PackageName computes the dotted module name of a source file or package
// directory by walking up through enclosing packages. It returns "" when
// path is neither a .py file nor a package.
func PackageName(path string) string {
	src := SourceFile(path)
	if !strings.HasSuffix(src, ".py") && !IsPackage(src) {
		return ""
	}

	base := strings.TrimSuffix(filepath.Base(src), ".py")
	var parts []string
	if base != "__init__" {
		parts = append(parts, base)
	}

	dir := filepath.Dir(src)
	for {
		parent, part := filepath.Split(dir)
		if part == "" || !IsPackage(dir) {
			break
		}
		parts = append(parts, part)
		dir = filepath.Clean(parent)
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, ".")
}

// ImportRoot returns the directory that must be on the search path for
// the module or package at path to be importable under PackageName.
func ImportRoot(path string) string {
	dir := filepath.Dir(SourceFile(path))
	for IsPackage(dir) {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return dir
}
