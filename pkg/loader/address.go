package loader

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

// escapedColon stands in for "\:" while the name is split.
const escapedColon = "\x00"

var moduleLike = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// Address is a parsed test name: a file, a module, a callable path or any
// combination of them.
type Address struct {
	Raw      string
	Filename string
	Module   string
	Call     string
}

// IsEmpty reports whether the address points at nothing.
func (a Address) IsEmpty() bool {
	return a.Filename == "" && a.Module == "" && a.Call == ""
}

func (a Address) String() string {
	var target string
	switch {
	case a.Filename != "":
		target = a.Filename
	default:
		target = a.Module
	}
	if a.Call != "" {
		return target + ":" + a.Call
	}
	return target
}

// ParseAddress splits a test name of the form "path/or.module:Callable.attr".
// Relative file names are anchored at workingDir. It never fails; names it
// cannot split produce an empty Address.
func ParseAddress(name, workingDir string) Address {
	addr := Address{Raw: name}

	fileOrMod, call, ok := splitTestName(strings.ReplaceAll(name, `\:`, escapedColon), workingDir)
	if !ok {
		return addr
	}
	fileOrMod = strings.ReplaceAll(fileOrMod, escapedColon, ":")
	call = strings.ReplaceAll(call, escapedColon, ":")
	addr.Call = call

	if fileOrMod == "" {
		return addr
	}
	if !fileLike(fileOrMod, workingDir) {
		addr.Module = fileOrMod
		return addr
	}

	filename := pyast.SourceFile(filepath.Clean(fileOrMod))
	if !filepath.IsAbs(filename) {
		filename = filepath.Join(workingDir, filename)
	}
	addr.Filename = filename
	addr.Module = pyast.PackageName(filename)
	return addr
}

// splitTestName returns the file-or-module part and the callable part.
func splitTestName(name, workingDir string) (string, string, bool) {
	if !strings.Contains(name, ":") {
		return name, "", true
	}

	head, tail := filepath.Split(name)
	switch {
	case head == "":
		parts := strings.Split(name, ":")
		if len(parts) == 2 {
			if fileLike(parts[1], workingDir) {
				// a drive letter or a colon inside a path
				return name, "", true
			}
			return parts[0], parts[1], true
		}
		if isDrive(parts[0]) && strings.HasPrefix(parts[1], `\`) {
			return strings.Join(parts[:len(parts)-1], ":"), parts[len(parts)-1], true
		}
		return "", "", false
	case tail == "":
		return name, "", true
	}

	filePart, call := tail, ""
	if strings.Contains(tail, ":") {
		parts := strings.Split(tail, ":")
		if len(parts) != 2 {
			return "", "", false
		}
		filePart, call = parts[0], parts[1]
	}
	return head + filePart, call, true
}

// fileLike decides whether name names a path rather than a module.
func fileLike(name, workingDir string) bool {
	if strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return true
	}
	if strings.HasSuffix(name, ".py") {
		return true
	}
	if !moduleLike.MatchString(strings.TrimSuffix(name, filepath.Ext(name))) {
		return true
	}
	path := name
	if !filepath.IsAbs(path) {
		path = filepath.Join(workingDir, path)
	}
	_, err := os.Stat(path)
	return err == nil
}

func isDrive(s string) bool {
	return len(s) == 1 && (s[0] >= 'A' && s[0] <= 'Z' || s[0] >= 'a' && s[0] <= 'z')
}
