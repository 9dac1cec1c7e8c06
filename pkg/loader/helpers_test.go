package loader

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeTree creates files under a fresh temp dir. Keys use forward slashes.
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

func newTestLoader(t *testing.T, root string, opts ...Option) *Loader {
	t.Helper()
	l, err := New(append([]Option{WithWorkingDir(root)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(l.Close)
	return l
}

// leaves materializes every non-suite test of s.
func leaves(t *testing.T, s *Suite) []Test {
	t.Helper()
	var out []Test
	err := s.Walk(context.Background(), func(test Test) error {
		if _, ok := test.(*Suite); !ok {
			out = append(out, test)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func ids(tests []Test) []string {
	out := make([]string, 0, len(tests))
	for _, test := range tests {
		out = append(out, test.ID())
	}
	return out
}

func units(t *testing.T, tests []Test) []*Unit {
	t.Helper()
	out := make([]*Unit, 0, len(tests))
	for _, test := range tests {
		u, ok := test.(*Unit)
		require.Truef(t, ok, "expected *Unit, got %T (%s)", test, test.ID())
		out = append(out, u)
	}
	return out
}
