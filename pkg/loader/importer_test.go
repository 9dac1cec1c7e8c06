package loader

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specvital/pyloader/pkg/parser/pyast"
)

func TestSearchPath_AcquireRelease(t *testing.T) {
	t.Parallel()

	p := &SearchPath{}
	base := p.Acquire("/base")

	guard := p.Acquire("/a", "/base", "/b")
	assert.Equal(t, []string{"/b", "/a", "/base"}, p.Dirs())

	guard.Release()
	assert.Equal(t, []string{"/base"}, p.Dirs(), "release must only remove what the guard added")

	guard.Release()
	assert.Equal(t, []string{"/base"}, p.Dirs())

	base.Release()
	assert.Empty(t, p.Dirs())
}

func TestImporter_ImportDottedName(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{
		"pkg/__init__.py":     "",
		"pkg/sub/__init__.py": "",
		"pkg/sub/mod.py":      "def f():\n    pass\n",
		"plain/mod.py":        "",
	})
	im := NewImporter(nil, 0)
	guard := im.Path.Acquire(root)
	defer guard.Release()
	ctx := context.Background()

	mod, err := im.Import(ctx, "pkg.sub.mod", nil)
	require.NoError(t, err)
	assert.Equal(t, "pkg.sub.mod", mod.Name)
	assert.Equal(t, filepath.Join(root, "pkg", "sub", "mod.py"), mod.Path)
	assert.False(t, mod.IsPackage())

	pkg, err := im.Import(ctx, "pkg.sub", nil)
	require.NoError(t, err)
	assert.True(t, pkg.IsPackage())
	assert.Equal(t, filepath.Join(root, "pkg", "sub"), pkg.Dir)

	again, err := im.Import(ctx, "pkg.sub.mod", nil)
	require.NoError(t, err)
	assert.Same(t, mod, again)

	_, err = im.Import(ctx, "plain.mod", nil)
	assert.ErrorIs(t, err, ErrModuleNotFound, "plain is not a package")
}

func TestImporter_SyntaxErrorIsImportFailure(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"test_bad.py": "def broken(:\n"})
	im := NewImporter(nil, 0)

	_, err := im.ImportFromPath(context.Background(), filepath.Join(root, "test_bad.py"), "test_bad")

	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ImportFailure, loadErr.Kind)
	assert.Equal(t, "test_bad", loadErr.Name)
}

func TestImporter_MaxFileSize(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"test_big.py": "x = 1\n" + "# padding padding padding\n"})
	im := NewImporter(nil, 8)

	_, err := im.ImportFromPath(context.Background(), filepath.Join(root, "test_big.py"), "test_big")
	assert.ErrorContains(t, err, "byte limit")
}

func TestImporter_SeededModuleIsRenamedOnce(t *testing.T) {
	t.Parallel()

	root := writeTree(t, map[string]string{"test_seed.py": "def test_x():\n    pass\n"})
	path := filepath.Join(root, "test_seed.py")
	ctx := context.Background()

	preloaded := NewImporter(nil, 0)
	first, err := preloaded.ImportFromPath(ctx, path, "preload")
	require.NoError(t, err)

	im := NewImporter(nil, 0)
	im.Seed([]*pyast.Module{first})

	mod, err := im.ImportFromPath(ctx, path, "test_seed")
	require.NoError(t, err)
	assert.Same(t, first, mod)
	assert.Equal(t, "test_seed", mod.Name)

	fn, ok := lookupFunction(&mod.Scope, "test_x")
	require.True(t, ok)
	assert.Equal(t, "test_seed", fn.Module)
}

func TestAbsoluteModule(t *testing.T) {
	t.Parallel()

	pkg := &pyast.Module{Name: "a.b", Dir: "/x/a/b"}
	mod := &pyast.Module{Name: "a.b.c"}

	assert.Equal(t, "a.b.d", absoluteModule(mod, "d", 1))
	assert.Equal(t, "a.b", absoluteModule(mod, "", 1))
	assert.Equal(t, "a.e", absoluteModule(mod, "e", 2))
	assert.Equal(t, "a.b.d", absoluteModule(pkg, "d", 1))
	assert.Equal(t, "plain", absoluteModule(mod, "plain", 0))
}
