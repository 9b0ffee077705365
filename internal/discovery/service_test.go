package discovery

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func write(t *testing.T, root, rel, content string) string {
	t.Helper()
	p := filepath.Join(root, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestEnumerate(t *testing.T) {
	root := t.TempDir()
	index := write(t, root, "index.js", `import a from './a'; const b = require('./lib/b');`)
	a := write(t, root, "a.js", `export default 1;`)
	b := write(t, root, "lib/b.js", `module.exports = require('./c');`)
	write(t, root, "lib/notes.md", `require('./ignored')`)
	pkg := write(t, root, "node_modules/pkg/index.js", `module.exports = {};`)
	write(t, root, "vendor/skip.js", `module.exports = {};`)

	svc, err := New([]string{root}, []string{".js"}, []string{"vendor"})
	require.NoError(t, err)

	set, err := svc.Enumerate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, set.Len())
	assert.True(t, set.Has(index))
	assert.True(t, set.Has(a))
	assert.True(t, set.Has(b))
	assert.True(t, set.Has(pkg))
	assert.False(t, set.Has(filepath.Join(root, "vendor/skip.js")))
	assert.False(t, set.Has(filepath.Join(root, "lib/notes.md")))

	deps, err := set.DependenciesOf(index)
	require.NoError(t, err)
	assert.Equal(t, []string{"./a", "./lib/b"}, deps)

	deps, err = set.DependenciesOf(a)
	require.NoError(t, err)
	assert.Empty(t, deps)

	_, err = set.DependenciesOf(filepath.Join(root, "missing.js"))
	assert.Error(t, err)
}

func TestEnumerateIsASnapshot(t *testing.T) {
	root := t.TempDir()
	write(t, root, "index.js", `require('./a')`)

	svc, err := New([]string{root}, []string{"js"}, nil)
	require.NoError(t, err)

	first, err := svc.Enumerate(context.Background())
	require.NoError(t, err)

	late := write(t, root, "late.js", ``)
	assert.False(t, first.Has(late))

	second, err := svc.Enumerate(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Has(late))
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil, []string{"js"}, nil)
	assert.Error(t, err)

	_, err = New([]string{"."}, nil, nil)
	assert.Error(t, err)

	svc, err := New([]string{"."}, []string{".js", "mjs"}, nil)
	require.NoError(t, err)
	assert.True(t, svc.Scans("js"))
	assert.True(t, svc.Scans(".mjs"))
	assert.False(t, svc.Scans("ts"))
}

func TestNewFileSet(t *testing.T) {
	set := NewFileSet([]string{"/b.js", "/a.js"}, map[string][]string{"/b.js": {"./a"}})
	assert.Equal(t, []string{"/b.js", "/a.js"}, set.Paths())

	deps, err := set.DependenciesOf("/b.js")
	require.NoError(t, err)
	assert.Equal(t, []string{"./a"}, deps)

	deps[0] = "mutated"
	again, _ := set.DependenciesOf("/b.js")
	assert.Equal(t, []string{"./a"}, again)
}
