package optimize

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/merlin/internal/builderr"
)

const bundle = "var modules = {};\nrequireModule(0);\n"

// upper is a minifier that upper-cases code, enough to tell input from output.
type upper struct{ seen []MinifyOptions }

func (u *upper) Minify(code string, opts MinifyOptions) (Minified, error) {
	u.seen = append(u.seen, opts)
	return Minified{Code: strings.ToUpper(code) + "//# sourceMappingURL=" + opts.MapURL, Map: `{"file":"` + opts.Filename + `"}`}, nil
}

// reverse is a compressor that reverses bytes.
type reverse struct{}

func (reverse) Compress(data []byte) ([]byte, error) {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out, nil
}

func TestParseBundle(t *testing.T) {
	base, ext, err := ParseBundle("app.js")
	require.NoError(t, err)
	assert.Equal(t, "app", base)
	assert.Equal(t, "js", ext)

	base, ext, err = ParseBundle("dist/app.min.mjs")
	require.NoError(t, err)
	assert.Equal(t, "app", base)
	assert.Equal(t, "mjs", ext)

	for _, bad := range []string{"app", ".js", "app.", ""} {
		_, _, err := ParseBundle(bad)
		assert.ErrorIs(t, err, builderr.ErrConfiguration, bad)
	}
}

func TestOptimizeWritesArtifactSet(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	m := &upper{}
	p := New(Options{Extensions: []string{".js", "mjs"}, Title: "Demo"}, m, reverse{})

	a, err := p.Optimize(context.Background(), bundle, OutputSpec{Dir: dir, Bundle: "app.js"})
	require.NoError(t, err)

	hash := Hash(bundle)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, a.Hash)
	assert.Equal(t, bundle, a.BundleSource)
	assert.Equal(t, "app."+hash+".js", a.Bundle.Name)
	assert.Equal(t, "app."+hash+".js.map", a.Map.Name)
	assert.Equal(t, "index.html", a.HTML.Name)

	require.Len(t, m.seen, 1)
	assert.Equal(t, MinifyOptions{Filename: a.Bundle.Name, MapURL: a.Map.Name}, m.seen[0])

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		a.Bundle.Name, a.Bundle.Name + ".br",
		a.Map.Name, a.Map.Name + ".br",
		"index.html", "index.html.br",
	}, names)
	assert.ElementsMatch(t, a.Paths(), func() []string {
		var out []string
		for _, n := range names {
			out = append(out, filepath.Join(dir, n))
		}
		return out
	}())

	onDisk, err := os.ReadFile(filepath.Join(dir, a.Bundle.Name))
	require.NoError(t, err)
	assert.Equal(t, a.Bundle.Content, onDisk)
	assert.True(t, strings.HasPrefix(string(onDisk), "VAR MODULES"))

	compressed, err := os.ReadFile(filepath.Join(dir, a.Bundle.Name+".br"))
	require.NoError(t, err)
	back, _ := reverse{}.Compress(compressed)
	assert.Equal(t, onDisk, back)

	html, err := os.ReadFile(filepath.Join(dir, "index.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), `<script src="`+a.Bundle.Name+`"></script>`)
	assert.Contains(t, string(html), "<title>Demo</title>")

	f, ok := a.Lookup(a.Map.Name)
	require.True(t, ok)
	assert.Equal(t, a.Map.Content, f.Content)
	_, ok = a.Lookup("nope.js")
	assert.False(t, ok)
}

func TestOptimizeIsContentAddressed(t *testing.T) {
	p := New(Options{Extensions: []string{"js"}}, Passthrough{}, reverse{})
	ctx := context.Background()

	first, err := p.Optimize(ctx, bundle, OutputSpec{Dir: t.TempDir(), Bundle: "app.js"})
	require.NoError(t, err)
	second, err := p.Optimize(ctx, bundle, OutputSpec{Dir: t.TempDir(), Bundle: "app.js"})
	require.NoError(t, err)
	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first.Bundle.Name, second.Bundle.Name)
	assert.Equal(t, first.HTML.Content, second.HTML.Content)

	changed, err := p.Optimize(ctx, bundle+"// edit\n", OutputSpec{Dir: t.TempDir(), Bundle: "app.js"})
	require.NoError(t, err)
	assert.NotEqual(t, first.Hash, changed.Hash)
}

func TestOptimizeRejectsUnscannedExtension(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	m := &upper{}
	p := New(Options{Extensions: []string{"js", "mjs"}}, m, reverse{})

	a, err := p.Optimize(context.Background(), bundle, OutputSpec{Dir: dir, Bundle: "app.ts"})
	assert.Nil(t, a)
	require.ErrorIs(t, err, builderr.ErrConfiguration)
	assert.Contains(t, err.Error(), `"ts"`)

	assert.Empty(t, m.seen)
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr), "no output directory should be created")
}

func TestOptimizeWriteFailure(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "dist")
	require.NoError(t, os.WriteFile(blocker, []byte("a file, not a dir"), 0o644))

	p := New(Options{Extensions: []string{"js"}}, Passthrough{}, reverse{})
	_, err := p.Optimize(context.Background(), bundle, OutputSpec{Dir: blocker, Bundle: "app.js"})
	require.ErrorIs(t, err, builderr.ErrIO)
	assert.Contains(t, err.Error(), blocker)
}

type failingMinifier struct{}

func (failingMinifier) Minify(string, MinifyOptions) (Minified, error) {
	return Minified{}, errors.New("minifier exploded")
}

func TestOptimizeMinifierFailure(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "dist")
	p := New(Options{Extensions: []string{"js"}}, failingMinifier{}, reverse{})
	_, err := p.Optimize(context.Background(), bundle, OutputSpec{Dir: dir, Bundle: "app.js"})
	assert.ErrorContains(t, err, "minifier exploded")
	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestOptimizeEndToEndWithRealCodecs(t *testing.T) {
	dir := t.TempDir()
	p := New(Options{Extensions: []string{"js"}}, Esbuild{}, NewBrotli(5))
	src := "var modules = {};\nfunction define(id, factory) {\n  modules[id] = factory;\n}\ndefine(0, function(module, exports, require) {\n  var longVariableName = 40 + 2;\n  exports.value = longVariableName;\n});\n"

	a, err := p.Optimize(context.Background(), src, OutputSpec{Dir: dir, Bundle: "bundle.js", HTML: "app.html"})
	require.NoError(t, err)
	assert.NotContains(t, string(a.Bundle.Content), "longVariableName")
	assert.True(t, strings.HasSuffix(string(a.Bundle.Content), "//# sourceMappingURL="+a.Map.Name+"\n"))

	r := brotli.NewReader(bytes.NewReader(a.HTML.Compressed))
	html, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, a.HTML.Content, html)
	assert.Equal(t, "app.html", a.HTML.Name)
}
