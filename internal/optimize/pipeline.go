package optimize

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/vk/merlin/internal/builderr"
	"github.com/vk/merlin/internal/ctxlog"
)

// DefaultHTML is the shell name when none is configured.
const DefaultHTML = "index.html"

// Options configure a Pipeline.
type Options struct {
	// Extensions are the extensions discovery scans, without dots. The output
	// bundle extension must be one of them.
	Extensions []string
	Title      string
	// ReloadPath, when set, is the websocket path the shell listens on for
	// rebuild notifications.
	ReloadPath string
}

// OutputSpec says where and under which names the artifact is written.
type OutputSpec struct {
	Dir string
	// Bundle is "{base}.{ext}", e.g. "app.js".
	Bundle string
	// HTML is the shell name; DefaultHTML when empty.
	HTML string
}

// ParseBundle splits a bundle name into its base (first dot-separated
// segment) and extension (last segment).
func ParseBundle(name string) (base, ext string, err error) {
	parts := strings.Split(filepath.Base(name), ".")
	if len(parts) < 2 || parts[0] == "" || parts[len(parts)-1] == "" {
		return "", "", builderr.Configf("output bundle %q must look like {name}.{ext}", name)
	}
	return parts[0], parts[len(parts)-1], nil
}

// File is one written artifact and its compressed companion.
type File struct {
	Name       string
	Content    []byte
	Compressed []byte
}

// Artifact is the immutable result of one successful Optimize.
type Artifact struct {
	Dir string
	// Hash is the hex sha256 of BundleSource.
	Hash         string
	BundleSource string
	Bundle       File
	Map          File
	HTML         File
}

// Files returns bundle, map and shell, in that order.
func (a *Artifact) Files() []File {
	return []File{a.Bundle, a.Map, a.HTML}
}

// Lookup finds a file by its uncompressed name.
func (a *Artifact) Lookup(name string) (File, bool) {
	for _, f := range a.Files() {
		if f.Name == name {
			return f, true
		}
	}
	return File{}, false
}

// Paths returns every path written for the artifact, companions included.
func (a *Artifact) Paths() []string {
	var out []string
	for _, f := range a.Files() {
		out = append(out, filepath.Join(a.Dir, f.Name), filepath.Join(a.Dir, f.Name+CompressedSuffix))
	}
	return out
}

// Pipeline hashes, minifies, compresses and writes bundles.
type Pipeline struct {
	opts       Options
	minifier   Minifier
	compressor Compressor
}

// New creates a Pipeline.
func New(opts Options, m Minifier, c Compressor) *Pipeline {
	exts := make([]string, 0, len(opts.Extensions))
	for _, e := range opts.Extensions {
		exts = append(exts, strings.TrimPrefix(e, "."))
	}
	opts.Extensions = exts
	return &Pipeline{opts: opts, minifier: m, compressor: c}
}

// Hash returns the content hash used to name a bundle.
func Hash(bundleSource string) string {
	sum := sha256.Sum256([]byte(bundleSource))
	return hex.EncodeToString(sum[:])
}

// Optimize produces and writes the artifact set for bundleSource. Nothing is
// written when out names a bundle the pipeline cannot produce.
func (p *Pipeline) Optimize(ctx context.Context, bundleSource string, out OutputSpec) (*Artifact, error) {
	logger := ctxlog.FromContext(ctx)

	base, ext, err := ParseBundle(out.Bundle)
	if err != nil {
		return nil, err
	}
	if !slices.Contains(p.opts.Extensions, ext) {
		return nil, builderr.ExtensionMismatch(ext, p.opts.Extensions)
	}
	htmlName := out.HTML
	if htmlName == "" {
		htmlName = DefaultHTML
	}

	hash := Hash(bundleSource)
	bundleName := fmt.Sprintf("%s.%s.%s", base, hash, ext)
	mapName := bundleName + ".map"

	minified, err := p.minifier.Minify(bundleSource, MinifyOptions{Filename: bundleName, MapURL: mapName})
	if err != nil {
		return nil, err
	}
	shell, err := Shell(p.opts.Title, bundleName, p.opts.ReloadPath)
	if err != nil {
		return nil, fmt.Errorf("render shell: %w", err)
	}

	a := &Artifact{
		Dir:          out.Dir,
		Hash:         hash,
		BundleSource: bundleSource,
		Bundle:       File{Name: bundleName, Content: []byte(minified.Code)},
		Map:          File{Name: mapName, Content: []byte(minified.Map)},
		HTML:         File{Name: htmlName, Content: shell},
	}
	for _, f := range []*File{&a.Bundle, &a.Map, &a.HTML} {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f.Compressed, err = p.compressor.Compress(f.Content)
		if err != nil {
			return nil, fmt.Errorf("compress %s: %w", f.Name, err)
		}
	}

	if err := os.MkdirAll(out.Dir, 0o755); err != nil {
		return nil, builderr.Write(out.Dir, err)
	}
	for _, f := range a.Files() {
		if err := writeFile(filepath.Join(out.Dir, f.Name), f.Content); err != nil {
			return nil, err
		}
		if err := writeFile(filepath.Join(out.Dir, f.Name+CompressedSuffix), f.Compressed); err != nil {
			return nil, err
		}
	}

	logger.Info("Artifact written.", "dir", out.Dir, "bundle", bundleName, "hash", hash, "bytes", len(a.Bundle.Content))
	return a, nil
}

// writeFile writes through a temporary file in the same directory so readers
// never observe a partial file.
func writeFile(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return builderr.Write(path, err)
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // write error takes precedence
		return builderr.Write(path, err)
	}
	if err := tmp.Close(); err != nil {
		return builderr.Write(path, err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return builderr.Write(path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return builderr.Write(path, err)
	}
	return nil
}
