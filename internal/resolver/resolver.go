// Package resolver maps a (containing file, dependency name) pair to the
// absolute path of a discovered file, following node-style lookup rules.
package resolver

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/vk/merlin/internal/builderr"
)

// ErrNoMatch is wrapped by every resolution failure.
var ErrNoMatch = errors.New("no matching file under the configured extensions")

// Files is the set of files a resolution may land on.
type Files interface {
	Has(path string) bool
}

// Resolver resolves dependency names against a fixed file set.
type Resolver struct {
	extensions []string
	files      Files
}

// New creates a Resolver that tries the given extensions (without leading
// dots) in order when a name omits its extension.
func New(extensions []string, files Files) *Resolver {
	exts := make([]string, 0, len(extensions))
	for _, e := range extensions {
		exts = append(exts, "."+strings.TrimPrefix(e, "."))
	}
	return &Resolver{extensions: exts, files: files}
}

// Resolve returns the absolute path name refers to from containing. It fails
// with a resolution error naming both when nothing in the file set matches.
func (r *Resolver) Resolve(containing, name string) (string, error) {
	if name == "" {
		return "", builderr.Unresolved(containing, name, ErrNoMatch)
	}
	dir := filepath.Dir(containing)

	if isPathLike(name) {
		target := filepath.FromSlash(name)
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if p, ok := r.resolvePath(filepath.Clean(target)); ok {
			return p, nil
		}
		return "", builderr.Unresolved(containing, name, ErrNoMatch)
	}

	for d := dir; ; d = filepath.Dir(d) {
		if filepath.Base(d) != "node_modules" {
			if p, ok := r.resolvePath(filepath.Join(d, "node_modules", filepath.FromSlash(name))); ok {
				return p, nil
			}
		}
		parent := filepath.Dir(d)
		if parent == d {
			break
		}
	}
	return "", builderr.Unresolved(containing, name, ErrNoMatch)
}

func isPathLike(name string) bool {
	return name == "." || name == ".." ||
		strings.HasPrefix(name, "./") || strings.HasPrefix(name, "../") ||
		strings.HasPrefix(name, "/") || filepath.IsAbs(name)
}

// resolvePath tries target as a file, then with each extension, then as a
// directory (package.json "main", then index).
func (r *Resolver) resolvePath(target string) (string, bool) {
	if p, ok := r.resolveFile(target); ok {
		return p, true
	}
	if main := packageMain(target); main != "" {
		entry := filepath.Join(target, filepath.FromSlash(main))
		if p, ok := r.resolveFile(entry); ok {
			return p, true
		}
		if p, ok := r.resolveIndex(entry); ok {
			return p, true
		}
	}
	return r.resolveIndex(target)
}

func (r *Resolver) resolveFile(target string) (string, bool) {
	if r.files.Has(target) {
		return target, true
	}
	for _, ext := range r.extensions {
		if p := target + ext; r.files.Has(p) {
			return p, true
		}
	}
	return "", false
}

func (r *Resolver) resolveIndex(dir string) (string, bool) {
	for _, ext := range r.extensions {
		if p := filepath.Join(dir, "index"+ext); r.files.Has(p) {
			return p, true
		}
	}
	return "", false
}

// packageMain returns the "main" field of dir/package.json, if any.
func packageMain(dir string) string {
	raw, err := os.ReadFile(filepath.Join(dir, "package.json"))
	if err != nil {
		return ""
	}
	var pkg struct {
		Main string `json:"main"`
	}
	if err := json.Unmarshal(raw, &pkg); err != nil {
		return ""
	}
	return strings.TrimSpace(pkg.Main)
}
