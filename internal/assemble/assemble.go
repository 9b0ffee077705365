// Package assemble concatenates transformed modules into a single bundle
// behind a small module runtime.
package assemble

import (
	"strconv"
	"strings"

	"github.com/vk/merlin/internal/transform"
)

// Runtime is the loader every bundle starts with. It is ES5 so it runs
// unchanged on any target.
//
// A module's record is cached before its factory runs, so a dependency cycle
// hands the earlier module's partially populated exports to the later one
// instead of recursing.
const Runtime = `var modules = {};
var moduleCache = {};
function define(id, factory) {
  modules[id] = factory;
}
function requireModule(id) {
  var cached = moduleCache[id];
  if (cached) {
    return cached.exports;
  }
  var module = { exports: {} };
  moduleCache[id] = module;
  modules[id](module, module.exports, requireModule);
  return module.exports;
}`

// Bootstrap starts the entry module.
const Bootstrap = "requireModule(0);"

// Wrap places src in a factory registered under id. The closing brace sits on
// its own line so a trailing line comment in src cannot swallow it.
func Wrap(id int, src string) string {
	var b strings.Builder
	b.Grow(len(src) + 64)
	b.WriteString("define(")
	b.WriteString(strconv.Itoa(id))
	b.WriteString(", function(module, exports, require) {\n")
	b.WriteString(src)
	b.WriteString("\n});")
	return b.String()
}

// Assemble returns the runtime, every module wrapped in the order given, and
// the bootstrap call, joined by newlines.
func Assemble(mods []transform.Module) string {
	parts := make([]string, 0, len(mods)+2)
	parts = append(parts, Runtime)
	for _, m := range mods {
		parts = append(parts, Wrap(m.ID, m.Source))
	}
	parts = append(parts, Bootstrap)
	return strings.Join(parts, "\n") + "\n"
}
