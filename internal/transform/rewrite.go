package transform

import (
	"strconv"
	"strings"

	"github.com/vk/merlin/internal/jsscan"
)

// Rewrite replaces every `require("name")` call whose literal is a key of ids
// with `require(id)`. Dynamic `import("name")` calls become a promise of the
// same module. Calls naming anything else are left untouched.
func Rewrite(src string, ids map[string]int) string {
	sites := jsscan.CallSites([]byte(src))
	if len(sites) == 0 {
		return src
	}

	var b strings.Builder
	b.Grow(len(src))
	last := 0
	for _, site := range sites {
		id, ok := ids[site.Name]
		if !ok {
			continue
		}
		b.WriteString(src[last:site.Start])
		switch site.Kind {
		case jsscan.KindDynamicImport:
			b.WriteString("Promise.resolve().then(function () { return require(")
			b.WriteString(strconv.Itoa(id))
			b.WriteString("); })")
		default:
			b.WriteString("require(")
			b.WriteString(strconv.Itoa(id))
			b.WriteString(")")
		}
		last = site.End
	}
	b.WriteString(src[last:])
	return b.String()
}
