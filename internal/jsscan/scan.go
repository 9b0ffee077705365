// Package jsscan finds module references in JavaScript source without a full
// parse. It understands enough of the lexical grammar (strings, template
// literals, comments, regular expression literals) to never mistake text inside
// them for code.
package jsscan

// Kind classifies how a dependency is referenced.
type Kind uint8

const (
	// KindRequire is a CommonJS `require("x")` call.
	KindRequire Kind = iota
	// KindImport is a static `import … from "x"` or `import "x"`.
	KindImport
	// KindExportFrom is a re-export `export … from "x"`.
	KindExportFrom
	// KindDynamicImport is an `import("x")` expression.
	KindDynamicImport
)

func (k Kind) String() string {
	switch k {
	case KindRequire:
		return "require"
	case KindImport:
		return "import"
	case KindExportFrom:
		return "export-from"
	case KindDynamicImport:
		return "dynamic-import"
	default:
		return "unknown"
	}
}

// Request is one reference to a dependency name.
type Request struct {
	Name string
	Kind Kind
	// LitStart and LitEnd delimit the literal including its quotes.
	LitStart int
	LitEnd   int
}

// Site is a `require(<string literal>)` or `import(<string literal>)` call.
// Start is the offset of the callee keyword and End is one past the closing
// parenthesis.
type Site struct {
	Name  string
	Kind  Kind
	Start int
	End   int
}

// Requests returns every dependency reference in src in source order.
func Requests(src []byte) []Request {
	var out []Request
	s := newScanner(src)
	s.onRequest = func(r Request, _ *Site) { out = append(out, r) }
	s.run()
	return out
}

// Names returns the distinct dependency names declared in src, in the order
// of their first appearance.
func Names(src []byte) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, r := range Requests(src) {
		if _, ok := seen[r.Name]; ok {
			continue
		}
		seen[r.Name] = struct{}{}
		names = append(names, r.Name)
	}
	return names
}

// CallSites returns every `require("…")` and `import("…")` call in src in
// source order.
func CallSites(src []byte) []Site {
	var out []Site
	s := newScanner(src)
	s.onRequest = func(_ Request, site *Site) {
		if site != nil {
			out = append(out, *site)
		}
	}
	s.run()
	return out
}

// RequireCalls returns every `require("…")` call site in src in source order.
func RequireCalls(src []byte) []Site {
	var out []Site
	for _, site := range CallSites(src) {
		if site.Kind == KindRequire {
			out = append(out, site)
		}
	}
	return out
}

type scanner struct {
	src []byte
	i   int

	// prevSig is the last significant byte seen outside comments; identifiers
	// and literals are recorded as 'a'. prevWord is set when it was a word.
	prevSig  byte
	prevWord string

	depth     int
	templates []int

	onRequest func(Request, *Site)
}

func newScanner(src []byte) *scanner {
	return &scanner{src: src}
}

func (s *scanner) mark(c byte, word string) {
	s.prevSig = c
	s.prevWord = word
}

func (s *scanner) peek(off int) byte {
	if s.i+off < len(s.src) {
		return s.src[s.i+off]
	}
	return 0
}

func (s *scanner) run() {
	n := len(s.src)
	for s.i < n {
		c := s.src[s.i]
		switch {
		case isSpace(c):
			s.i++
		case c == '/' && s.peek(1) == '/':
			s.i = skipLineComment(s.src, s.i)
		case c == '/' && s.peek(1) == '*':
			s.i = skipBlockComment(s.src, s.i)
		case c == '/' && s.regexAllowed():
			s.i = skipRegex(s.src, s.i)
			s.mark('a', "")
		case c == '\'' || c == '"':
			end, _ := skipString(s.src, s.i)
			s.i = end + 1
			s.mark('a', "")
		case c == '`':
			s.i++
			s.template()
		case c == '{':
			s.depth++
			s.i++
			s.mark(c, "")
		case c == '}':
			if k := len(s.templates); k > 0 && s.templates[k-1] == s.depth {
				s.templates = s.templates[:k-1]
				s.depth--
				s.i++
				s.template()
				continue
			}
			s.depth--
			s.i++
			s.mark(c, "")
		case isIdentStart(c):
			start := s.i
			for s.i < n && isIdentChar(s.src[s.i]) {
				s.i++
			}
			word := string(s.src[start:s.i])
			member := s.prevSig == '.' && !(start >= 3 && string(s.src[start-3:start]) == "...")
			s.mark('a', word)
			if !member {
				s.keyword(word)
			}
		default:
			s.i++
			s.mark(c, "")
		}
	}
}

// template consumes template literal text up to the closing backtick or the
// next `${`, in which case scanning resumes in code mode.
func (s *scanner) template() {
	n := len(s.src)
	for s.i < n {
		switch c := s.src[s.i]; {
		case c == '\\':
			s.i += 2
		case c == '`':
			s.i++
			s.mark('a', "")
			return
		case c == '$' && s.peek(1) == '{':
			s.i += 2
			s.depth++
			s.templates = append(s.templates, s.depth)
			s.mark('{', "")
			return
		default:
			s.i++
		}
	}
}

var regexKeywords = map[string]struct{}{
	"return": {}, "typeof": {}, "instanceof": {}, "in": {}, "of": {}, "new": {},
	"delete": {}, "void": {}, "throw": {}, "case": {}, "do": {}, "else": {},
	"yield": {}, "await": {},
}

func (s *scanner) regexAllowed() bool {
	if s.prevWord != "" {
		_, ok := regexKeywords[s.prevWord]
		return ok
	}
	switch s.prevSig {
	case 0, '(', ',', '=', ':', '[', '!', '&', '|', '?', '{', '}', ';', '+', '-', '*', '%', '<', '>', '~', '^':
		return true
	}
	return false
}

func (s *scanner) keyword(word string) {
	switch word {
	case "require":
		if lit, litStart, litEnd, end, ok := callLiteral(s.src, s.i); ok {
			s.emit(Request{Name: lit, Kind: KindRequire, LitStart: litStart, LitEnd: litEnd},
				&Site{Name: lit, Kind: KindRequire, Start: s.i - len(word), End: end})
			s.i = end
			s.mark(')', "")
		}
	case "import":
		j := skipSpacesAndComments(s.src, s.i)
		if j >= len(s.src) {
			return
		}
		switch c := s.src[j]; {
		case c == '(':
			if lit, litStart, litEnd, end, ok := callLiteral(s.src, s.i); ok {
				s.emit(Request{Name: lit, Kind: KindDynamicImport, LitStart: litStart, LitEnd: litEnd},
					&Site{Name: lit, Kind: KindDynamicImport, Start: s.i - len(word), End: end})
				s.i = end
				s.mark(')', "")
			}
		case c == '\'' || c == '"':
			if end, ok := skipString(s.src, j); ok {
				s.emit(Request{Name: unescape(s.src[j+1 : end]), Kind: KindImport, LitStart: j, LitEnd: end + 1}, nil)
				s.i = end + 1
				s.mark('a', "")
			}
		case c == '.':
			// import.meta
		default:
			s.fromClause(j, KindImport)
		}
	case "export":
		j := skipSpacesAndComments(s.src, s.i)
		if j < len(s.src) && (s.src[j] == '*' || s.src[j] == '{') {
			s.fromClause(j, KindExportFrom)
		}
	}
}

// fromClause walks an import/export clause starting at j looking for
// `from "x"`. It gives up on anything that cannot appear in a clause.
func (s *scanner) fromClause(j int, kind Kind) {
	n := len(s.src)
	for j < n {
		j = skipSpacesAndComments(s.src, j)
		if j >= n {
			return
		}
		c := s.src[j]
		switch {
		case isIdentStart(c):
			start := j
			for j < n && isIdentChar(s.src[j]) {
				j++
			}
			if string(s.src[start:j]) != "from" {
				continue
			}
			k := skipSpacesAndComments(s.src, j)
			if k < n && (s.src[k] == '\'' || s.src[k] == '"') {
				end, ok := skipString(s.src, k)
				if !ok {
					return
				}
				s.emit(Request{Name: unescape(s.src[k+1 : end]), Kind: kind, LitStart: k, LitEnd: end + 1}, nil)
				s.i = end + 1
				s.mark('a', "")
				return
			}
		case c == '{' || c == '}' || c == ',' || c == '*':
			j++
		default:
			return
		}
	}
}

func (s *scanner) emit(r Request, site *Site) {
	if s.onRequest != nil {
		s.onRequest(r, site)
	}
}

// callLiteral parses `( "lit" )` starting at i (whitespace and comments allowed
// between tokens). It returns the literal value, the literal span including
// quotes, and the offset one past the closing parenthesis.
func callLiteral(src []byte, i int) (lit string, litStart, litEnd, end int, ok bool) {
	n := len(src)
	j := skipSpacesAndComments(src, i)
	if j >= n || src[j] != '(' {
		return "", 0, 0, 0, false
	}
	j = skipSpacesAndComments(src, j+1)
	if j >= n {
		return "", 0, 0, 0, false
	}
	q := src[j]
	if q != '\'' && q != '"' && q != '`' {
		return "", 0, 0, 0, false
	}
	close, closed := skipString(src, j)
	if !closed {
		return "", 0, 0, 0, false
	}
	body := src[j+1 : close]
	if q == '`' && containsInterpolation(body) {
		return "", 0, 0, 0, false
	}
	k := skipSpacesAndComments(src, close+1)
	if k >= n || src[k] != ')' {
		return "", 0, 0, 0, false
	}
	return unescape(body), j, close + 1, k + 1, true
}

func containsInterpolation(body []byte) bool {
	for i := 0; i+1 < len(body); i++ {
		if body[i] == '\\' {
			i++
			continue
		}
		if body[i] == '$' && body[i+1] == '{' {
			return true
		}
	}
	return false
}
