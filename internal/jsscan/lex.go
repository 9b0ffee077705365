package jsscan

import "strings"

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func isIdentStart(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_' || c == '$' || c >= 0x80
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || c >= '0' && c <= '9'
}

func skipLineComment(src []byte, i int) int {
	i += 2
	for i < len(src) && src[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(src []byte, i int) int {
	i += 2
	for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
		i++
	}
	if i+1 < len(src) {
		return i + 2
	}
	return len(src)
}

func skipSpacesAndComments(src []byte, i int) int {
	n := len(src)
	for i < n {
		switch {
		case isSpace(src[i]):
			i++
		case i+1 < n && src[i] == '/' && src[i+1] == '/':
			i = skipLineComment(src, i)
		case i+1 < n && src[i] == '/' && src[i+1] == '*':
			i = skipBlockComment(src, i)
		default:
			return i
		}
	}
	return i
}

// skipString returns the offset of the quote closing the literal that opens
// at i and true. A quote or double quote literal left open at a line break
// ends there with false, so text such as JSX `<p>Don't</p>` loses only the
// rest of its line; at end of input the result is len(src) and false.
// Template literals are treated as flat text here; callers that care about
// interpolation check separately.
func skipString(src []byte, i int) (int, bool) {
	quote := src[i]
	i++
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case quote:
			return i, true
		case '\n':
			if quote != '`' {
				return i, false
			}
		}
		i++
	}
	return len(src), false
}

// skipRegex returns the offset just past the regular expression literal
// (including flags) that opens at i.
func skipRegex(src []byte, i int) int {
	i++
	inClass := false
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
			continue
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '\n':
			return i
		case '/':
			if !inClass {
				i++
				for i < len(src) && isIdentChar(src[i]) {
					i++
				}
				return i
			}
		}
		i++
	}
	return i
}

func unescape(b []byte) string {
	s := string(b)
	if !strings.Contains(s, `\`) {
		return s
	}
	var out strings.Builder
	out.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 == len(s) {
			out.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 'n':
			out.WriteByte('\n')
		case 't':
			out.WriteByte('\t')
		case 'r':
			out.WriteByte('\r')
		default:
			out.WriteByte(s[i])
		}
	}
	return out.String()
}
