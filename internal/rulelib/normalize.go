package rulelib

import (
	"regexp/syntax"
	"strings"
)

// escapeWhitelist is the set of characters permitted after a backslash;
// any other `\X` has its backslash dropped.
const escapeWhitelist = `.*+?^$()[]{}|dDwWsS\`

var lookAroundPrefixes = []string{"(?=", "(?!", "(?<=", "(?<!"}

// NormalizePattern runs the author-string repair pipeline over one raw
// pattern string, returning the resulting Pattern and whether normalisation
// succeeded. A false result means the pattern is invalid and should be
// discarded rather than compiled.
func NormalizePattern(raw string, keyedScope bool) (Pattern, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		if keyedScope {
			return Pattern{Type: MatchExists}, true
		}
		return Pattern{}, false
	}

	versionTemplate, rest := extractVersionMarker(s)
	s = rest

	if isSimpleContains(s) {
		return Pattern{Text: s, Type: MatchContains, VersionTemplate: versionTemplate}, true
	}

	s = stripPCREDelimiters(s)
	s = stripInlineModifiers(s)
	s = removeLookAround(s)
	s = repairInvalidEscapes(s)
	s = repairCharsetHyphens(s)
	s = repairUnbalancedGroups(s)
	s = dropDegenerateCharsets(s)

	s = strings.TrimSpace(s)
	if s == "" {
		return Pattern{}, false
	}

	re, err := syntax.Parse(s, syntax.Perl)
	if err != nil {
		return Pattern{}, false
	}
	canonical := re.String()

	if versionTemplate == "" && hasNumberedCapture(re) {
		versionTemplate = "${1}"
	}

	return Pattern{
		Text:            canonical,
		Type:            MatchRegex,
		CaseInsensitive: true,
		VersionTemplate: versionTemplate,
	}, true
}

// isSimpleContains reports whether s has no regex metacharacters at all,
// a shortcut that classifies a pattern as Contains without touching the
// AST parser.
func isSimpleContains(s string) bool {
	return !strings.ContainsAny(s, `.+*?()[]\|^$`)
}

// extractVersionMarker detects and strips a trailing `;version:<template>`
// suffix, returning the template and the remaining pattern text.
func extractVersionMarker(s string) (template string, rest string) {
	idx := strings.LastIndex(s, ";version:")
	if idx == -1 {
		return "", s
	}
	return s[idx+len(";version:"):], s[:idx]
}

// stripPCREDelimiters removes surrounding /…/ delimiters if present.
func stripPCREDelimiters(s string) string {
	if len(s) >= 2 && s[0] == '/' && s[len(s)-1] == '/' {
		return s[1 : len(s)-1]
	}
	return s
}

// inlineModifierRe matches a leading (?i), (?s), (?im), etc. group but
// never the non-capturing group marker (?:...).
var inlineModifierGroup = "imsU"

// stripInlineModifiers removes inline modifier groups like (?i) while
// preserving non-capturing groups (?:...).
func stripInlineModifiers(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if i+2 < len(s) && s[i] == '(' && s[i+1] == '?' && isModifierChar(s[i+2]) {
			j := i + 2
			for j < len(s) && isModifierChar(s[j]) {
				j++
			}
			if j < len(s) && s[j] == ')' {
				i = j + 1
				continue
			}
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func isModifierChar(c byte) bool {
	return strings.IndexByte(inlineModifierGroup, c) >= 0
}

// removeLookAround strips (?=...), (?!...), (?<=...), (?<!...) constructs,
// which Go's RE2-based engine cannot express.
func removeLookAround(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		matched := ""
		for _, p := range lookAroundPrefixes {
			if strings.HasPrefix(s[i:], p) {
				matched = p
				break
			}
		}
		if matched == "" {
			b.WriteByte(s[i])
			i++
			continue
		}
		depth := 1
		j := i + len(matched)
		for j < len(s) && depth > 0 {
			switch s[j] {
			case '(':
				depth++
			case ')':
				depth--
			case '\\':
				j++ // skip escaped char
			}
			j++
		}
		i = j
	}
	return b.String()
}

// repairInvalidEscapes drops the backslash of any \X where X is not in
// the whitelist.
func repairInvalidEscapes(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			next := s[i+1]
			if strings.IndexByte(escapeWhitelist, next) >= 0 {
				b.WriteByte('\\')
				b.WriteByte(next)
			} else {
				b.WriteByte(next)
			}
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// repairCharsetHyphens escapes a '-' inside [...] unless it is the first
// or last character of the class, or forms a valid a-z/0-9 style range.
func repairCharsetHyphens(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '[' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := matchingCharsetEnd(s, i)
		if end == -1 {
			b.WriteString(s[i:])
			break
		}
		b.WriteString(fixCharsetBody(s[i : end+1]))
		i = end + 1
	}
	return b.String()
}

func matchingCharsetEnd(s string, open int) int {
	i := open + 1
	if i < len(s) && s[i] == '^' {
		i++
	}
	if i < len(s) && s[i] == ']' {
		i++
	}
	for i < len(s) {
		if s[i] == '\\' {
			i += 2
			continue
		}
		if s[i] == ']' {
			return i
		}
		i++
	}
	return -1
}

func fixCharsetBody(class string) string {
	inner := class[1 : len(class)-1]
	neg := strings.HasPrefix(inner, "^")
	body := inner
	if neg {
		body = inner[1:]
	}
	var b strings.Builder
	runes := []byte(body)
	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '-' {
			b.WriteByte(c)
			continue
		}
		first := i == 0
		last := i == len(runes)-1
		validRange := !first && !last && isAlnum(runes[i-1]) && isAlnum(runes[i+1]) && sameClass(runes[i-1], runes[i+1])
		if first || last || validRange {
			b.WriteByte('-')
		} else {
			b.WriteString(`\-`)
		}
	}
	fixed := b.String()
	if fixed == "" || fixed == "^" || fixed == "-" {
		return ""
	}
	if neg {
		return "[^" + fixed + "]"
	}
	return "[" + fixed + "]"
}

func isAlnum(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func sameClass(a, b byte) bool {
	classOf := func(c byte) int {
		switch {
		case c >= 'a' && c <= 'z':
			return 0
		case c >= 'A' && c <= 'Z':
			return 1
		case c >= '0' && c <= '9':
			return 2
		default:
			return 3
		}
	}
	return classOf(a) == classOf(b)
}

// repairUnbalancedGroups appends missing ')' for any unmatched '('.
func repairUnbalancedGroups(s string) string {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '(':
			depth++
		case ')':
			if depth > 0 {
				depth--
			}
		}
	}
	if depth <= 0 {
		return s
	}
	return s + strings.Repeat(")", depth)
}

// dropDegenerateCharsets removes empty, "^"-only, or "-"-only character
// classes left behind by earlier repair steps.
func dropDegenerateCharsets(s string) string {
	var b strings.Builder
	i := 0
	for i < len(s) {
		if s[i] != '[' {
			b.WriteByte(s[i])
			i++
			continue
		}
		end := matchingCharsetEnd(s, i)
		if end == -1 {
			b.WriteString(s[i:])
			break
		}
		inner := s[i+1 : end]
		if inner == "" || inner == "^" || inner == "-" {
			i = end + 1
			continue
		}
		b.WriteString(s[i : end+1])
		i = end + 1
	}
	return b.String()
}

// hasNumberedCapture reports whether re contains any capturing group.
func hasNumberedCapture(re *syntax.Regexp) bool {
	if re.Op == syntax.OpCapture {
		return true
	}
	for _, sub := range re.Sub {
		if hasNumberedCapture(sub) {
			return true
		}
	}
	return false
}
