package rulelib

import (
	"regexp"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
)

// neverMatchPattern is the shared placeholder substituted for any pattern
// that fails to compile: a bad rule must not poison the library.
const neverMatchPattern = `^$`

var neverMatchRe = regexp.MustCompile(neverMatchPattern)

// regexCache deduplicates compilation across patterns with identical text,
// backing the lazy per-pattern cell. Read-mostly: the write path only
// takes the writer lock on a miss.
type regexCache struct {
	mu    sync.RWMutex
	byKey map[regexCacheKey]*regexp.Regexp
}

type regexCacheKey struct {
	pattern         string
	caseInsensitive bool
}

var globalRegexCache = &regexCache{byKey: make(map[regexCacheKey]*regexp.Regexp)}

func (c *regexCache) get(pattern string, caseInsensitive bool) (*regexp.Regexp, bool) {
	key := regexCacheKey{pattern, caseInsensitive}

	c.mu.RLock()
	if re, ok := c.byKey[key]; ok {
		c.mu.RUnlock()
		return re, true
	}
	c.mu.RUnlock()

	text := pattern
	if caseInsensitive {
		text = "(?i)" + pattern
	}
	re, err := regexp.Compile(text)
	if err != nil {
		return nil, false
	}

	c.mu.Lock()
	// A concurrent writer may have raced us here; keep whichever is
	// already stored so every caller observes the same artefact.
	if existing, ok := c.byKey[key]; ok {
		c.mu.Unlock()
		return existing, true
	}
	c.byKey[key] = re
	c.mu.Unlock()
	return re, true
}

// regexp2Matcher wraps the fallback engine used when RE2 rejects a pattern
// normalisation could not fully repair, e.g. backreferences surviving the
// repair pipeline.
type regexp2Matcher struct {
	re *regexp2.Regexp
}

func compileRegexp2(pattern string, caseInsensitive bool) *regexp2Matcher {
	opts := regexp2.None
	if caseInsensitive {
		opts = regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil
	}
	return &regexp2Matcher{re: re}
}

func (m *regexp2Matcher) MatchString(s string) bool {
	ok, err := m.re.MatchString(s)
	return err == nil && ok
}

func (m *regexp2Matcher) FindStringSubmatch(s string) []string {
	match, err := m.re.FindStringMatch(s)
	if err != nil || match == nil {
		return nil
	}
	groups := match.Groups()
	out := make([]string, len(groups))
	for i, g := range groups {
		if len(g.Captures) > 0 {
			out[i] = g.Captures[0].String()
		}
	}
	return out
}

// matcherCache is the write-once-per-cell memoisation cell backing lazy
// matcher construction. sync.Once guarantees the matcher compiles exactly
// once per pattern without holding a lock across the match invocation
// itself.
type matcherCache struct {
	once sync.Once
	m    compiledMatcher
}

func (ep *ExecutablePattern) matcher() compiledMatcher {
	ep.cache.once.Do(func() {
		ep.cache.m = buildMatcher(ep.Spec)
	})
	return ep.cache.m
}

func buildMatcher(spec MatcherSpec) compiledMatcher {
	switch spec.Kind {
	case MatcherContains, MatcherStartsWith, MatcherExists:
		return compiledMatcher{kind: spec.Kind, text: spec.Text, caseInsensitive: spec.CaseInsensitive}
	case MatcherRegex:
		if re, ok := globalRegexCache.get(spec.Text, spec.CaseInsensitive); ok {
			return compiledMatcher{kind: MatcherRegex, re: re}
		}
		if re2 := compileRegexp2(spec.Text, spec.CaseInsensitive); re2 != nil {
			return compiledMatcher{kind: MatcherRegex, re2: re2}
		}
		return compiledMatcher{kind: MatcherRegex, re: neverMatchRe}
	default:
		return compiledMatcher{kind: MatcherExists}
	}
}

// Matches evaluates the pattern's underlying matcher against value,
// independent of any gate.
func (ep *ExecutablePattern) Matches(value string) bool {
	m := ep.matcher()
	switch m.kind {
	case MatcherExists:
		return true
	case MatcherContains:
		return strings.Contains(value, m.text)
	case MatcherStartsWith:
		return strings.HasPrefix(value, m.text)
	case MatcherRegex:
		if m.re != nil {
			return m.re.MatchString(value)
		}
		if m.re2 != nil {
			return m.re2.MatchString(value)
		}
		return false
	default:
		return false
	}
}

// Captures returns the regex submatch groups for value, or nil for
// non-regex matchers or a non-match.
func (ep *ExecutablePattern) Captures(value string) []string {
	m := ep.matcher()
	if m.kind != MatcherRegex {
		return nil
	}
	if m.re != nil {
		matches := m.re.FindStringSubmatch(value)
		if matches == nil {
			return nil
		}
		return matches
	}
	if m.re2 != nil {
		return m.re2.FindStringSubmatch(value)
	}
	return nil
}

// IsExists reports whether this pattern is a pure key-presence check.
func (ep *ExecutablePattern) IsExists() bool {
	return ep.Spec.Kind == MatcherExists
}

// CheckGate evaluates ep's precomputed admission rule against the raw
// input value and its extracted token set. Gates never reject a genuine
// regex match; they only skip the expensive match attempt when the
// cheaper precondition has already failed.
func (ep *ExecutablePattern) CheckGate(value string, tokens map[string]struct{}) bool {
	g := ep.Gate
	switch g.Kind {
	case GateOpen:
		return true
	case GateAnchor:
		return checkAnchor(g.Anchor, value)
	case GateRequireAll:
		for t := range g.RequireAll {
			if _, ok := tokens[t]; !ok {
				return false
			}
		}
		return true
	case GateRequireAny:
		for _, lit := range g.RequireAny {
			if strings.Contains(value, lit) {
				return true
			}
		}
		return false
	default:
		return true
	}
}

func checkAnchor(a AnchorStrategy, value string) bool {
	lower := strings.ToLower(value)
	text := strings.ToLower(a.Text)
	switch a.Kind {
	case AnchorPrefix:
		return strings.HasPrefix(lower, text)
	case AnchorSuffix:
		return strings.HasSuffix(lower, text)
	case AnchorExact:
		return lower == text
	case AnchorLiteral:
		return strings.Contains(lower, text)
	default:
		return true
	}
}
