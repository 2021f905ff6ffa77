// Package rulelib implements the rule compiler, inverted index, and match
// gate pipeline that turns author-written Wappalyzer-style patterns into a
// CompiledRuleLibrary ready for per-request detection.
package rulelib

import "regexp"

// Scope identifies the surface of an HTTP response a pattern matches
// against. Author-level "JS" and "ScriptSrc" collapse into Html and Script
// respectively at build time; this type never represents the pre-collapse
// names.
type Scope uint8

const (
	ScopeURL Scope = iota
	ScopeHTML
	ScopeScript
	ScopeHeader
	ScopeCookie
	ScopeMeta

	numScopes = int(ScopeMeta) + 1
)

func (s Scope) String() string {
	switch s {
	case ScopeURL:
		return "url"
	case ScopeHTML:
		return "html"
	case ScopeScript:
		return "script"
	case ScopeHeader:
		return "header"
	case ScopeCookie:
		return "cookie"
	case ScopeMeta:
		return "meta"
	default:
		return "unknown"
	}
}

// Keyed reports whether the scope addresses patterns by a string key
// (header name, cookie name, meta name) rather than positionally.
func (s Scope) Keyed() bool {
	return s == ScopeHeader || s == ScopeCookie || s == ScopeMeta
}

// MatchType is the closed enumeration of primitive match kinds a Pattern
// can reduce to.
type MatchType uint8

const (
	MatchContains MatchType = iota
	MatchStartsWith
	MatchRegex
	MatchExists
)

// Pattern is a normalised rule atom.
type Pattern struct {
	Text             string
	Type             MatchType
	CaseInsensitive  bool
	VersionTemplate  string // empty if none
}

// KeyedPattern pairs a lower-cased key (header/cookie/meta name) with its
// Pattern, for the three keyed scopes.
type KeyedPattern struct {
	Key     string
	Pattern Pattern
}

// Condition is the boolean combinator for a MatchRuleSet.
type Condition uint8

const (
	CondOr Condition = iota
	CondAnd
)

// MatchRuleSet holds every pattern a (tech, scope) pair contributes.
// Positional scopes (Url, Html, Script) populate Patterns; keyed scopes
// (Header, Cookie, Meta) populate Keyed.
type MatchRuleSet struct {
	Condition Condition
	Patterns  []Pattern
	Keyed     []KeyedPattern
}

// TechBasicInfo carries a technology's metadata independent of its match
// rules.
type TechBasicInfo struct {
	Name       string
	CategoryIDs []uint32
	Implies    []string
	Website    string
	Icon       string
	CPE        string
}

// ParsedTechRule is the parser's per-technology output, before compilation.
type ParsedTechRule struct {
	Basic TechBasicInfo
	Rules map[Scope]MatchRuleSet
}

// RuleLibrary is the parser's full output: every technology plus category
// metadata, ready for the build phase.
type RuleLibrary struct {
	Techs      map[string]*ParsedTechRule
	Categories map[uint32]Category
}

// Category names a Wappalyzer category id.
type Category struct {
	Name     string
	Priority int
}

// MatcherKind is the closed enumeration backing MatcherSpec.
type MatcherKind uint8

const (
	MatcherContains MatcherKind = iota
	MatcherStartsWith
	MatcherExists
	MatcherRegex
)

// MatcherSpec is the serialisable, immutable match primitive. It carries
// the pattern text but never the compiled regex (that lives in the
// Matcher, built lazily through ExecutablePattern's cache).
type MatcherSpec struct {
	Kind            MatcherKind
	Text            string
	CaseInsensitive bool
}

// AnchorKind enumerates the direct-string-op admission checks a gate can
// perform without reaching for a token set or the regex engine.
type AnchorKind uint8

const (
	AnchorPrefix AnchorKind = iota
	AnchorSuffix
	AnchorExact
	AnchorLiteral
)

// AnchorStrategy is one instance of the Anchor gate.
type AnchorStrategy struct {
	Kind AnchorKind
	Text string
}

// GateKind is the closed enumeration of MatchGate variants, in the
// priority order §4.5 folds them.
type GateKind uint8

const (
	GateOpen GateKind = iota
	GateAnchor
	GateRequireAll
	GateRequireAny
)

// MatchGate is the precomputed admission rule for a pattern. Exactly one
// of its fields is meaningful, selected by Kind.
type MatchGate struct {
	Kind       GateKind
	Anchor     AnchorStrategy
	RequireAll map[string]struct{}
	RequireAny []string // length <= 3, longest-first, case-sensitive
}

// compiledMatcher is the realised form of a MatcherSpec: either a direct
// string-op closure state or a lazily compiled regex.
type compiledMatcher struct {
	kind            MatcherKind
	text            string
	caseInsensitive bool
	re              *regexp.Regexp // MatcherRegex, RE2 fast path
	re2             *regexp2Matcher // MatcherRegex, fallback engine
}

// ExecutablePattern is a compiled, ready-to-run pattern: its admission
// gate, its matcher spec, and the lazily-populated compiled-matcher cell.
type ExecutablePattern struct {
	Spec            MatcherSpec
	Gate            MatchGate
	Confidence      uint8
	VersionTemplate string

	cache matcherCache
}

// CompiledPattern associates an ExecutablePattern with the scope and
// (for keyed scopes) the key it was compiled for.
type CompiledPattern struct {
	Scope    Scope
	IndexKey string // empty for positional scopes
	Exec     *ExecutablePattern
}

// CompiledTechRule is one technology's patterns, partitioned by scope.
type CompiledTechRule struct {
	Name           string
	URLPatterns    []CompiledPattern
	HTMLPatterns   []CompiledPattern
	ScriptPatterns []CompiledPattern
	MetaPatterns   map[string][]CompiledPattern
	HeaderPatterns map[string][]CompiledPattern
	CookiePatterns map[string][]CompiledPattern
	CategoryIDs    []uint32
	Implies        []string
}

// CompiledRuleLibrary is the immutable, process-wide-shareable product of
// the build phase.
type CompiledRuleLibrary struct {
	TechPatterns       map[string]*CompiledTechRule
	CategoryMap        map[uint32]string
	EvidenceIndex      map[string]map[Scope]map[string]struct{}
	NoEvidenceIndex    map[Scope]map[string]struct{}
	KnownTokensByScope map[Scope]map[string]struct{}

	// requireAnyAutomata holds one Aho-Corasick automaton per scope built
	// over every RequireAny literal registered in that scope, so the
	// analyzer skeleton's gate check for RequireAny becomes one scan
	// instead of up to three per pattern. See rulelib/requireany.go.
	requireAnyAutomata map[Scope]*requireAnyIndex
}

// Technology is one detected entry of a DetectResult.
type Technology struct {
	Name       string   `json:"name"`
	Version    string   `json:"version,omitempty"`
	Categories []string `json:"categories,omitempty"`
	Confidence uint8    `json:"confidence"`
	ImpliedBy  []string `json:"implied_by,omitempty"`
}

// DetectResult is the outcome of a single detect call.
type DetectResult struct {
	Technologies []Technology `json:"technologies"`
}
