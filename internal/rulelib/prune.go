package rulelib

import (
	"regexp/syntax"
	"sort"
	"strings"
)

// MinRequireAnyLiteralLen is the minimum length a branch literal must have
// to be usable as a RequireAny gate element.
const MinRequireAnyLiteralLen = 3

// MaxRequireAnyLiterals caps the number of literals a RequireAny gate
// carries.
const MaxRequireAnyLiterals = 3

type pruneStrategyKind uint8

const (
	pruneNone pruneStrategyKind = iota
	pruneExact
	prunePrefix
	pruneSuffix
	pruneLiteral
)

type pruneStrategy struct {
	kind pruneStrategyKind
	text string
}

// extractPruneStrategy derives the Anchor-family hint for a pattern ahead
// of gate folding.
func extractPruneStrategy(p Pattern) pruneStrategy {
	switch p.Type {
	case MatchStartsWith:
		return pruneStrategy{prunePrefix, p.Text}
	case MatchContains:
		return pruneStrategy{pruneLiteral, p.Text}
	case MatchRegex:
		re, err := syntax.Parse(p.Text, syntax.Perl)
		if err != nil {
			return pruneStrategy{pruneNone, ""}
		}
		if lit, ok := asPureLiteral(re); ok {
			return pruneStrategy{pruneLiteral, lit}
		}
		return anchoredLiteral(re)
	default:
		return pruneStrategy{pruneNone, ""}
	}
}

// asPureLiteral reports whether re is, in its entirety, a single literal
// with no other structure (no anchors, no alternation).
func asPureLiteral(re *syntax.Regexp) (string, bool) {
	if re.Op == syntax.OpLiteral {
		return string(re.Rune), true
	}
	if re.Op != syntax.OpConcat {
		return "", false
	}
	var b strings.Builder
	for _, sub := range re.Sub {
		if sub.Op != syntax.OpLiteral {
			return "", false
		}
		b.WriteString(string(sub.Rune))
	}
	return b.String(), true
}

// anchoredLiteral detects `^<lit>$` (Exact), `^<lit>...` (AnchorPrefix), or
// `...<lit>$` (AnchorSuffix) shapes in a concatenation.
func anchoredLiteral(re *syntax.Regexp) pruneStrategy {
	if re.Op != syntax.OpConcat || len(re.Sub) == 0 {
		return pruneStrategy{pruneNone, ""}
	}
	sub := re.Sub
	beginAnchor := sub[0].Op == syntax.OpBeginLine || sub[0].Op == syntax.OpBeginText
	endAnchor := sub[len(sub)-1].Op == syntax.OpEndLine || sub[len(sub)-1].Op == syntax.OpEndText

	start := 0
	end := len(sub)
	if beginAnchor {
		start = 1
	}
	if endAnchor {
		end--
	}
	if start >= end {
		return pruneStrategy{pruneNone, ""}
	}
	var b strings.Builder
	for _, s := range sub[start:end] {
		if s.Op != syntax.OpLiteral {
			if beginAnchor && !endAnchor && b.Len() > 0 {
				return pruneStrategy{prunePrefix, b.String()}
			}
			if endAnchor && !beginAnchor && b.Len() > 0 {
				return pruneStrategy{pruneSuffix, b.String()}
			}
			return pruneStrategy{pruneNone, ""}
		}
		b.WriteString(string(s.Rune))
	}
	switch {
	case beginAnchor && endAnchor:
		return pruneStrategy{pruneExact, b.String()}
	case beginAnchor:
		return pruneStrategy{prunePrefix, b.String()}
	case endAnchor:
		return pruneStrategy{pruneSuffix, b.String()}
	default:
		return pruneStrategy{pruneNone, ""}
	}
}

// branchLiteralRe matches a grouped `(?:A|B|C)` alternation at the top
// level of a pattern string.
var branchGroupMarkers = []string{"(?:"}

// extractAlternationLiterals finds top-level `(?:A|B|…)` (or, absent any
// grouping parenthesis, an ungrouped `a|b|c`) whose branches are each a
// pure literal of length >= MinRequireAnyLiteralLen, verbatim
// (case-preserved; they are matched with raw contains, not lower-cased).
// Results are deduped, sorted longest-first, and truncated to
// MaxRequireAnyLiterals.
func extractAlternationLiterals(raw string) []string {
	re, err := syntax.Parse(raw, syntax.Perl)
	if err != nil {
		return nil
	}
	var literals []string
	var walk func(r *syntax.Regexp)
	walk = func(r *syntax.Regexp) {
		if r.Op == syntax.OpAlternate {
			ok := true
			branchLits := make([]string, 0, len(r.Sub))
			for _, sub := range r.Sub {
				lit, isLit := asPureLiteral(sub)
				if !isLit || len(lit) < MinRequireAnyLiteralLen {
					ok = false
					break
				}
				branchLits = append(branchLits, lit)
			}
			if ok {
				literals = append(literals, branchLits...)
				return
			}
		}
		for _, sub := range r.Sub {
			walk(sub)
		}
	}
	walk(re)

	literals = dedupStrings(literals)
	sort.Slice(literals, func(i, j int) bool { return len(literals[i]) > len(literals[j]) })
	if len(literals) > MaxRequireAnyLiterals {
		literals = literals[:MaxRequireAnyLiterals]
	}
	return literals
}

func dedupStrings(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0]
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// SynthesizeGate folds a pattern's prune strategy, minimum evidence set,
// and alternation literals into one MatchGate, preferring the cheapest
// sufficient precondition: Anchor family first, then non-empty RequireAll,
// then non-empty RequireAny, else Open.
func SynthesizeGate(p Pattern) MatchGate {
	if p.Type == MatchExists {
		return MatchGate{Kind: GateOpen}
	}

	strat := extractPruneStrategy(p)
	if strat.kind != pruneNone {
		return MatchGate{Kind: GateAnchor, Anchor: strategyToAnchor(strat)}
	}

	if p.Type == MatchRegex {
		evidence := ExtractMinEvidence(p.Text)
		if len(evidence) > 0 {
			return MatchGate{Kind: GateRequireAll, RequireAll: evidence}
		}
		if lits := extractAlternationLiterals(p.Text); len(lits) > 0 {
			return MatchGate{Kind: GateRequireAny, RequireAny: lits}
		}
	}

	return MatchGate{Kind: GateOpen}
}

func strategyToAnchor(s pruneStrategy) AnchorStrategy {
	switch s.kind {
	case pruneExact:
		return AnchorStrategy{AnchorExact, s.text}
	case prunePrefix:
		return AnchorStrategy{AnchorPrefix, s.text}
	case pruneSuffix:
		return AnchorStrategy{AnchorSuffix, s.text}
	default:
		return AnchorStrategy{AnchorLiteral, s.text}
	}
}
