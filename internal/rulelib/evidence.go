package rulelib

import (
	"regexp/syntax"
	"strings"
)

// ExtractMinEvidence computes the minimum evidence set for pattern: the
// atomic tokens guaranteed to appear in any input the regex could match.
// Grounded on rswappalyzer-engine's pruner/min_evidence.rs union/
// intersection walk over the regex AST.
func ExtractMinEvidence(pattern string) map[string]struct{} {
	lower := strings.ToLower(pattern)

	if isPureLiteral(lower) {
		return tokenSet(ExtractAtomicTokens(lower))
	}

	re, err := syntax.Parse(lower, syntax.Perl)
	if err != nil {
		return map[string]struct{}{}
	}
	out := map[string]struct{}{}
	collectMustLiterals(re, out)
	return out
}

// isPureLiteral reports whether s contains no regex metacharacters, in
// which case the whole string is safe evidence without an AST walk.
func isPureLiteral(s string) bool {
	return !strings.ContainsAny(s, `+*?()[]{}|\`)
}

func tokenSet(tokens []string) map[string]struct{} {
	out := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		out[t] = struct{}{}
	}
	return out
}

// collectMustLiterals walks re and merges guaranteed-present tokens into
// out, following the exact per-node semantics of the Rust reference:
// Concat is a union, Alternation is an intersection across branches,
// Repetition only recurses when min >= 1, Capture always recurses, and
// every other node kind contributes nothing.
func collectMustLiterals(re *syntax.Regexp, out map[string]struct{}) {
	switch re.Op {
	case syntax.OpLiteral:
		s := strings.TrimFunc(string(re.Rune), func(r rune) bool { return false })
		for _, t := range ExtractAtomicTokens(s) {
			out[t] = struct{}{}
		}

	case syntax.OpConcat:
		for _, sub := range re.Sub {
			collectMustLiterals(sub, out)
		}

	case syntax.OpAlternate:
		if len(re.Sub) == 0 {
			return
		}
		branchSets := make([]map[string]struct{}, len(re.Sub))
		for i, sub := range re.Sub {
			branchSets[i] = map[string]struct{}{}
			collectMustLiterals(sub, branchSets[i])
		}
		common := branchSets[0]
		for _, set := range branchSets[1:] {
			for t := range common {
				if _, ok := set[t]; !ok {
					delete(common, t)
				}
			}
		}
		for t := range common {
			out[t] = struct{}{}
		}

	case syntax.OpCapture:
		if len(re.Sub) == 1 {
			collectMustLiterals(re.Sub[0], out)
		}

	case syntax.OpStar, syntax.OpQuest:
		// min == 0: contributes nothing.

	case syntax.OpPlus:
		if len(re.Sub) == 1 {
			collectMustLiterals(re.Sub[0], out)
		}

	case syntax.OpRepeat:
		if re.Min >= 1 && len(re.Sub) == 1 {
			collectMustLiterals(re.Sub[0], out)
		}

	default:
		// CharClass, AnyChar, anchors, look-around residue, etc.: empty.
	}
}
