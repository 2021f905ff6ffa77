package rulelib

import "strings"

// MinTokenLen is the minimum length of an emitted atomic token.
const MinTokenLen = 3

// MaxRuleLiteralLen bounds the rule-side tokenizer call; longer literals
// yield the empty set rather than risk pathological author input.
const MaxRuleLiteralLen = 512

// MaxInputTokens caps the number of tokens extracted from a single input
// string before the extraction aborts; this guards pathological response
// bodies.
const MaxInputTokens = 10000

// ExtractAtomicTokens lower-cases s and splits it into maximal runs of
// [a-z0-9_], emitting each run of length >= MinTokenLen. This is the one
// canonical definition used on both the rule side (evidence extraction)
// and the input side (analyzer token sets); any divergence between the two
// call sites is a correctness bug.
//
// The MaxRuleLiteralLen guard only protects the rule side, where a literal
// comes straight from an untrusted rule author; ExtractInputTokens bypasses
// it via splitAtomicTokens so one long input segment (a data URI, say)
// doesn't lose every token it contains.
func ExtractAtomicTokens(s string) []string {
	if len(s) > MaxRuleLiteralLen {
		return nil
	}
	return splitAtomicTokens(strings.ToLower(s))
}

// splitAtomicTokens is the unguarded core of ExtractAtomicTokens: maximal
// runs of [a-z0-9_] of length >= MinTokenLen. s must already be lower-cased.
func splitAtomicTokens(lower string) []string {
	var tokens []string
	start := -1
	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if isAtomicByte(c) {
			if start == -1 {
				start = i
			}
			continue
		}
		if start != -1 {
			if i-start >= MinTokenLen {
				tokens = append(tokens, lower[start:i])
			}
			start = -1
		}
	}
	if start != -1 && len(lower)-start >= MinTokenLen {
		tokens = append(tokens, lower[start:])
	}
	return tokens
}

func isAtomicByte(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_'
}

// isFullTokenByte is the richer input-side segmentation class used to
// avoid splitting on '.', '-' before the final atomic-token pass; the
// emitted tokens still must satisfy ExtractAtomicTokens's rules, so the
// two sides agree on what a token is.
func isFullTokenByte(c byte) bool {
	return isAtomicByte(c) || c == '.' || c == '-'
}

// ExtractInputTokens extracts the full input-side token set from s,
// capped at MaxInputTokens. It segments on the richer
// [a-z0-9._-] class first, then re-splits each segment down to the
// atomic [a-z0-9_]{3,} definition, guaranteeing agreement with
// ExtractAtomicTokens.
func ExtractInputTokens(s string) map[string]struct{} {
	lower := strings.ToLower(s)
	out := make(map[string]struct{})

	start := -1
	emit := func(end int) {
		if start == -1 {
			return
		}
		// splitAtomicTokens, not ExtractAtomicTokens: a full-token segment
		// here (e.g. a data URI) can exceed MaxRuleLiteralLen, and that
		// guard exists for rule literals, not input segments.
		for _, t := range splitAtomicTokens(lower[start:end]) {
			if len(out) >= MaxInputTokens {
				return
			}
			out[t] = struct{}{}
		}
	}
	for i := 0; i < len(lower) && len(out) < MaxInputTokens; i++ {
		c := lower[i]
		if isFullTokenByte(c) {
			if start == -1 {
				start = i
			}
			continue
		}
		emit(i)
		start = -1
	}
	emit(len(lower))
	return out
}
