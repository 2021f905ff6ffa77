package detect

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// buildCandidates runs the shared skeleton every per-scope analyzer opens
// with: extract atomic tokens from every value in data, intersect against
// the scope's known tokens via CandidateTechs (RequireAll evidence union
// plus the permanent no-evidence set), then fold in whatever the scope's
// RequireAny automaton surfaces. This never falls back to a substring scan
// over the raw input against every pattern: candidate selection stays
// linear in the number of tokens.
func buildCandidates(lib *rulelib.CompiledRuleLibrary, scope rulelib.Scope, data []string) (map[string]struct{}, map[string]struct{}) {
	tokens := make(map[string]struct{})
	for _, v := range data {
		for t := range rulelib.ExtractInputTokens(v) {
			tokens[t] = struct{}{}
		}
	}

	candidates := lib.CandidateTechs(scope, tokens)
	for _, v := range data {
		for tech := range lib.RequireAnyCandidates(scope, v) {
			candidates[tech] = struct{}{}
		}
	}
	return candidates, tokens
}
