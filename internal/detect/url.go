package detect

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// analyzeURL runs the URL scope (grounded on analyzer/url.rs): every
// candidate tech's URL patterns are tried against every supplied URL
// until one matches.
func analyzeURL(lib *rulelib.CompiledRuleLibrary, urls []string, r results) {
	candidates, tokens := buildCandidates(lib, rulelib.ScopeURL, urls)
	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for _, url := range urls {
			for _, cp := range tech.URLPatterns {
				if !cp.Exec.CheckGate(url, tokens) || !cp.Exec.Matches(url) {
					continue
				}
				r.update(techName, cp.Exec.Confidence, cp.Exec.ExtractVersion(url))
				break
			}
		}
	}
}
