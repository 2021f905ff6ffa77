package detect

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// analyzeHTML runs the HTML scope (grounded on analyzer/html.rs): the
// full page markup against every candidate tech's HTML patterns.
func analyzeHTML(lib *rulelib.CompiledRuleLibrary, html string, r results) {
	if html == "" {
		return
	}
	candidates, tokens := buildCandidates(lib, rulelib.ScopeHTML, []string{html})
	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for _, cp := range tech.HTMLPatterns {
			if !cp.Exec.CheckGate(html, tokens) || !cp.Exec.Matches(html) {
				continue
			}
			r.update(techName, cp.Exec.Confidence, cp.Exec.ExtractVersion(html))
		}
	}
}
