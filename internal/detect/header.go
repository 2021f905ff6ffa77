package detect

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// analyzeHeader runs the Header scope (grounded on analyzer/header.rs):
// each rule-carried header name is looked up by lower-cased key in the
// supplied header map; an Exists pattern matches on key presence alone,
// any other pattern is checked against the header's first value only
// (a repeated header carries no additional signal here, unlike Cookie).
func analyzeHeader(lib *rulelib.CompiledRuleLibrary, headers map[string][]string, r results) {
	values := make([]string, 0, len(headers))
	for _, vs := range headers {
		if len(vs) > 0 {
			values = append(values, vs[0])
		}
	}
	candidates, tokens := buildCandidates(lib, rulelib.ScopeHeader, values)

	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for name, patterns := range tech.HeaderPatterns {
			vs := headers[name]
			present := len(vs) > 0
			var val string
			if present {
				val = vs[0]
			}
			for _, cp := range patterns {
				if cp.Exec.IsExists() {
					if present {
						r.update(techName, cp.Exec.Confidence, "")
					}
					continue
				}
				if !present || !cp.Exec.CheckGate(val, tokens) || !cp.Exec.Matches(val) {
					continue
				}
				r.update(techName, cp.Exec.Confidence, cp.Exec.ExtractVersion(val))
				break
			}
		}
	}
}
