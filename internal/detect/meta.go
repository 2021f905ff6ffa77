package detect

import "github.com/fyrsmithlabs/fingerprintd/internal/rulelib"

// analyzeMeta runs the Meta scope (grounded on analyzer/meta.rs): when a
// rule carries an Exists pattern for a meta name and the tag is present
// at all, that alone is a match; otherwise every non-Exists pattern is
// tried against the tag's content attribute.
func analyzeMeta(lib *rulelib.CompiledRuleLibrary, meta map[string]string, r results) {
	values := make([]string, 0, len(meta))
	for _, v := range meta {
		values = append(values, v)
	}
	candidates, tokens := buildCandidates(lib, rulelib.ScopeMeta, values)

	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for name, patterns := range tech.MetaPatterns {
			content, present := meta[name]

			hasExists := false
			var existsConfidence uint8
			for _, cp := range patterns {
				if cp.Exec.IsExists() {
					hasExists = true
					existsConfidence = cp.Exec.Confidence
					break
				}
			}

			if hasExists && present {
				r.update(techName, existsConfidence, "")
				continue
			}
			if !present {
				continue
			}
			for _, cp := range patterns {
				if cp.Exec.IsExists() {
					continue
				}
				if !cp.Exec.CheckGate(content, tokens) || !cp.Exec.Matches(content) {
					continue
				}
				r.update(techName, cp.Exec.Confidence, cp.Exec.ExtractVersion(content))
				break
			}
		}
	}
}
