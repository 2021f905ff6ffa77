package detect

import (
	"strings"

	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// analyzeScript runs the Script scope (grounded on analyzer/script.rs):
// every extracted <script src> is joined into one combined string that
// both the token extractor and every pattern run against, the same way
// the Rust reference flattens script_src_combined before analysis.
func analyzeScript(lib *rulelib.CompiledRuleLibrary, scriptSrcs []string, r results) {
	combined := strings.Join(scriptSrcs, " ")
	if combined == "" {
		return
	}
	candidates, tokens := buildCandidates(lib, rulelib.ScopeScript, []string{combined})
	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for _, cp := range tech.ScriptPatterns {
			if !cp.Exec.CheckGate(combined, tokens) || !cp.Exec.Matches(combined) {
				continue
			}
			r.update(techName, cp.Exec.Confidence, cp.Exec.ExtractVersion(combined))
		}
	}
}
