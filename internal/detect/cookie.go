package detect

import (
	"strings"

	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// parseCookieHeaders flattens every raw Set-Cookie/Cookie header value
// into a standard name -> values map, lower-casing names and dropping
// any cookie whose value is literally "deleted" (a cleared cookie
// carries no fingerprinting signal). Grounded on
// utils/header_converter.rs's parse_set_cookie_fast/parse_request_cookie_fast.
func parseCookieHeaders(rawValues []string) map[string][]string {
	out := make(map[string][]string)
	for _, raw := range rawValues {
		cookieStr := strings.TrimSpace(raw)
		if cookieStr == "" {
			continue
		}
		for _, seg := range strings.Split(cookieStr, ";") {
			seg = strings.TrimSpace(seg)
			if seg == "" {
				continue
			}
			eq := strings.IndexByte(seg, '=')
			if eq < 0 {
				continue
			}
			name := strings.TrimSpace(seg[:eq])
			value := strings.TrimSpace(seg[eq+1:])
			if name == "" || strings.EqualFold(value, "deleted") {
				continue
			}
			nameLC := strings.ToLower(name)
			out[nameLC] = append(out[nameLC], value)
		}
	}
	return out
}

// analyzeCookie runs the Cookie scope (grounded on analyzer/cookie.rs):
// a rule's cookie name must be present in standardCookies; an Exists
// pattern matches on presence alone, otherwise every value recorded for
// that name is tried in turn.
func analyzeCookie(lib *rulelib.CompiledRuleLibrary, standardCookies map[string][]string, r results) {
	var allValues []string
	for _, vs := range standardCookies {
		allValues = append(allValues, vs...)
	}
	candidates, tokens := buildCandidates(lib, rulelib.ScopeCookie, allValues)

	for techName := range candidates {
		tech, ok := lib.TechPatterns[techName]
		if !ok {
			continue
		}
		for name, patterns := range tech.CookiePatterns {
			values, present := standardCookies[name]
			if !present {
				continue
			}
			for _, val := range values {
				matched := false
				var confidence uint8
				var version string
				for _, cp := range patterns {
					if cp.Exec.IsExists() {
						confidence = cp.Exec.Confidence
						matched = true
						break
					}
					if cp.Exec.CheckGate(val, tokens) && cp.Exec.Matches(val) {
						confidence = cp.Exec.Confidence
						version = cp.Exec.ExtractVersion(val)
						matched = true
						break
					}
				}
				if matched {
					r.update(techName, confidence, version)
					break
				}
			}
		}
	}
}
