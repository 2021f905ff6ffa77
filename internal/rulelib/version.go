package rulelib

import (
	"strconv"
	"strings"
)

// ExtractVersion resolves ep's version template against the capture
// groups produced by matching value. Both `${1}` and `\1` refer to capture
// group 1, groups are never renumbered, the result is trimmed, and a
// template whose placeholders are all empty or out of range yields no
// version rather than a literal placeholder string.
func (ep *ExecutablePattern) ExtractVersion(value string) string {
	if ep.VersionTemplate == "" {
		return ""
	}
	groups := ep.Captures(value)
	if groups == nil {
		return ""
	}
	resolved, any := substitutePlaceholders(ep.VersionTemplate, groups)
	if !any {
		return ""
	}
	return strings.TrimSpace(resolved)
}

func substitutePlaceholders(template string, groups []string) (string, bool) {
	var b strings.Builder
	any := false
	i := 0
	for i < len(template) {
		c := template[i]
		if c == '$' && i+1 < len(template) && template[i+1] == '{' {
			end := strings.IndexByte(template[i+2:], '}')
			if end >= 0 {
				numStr := template[i+2 : i+2+end]
				if n, err := strconv.Atoi(numStr); err == nil {
					if v, ok := groupValue(groups, n); ok {
						if v != "" {
							any = true
						}
						b.WriteString(v)
					}
					i = i + 2 + end + 1
					continue
				}
			}
		}
		if c == '\\' && i+1 < len(template) && template[i+1] >= '1' && template[i+1] <= '9' {
			n := int(template[i+1] - '0')
			if v, ok := groupValue(groups, n); ok {
				if v != "" {
					any = true
				}
				b.WriteString(v)
			}
			i += 2
			continue
		}
		b.WriteByte(c)
		i++
	}
	return b.String(), any
}

func groupValue(groups []string, n int) (string, bool) {
	if n < 0 || n >= len(groups) {
		return "", false
	}
	return groups[n], true
}
