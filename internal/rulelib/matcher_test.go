package rulelib

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutablePattern_ContainsMatch(t *testing.T) {
	ep := &ExecutablePattern{Spec: MatcherSpec{Kind: MatcherContains, Text: "wp-content"}}
	assert.True(t, ep.Matches("<link href=\"/wp-content/themes/x.css\">"))
	assert.False(t, ep.Matches("<link href=\"/static/x.css\">"))
}

func TestExecutablePattern_RegexCaptureVersion(t *testing.T) {
	ep := &ExecutablePattern{Spec: MatcherSpec{Kind: MatcherRegex, Text: `nginx/([0-9.]+)`, CaseInsensitive: true}}
	assert.True(t, ep.Matches("Server: nginx/1.25.3"))
	caps := ep.Captures("Server: nginx/1.25.3")
	if assert.Len(t, caps, 2) {
		assert.Equal(t, "1.25.3", caps[1])
	}
}

func TestExecutablePattern_RegexNeverCompiles(t *testing.T) {
	// A pattern that neither RE2 nor regexp2 can compile falls back to a
	// matcher that never matches, rather than panicking at request time.
	ep := &ExecutablePattern{Spec: MatcherSpec{Kind: MatcherRegex, Text: `(`}}
	assert.False(t, ep.Matches("anything"))
}

func TestExecutablePattern_Exists(t *testing.T) {
	ep := &ExecutablePattern{Spec: MatcherSpec{Kind: MatcherExists}}
	assert.True(t, ep.Matches(""))
	assert.True(t, ep.IsExists())
}

func TestCheckGate(t *testing.T) {
	t.Run("open admits everything", func(t *testing.T) {
		ep := &ExecutablePattern{Gate: MatchGate{Kind: GateOpen}}
		assert.True(t, ep.CheckGate("", nil))
	})

	t.Run("anchor prefix", func(t *testing.T) {
		ep := &ExecutablePattern{Gate: MatchGate{Kind: GateAnchor, Anchor: AnchorStrategy{Kind: AnchorPrefix, Text: "wp-"}}}
		assert.True(t, ep.CheckGate("wp-content/themes", nil))
		assert.False(t, ep.CheckGate("themes/wp-content", nil))
	})

	t.Run("require all tokens present", func(t *testing.T) {
		ep := &ExecutablePattern{Gate: MatchGate{
			Kind:       GateRequireAll,
			RequireAll: map[string]struct{}{"react": {}, "dom": {}},
		}}
		assert.True(t, ep.CheckGate("", map[string]struct{}{"react": {}, "dom": {}, "other": {}}))
		assert.False(t, ep.CheckGate("", map[string]struct{}{"react": {}}))
	})

	t.Run("require any literal present", func(t *testing.T) {
		ep := &ExecutablePattern{Gate: MatchGate{Kind: GateRequireAny, RequireAny: []string{"wp-content", "wp-includes"}}}
		assert.True(t, ep.CheckGate("path contains wp-includes here", nil))
		assert.False(t, ep.CheckGate("nothing relevant", nil))
	})
}

func TestRequireAnyIndex(t *testing.T) {
	idx := newRequireAnyIndex()
	idx.register("wp-content", "WordPress")
	idx.register("wp-includes", "WordPress")
	idx.register("Joomla!", "Joomla")
	idx.build()

	got := idx.matchTechs("served from /wp-content/uploads/x.png")
	_, ok := got["WordPress"]
	assert.True(t, ok)
	_, ok = got["Joomla"]
	assert.False(t, ok)
}
