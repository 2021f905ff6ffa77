package rulelib

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLibraryJSON = `{
  "categories": {
    "1": {"name": "CMS", "priority": 1},
    "18": {"name": "JavaScript frameworks", "priority": 2}
  },
  "technologies": {
    "WordPress": {
      "cats": [1],
      "website": "https://wordpress.org",
      "headers": {"X-Powered-By": "WordPress"},
      "html": "wp-content",
      "implies": ["PHP"]
    },
    "PHP": {
      "cats": [1],
      "headers": {"X-Powered-By": "PHP;version:\\1"}
    },
    "React": {
      "cats": [18],
      "scriptSrc": "react(?:-dom)?(?:\\.min)?\\.js"
    },
    "Empty": {
      "cats": [1]
    }
  }
}`

func TestParseWappalyzerJSON(t *testing.T) {
	lib, stats, err := ParseWappalyzerJSON([]byte(sampleLibraryJSON))
	require.NoError(t, err)

	assert.Equal(t, 4, stats.TotalTechs)
	assert.Equal(t, 1, stats.EmptyRuleTechs, "the Empty tech has no pattern-bearing field")

	assert.Equal(t, "CMS", lib.Categories[1].Name)
	assert.Equal(t, "JavaScript frameworks", lib.Categories[18].Name)

	wp, ok := lib.Techs["WordPress"]
	require.True(t, ok)
	assert.Equal(t, []uint32{1}, wp.Basic.CategoryIDs)
	assert.Equal(t, []string{"PHP"}, wp.Basic.Implies)
	ruleSet, ok := wp.Rules[ScopeHeader]
	require.True(t, ok)
	require.Len(t, ruleSet.Keyed, 1)
	assert.Equal(t, "x-powered-by", ruleSet.Keyed[0].Key)

	htmlRules, ok := wp.Rules[ScopeHTML]
	require.True(t, ok)
	require.Len(t, htmlRules.Patterns, 1)
	assert.Equal(t, MatchContains, htmlRules.Patterns[0].Type)

	php, ok := lib.Techs["PHP"]
	require.True(t, ok)
	phpHeader := php.Rules[ScopeHeader].Keyed[0]
	assert.Equal(t, `\1`, phpHeader.Pattern.VersionTemplate)
	assert.Equal(t, "PHP", phpHeader.Pattern.Text)
	assert.Equal(t, MatchContains, phpHeader.Pattern.Type)

	react, ok := lib.Techs["React"]
	require.True(t, ok)
	scriptRules, ok := react.Rules[ScopeScript]
	require.True(t, ok, "scriptSrc and js both fold into the Script scope")
	assert.NotEmpty(t, scriptRules.Patterns)

	_, hasEmpty := lib.Techs["Empty"]
	assert.False(t, hasEmpty, "a tech with no usable pattern is dropped, not kept empty")
}

func TestParseWappalyzerJSON_AppsFallback(t *testing.T) {
	const appsJSON = `{
		"categories": {"1": {"name": "CMS", "priority": 1}},
		"apps": {
			"Drupal": {"cats": [1], "html": "drupal"}
		}
	}`
	lib, _, err := ParseWappalyzerJSON([]byte(appsJSON))
	require.NoError(t, err)
	_, ok := lib.Techs["Drupal"]
	assert.True(t, ok, "apps is used when technologies is absent")
}

func TestParseWappalyzerJSON_InvalidJSON(t *testing.T) {
	_, _, err := ParseWappalyzerJSON([]byte(`not json`))
	assert.Error(t, err)
}
