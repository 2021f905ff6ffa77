package detect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

const detectTestRules = `{
  "categories": {
    "1": {"name": "CMS", "priority": 1},
    "18": {"name": "JavaScript frameworks", "priority": 2}
  },
  "technologies": {
    "WordPress": {
      "cats": [1],
      "headers": {"X-Powered-By": "WordPress"},
      "html": "wp-content",
      "implies": ["PHP"]
    },
    "PHP": {
      "cats": [1]
    },
    "React": {
      "cats": [18],
      "scriptSrc": "react(?:-dom)?\\.production\\.min\\.js"
    },
    "Cookiebot": {
      "cats": [18],
      "cookies": {"CookieConsent": ""}
    },
    "ChunkedApp": {
      "cats": [18],
      "scriptSrc": "chunk-deadbeef123456.js"
    }
  }
}`

func mustDetector(t *testing.T, ignore *ignorelist.List) *TechDetector {
	t.Helper()
	lib, _, err := rulelib.ParseWappalyzerJSON([]byte(detectTestRules))
	require.NoError(t, err)
	return NewTechDetector(rulelib.CompileLibrary(lib), ignore, 0)
}

func techNames(result rulelib.DetectResult) []string {
	out := make([]string, len(result.Technologies))
	for i, t := range result.Technologies {
		out[i] = t.Name
	}
	return out
}

func TestDetect_HeaderAndHTML(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(
		map[string][]string{"X-Powered-By": {"WordPress"}},
		nil,
		[]byte(`<html><body><link href="/wp-content/themes/x.css"></body></html>`),
	)
	names := techNames(result)
	assert.Contains(t, names, "WordPress")
}

func TestDetect_ImpliesClosure(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(
		map[string][]string{"X-Powered-By": {"WordPress"}},
		nil,
		[]byte(`<html><body><link href="/wp-content/themes/x.css"></body></html>`),
	)
	var php *rulelib.Technology
	for i := range result.Technologies {
		if result.Technologies[i].Name == "PHP" {
			php = &result.Technologies[i]
		}
	}
	require.NotNil(t, php, "WordPress implies PHP")
	assert.Contains(t, php.ImpliedBy, "WordPress")
	assert.Less(t, php.Confidence, uint8(100))
}

func TestDetect_ScriptSrc(t *testing.T) {
	d := mustDetector(t, nil)
	body := []byte(`<html><body><script src="/assets/react.production.min.js"></script></body></html>`)
	result := d.Detect(nil, nil, body)
	assert.Contains(t, techNames(result), "React")
}

func TestDetect_HashedBundleIsPruned(t *testing.T) {
	d := mustDetector(t, nil)
	body := []byte(`<html><body><script src="/assets/chunk-deadbeef123456.js"></script></body></html>`)
	result := d.Detect(nil, nil, body)
	assert.NotContains(t, techNames(result), "ChunkedApp", "hashed bundle names are pruned from the Script scope before matching")
}

func TestDetect_Cookie(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(map[string][]string{"Cookie": {"CookieConsent=true; other=1"}}, nil, nil)
	assert.Contains(t, techNames(result), "Cookiebot")
}

func TestDetect_MultipleSetCookieHeadersAreAllConsidered(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(map[string][]string{
		"Set-Cookie": {"other=1; Path=/", "CookieConsent=true; Path=/"},
	}, nil, nil)
	assert.Contains(t, techNames(result), "Cookiebot", "evidence in the second Set-Cookie header must not be dropped")
}

func TestDetect_HeaderMatchesOnlyFirstValue(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(map[string][]string{
		"X-Powered-By": {"Express", "WordPress"},
	}, nil, nil)
	assert.NotContains(t, techNames(result), "WordPress", "header scope only considers a header's first value")
}

func TestDetect_TruncatesOversizedBody(t *testing.T) {
	lib, _, err := rulelib.ParseWappalyzerJSON([]byte(detectTestRules))
	require.NoError(t, err)
	d := NewTechDetector(rulelib.CompileLibrary(lib), nil, 64)

	padding := make([]byte, 100)
	for i := range padding {
		padding[i] = ' '
	}
	body := append([]byte(`<html><body>`+string(padding)), []byte(`<script src="/assets/react.production.min.js"></script></body></html>`)...)

	result := d.Detect(nil, nil, body)
	assert.NotContains(t, techNames(result), "React", "evidence past the body truncation cap must not be seen")
}

func TestDetect_EmptyInputsYieldNoTechnologies(t *testing.T) {
	d := mustDetector(t, nil)
	result := d.Detect(nil, nil, nil)
	assert.Empty(t, result.Technologies)
}

func TestDetect_IgnoreListFiltersResult(t *testing.T) {
	ignore := &ignorelist.List{Techs: map[string]struct{}{"wordpress": {}}}
	d := mustDetector(t, ignore)
	result := d.Detect(map[string][]string{"X-Powered-By": {"WordPress"}}, nil, nil)
	assert.NotContains(t, techNames(result), "WordPress")
}

func TestStats(t *testing.T) {
	d := mustDetector(t, nil)
	techCount, catCount := d.Stats()
	assert.Equal(t, 5, techCount)
	assert.Equal(t, 2, catCount)
}
