package detect

import (
	"bytes"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// defaultMaxBodyBytes is the HTML body truncation cap applied when a
// detector is built without an explicit limit: 2 MB, matched against a
// UTF-8 rune boundary so the regex/DOM passes never run over an
// arbitrarily large body.
const defaultMaxBodyBytes = 2 << 20

// truncateUTF8 returns the prefix of body capped at max bytes, trimmed
// back to the start of a rune so a multi-byte UTF-8 sequence is never
// split across the cut.
func truncateUTF8(body []byte, max int) []byte {
	if max <= 0 || len(body) <= max {
		return body
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(body[cut]) {
		cut--
	}
	return body[:cut]
}

// hashedBundleRe is a scope-wide blacklist that drops content-hashed build
// bundle names (chunk-*.abcdef01.js, runtime-*.js, hot-update bundles) from
// the Script scope before any gate runs. Pure optimisation: it applies only
// to the extracted script-src list, never to the raw HTML or URL scopes, so
// a rule matching one of these names by substring elsewhere is unaffected.
var hashedBundleRe = regexp.MustCompile(`(?i)(^|/)(chunk|runtime|vendor)[.\-][0-9a-f]{6,}\.js$|hot-update\.js$`)

func isHashedBundle(src string) bool {
	return hashedBundleRe.MatchString(src)
}

// TechDetector holds one immutable compiled rule library and runs the
// six-scope analyzer family against a single request's headers, URLs,
// and response body (grounded on detector/mod.rs's TechDetector::detect
// orchestration).
type TechDetector struct {
	lib          *rulelib.CompiledRuleLibrary
	ignore       *ignorelist.List
	maxBodyBytes int
}

// NewTechDetector builds a detector over lib. ignore may be nil.
// maxBodyBytes bounds the HTML body scanned per request before it reaches
// the DOM/regex passes; a value <= 0 falls back to defaultMaxBodyBytes.
func NewTechDetector(lib *rulelib.CompiledRuleLibrary, ignore *ignorelist.List, maxBodyBytes int) *TechDetector {
	if maxBodyBytes <= 0 {
		maxBodyBytes = defaultMaxBodyBytes
	}
	return &TechDetector{lib: lib, ignore: ignore, maxBodyBytes: maxBodyBytes}
}

// pageData is the subset of DOM extraction this engine needs: script
// sources, meta name/content pairs. Extracted via goquery, grounded on
// kavinsood-kitsune's collectDataFromDOM.
type pageData struct {
	scriptSrcs []string
	meta       map[string]string
}

func extractPageData(body []byte) pageData {
	pd := pageData{meta: make(map[string]string)}
	if len(bytes.TrimSpace(body)) == 0 {
		return pd
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return pd
	}

	doc.Find("script[src]").Each(func(_ int, s *goquery.Selection) {
		if src, ok := s.Attr("src"); ok {
			src = strings.TrimSpace(src)
			if src != "" && !isHashedBundle(src) {
				pd.scriptSrcs = append(pd.scriptSrcs, src)
			}
		}
	})

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name, hasName := s.Attr("name")
		if !hasName {
			return
		}
		content, _ := s.Attr("content")
		name = strings.ToLower(strings.TrimSpace(name))
		if name == "" {
			return
		}
		if _, exists := pd.meta[name]; !exists {
			pd.meta[name] = content
		}
	})

	return pd
}

// Detect runs every scope analyzer over the supplied request material and
// assembles a DetectResult: URL and HTML scopes see the raw inputs
// directly, Script and Meta scopes see data extracted from the HTML body,
// Cookie scope sees every parsed Set-Cookie/Cookie header value (a
// response may repeat the Set-Cookie header once per cookie), and Header
// scope sees the header map itself (keys lower-cased to match the
// compiled rule library's own lower-cased header names, matched against
// each name's first value). body is truncated to d.maxBodyBytes at a
// UTF-8 boundary before either the HTML or DOM-extraction pass sees it.
func (d *TechDetector) Detect(headers map[string][]string, urls []string, body []byte) rulelib.DetectResult {
	r := make(results)

	lowerHeaders := make(map[string][]string, len(headers))
	var rawCookieHeaders []string
	for k, vs := range headers {
		lk := strings.ToLower(strings.TrimSpace(k))
		lowerHeaders[lk] = append(lowerHeaders[lk], vs...)
		if lk == "set-cookie" || lk == "cookie" {
			rawCookieHeaders = append(rawCookieHeaders, vs...)
		}
	}

	body = truncateUTF8(body, d.maxBodyBytes)
	pd := extractPageData(body)
	html := string(body)

	analyzeURL(d.lib, urls, r)
	analyzeHeader(d.lib, lowerHeaders, r)
	analyzeCookie(d.lib, parseCookieHeaders(rawCookieHeaders), r)
	analyzeHTML(d.lib, html, r)
	analyzeScript(d.lib, pd.scriptSrcs, r)
	analyzeMeta(d.lib, pd.meta, r)

	impliedBy := applyImplies(d.lib, r)

	techs := make([]rulelib.Technology, 0, len(r))
	for name, e := range r {
		tech, ok := d.lib.TechPatterns[name]
		if !ok {
			continue
		}
		if !d.ignore.Allows(name, tech.CategoryIDs) {
			continue
		}
		techs = append(techs, rulelib.Technology{
			Name:       name,
			Version:    e.version,
			Categories: categoryNames(d.lib, tech.CategoryIDs),
			Confidence: e.confidence,
			ImpliedBy:  impliedBy[name],
		})
	}
	sort.Slice(techs, func(i, j int) bool { return techs[i].Name < techs[j].Name })

	return rulelib.DetectResult{Technologies: techs}
}

// Stats reports the size of the compiled rule library backing d, for
// status reporting.
func (d *TechDetector) Stats() (technologyCount, categoryCount int) {
	return len(d.lib.TechPatterns), len(d.lib.CategoryMap)
}

func categoryNames(lib *rulelib.CompiledRuleLibrary, ids []uint32) []string {
	if len(ids) == 0 {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if name, ok := lib.CategoryMap[id]; ok {
			out = append(out, name)
		}
	}
	return out
}
