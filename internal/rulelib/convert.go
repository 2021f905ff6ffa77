package rulelib

import (
	"encoding/json"
	"fmt"
	"strings"
)

// rawCategory mirrors one entry of a Wappalyzer "categories" map.
type rawCategory struct {
	Name     string `json:"name"`
	Priority int    `json:"priority"`
}

// rawTech mirrors one entry of a Wappalyzer "technologies"/"apps" map.
// Every pattern-bearing field accepts Wappalyzer's usual string-or-array
// polymorphism, so it is decoded into json.RawMessage and resolved by
// valuesOf/keyedValuesOf rather than a fixed Go type.
type rawTech struct {
	Website    string                     `json:"website"`
	CategoryID []uint32                   `json:"cats"`
	Icon       string                     `json:"icon"`
	CPE        string                     `json:"cpe"`
	Implies    json.RawMessage            `json:"implies"`
	URL        json.RawMessage            `json:"url"`
	HTML       json.RawMessage            `json:"html"`
	Script     json.RawMessage            `json:"scripts"`
	ScriptSrc  json.RawMessage            `json:"scriptSrc"`
	Meta       map[string]json.RawMessage `json:"meta"`
	Headers    map[string]json.RawMessage `json:"headers"`
	Cookies    map[string]json.RawMessage `json:"cookies"`
}

type rawLibrary struct {
	Technologies map[string]rawTech    `json:"technologies"`
	Apps         map[string]rawTech    `json:"apps"`
	Categories   map[string]rawCategory `json:"categories"`
}

// ConvertStats reports what ParseWappalyzerJSON discarded, mirroring the
// Rust reference's CleanStats bookkeeping.
type ConvertStats struct {
	TotalTechs      int
	EmptyRuleTechs  int // tech carried no usable pattern in any scope
	InvalidPatterns int // a raw string failed NormalizePattern
}

// ParseWappalyzerJSON decodes a Wappalyzer-format fingerprint database
// (the "technologies"/"apps" + "categories" shape every public
// Wappalyzer-derived JSON snapshot uses) into a RuleLibrary, running every
// raw pattern string through NormalizePattern on the way in.
func ParseWappalyzerJSON(data []byte) (*RuleLibrary, ConvertStats, error) {
	var raw rawLibrary
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, ConvertStats{}, fmt.Errorf("parse wappalyzer json: %w", err)
	}
	techs := raw.Technologies
	if len(techs) == 0 {
		techs = raw.Apps
	}

	stats := ConvertStats{TotalTechs: len(techs)}
	lib := &RuleLibrary{
		Techs:      make(map[string]*ParsedTechRule, len(techs)),
		Categories: make(map[uint32]Category, len(raw.Categories)),
	}

	for idStr, cat := range raw.Categories {
		var id uint32
		if _, err := fmt.Sscanf(idStr, "%d", &id); err != nil {
			continue
		}
		lib.Categories[id] = Category{Name: cat.Name, Priority: cat.Priority}
	}

	for name, t := range techs {
		parsed := &ParsedTechRule{
			Basic: TechBasicInfo{
				Name:        name,
				CategoryIDs: t.CategoryID,
				Implies:     stringListOf(t.Implies),
				Website:     t.Website,
				Icon:        t.Icon,
				CPE:         t.CPE,
			},
			Rules: make(map[Scope]MatchRuleSet),
		}

		invalid := 0
		addPositional := func(scope Scope, raw json.RawMessage) {
			if ruleSet, n, ok := buildPositionalRuleSet(raw); ok {
				parsed.Rules[scope] = ruleSet
				invalid += n
			}
		}
		addPositional(ScopeURL, t.URL)
		addPositional(ScopeHTML, t.HTML)
		// "scripts" (inline <script> body text) and "scriptSrc" (script
		// src attribute) both collapse onto the Script scope: both describe
		// script content observed by the Script analyzer.
		mergePositional(parsed.Rules, ScopeScript, t.Script, &invalid)
		mergePositional(parsed.Rules, ScopeScript, t.ScriptSrc, &invalid)

		addKeyed := func(scope Scope, raw map[string]json.RawMessage) {
			if ruleSet, n, ok := buildKeyedRuleSet(raw); ok {
				parsed.Rules[scope] = ruleSet
				invalid += n
			}
		}
		addKeyed(ScopeMeta, t.Meta)
		addKeyed(ScopeHeader, t.Headers)
		addKeyed(ScopeCookie, t.Cookies)

		stats.InvalidPatterns += invalid
		if len(parsed.Rules) == 0 {
			stats.EmptyRuleTechs++
			continue
		}
		lib.Techs[name] = parsed
	}

	return lib, stats, nil
}

// valuesOf resolves Wappalyzer's string-or-array polymorphism for a
// pattern-bearing field into a flat list of trimmed, non-empty strings.
func valuesOf(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		single = strings.TrimSpace(single)
		if single == "" {
			return nil
		}
		return []string{single}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, s := range list {
			s = strings.TrimSpace(s)
			if s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func stringListOf(raw json.RawMessage) []string {
	return valuesOf(raw)
}

func buildPositionalRuleSet(raw json.RawMessage) (MatchRuleSet, int, bool) {
	values := valuesOf(raw)
	if len(values) == 0 {
		return MatchRuleSet{}, 0, false
	}
	ruleSet := MatchRuleSet{Condition: CondOr}
	invalid := 0
	for _, v := range values {
		p, ok := NormalizePattern(v, false)
		if !ok {
			invalid++
			continue
		}
		ruleSet.Patterns = append(ruleSet.Patterns, p)
	}
	if len(ruleSet.Patterns) == 0 {
		return MatchRuleSet{}, invalid, false
	}
	return ruleSet, invalid, true
}

// mergePositional folds raw's values into an existing (or new) Script
// MatchRuleSet entry in rules, used to collapse "scripts" and "scriptSrc"
// onto one scope.
func mergePositional(rules map[Scope]MatchRuleSet, scope Scope, raw json.RawMessage, invalid *int) {
	ruleSet, n, ok := buildPositionalRuleSet(raw)
	*invalid += n
	if !ok {
		return
	}
	existing, has := rules[scope]
	if !has {
		rules[scope] = ruleSet
		return
	}
	existing.Patterns = append(existing.Patterns, ruleSet.Patterns...)
	rules[scope] = existing
}

// buildKeyedRuleSet converts a meta/header/cookie map into a MatchRuleSet
// of KeyedPatterns. A key whose value is the empty string means "key
// presence only" (MatchExists); an array or non-empty string is
// normalised the same way a positional pattern is.
func buildKeyedRuleSet(raw map[string]json.RawMessage) (MatchRuleSet, int, bool) {
	if len(raw) == 0 {
		return MatchRuleSet{}, 0, false
	}
	ruleSet := MatchRuleSet{Condition: CondOr}
	invalid := 0
	for key, v := range raw {
		lowerKey := strings.ToLower(strings.TrimSpace(key))
		if lowerKey == "condition" {
			continue
		}
		values := valuesOf(v)
		if len(values) == 0 {
			ruleSet.Keyed = append(ruleSet.Keyed, KeyedPattern{Key: lowerKey, Pattern: Pattern{Type: MatchExists}})
			continue
		}
		for _, s := range values {
			p, ok := NormalizePattern(s, true)
			if !ok {
				invalid++
				continue
			}
			ruleSet.Keyed = append(ruleSet.Keyed, KeyedPattern{Key: lowerKey, Pattern: p})
		}
	}
	if len(ruleSet.Keyed) == 0 {
		return MatchRuleSet{}, invalid, false
	}
	return ruleSet, invalid, true
}
