package rulelib

// CompileLibrary turns a parsed RuleLibrary into a CompiledRuleLibrary:
// every Pattern gets its gate synthesised and its matcher fixed, then every
// resulting ExecutablePattern is folded into the inverted index the
// candidate collector walks at request time.
//
// Only RequireAll gates populate EvidenceIndex; RequireAny and Anchor and
// Open gates all land a tech in NoEvidenceIndex for their scope instead.
// The Rust reference (original_source/indexer/builder.rs) also seeds
// evidence_index from RequireAnyLiteral branches; this implementation
// keeps RequireAny out of EvidenceIndex entirely, since a RequireAny
// precondition is satisfied by any one of several literals and so cannot
// stand in for the "all tokens present" guarantee EvidenceIndex promises.
func CompileLibrary(lib *RuleLibrary) *CompiledRuleLibrary {
	out := &CompiledRuleLibrary{
		TechPatterns:       make(map[string]*CompiledTechRule, len(lib.Techs)),
		CategoryMap:        make(map[uint32]string, len(lib.Categories)),
		EvidenceIndex:      make(map[string]map[Scope]map[string]struct{}),
		NoEvidenceIndex:    make(map[Scope]map[string]struct{}),
		KnownTokensByScope: make(map[Scope]map[string]struct{}),
		requireAnyAutomata: make(map[Scope]*requireAnyIndex),
	}
	for id, cat := range lib.Categories {
		out.CategoryMap[id] = cat.Name
	}

	for name, parsed := range lib.Techs {
		rule := &CompiledTechRule{
			Name:        name,
			CategoryIDs: parsed.Basic.CategoryIDs,
			Implies:     parsed.Basic.Implies,
		}
		for scope, ruleSet := range parsed.Rules {
			compilePositional := func(p Pattern) CompiledPattern {
				ep := compileExecutable(p)
				indexPattern(out, name, scope, "", ep)
				return CompiledPattern{Scope: scope, Exec: ep}
			}
			compileKeyed := func(kp KeyedPattern) CompiledPattern {
				ep := compileExecutable(kp.Pattern)
				indexPattern(out, name, scope, kp.Key, ep)
				return CompiledPattern{Scope: scope, IndexKey: kp.Key, Exec: ep}
			}

			switch scope {
			case ScopeURL:
				for _, p := range ruleSet.Patterns {
					rule.URLPatterns = append(rule.URLPatterns, compilePositional(p))
				}
			case ScopeHTML:
				for _, p := range ruleSet.Patterns {
					rule.HTMLPatterns = append(rule.HTMLPatterns, compilePositional(p))
				}
			case ScopeScript:
				for _, p := range ruleSet.Patterns {
					rule.ScriptPatterns = append(rule.ScriptPatterns, compilePositional(p))
				}
			case ScopeHeader:
				if rule.HeaderPatterns == nil {
					rule.HeaderPatterns = make(map[string][]CompiledPattern)
				}
				for _, kp := range ruleSet.Keyed {
					cp := compileKeyed(kp)
					rule.HeaderPatterns[kp.Key] = append(rule.HeaderPatterns[kp.Key], cp)
				}
			case ScopeCookie:
				if rule.CookiePatterns == nil {
					rule.CookiePatterns = make(map[string][]CompiledPattern)
				}
				for _, kp := range ruleSet.Keyed {
					cp := compileKeyed(kp)
					rule.CookiePatterns[kp.Key] = append(rule.CookiePatterns[kp.Key], cp)
				}
			case ScopeMeta:
				if rule.MetaPatterns == nil {
					rule.MetaPatterns = make(map[string][]CompiledPattern)
				}
				for _, kp := range ruleSet.Keyed {
					cp := compileKeyed(kp)
					rule.MetaPatterns[kp.Key] = append(rule.MetaPatterns[kp.Key], cp)
				}
			}
		}
		out.TechPatterns[name] = rule
	}

	for _, idx := range out.requireAnyAutomata {
		idx.build()
	}
	return out
}

// defaultConfidence is the starting confidence assigned to a pattern that
// carries no explicit author-supplied override. Author-level confidence
// overrides are threaded through by the Wappalyzer JSON converter before
// CompileLibrary ever sees the Pattern.
const defaultConfidence = 100

func compileExecutable(p Pattern) *ExecutablePattern {
	var kind MatcherKind
	switch p.Type {
	case MatchContains:
		kind = MatcherContains
	case MatchStartsWith:
		kind = MatcherStartsWith
	case MatchRegex:
		kind = MatcherRegex
	case MatchExists:
		kind = MatcherExists
	}
	return &ExecutablePattern{
		Spec: MatcherSpec{
			Kind:            kind,
			Text:            p.Text,
			CaseInsensitive: p.CaseInsensitive,
		},
		Gate:            SynthesizeGate(p),
		Confidence:      defaultConfidence,
		VersionTemplate: p.VersionTemplate,
	}
}

// indexPattern folds one compiled pattern's gate into the shared inverted
// index structures, keyed by the owning tech and scope.
func indexPattern(lib *CompiledRuleLibrary, tech string, scope Scope, key string, ep *ExecutablePattern) {
	switch ep.Gate.Kind {
	case GateRequireAll:
		for token := range ep.Gate.RequireAll {
			byScope, ok := lib.EvidenceIndex[token]
			if !ok {
				byScope = make(map[Scope]map[string]struct{})
				lib.EvidenceIndex[token] = byScope
			}
			techs, ok := byScope[scope]
			if !ok {
				techs = make(map[string]struct{})
				byScope[scope] = techs
			}
			techs[tech] = struct{}{}

			scopeTokens, ok := lib.KnownTokensByScope[scope]
			if !ok {
				scopeTokens = make(map[string]struct{})
				lib.KnownTokensByScope[scope] = scopeTokens
			}
			scopeTokens[token] = struct{}{}
		}

	case GateRequireAny:
		addNoEvidence(lib, scope, tech)
		idx, ok := lib.requireAnyAutomata[scope]
		if !ok {
			idx = newRequireAnyIndex()
			lib.requireAnyAutomata[scope] = idx
		}
		for _, lit := range ep.Gate.RequireAny {
			idx.register(lit, tech)
		}

	default: // GateOpen, GateAnchor
		addNoEvidence(lib, scope, tech)
	}
	_ = key // key is carried on CompiledPattern, not needed by the index itself
}

func addNoEvidence(lib *CompiledRuleLibrary, scope Scope, tech string) {
	techs, ok := lib.NoEvidenceIndex[scope]
	if !ok {
		techs = make(map[string]struct{})
		lib.NoEvidenceIndex[scope] = techs
	}
	techs[tech] = struct{}{}
}

// CandidateTechs returns the set of tech names worth evaluating for scope,
// given the atomic tokens extracted from one input value: every tech whose
// RequireAll evidence is fully covered by tokens, plus the permanent
// no-evidence set for the scope. This pre-filter is linear in the number of
// tokens: it never scans the raw input against every pattern.
func (lib *CompiledRuleLibrary) CandidateTechs(scope Scope, tokens map[string]struct{}) map[string]struct{} {
	out := make(map[string]struct{})
	for tech := range lib.NoEvidenceIndex[scope] {
		out[tech] = struct{}{}
	}
	for token := range tokens {
		for tech := range lib.EvidenceIndex[token][scope] {
			out[tech] = struct{}{}
		}
	}
	return out
}

// RequireAnyCandidates returns, for scope, every tech whose RequireAny
// gate is satisfied somewhere in raw, via the scope's Aho-Corasick index.
func (lib *CompiledRuleLibrary) RequireAnyCandidates(scope Scope, raw string) map[string]struct{} {
	idx, ok := lib.requireAnyAutomata[scope]
	if !ok {
		return map[string]struct{}{}
	}
	return idx.matchTechs(raw)
}
