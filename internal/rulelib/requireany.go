package rulelib

import (
	ahocorasick "github.com/BobuSumisu/aho-corasick"
)

// requireAnyIndex batches every RequireAny literal registered for one
// scope into a single Aho-Corasick automaton, so a RequireAny gate check
// ("at least one of the listed substrings must occur in the raw input")
// runs as one multi-pattern scan over the input instead of a separate
// substring search per candidate pattern.
type requireAnyIndex struct {
	trie *ahocorasick.Trie
	// techsByLiteral maps a literal to the tech names whose RequireAny
	// gate it can satisfy, so a single Match pass can enumerate every
	// tech this scope's RequireAny-gated patterns might admit.
	techsByLiteral map[string]map[string]struct{}
}

func newRequireAnyIndex() *requireAnyIndex {
	return &requireAnyIndex{techsByLiteral: make(map[string]map[string]struct{})}
}

func (idx *requireAnyIndex) register(literal, tech string) {
	set, ok := idx.techsByLiteral[literal]
	if !ok {
		set = make(map[string]struct{})
		idx.techsByLiteral[literal] = set
	}
	set[tech] = struct{}{}
}

func (idx *requireAnyIndex) build() {
	b := ahocorasick.NewTrieBuilder()
	for lit := range idx.techsByLiteral {
		b.AddString(lit)
	}
	idx.trie = b.Build()
}

// matchTechs returns the union of techs whose registered RequireAny
// literal occurs somewhere in input.
func (idx *requireAnyIndex) matchTechs(input string) map[string]struct{} {
	out := make(map[string]struct{})
	if idx.trie == nil {
		return out
	}
	for _, m := range idx.trie.MatchString(input) {
		word := string(m.Word())
		for tech := range idx.techsByLiteral[word] {
			out[tech] = struct{}{}
		}
	}
	return out
}
