// Package detect implements the per-scope analyzer family and the
// detection result updater: the request-time pipeline that turns a
// CompiledRuleLibrary and one request's headers/URLs/body into a
// DetectResult.
package detect

import (
	"sort"

	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// entry is one technology's best-known match so far in a single detect
// call: confidence plus an optional version string.
type entry struct {
	confidence uint8
	version    string
}

// results accumulates entries across every analyzer pass for one request.
type results map[string]entry

// update folds one analyzer's match into results, keeping whichever of
// the old and new entry is better: higher confidence wins outright; on a
// confidence tie, a present version beats an absent one, and between two
// present versions the longer string wins (grounded on
// rswappalyzer/src/utils/detection_updater.rs's is_new_result_better).
func (r results) update(tech string, confidence uint8, version string) {
	if confidence == 0 {
		confidence = defaultMatchConfidence
	}
	existing, ok := r[tech]
	if !ok {
		r[tech] = entry{confidence: confidence, version: version}
		return
	}
	if isBetter(confidence, version, existing.confidence, existing.version) {
		r[tech] = entry{confidence: confidence, version: version}
	}
}

const defaultMatchConfidence = 100

func isBetter(newConf uint8, newVer string, oldConf uint8, oldVer string) bool {
	if newConf > oldConf {
		return true
	}
	if newConf < oldConf {
		return false
	}
	if oldVer == "" && newVer != "" {
		return true
	}
	if oldVer != "" && newVer != "" {
		return len(newVer) > len(oldVer)
	}
	return false
}

const (
	baseImplyConfidence  = 90
	maxImplyConfidence   = 95
	boostPerImplySource  = 3
)

// applyImplies runs the single-pass implies closure over results: every
// technology implied by an already-matched technology is added (if not
// already matched directly) with a confidence that grows with the number
// of distinct sources implying it, capped at maxImplyConfidence. Returns
// the sorted list of implying sources per implied technology, for
// Technology.ImpliedBy.
func applyImplies(lib *rulelib.CompiledRuleLibrary, r results) map[string][]string {
	sources := make(map[string]map[string]struct{})
	for sourceName := range r {
		source, ok := lib.TechPatterns[sourceName]
		if !ok {
			continue
		}
		for _, target := range source.Implies {
			if target == "" {
				continue
			}
			if _, ok := lib.TechPatterns[target]; !ok {
				continue
			}
			if _, already := r[target]; already {
				continue
			}
			set, ok := sources[target]
			if !ok {
				set = make(map[string]struct{})
				sources[target] = set
			}
			set[sourceName] = struct{}{}
		}
	}

	impliedBy := make(map[string][]string, len(sources))
	for target, srcSet := range sources {
		boost := uint8(len(srcSet)) * boostPerImplySource
		if boost > maxImplyConfidence-baseImplyConfidence {
			boost = maxImplyConfidence - baseImplyConfidence
		}
		if _, already := r[target]; !already {
			r[target] = entry{confidence: baseImplyConfidence + boost}
		}
		list := make([]string, 0, len(srcSet))
		for s := range srcSet {
			list = append(list, s)
		}
		sort.Strings(list)
		impliedBy[target] = list
	}
	return impliedBy
}
