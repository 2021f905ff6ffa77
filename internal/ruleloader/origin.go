// Package ruleloader implements Origin-dispatched rule-library loading,
// an ETag-keyed on-disk cache, and a fsnotify watch that swaps the global
// detector's compiled library when the cache file changes underneath it.
// Grounded on rswappalyzer/src/rule/loader/{rule_loader,remote_fetcher,
// etag,path_manager}.rs.
package ruleloader

import "fmt"

// OriginKind is the closed enumeration of rule-source origins.
type OriginKind uint8

const (
	// OriginEmbedded reads the frozen snapshot baked into the binary via
	// embed.FS.
	OriginEmbedded OriginKind = iota
	// OriginLocalFile reads and validates a path on disk.
	OriginLocalFile
	// OriginRemoteOfficial fetches the maintained upstream rule set.
	OriginRemoteOfficial
	// OriginRemoteCustom fetches a caller-supplied URL.
	OriginRemoteCustom
)

// Origin selects where a rule library is loaded from.
type Origin struct {
	Kind OriginKind
	Path string // OriginLocalFile
	URL  string // OriginRemoteCustom
}

func (o Origin) String() string {
	switch o.Kind {
	case OriginEmbedded:
		return "embedded"
	case OriginLocalFile:
		return fmt.Sprintf("local-file(%s)", o.Path)
	case OriginRemoteOfficial:
		return "remote-official"
	case OriginRemoteCustom:
		return fmt.Sprintf("remote-custom(%s)", o.URL)
	default:
		return "unknown"
	}
}

// officialRulesURL is the maintained upstream snapshot fetched for
// OriginRemoteOfficial.
const officialRulesURL = "https://raw.githubusercontent.com/enthec/webappanalyzer/main/src/technologies/_all.json"

func (o Origin) resolveURL() string {
	if o.Kind == OriginRemoteCustom {
		return o.URL
	}
	return officialRulesURL
}
