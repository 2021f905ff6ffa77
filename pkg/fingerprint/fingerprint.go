package fingerprint

import (
	"context"

	"github.com/fyrsmithlabs/fingerprintd/internal/detect"
	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/ruleloader"
)

// Library is a built, immutable detection engine: one compiled rule set
// plus its ignore list. Safe for concurrent use; Detect calls never
// mutate Library state.
type Library struct {
	detector *detect.TechDetector
}

// Init loads and compiles a rule library per cfg and returns a ready
// Library. It does not touch the process-wide global singleton; call
// UseAsGlobal if this Library should back package-level Detect/Global
// calls (e.g. for an HTTP server sharing the engine across requests).
func Init(ctx context.Context, cfg Config) (*Library, error) {
	loaderCfg, err := cfg.toLoaderConfig()
	if err != nil {
		return nil, err
	}

	compiled, _, err := ruleloader.Load(ctx, loaderCfg)
	if err != nil {
		return nil, err
	}

	ignore, err := ignorelist.Load(cfg.IgnoreListPath)
	if err != nil {
		return nil, err
	}

	return &Library{detector: detect.NewTechDetector(compiled, ignore, cfg.maxBodyBytes())}, nil
}

// Detect runs every scope analyzer over headers, urls, and body and
// returns the matched technologies. headers maps a header name to every
// value it was sent with (e.g. repeated Set-Cookie lines); analyzers that
// only consider the first value do so explicitly.
func (l *Library) Detect(headers map[string][]string, urls []string, body []byte) Result {
	return l.detector.Detect(headers, urls, body)
}

// Stats reports how many technologies and categories this Library's rule
// set covers.
func (l *Library) Stats() (technologyCount, categoryCount int) {
	return l.detector.Stats()
}

// UseAsGlobal installs l as the process-wide detector backing the
// package-level Detect function and internal/detect.Global, so an HTTP
// handler (internal/http) or a rule-cache watch (internal/ruleloader.Watch)
// can reach it without holding a *Library reference of its own.
func (l *Library) UseAsGlobal() {
	detect.Swap(l.detector)
}

// Detect runs the process-wide Library installed by the most recent
// UseAsGlobal call. Returns ErrNotInitialized if none has been installed.
func Detect(ctx context.Context, headers map[string][]string, urls []string, body []byte) (Result, error) {
	d, err := detect.Global(ctx)
	if err != nil {
		return Result{}, ErrNotInitialized
	}
	return d.Detect(headers, urls, body), nil
}
