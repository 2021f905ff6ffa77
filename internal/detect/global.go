package detect

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/fyrsmithlabs/fingerprintd/internal/ignorelist"
	"github.com/fyrsmithlabs/fingerprintd/internal/rulelib"
)

// ErrNotInitialized is returned by Global when no detector has been built
// yet and no builder has been registered via SetBuilder.
var ErrNotInitialized = errors.New("detect: global detector not initialized")

// Builder produces a fresh CompiledRuleLibrary and ignore list for lazy
// global initialisation; set once via SetBuilder before the first Global
// call (mirrors rswappalyzer's detector/global.rs Lazy<Arc<OnceCell<...>>>
// pairing, using a process-wide singleflight.Group instead of Rust's
// once_cell so concurrent first-callers collapse into a single build
// rather than racing on a lock).
type Builder func(ctx context.Context) (*rulelib.CompiledRuleLibrary, *ignorelist.List, error)

var (
	globalDetector atomic.Pointer[TechDetector]
	globalGroup    singleflight.Group
	globalMu       sync.Mutex
	globalBuilder  Builder
)

// SetBuilder registers the function Global uses to construct the detector
// on first access. Calling it again after Global has already built an
// instance has no effect on the existing instance; use Swap to replace a
// running singleton (e.g. after a rule-cache reload).
func SetBuilder(b Builder) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalBuilder = b
}

// Global returns the process-wide TechDetector, building it on first call
// via the registered Builder. Concurrent first-callers collapse into one
// build through singleflight.
func Global(ctx context.Context) (*TechDetector, error) {
	if d := globalDetector.Load(); d != nil {
		return d, nil
	}

	globalMu.Lock()
	builder := globalBuilder
	globalMu.Unlock()
	if builder == nil {
		return nil, ErrNotInitialized
	}

	v, err, _ := globalGroup.Do("init", func() (interface{}, error) {
		if d := globalDetector.Load(); d != nil {
			return d, nil
		}
		lib, ignore, err := builder(ctx)
		if err != nil {
			return nil, err
		}
		d := NewTechDetector(lib, ignore, 0)
		globalDetector.Store(d)
		return d, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*TechDetector), nil
}

// Swap atomically replaces the global detector, used when a rule-cache
// watch (internal/ruleloader) observes a fresh compiled library on disk.
func Swap(d *TechDetector) {
	globalDetector.Store(d)
}
