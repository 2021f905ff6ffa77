package fingerprint

import "errors"

var (
	// ErrNotInitialized is returned by Detect when Init has not completed
	// successfully.
	ErrNotInitialized = errors.New("fingerprint: library not initialized")

	// ErrInvalidOrigin is returned by Init when a Config names a rule
	// origin that cannot be resolved (e.g. a local origin with an empty
	// path, or a custom origin with an unparseable URL).
	ErrInvalidOrigin = errors.New("fingerprint: invalid rule origin")
)
