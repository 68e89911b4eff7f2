// Package fault defines the error classes shared across the core.
// Domain packages wrap their own sentinels around one of these classes so
// callers can branch on errors.Is(err, fault.Precondition) without knowing
// which package produced the error.
package fault

import "errors"

var (
	// Validation: the caller passed a bad mode, theme or item id. No state changed.
	Validation = errors.New("validation failed")

	// Precondition: state exists but the operation is not permitted right now
	// (NotOwned, AlreadyConsumed, Incompatible, cooldown active).
	Precondition = errors.New("precondition failed")

	// Security: signature verification failed. Rejected before touching state.
	Security = errors.New("security check failed")

	// Store: the underlying storage is unavailable or a transaction conflicted.
	// Retried internally a bounded number of times before surfacing.
	Store = errors.New("store error")
)
