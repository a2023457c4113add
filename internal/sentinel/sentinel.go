package sentinel

import "errors"

// Sentinel dependency errors. Stores return these (optionally wrapped) so
// services can translate them into domain errors exactly once.
var (
	// ErrNotFound means the row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrPrecondition means a conditional update matched zero rows: the row
	// was already resolved, is stale, or the caller is not allowed to touch
	// it. Stores never say which.
	ErrPrecondition = errors.New("precondition failed")
)
