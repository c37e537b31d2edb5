package catalog

import "errors"

// ErrStorageUnavailable indicates a catalog root could not be read.
//
// This is fatal for the whole run: a partially enumerated catalog would make
// the reconciliation plan untrustworthy, so callers must abort before any
// plan is computed. Wrapped errors carry the underlying cause.
var ErrStorageUnavailable = errors.New("storage unavailable")
