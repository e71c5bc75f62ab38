package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Record stores and caches return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: no row matched the query
// - ErrConflict: a unique constraint rejected the write
// - ErrAmbiguous: a row cannot be attributed to exactly one schema variant
// - ErrUnavailable: the backing service is unreachable
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAmbiguous   = errors.New("ambiguous record")
	ErrUnavailable = errors.New("unavailable")
)
