package service

import "errors"

// ErrInvalidTransition marks an operation on a session that exists but is not
// in a state that permits it, e.g. a hand-off for an already-queued session.
// Distinct from db.ErrNotFound so clients can tell the two apart.
var ErrInvalidTransition = errors.New("invalid session state for operation")
