package service

import "errors"

// ErrSystem wraps persistent-store failures during distribution. The whole
// distribution must be treated as failed; the caller may retry it entirely.
var ErrSystem = errors.New("persistent store failure")
