package repo

import "errors"

// ErrNotFound is returned when the requested record does not exist
// within the caller's project scope.
var ErrNotFound = errors.New("not found")
