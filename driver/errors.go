package driver

import "errors"

// ErrMissingKey is reserved for future indexed-access-style helpers
// (spec.md §7: "raised only by indexed-access style helpers; ordinary get
// returns null"). No operation exposed by Driver currently raises it.
var ErrMissingKey = errors.New("driver: key not found")
