package cache

import "errors"

// ErrDuplicateTag is returned by SoftApply when tag already names a
// pending delta set (spec.md §4.5/§7).
var ErrDuplicateTag = errors.New("cache: tag already has a pending delta set")
