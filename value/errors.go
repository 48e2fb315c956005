package value

import (
	"errors"
	"fmt"
)

// ErrEncode is the sentinel every EncodeError wraps, so callers can test
// failures with errors.Is(err, value.ErrEncode).
var ErrEncode = errors.New("value: unsupported type")

// EncodeError reports a Value outside the closed type set reached Encode.
type EncodeError struct {
	Kind Kind
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("value: cannot encode kind %s", e.Kind)
}

func (e *EncodeError) Unwrap() error { return ErrEncode }
