package normalizer

import (
	"fmt"

	"koosseis/internal"
)

// Error is a typed normalization failure. Raw holds the response text when
// one was received, so unparsable answers can be inspected later.
type Error struct {
	Kind internal.FailureKind
	Raw  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
