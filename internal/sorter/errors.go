package sorter

import (
	"errors"
	"fmt"
)

// ErrDeclined is returned when the confirmation gate answers no
var ErrDeclined = errors.New("run declined at confirmation")

// SetupError is a fatal error raised before any matching phase runs.
// No filesystem change has happened when it is returned.
type SetupError struct {
	Op  string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("setup failed: %s: %v", e.Op, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// IsSetupError reports whether err is (or wraps) a SetupError.
func IsSetupError(err error) bool {
	var se *SetupError
	return errors.As(err, &se)
}
