package features

import "github.com/tphakala/kws-go/internal/errors"

// ErrLengthMismatch is returned when a slice or window has the wrong length.
var ErrLengthMismatch = errors.NewStd("feature length mismatch")
