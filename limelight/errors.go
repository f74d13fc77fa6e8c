package limelight

import (
	"fmt"

	"github.com/juju/errors"
)

// Decode errors. Returned values are annotated, compare errors.Cause(err).
// Construction errors are errors.NotValid, check with errors.IsNotValid.
var (
	ErrUnknownTag    = fmt.Errorf("unknown tag")
	ErrMalformed     = fmt.Errorf("malformed message")
	ErrTruncated     = fmt.Errorf("truncated message")
	ErrTrailingBytes = fmt.Errorf("trailing bytes")
)

// IsDecodeError reports whether err came from decoding malformed input,
// as opposed to IO or construction failure.
func IsDecodeError(err error) bool {
	switch errors.Cause(err) {
	case ErrUnknownTag, ErrMalformed, ErrTruncated, ErrTrailingBytes:
		return true
	}
	return false
}
