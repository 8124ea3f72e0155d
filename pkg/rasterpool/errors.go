package rasterpool

import (
	"errors"
	"fmt"

	"github.com/relief-labs/rasterpool/pkg/codec"
)

// Core error codes share the codec's small-negative-integer space (spec.md
// §7): OpenFailed and FileIO are literally [codec.CodeOpenFailed] and
// [codec.CodeFileIO], the same codes the downstream library itself would
// raise for "no such dataset" and "I/O busy". AttemptsExceeded is the one
// code reserved outside the codec's space, for budget-exhaustion reporting
// upstream of any codec call at all.
const AttemptsExceeded codec.Code = 100

// Sentinel errors for the convenience (error-returning) wrappers this
// package builds on top of the raw signed-integer ABI described in
// spec.md §7. The raw ABI (what [Engine]'s Get*/exported methods return) is
// the ground truth; these sentinels exist so Go callers that prefer
// errors.Is can check outcomes without hand-decoding the integer.
var (
	// ErrOpenFailed corresponds to a negative result equal to
	// -[codec.CodeOpenFailed]: the token was invalid, or the pool could not
	// produce any handle for the key.
	ErrOpenFailed = errors.New("rasterpool: open failed")

	// ErrFileIO corresponds to a negative result equal to
	// -[codec.CodeFileIO]: attempts/time were exhausted while every handle
	// copy was contended, or the call otherwise returned inconclusively.
	ErrFileIO = errors.New("rasterpool: file io / busy")

	// ErrAttemptsExceeded corresponds to a negative result equal to
	// -[AttemptsExceeded].
	ErrAttemptsExceeded = errors.New("rasterpool: attempts exceeded")

	// ErrCodec wraps any other negative, codec-originated result.
	ErrCodec = errors.New("rasterpool: codec error")
)

// ResultError converts a raw Dispatch Engine result (spec.md §7's "single
// signed integer") into a Go error, or nil for success. It is a convenience
// for callers that prefer errors.Is over hand-decoding the sign and
// magnitude of the result themselves; the integer remains the canonical
// contract.
func ResultError(result int) error {
	if result >= 0 {
		return nil
	}

	code := codec.Code(-result)

	switch code {
	case codec.CodeOpenFailed:
		return ErrOpenFailed
	case codec.CodeFileIO:
		return ErrFileIO
	case AttemptsExceeded:
		return ErrAttemptsExceeded
	default:
		return fmt.Errorf("%w: %s (%d)", ErrCodec, code, int(code))
	}
}
