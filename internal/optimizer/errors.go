package optimizer

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Validation errors. These are terminal: the caller fixed nothing by
// retrying, so they surface immediately.
var (
	ErrInvalidInput      = errors.New("input must be a non-empty GIF buffer")
	ErrInvalidQuality    = errors.New("quality must be between 1 and 100")
	ErrInvalidTargetSize = errors.New("target size must be between 10KB and 50MB")
	ErrInvalidDimension  = errors.New("invalid frame dimension")
)

// EncoderError reports that the encoder exited non-zero, could not be
// spawned, or produced an unreadable output file. Captured diagnostics
// are kept for the caller.
type EncoderError struct {
	Stdout   string
	Stderr   string
	ExitCode int
	Err      error
}

func (e *EncoderError) Error() string {
	msg := fmt.Sprintf("encoder execution failed: %v", e.Err)
	if detail := strings.TrimSpace(e.Stderr); detail != "" {
		msg += ": " + detail
	}
	return msg
}

func (e *EncoderError) Unwrap() error {
	return e.Err
}

// TimeoutError reports that a single encoder invocation exceeded its
// wall-clock budget. Kept distinct from EncoderError so callers can
// report "timed out" specifically.
type TimeoutError struct {
	Timeout time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("optimization timed out after %s", e.Timeout)
}
