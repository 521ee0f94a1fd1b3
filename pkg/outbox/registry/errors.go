package registry

import "errors"

var (
	// ErrUnroutable marks events no topic is registered for.
	ErrUnroutable = errors.New("no topic registered for event type")
	// ErrUnsupportedVersion marks envelopes written by a newer schema.
	ErrUnsupportedVersion = errors.New("unsupported envelope version")
)

// NonRetryableError tells the publisher to dead-letter the row instead of
// scheduling another attempt.
type NonRetryableError struct {
	Err error
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}
