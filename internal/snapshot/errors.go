package snapshot

import (
	"errors"
	"fmt"
)

// IntegrityErrorCode categorizes capture integrity violations.
type IntegrityErrorCode string

const (
	// ErrCodeCaptureFailed indicates the frame source itself failed.
	ErrCodeCaptureFailed IntegrityErrorCode = "CAPTURE_FAILED"

	// ErrCodeChannelInvariant indicates a frame without exactly 4 channels.
	ErrCodeChannelInvariant IntegrityErrorCode = "CHANNEL_INVARIANT"

	// ErrCodeDimensionInvariant indicates a non-positive width or height.
	ErrCodeDimensionInvariant IntegrityErrorCode = "DIMENSION_INVARIANT"

	// ErrCodeFrameSize indicates a buffer length other than width×height×4.
	ErrCodeFrameSize IntegrityErrorCode = "FRAME_SIZE"

	// ErrCodeAtomicWrite indicates a failed step of the atomic write protocol.
	ErrCodeAtomicWrite IntegrityErrorCode = "ATOMIC_WRITE"

	// ErrCodeStorageCorruption indicates the persisted bytes do not hash to
	// the checksum computed before the write.
	ErrCodeStorageCorruption IntegrityErrorCode = "STORAGE_CORRUPTION"

	// ErrCodeMonotonicClock indicates the clock went backwards across a grab.
	ErrCodeMonotonicClock IntegrityErrorCode = "MONOTONIC_CLOCK"
)

// IntegrityError is a fatal snapshot store failure. It is never downgraded
// to a warning; callers abort the experiment.
type IntegrityError struct {
	Code    IntegrityErrorCode
	Message string
	Path    string
	Err     error
}

func (e *IntegrityError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.Path != "" {
		msg += fmt.Sprintf(" (path=%s)", e.Path)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *IntegrityError) Unwrap() error {
	return e.Err
}

// IsIntegrityError reports whether err is (or wraps) an IntegrityError.
func IsIntegrityError(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie)
}

// HasCode reports whether err is an IntegrityError with the given code.
// Uses errors.As to handle wrapped errors.
func HasCode(err error, code IntegrityErrorCode) bool {
	var ie *IntegrityError
	if errors.As(err, &ie) {
		return ie.Code == code
	}
	return false
}

func newIntegrityError(code IntegrityErrorCode, message string, err error) *IntegrityError {
	return &IntegrityError{Code: code, Message: message, Err: err}
}
