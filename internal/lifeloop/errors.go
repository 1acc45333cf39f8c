package lifeloop

import (
	"errors"
	"fmt"
)

// Stage is a step of the experiment state machine.
type Stage string

const (
	StageBegin       Stage = "BEGIN"
	StagePreCapture  Stage = "PRE_CAPTURE"
	StageDispatch    Stage = "DISPATCH"
	StagePostCapture Stage = "POST_CAPTURE"
	StageDelta       Stage = "DELTA"
	StageCausality   Stage = "CAUSALITY"
	StageRecord      Stage = "RECORD"
	StageComplete    Stage = "COMPLETE"
)

var (
	// ErrRecordLost indicates the record logger failed; the experiment
	// has no durable record.
	ErrRecordLost = errors.New("experiment record lost")

	// ErrTimeline indicates pre ≤ start ≤ end ≤ post did not hold.
	ErrTimeline = errors.New("timeline invariant violated")
)

// StageError is a fatal experiment failure at a given stage.
type StageError struct {
	Stage        Stage
	ExperimentID string
	Err          error
}

// Error implements the error interface.
func (e *StageError) Error() string {
	return fmt.Sprintf("%s (experiment=%s): %v", e.Stage, e.ExperimentID, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}

// IsStageError reports whether err is (or wraps) a StageError.
func IsStageError(err error) bool {
	var se *StageError
	return errors.As(err, &se)
}

// FailedStage returns the stage at which err aborted an experiment.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
