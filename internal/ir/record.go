package ir

import "fmt"

// ExperimentRecord is the complete outcome of one pipeline run. The life
// loop assembles it exactly once, after every stage has finished.
type ExperimentRecord struct {
	ExperimentID   string          `json:"experiment_id"`
	ActionID       string          `json:"action_id"`
	StartedAt      string          `json:"started_at"` // RFC3339Nano wall clock, informational
	StartTimestamp float64         `json:"start_timestamp"`
	EndTimestamp   float64         `json:"end_timestamp"`
	Duration       float64         `json:"duration"`
	RawResult      *string         `json:"raw_result"`
	RawError       *string         `json:"raw_error"`
	PreSnapshot    SnapshotSummary `json:"pre_snapshot"`
	PostSnapshot   SnapshotSummary `json:"post_snapshot"`
	Delta          *Delta          `json:"delta"`
	Causality      Verdict         `json:"causality"`
	RecordDigest   string          `json:"record_digest"`
}

// CheckTimeline verifies pre ≤ start ≤ end ≤ post on the monotonic clock.
func (r *ExperimentRecord) CheckTimeline() error {
	switch {
	case r.PreSnapshot.Timestamp > r.StartTimestamp:
		return fmt.Errorf("pre-snapshot at %v after action start %v", r.PreSnapshot.Timestamp, r.StartTimestamp)
	case r.StartTimestamp > r.EndTimestamp:
		return fmt.Errorf("action start %v after action end %v", r.StartTimestamp, r.EndTimestamp)
	case r.EndTimestamp > r.PostSnapshot.Timestamp:
		return fmt.Errorf("action end %v after post-snapshot %v", r.EndTimestamp, r.PostSnapshot.Timestamp)
	}
	return nil
}

// digestFacts projects the float-free factual core of a record.
func (r *ExperimentRecord) digestFacts() map[string]any {
	facts := map[string]any{
		"experiment_id": r.ExperimentID,
		"action_id":     r.ActionID,
		"action_failed": r.RawError != nil,
		"pre_checksum":  r.PreSnapshot.Checksum,
		"post_checksum": r.PostSnapshot.Checksum,
		"pre_size":      []any{r.PreSnapshot.Width, r.PreSnapshot.Height},
		"post_size":     []any{r.PostSnapshot.Width, r.PostSnapshot.Height},
		"attributed":    r.Causality.Attributed,
		"reason":        string(r.Causality.Reason),
	}
	if r.Delta != nil {
		if n, ok := r.Delta.PixelsTotal(); ok {
			facts["pixels_total"] = n
		}
		if n, ok := r.Delta.PixelsChanged(); ok {
			facts["pixels_changed"] = n
		}
		if b, ok := r.Delta.BBox(); ok {
			facts["bbox"] = []any{b[0], b[1], b[2], b[3]}
		}
		if msg, ok := r.Delta.Err(); ok {
			facts["delta_error"] = msg
		}
	}
	return facts
}
