package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Architect8989/EME/internal/ir"
)

// WriteExperiment inserts a record into the ledger.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - a record whose
// experiment id is already present is silently ignored and inserted is
// false. Other constraint violations still return errors.
func (s *Store) WriteExperiment(ctx context.Context, r ir.ExperimentRecord) (inserted bool, err error) {
	if r.ExperimentID == "" {
		return false, fmt.Errorf("write experiment: empty experiment id")
	}
	recordJSON, err := json.Marshal(r)
	if err != nil {
		return false, fmt.Errorf("write experiment %s: %w", r.ExperimentID, err)
	}

	var pixelsChanged any
	if r.Delta != nil {
		if n, ok := r.Delta.PixelsChanged(); ok {
			pixelsChanged = n
		}
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO experiments
		(id, action_id, started_at, start_ts, end_ts, duration, action_failed,
		 pre_checksum, post_checksum, pixels_changed, attributed, reason, record_digest, record)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		r.ExperimentID,
		r.ActionID,
		r.StartedAt,
		r.StartTimestamp,
		r.EndTimestamp,
		r.Duration,
		r.RawError != nil,
		r.PreSnapshot.Checksum,
		r.PostSnapshot.Checksum,
		pixelsChanged,
		r.Causality.Attributed,
		string(r.Causality.Reason),
		r.RecordDigest,
		string(recordJSON),
	)
	if err != nil {
		return false, fmt.Errorf("write experiment %s: %w", r.ExperimentID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("write experiment %s: %w", r.ExperimentID, err)
	}
	return n == 1, nil
}

// Record implements record.Logger.
func (s *Store) Record(ctx context.Context, r ir.ExperimentRecord) error {
	_, err := s.WriteExperiment(ctx, r)
	return err
}
