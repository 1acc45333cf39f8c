package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Architect8989/EME/internal/ir"
)

// Filter narrows ReadExperiments. Zero fields match everything.
type Filter struct {
	ActionID   string
	Reason     ir.Reason
	Attributed *bool
	Limit      int
}

// ReadExperiment retrieves a single record by experiment id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadExperiment(ctx context.Context, id string) (ir.ExperimentRecord, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM experiments WHERE id = ?`, id).Scan(&raw)
	if err != nil {
		return ir.ExperimentRecord{}, err
	}
	return decodeRecord(raw)
}

// ReadExperiments returns matching records in insertion order.
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) ReadExperiments(ctx context.Context, f Filter) ([]ir.ExperimentRecord, error) {
	var (
		where []string
		args  []any
	)
	if f.ActionID != "" {
		where = append(where, "action_id = ?")
		args = append(args, f.ActionID)
	}
	if f.Reason != "" {
		where = append(where, "reason = ?")
		args = append(args, string(f.Reason))
	}
	if f.Attributed != nil {
		where = append(where, "attributed = ?")
		args = append(args, *f.Attributed)
	}

	query := "SELECT record FROM experiments"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query experiments: %w", err)
	}
	defer rows.Close()

	records := []ir.ExperimentRecord{}
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan experiment: %w", err)
		}
		r, err := decodeRecord(raw)
		if err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return records, nil
}

// CountByReason tallies verdict reasons across the ledger.
func (s *Store) CountByReason(ctx context.Context) (map[ir.Reason]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT reason, COUNT(*) FROM experiments GROUP BY reason ORDER BY reason
	`)
	if err != nil {
		return nil, fmt.Errorf("count reasons: %w", err)
	}
	defer rows.Close()

	counts := map[ir.Reason]int{}
	for rows.Next() {
		var (
			reason string
			n      int
		)
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("scan reason count: %w", err)
		}
		counts[ir.Reason(reason)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reason counts: %w", err)
	}
	return counts, nil
}

// DigestMismatch is a ledger row whose stored digest does not match its
// recomputed digest.
type DigestMismatch struct {
	ExperimentID string `json:"experiment_id"`
	Stored       string `json:"stored"`
	Computed     string `json:"computed"`
}

// VerifyDigests recomputes the digest of every stored record.
func (s *Store) VerifyDigests(ctx context.Context) ([]DigestMismatch, error) {
	records, err := s.ReadExperiments(ctx, Filter{})
	if err != nil {
		return nil, err
	}
	mismatches := []DigestMismatch{}
	for i := range records {
		r := &records[i]
		computed, err := ir.RecordDigest(r)
		if err != nil {
			return nil, fmt.Errorf("digest %s: %w", r.ExperimentID, err)
		}
		if computed != r.RecordDigest {
			mismatches = append(mismatches, DigestMismatch{
				ExperimentID: r.ExperimentID,
				Stored:       r.RecordDigest,
				Computed:     computed,
			})
		}
	}
	return mismatches, nil
}

func decodeRecord(raw string) (ir.ExperimentRecord, error) {
	var r ir.ExperimentRecord
	if err := json.Unmarshal([]byte(raw), &r); err != nil {
		return ir.ExperimentRecord{}, fmt.Errorf("decode experiment: %w", err)
	}
	return r, nil
}
