package store

import (
	"path/filepath"
	"testing"

	"github.com/Architect8989/EME/internal/ir"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRecord creates a digested record with minimal fields.
func createTestRecord(id, actionID string, changed int64, verdict ir.Verdict) ir.ExperimentRecord {
	r := ir.ExperimentRecord{
		ExperimentID:   id,
		ActionID:       actionID,
		StartedAt:      "2026-01-02T03:04:05Z",
		StartTimestamp: 1,
		EndTimestamp:   2,
		Duration:       1,
		PreSnapshot:    ir.SnapshotSummary{Path: "pre.bin", Timestamp: 0.5, Width: 10, Height: 10, Checksum: "aa"},
		PostSnapshot:   ir.SnapshotSummary{Path: "post.bin", Timestamp: 2.5, Width: 10, Height: 10, Checksum: "bb"},
		Delta: ir.NewDelta(ir.DeltaData{
			PreChecksum:    ir.Ptr("aa"),
			PostChecksum:   ir.Ptr("bb"),
			PixelsTotal:    ir.Ptr(int64(100)),
			PixelsChanged:  ir.Ptr(changed),
			PercentChanged: ir.Ptr(float64(changed) / 100),
		}),
		Causality: verdict,
	}
	r.RecordDigest = ir.MustRecordDigest(&r)
	return r
}
