package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/record"
	"github.com/Architect8989/EME/internal/snapshot"
	"github.com/Architect8989/EME/internal/store"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check stored snapshots and records for damage",
		Long: `Re-verify everything eme has written:

  - every snapshot file is re-hashed and compared with the checksum in its name
  - every record in the JSONL log has its digest recomputed
  - every ledger row has its digest recomputed (when a ledger is configured)

Exits 1 if anything fails verification.

Example:
  eme verify
  eme verify --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, rootOpts)
		},
	}
	return cmd
}

// RecordProblem is a record whose digest does not match its content.
type RecordProblem struct {
	ExperimentID string `json:"experiment_id"`
	Stored       string `json:"stored"`
	Computed     string `json:"computed"`
}

// VerifyReport is the outcome of the verify command.
type VerifyReport struct {
	Snapshots        []snapshot.VerifyResult `json:"snapshots"`
	RecordsChecked   int                     `json:"records_checked"`
	RecordProblems   []RecordProblem         `json:"record_problems"`
	LedgerChecked    bool                    `json:"ledger_checked"`
	LedgerProblems   []store.DigestMismatch  `json:"ledger_problems"`
	DamagedSnapshots int                     `json:"damaged_snapshots"`
}

// OK reports whether nothing failed verification.
func (r *VerifyReport) OK() bool {
	return r.DamagedSnapshots == 0 && len(r.RecordProblems) == 0 && len(r.LedgerProblems) == 0
}

func (r *VerifyReport) renderText(w io.Writer) error {
	for _, s := range r.Snapshots {
		if !s.OK {
			fmt.Fprintf(w, "DAMAGED  %s: %s\n", s.Path, s.Error)
		}
	}
	for _, p := range r.RecordProblems {
		fmt.Fprintf(w, "RECORD   %s: digest %s, content hashes to %s\n", p.ExperimentID, p.Stored, p.Computed)
	}
	for _, p := range r.LedgerProblems {
		fmt.Fprintf(w, "LEDGER   %s: digest %s, content hashes to %s\n", p.ExperimentID, p.Stored, p.Computed)
	}
	status := "ok"
	if !r.OK() {
		status = "FAILED"
	}
	_, err := fmt.Fprintf(w, "%s: %d snapshots (%d damaged), %d records, ledger checked=%t\n",
		status, len(r.Snapshots), r.DamagedSnapshots, r.RecordsChecked, r.LedgerChecked)
	return err
}

func runVerify(cmd *cobra.Command, opts *RootOptions) error {
	out := formatter(cmd, opts)

	cfg, err := loadConfig(opts)
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return err
	}

	report := &VerifyReport{RecordProblems: []RecordProblem{}, LedgerProblems: []store.DigestMismatch{}}

	report.Snapshots, err = snapshot.VerifyDir(cfg.Snapshot.Dir)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to verify snapshots", err)
	}
	for _, s := range report.Snapshots {
		if !s.OK {
			report.DamagedSnapshots++
		}
	}

	records, err := record.ReadJSONL(cfg.RecordsPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to read record log", err)
	}
	report.RecordsChecked = len(records)
	for i := range records {
		if p, bad := checkDigest(&records[i]); bad {
			report.RecordProblems = append(report.RecordProblems, p)
		}
	}

	if cfg.Ledger.Path != "" {
		if _, statErr := os.Stat(cfg.Ledger.Path); statErr == nil {
			st, err := store.Open(cfg.Ledger.Path)
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to open ledger", err)
			}
			defer st.Close()

			report.LedgerProblems, err = st.VerifyDigests(cmd.Context())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to verify ledger", err)
			}
			report.LedgerChecked = true
		}
	}

	if err := out.Success(report); err != nil {
		return err
	}
	if !report.OK() {
		return NewExitError(ExitFailure, "verification failed")
	}
	return nil
}

func checkDigest(r *ir.ExperimentRecord) (RecordProblem, bool) {
	computed, err := ir.RecordDigest(r)
	if err != nil {
		computed = "error: " + err.Error()
	}
	if computed == r.RecordDigest {
		return RecordProblem{}, false
	}
	return RecordProblem{ExperimentID: r.ExperimentID, Stored: r.RecordDigest, Computed: computed}, true
}
