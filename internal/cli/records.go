package cli

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"slices"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/record"
	"github.com/Architect8989/EME/internal/store"
)

// RecordsOptions holds flags for the records command.
type RecordsOptions struct {
	*RootOptions
	ID         string
	ActionID   string
	Reason     string
	Attributed string // "", "true" or "false"
	Limit      int
	Summary    bool
}

// NewRecordsCommand creates the records command.
func NewRecordsCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RecordsOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "records",
		Short: "List recorded experiments",
		Long: `List experiment records, oldest first.

Records are read from the SQLite ledger when one is configured and
present, otherwise from the JSONL record log.

Example:
  eme records
  eme records --reason plausible_within_window --limit 20
  eme records --attributed false --format json
  eme records --id 3f9a0c2d41b7e855
  eme records --summary`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecords(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.ID, "id", "", "show one experiment")
	cmd.Flags().StringVar(&opts.ActionID, "action", "", "filter by action id")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "filter by causality reason")
	cmd.Flags().StringVar(&opts.Attributed, "attributed", "", "filter by attribution (true|false)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum records (0 = all)")
	cmd.Flags().BoolVar(&opts.Summary, "summary", false, "print counts per causality reason")

	return cmd
}

func (o *RecordsOptions) filter() (store.Filter, error) {
	f := store.Filter{ActionID: o.ActionID, Limit: o.Limit}
	if o.Reason != "" {
		r := ir.Reason(o.Reason)
		if !slices.Contains(ir.Reasons(), r) {
			return f, fmt.Errorf("unknown reason %q", o.Reason)
		}
		f.Reason = r
	}
	if o.Attributed != "" {
		b, err := strconv.ParseBool(o.Attributed)
		if err != nil {
			return f, fmt.Errorf("--attributed must be true or false")
		}
		f.Attributed = &b
	}
	if o.Limit < 0 {
		return f, fmt.Errorf("--limit must not be negative")
	}
	return f, nil
}

// reasonCounts renders the --summary output.
type reasonCounts map[ir.Reason]int

func (c reasonCounts) renderText(w io.Writer) error {
	total := 0
	for _, r := range ir.Reasons() {
		if n := c[r]; n > 0 {
			fmt.Fprintf(w, "%-28s %d\n", r, n)
			total += n
		}
	}
	_, err := fmt.Fprintf(w, "%-28s %d\n", "total", total)
	return err
}

func runRecords(cmd *cobra.Command, opts *RecordsOptions) error {
	out := formatter(cmd, opts.RootOptions)

	f, err := opts.filter()
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return err
	}

	if cfg.Ledger.Path != "" {
		if _, statErr := os.Stat(cfg.Ledger.Path); statErr == nil {
			out.VerboseLog("reading ledger %s", cfg.Ledger.Path)
			return recordsFromLedger(cmd, out, opts, cfg.Ledger.Path, f)
		}
	}

	out.VerboseLog("reading record log %s", cfg.RecordsPath())
	records, err := record.ReadJSONL(cfg.RecordsPath())
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return WrapExitError(ExitCommandError, "failed to read record log", err)
	}
	return printRecords(out, opts, filterRecords(records, f))
}

func recordsFromLedger(cmd *cobra.Command, out *OutputFormatter, opts *RecordsOptions, path string, f store.Filter) error {
	st, err := store.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open ledger", err)
	}
	defer st.Close()
	ctx := cmd.Context()

	if opts.Summary {
		counts, err := st.CountByReason(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to count records", err)
		}
		return out.Success(reasonCounts(counts))
	}

	if opts.ID != "" {
		rec, err := st.ReadExperiment(ctx, opts.ID)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitFailure, fmt.Sprintf("experiment %s not found", opts.ID))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read experiment", err)
		}
		return out.Success(recordView(rec))
	}

	records, err := st.ReadExperiments(ctx, f)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read experiments", err)
	}
	return out.Success(recordList(records))
}

// printRecords answers opts from records already filtered by f.
func printRecords(out *OutputFormatter, opts *RecordsOptions, records []ir.ExperimentRecord) error {
	if opts.Summary {
		counts := reasonCounts{}
		for _, r := range records {
			counts[r.Causality.Reason]++
		}
		return out.Success(counts)
	}
	if opts.ID != "" {
		for _, r := range records {
			if r.ExperimentID == opts.ID {
				return out.Success(recordView(r))
			}
		}
		return NewExitError(ExitFailure, fmt.Sprintf("experiment %s not found", opts.ID))
	}
	return out.Success(recordList(records))
}

// filterRecords applies f to records read from the JSONL log.
func filterRecords(records []ir.ExperimentRecord, f store.Filter) []ir.ExperimentRecord {
	matched := make([]ir.ExperimentRecord, 0, len(records))
	for _, r := range records {
		switch {
		case f.ActionID != "" && r.ActionID != f.ActionID:
			continue
		case f.Reason != "" && r.Causality.Reason != f.Reason:
			continue
		case f.Attributed != nil && r.Causality.Attributed != *f.Attributed:
			continue
		}
		matched = append(matched, r)
		if f.Limit > 0 && len(matched) == f.Limit {
			break
		}
	}
	return matched
}
