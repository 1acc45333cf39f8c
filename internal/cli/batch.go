package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Architect8989/EME/internal/action"
	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/plan"
)

// BatchOptions holds flags for the batch command.
type BatchOptions struct {
	RunOptions
	Plan    string
	Count   int
	Delay   time.Duration
	Workers int
}

// NewBatchCommand creates the batch command.
func NewBatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BatchOptions{RunOptions: RunOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Run a series of experiments",
		Long: `Run many experiments, either one action repeated --count times or the
steps of a plan file (YAML or CUE).

Experiments start at most once per --delay. With --workers > 1 they run
concurrently; each is still a complete capture/act/capture cycle. The
first aborted experiment stops the batch.

Example:
  eme batch --count 10 --delay 500ms
  eme batch --action marker --x 5 --y 5 --count 3
  eme batch --plan plans/smoke.yaml --workers 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBatch(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Plan, "plan", "p", "", "plan file (.yaml or .cue)")
	cmd.Flags().IntVarP(&opts.Count, "count", "n", 1, "repetitions (overrides the plan's count when set)")
	cmd.Flags().DurationVar(&opts.Delay, "delay", 0, "minimum interval between experiment starts (overrides the plan's delay_ms when set)")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 1, "concurrent experiments")
	cmd.Flags().StringVarP(&opts.Action, "action", "a", plan.KindNoop, "action kind when no plan is given")
	cmd.Flags().StringVar(&opts.Label, "label", "", "marker label")
	cmd.Flags().IntVar(&opts.X, "x", 0, "marker or pointer x")
	cmd.Flags().IntVar(&opts.Y, "y", 0, "marker or pointer y")
	cmd.Flags().StringVar(&opts.Command, "command", "", "shell command")

	return cmd
}

// resolvePlan returns the plan to execute: the --plan file with flag
// overrides applied, or a one-step plan built from the action flags.
func (o *BatchOptions) resolvePlan(cmd *cobra.Command) (*plan.Plan, error) {
	if o.Plan == "" {
		p := &plan.Plan{Name: "adhoc", Count: o.Count, DelayMs: int(o.Delay.Milliseconds()), Steps: []plan.Step{o.step()}}
		return p, nil
	}

	p, err := plan.Load(o.Plan)
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("count") {
		p.Count = o.Count
	}
	if cmd.Flags().Changed("delay") {
		p.DelayMs = int(o.Delay.Milliseconds())
	}
	return p, nil
}

// BatchSummary is the outcome of a batch.
type BatchSummary struct {
	Plan     string                `json:"plan"`
	Planned  int                   `json:"planned"`
	Recorded int                   `json:"recorded"`
	Reasons  map[ir.Reason]int     `json:"reasons"`
	Records  []ir.ExperimentRecord `json:"records"`
}

func (s *BatchSummary) renderText(w io.Writer) error {
	if err := recordList(s.Records).renderText(w); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%s: %d/%d recorded %v\n", s.Plan, s.Recorded, s.Planned, s.Reasons)
	return err
}

func runBatch(cmd *cobra.Command, opts *BatchOptions) error {
	out := formatter(cmd, opts.RootOptions)

	if opts.Count < 1 {
		return NewExitError(ExitCommandError, "--count must be at least 1")
	}
	if opts.Workers < 1 {
		return NewExitError(ExitCommandError, "--workers must be at least 1")
	}
	if opts.Delay < 0 {
		return NewExitError(ExitCommandError, "--delay must not be negative")
	}

	p, err := opts.resolvePlan(cmd)
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "invalid plan", err)
	}

	cfg, err := loadConfig(opts.RootOptions)
	if err != nil {
		_ = out.Error(CodeConfig, err.Error(), nil)
		return err
	}

	ws, err := openWorkspace(cfg)
	if err != nil {
		_ = out.Error(CodeSetup, "failed to open workspace", err.Error())
		return WrapExitError(ExitCommandError, "failed to open workspace", err)
	}
	defer ws.Close()

	actions, err := p.Actions(ws.env())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid plan", err)
	}

	stopMetrics, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start metrics", err)
	}
	defer stopMetrics()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	slog.Info("batch starting", "plan", p.Name, "experiments", len(actions), "workers", opts.Workers, "delay", p.Delay())
	records, err := executeBatch(ctx, ws, actions, p.Delay(), opts.Workers)

	summary := &BatchSummary{
		Plan:     p.Name,
		Planned:  len(actions),
		Recorded: len(records),
		Reasons:  make(map[ir.Reason]int),
		Records:  records,
	}
	for _, r := range records {
		summary.Reasons[r.Causality.Reason]++
	}
	slog.Info("batch finished", "plan", p.Name, "recorded", len(records), "planned", len(actions))

	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), summary)
		return experimentError(err)
	}
	return out.Success(summary)
}

// executeBatch runs actions on up to workers goroutines, starting at most
// one experiment per delay. Records are returned in action order; the
// first experiment error cancels the rest.
func executeBatch(ctx context.Context, ws *workspace, actions []action.Action, delay time.Duration, workers int) ([]ir.ExperimentRecord, error) {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	limiter := rate.NewLimiter(limit, 1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	done := make(map[int]ir.ExperimentRecord, len(actions))

	for i, a := range actions {
		i, a := i, a // per-iteration copies (pre-Go 1.22 loopvar semantics)
		if err := limiter.Wait(gctx); err != nil {
			break
		}
		g.Go(func() error {
			rec, err := runExperiment(gctx, ws, a)
			if err != nil {
				return err
			}
			mu.Lock()
			done[i] = rec
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	records := make([]ir.ExperimentRecord, 0, len(done))
	for i := range actions {
		if rec, ok := done[i]; ok {
			records = append(records, rec)
		}
	}
	return records, err
}
