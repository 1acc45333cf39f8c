package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Architect8989/EME/internal/action"
	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/plan"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Action  string
	Label   string
	X, Y    int
	Command string
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one experiment",
		Long: `Run a single experiment: capture, act, capture, diff, attribute, record.

Actions:
  noop      does nothing (a control experiment)
  marker    paints one pixel at --x,--y on the synthetic frame
  pointer   moves the pointer to --x,--y (requires xdotool)
  shell     runs a whitelisted --command

Example:
  eme run
  eme run --action marker --label m1 --x 10 --y 10
  eme run --action shell --command whoami --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Action, "action", "a", plan.KindNoop, "action kind (noop|marker|pointer|shell)")
	cmd.Flags().StringVar(&opts.Label, "label", "", "marker label")
	cmd.Flags().IntVar(&opts.X, "x", 0, "marker or pointer x")
	cmd.Flags().IntVar(&opts.Y, "y", 0, "marker or pointer y")
	cmd.Flags().StringVar(&opts.Command, "command", "", "shell command")

	return cmd
}

func (o *RunOptions) step() plan.Step {
	return plan.Step{Kind: o.Action, Label: o.Label, X: o.X, Y: o.Y, Command: o.Command}
}

func runOnce(cmd *cobra.Command, opts *RunOptions) error {
	out := formatter(cmd, opts.RootOptions)

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

	a, err := opts.step().Action(ws.env())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid action", err)
	}

	stopMetrics, err := startMetrics(cfg.Metrics.Addr)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to start metrics", err)
	}
	defer stopMetrics()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	rec, err := runExperiment(ctx, ws, a)
	if err != nil {
		_ = out.Error(errorCode(err), err.Error(), nil)
		return experimentError(err)
	}
	return out.Success(recordView(rec))
}

func runExperiment(ctx context.Context, ws *workspace, a action.Action) (ir.ExperimentRecord, error) {
	rec, err := ws.loop.Run(ctx, a)
	if err != nil {
		slog.Error("experiment failed", "error", err)
		return rec, err
	}
	slog.Info("experiment recorded",
		"experiment_id", rec.ExperimentID,
		"action_id", rec.ActionID,
		"reason", rec.Causality.Reason)
	return rec, nil
}

// signalContext is cancelled on SIGINT/SIGTERM or when the command's
// context is.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}

func formatter(cmd *cobra.Command, opts *RootOptions) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

// recordView renders a single record in detail.
type recordView ir.ExperimentRecord

func (v recordView) renderText(w io.Writer) error {
	r := ir.ExperimentRecord(v)
	fmt.Fprintf(w, "experiment  %s\n", r.ExperimentID)
	fmt.Fprintf(w, "action      %s\n", r.ActionID)
	fmt.Fprintf(w, "window      %.6f .. %.6f (%.6fs)\n", r.StartTimestamp, r.EndTimestamp, r.Duration)
	if r.RawResult != nil {
		fmt.Fprintf(w, "result      %s\n", *r.RawResult)
	}
	if r.RawError != nil {
		fmt.Fprintf(w, "error       %s\n", *r.RawError)
	}
	fmt.Fprintf(w, "pre         %s\n", r.PreSnapshot.Path)
	fmt.Fprintf(w, "post        %s\n", r.PostSnapshot.Path)
	if r.Delta != nil {
		if msg, ok := r.Delta.Err(); ok {
			fmt.Fprintf(w, "delta       error: %s\n", msg)
		} else {
			n, _ := r.Delta.PixelsChanged()
			total, _ := r.Delta.PixelsTotal()
			pct, _ := r.Delta.PercentChanged()
			fmt.Fprintf(w, "delta       %d/%d px (%.4f%%)", n, total, pct*100)
			if b, ok := r.Delta.BBox(); ok {
				fmt.Fprintf(w, " bbox %v", b)
			}
			fmt.Fprintln(w)
		}
	}
	fmt.Fprintf(w, "causality   %s (attributed=%t)\n", r.Causality.Reason, r.Causality.Attributed)
	_, err := fmt.Fprintf(w, "digest      %s\n", r.RecordDigest)
	return err
}

func (v recordView) MarshalJSON() ([]byte, error) {
	return json.Marshal(ir.ExperimentRecord(v))
}
