package lifeloop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Architect8989/EME/internal/action"
	"github.com/Architect8989/EME/internal/causality"
	"github.com/Architect8989/EME/internal/clock"
	"github.com/Architect8989/EME/internal/delta"
	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/record"
)

// Capturer produces verified snapshots. *snapshot.Store implements it.
type Capturer interface {
	Capture(ctx context.Context) (ir.Snapshot, error)
}

// Options configures a LifeLoop. Snapshots, Records and Clock are
// required; everything else has a default.
type Options struct {
	Snapshots Capturer
	Records   record.Logger
	Clock     clock.Clock

	// Events receives lifecycle markers. Defaults to record.Discard.
	Events record.EventSink
	// Crash receives the diagnostic written when Records fails.
	// Defaults to record.Discard.
	Crash record.CrashSink
	// IDs generates experiment ids. Defaults to a HashedGenerator on Clock.
	IDs IDGenerator
	// MaxExpectedChange is the outlier threshold; 0 means
	// causality.DefaultMaxExpectedChange.
	MaxExpectedChange float64
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// LifeLoop runs experiments. A LifeLoop holds no per-experiment state and
// may run experiments concurrently; the sinks it writes to serialize
// their own appends.
type LifeLoop struct {
	snapshots Capturer
	records   record.Logger
	events    record.EventSink
	crash     record.CrashSink
	clock     clock.Clock
	ids       IDGenerator
	evaluator causality.Evaluator
	executor  action.Executor
	logger    *slog.Logger
}

// New creates a LifeLoop from opts.
func New(opts Options) (*LifeLoop, error) {
	if opts.Snapshots == nil {
		return nil, fmt.Errorf("lifeloop: snapshot store is required")
	}
	if opts.Records == nil {
		return nil, fmt.Errorf("lifeloop: record logger is required")
	}
	if opts.Clock == nil {
		return nil, fmt.Errorf("lifeloop: clock is required")
	}

	l := &LifeLoop{
		snapshots: opts.Snapshots,
		records:   opts.Records,
		events:    opts.Events,
		crash:     opts.Crash,
		clock:     opts.Clock,
		ids:       opts.IDs,
		evaluator: causality.Evaluator{MaxExpectedChange: opts.MaxExpectedChange},
		logger:    opts.Logger,
	}
	if l.events == nil {
		l.events = record.Discard{}
	}
	if l.crash == nil {
		l.crash = record.Discard{}
	}
	if l.ids == nil {
		l.ids = NewHashedGenerator(opts.Clock)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	l.executor = action.Executor{Logger: l.logger}
	return l, nil
}

// Run performs one experiment with a and returns its record.
//
// A non-nil error is always a *StageError: a snapshot integrity failure
// (no record was written), a timeline violation, or ErrRecordLost.
func (l *LifeLoop) Run(ctx context.Context, a action.Action) (ir.ExperimentRecord, error) {
	// BEGIN
	id := l.ids.Generate()
	log := l.logger.With("experiment_id", id)
	l.emit(log, record.EventBegin, id)
	startedAt := l.clock.Now()

	// PRE_CAPTURE
	t := time.Now()
	pre, err := l.snapshots.Capture(ctx)
	observeStage(StagePreCapture, t)
	if err != nil {
		return l.abort(log, StagePreCapture, id, err)
	}

	// From here on the experiment runs to completion.
	ctx = context.WithoutCancel(ctx)

	// DISPATCH
	actionID := actionIDOf(a)
	l.emit(log, record.EventDispatch, id)
	t = time.Now()
	start := l.clock.Monotonic()
	out := l.executor.Execute(ctx, a)
	end := l.clock.Monotonic()
	observeStage(StageDispatch, t)
	if out.Failed() {
		actionFailuresTotal.Inc()
		log.Warn("action failed", "action_id", actionID, "error", out.Err)
		l.emit(log, record.EventFailure, id)
	}

	// POST_CAPTURE
	t = time.Now()
	post, err := l.snapshots.Capture(ctx)
	observeStage(StagePostCapture, t)
	if err != nil {
		return l.abort(log, StagePostCapture, id, err)
	}

	// DELTA
	t = time.Now()
	d := delta.ComputeSnapshots(pre, post)
	observeStage(StageDelta, t)
	if msg, failed := d.Err(); failed {
		log.Warn("delta not measured", "error", msg)
	}

	// CAUSALITY
	t = time.Now()
	verdict := l.evaluator.Evaluate(d, causality.Window{Start: start, End: end},
		pre.TimestampMonotonic, post.TimestampMonotonic)
	observeStage(StageCausality, t)

	// RECORD
	t = time.Now()
	rec := ir.ExperimentRecord{
		ExperimentID:   id,
		ActionID:       actionID,
		StartedAt:      startedAt.UTC().Format(time.RFC3339Nano),
		StartTimestamp: start,
		EndTimestamp:   end,
		Duration:       end - start,
		RawResult:      formatResult(out.Result),
		PreSnapshot:    pre.Summary(),
		PostSnapshot:   post.Summary(),
		Delta:          d,
		Causality:      verdict,
	}
	if out.Err != nil {
		msg := out.Err.Error()
		rec.RawError = &msg
		rec.RawResult = nil
	}
	if err := rec.CheckTimeline(); err != nil {
		return l.abort(log, StageRecord, id, fmt.Errorf("%w: %v", ErrTimeline, err))
	}
	digest, err := ir.RecordDigest(&rec)
	if err != nil {
		return l.abort(log, StageRecord, id, err)
	}
	rec.RecordDigest = digest

	if err := l.records.Record(ctx, rec); err != nil {
		l.reportLost(log, rec, err)
		experimentsTotal.WithLabelValues(outcomeRecordLost).Inc()
		return ir.ExperimentRecord{}, &StageError{
			Stage:        StageRecord,
			ExperimentID: id,
			Err:          fmt.Errorf("%w: %w", ErrRecordLost, err),
		}
	}
	observeStage(StageRecord, t)
	l.emit(log, record.EventRecorded, id)

	// COMPLETE
	experimentsTotal.WithLabelValues(outcomeRecorded).Inc()
	verdictsTotal.WithLabelValues(string(verdict.Reason)).Inc()
	log.Info("experiment complete",
		"action_id", actionID,
		"attributed", verdict.Attributed,
		"reason", verdict.Reason,
	)
	l.emit(log, record.EventComplete, id)
	return rec, nil
}

func (l *LifeLoop) abort(log *slog.Logger, stage Stage, id string, err error) (ir.ExperimentRecord, error) {
	experimentsTotal.WithLabelValues(outcomeAborted).Inc()
	log.Error("experiment aborted", "stage", stage, "error", err)
	return ir.ExperimentRecord{}, &StageError{Stage: stage, ExperimentID: id, Err: err}
}

// reportLost writes the crash diagnostic, including the unlogged record so
// the evidence survives somewhere.
func (l *LifeLoop) reportLost(log *slog.Logger, rec ir.ExperimentRecord, cause error) {
	body, err := json.Marshal(rec)
	if err != nil {
		body = []byte(fmt.Sprintf("%q", err.Error()))
	}
	msg := fmt.Sprintf("LOGGING FAILED: experiment_id=%s error=%v record=%s", rec.ExperimentID, cause, body)
	if err := l.crash.Crash(msg); err != nil {
		log.Error("crash diagnostic failed", "error", err)
	}
	log.Error("record logger failed", "stage", StageRecord, "error", cause)
}

func (l *LifeLoop) emit(log *slog.Logger, event, id string) {
	if err := l.events.Emit(event, id); err != nil {
		log.Debug("event emission failed", "event", event, "error", err)
	}
}

// actionIDOf reads the id without trusting a: the executor reports the
// contract violation itself.
func actionIDOf(a action.Action) (id string) {
	if a == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			id = ""
		}
	}()
	return a.ID()
}

// formatResult renders an action result for the record.
func formatResult(v any) *string {
	var s string
	switch r := v.(type) {
	case nil:
		return nil
	case string:
		s = r
	case fmt.Stringer:
		s = r.String()
	default:
		b, err := json.Marshal(r)
		if err != nil {
			s = fmt.Sprintf("%v", r)
		} else {
			s = string(b)
		}
	}
	return &s
}
