// Package lifeloop runs one experiment end to end:
//
//	BEGIN → PRE_CAPTURE → DISPATCH → POST_CAPTURE → DELTA → CAUSALITY → RECORD → COMPLETE
//
// The path is linear. There are no retries and no alternative branches;
// failures are either captured into the record or abort the run:
//
//   - Snapshot integrity errors (either capture) abort. No record is
//     written for an experiment whose evidence cannot be trusted.
//   - Action failures, delta errors and evaluator failures are data. The
//     run completes and the record says what went wrong.
//   - A record logger failure aborts after a best-effort crash diagnostic.
//     A record that was never durably logged is indistinguishable from an
//     experiment that never happened, so the caller must see an error.
//
// Lifecycle events are mirrored to an EventSink for liveness monitoring.
// Event emission is best-effort and never affects the run.
//
// Once dispatch has begun the experiment runs to completion: cancelling
// the context only prevents an experiment that has not dispatched yet.
package lifeloop
