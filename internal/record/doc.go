// Package record holds the append-only sinks of the pipeline: the
// experiment record log, the lifecycle event log and the crash log.
//
// All sinks are safe for concurrent use. Each record, event or crash line
// is written with a single Write call on a file opened with O_APPEND, under
// a mutex, and synced before the call returns, so concurrent writers never
// interleave partial lines.
package record
