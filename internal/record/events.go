package record

import (
	"fmt"
	"strings"
	"time"
)

// Lifecycle event names.
const (
	EventBegin    = "experiment.begin"
	EventDispatch = "experiment.dispatch"
	EventFailure  = "experiment.failure"
	EventRecorded = "experiment.recorded"
	EventComplete = "experiment.complete"
)

// EventSink receives lifecycle markers. Emission is best-effort; callers
// ignore the error beyond logging it.
type EventSink interface {
	Emit(event, experimentID string) error
}

// CrashSink receives diagnostics written when the record logger fails.
type CrashSink interface {
	Crash(msg string) error
}

// FileLog is a plain-text append-only log used for both events and
// crash diagnostics. Lines are "<RFC3339Nano> <text>".
type FileLog struct {
	file *appendFile
	now  func() time.Time
}

// OpenFileLog opens (creating if needed) a plain log at path.
func OpenFileLog(path string) (*FileLog, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &FileLog{file: f, now: time.Now}, nil
}

// SetNow replaces the timestamp source.
func (l *FileLog) SetNow(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}

// Path returns the log file path.
func (l *FileLog) Path() string {
	return l.file.path
}

// Emit appends "<ts> <event> id=<id>".
func (l *FileLog) Emit(event, experimentID string) error {
	return l.line(fmt.Sprintf("%s id=%s", event, experimentID))
}

// Crash appends "<ts> <msg>" with newlines flattened.
func (l *FileLog) Crash(msg string) error {
	return l.line(strings.ReplaceAll(msg, "\n", " "))
}

func (l *FileLog) line(text string) error {
	return l.file.writeLine([]byte(l.now().UTC().Format(time.RFC3339Nano) + " " + text + "\n"))
}

// Close closes the log.
func (l *FileLog) Close() error {
	return l.file.close()
}

// Discard is an EventSink and CrashSink that drops everything.
type Discard struct{}

// Emit does nothing.
func (Discard) Emit(event, experimentID string) error { return nil }

// Crash does nothing.
func (Discard) Crash(msg string) error { return nil }
