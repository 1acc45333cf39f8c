package record

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Architect8989/EME/internal/ir"
)

// Logger durably persists completed experiment records. A returned error
// means the record may not be durable.
type Logger interface {
	Record(ctx context.Context, r ir.ExperimentRecord) error
}

// appendFile is an O_APPEND file with whole-line writes.
type appendFile struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

func openAppend(path string) (*appendFile, error) {
	// Best-effort: a missing directory surfaces as the OpenFile error.
	_ = os.MkdirAll(filepath.Dir(path), 0o755)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return &appendFile{path: path, f: f}, nil
}

func (a *appendFile) writeLine(line []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return fmt.Errorf("append %s: closed", a.path)
	}
	n, err := a.f.Write(line)
	if err != nil {
		return fmt.Errorf("append %s: %w", a.path, err)
	}
	if n != len(line) {
		return fmt.Errorf("append %s: short write %d of %d bytes", a.path, n, len(line))
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("fsync %s: %w", a.path, err)
	}
	return nil
}

func (a *appendFile) close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// JSONL appends one JSON object per line.
type JSONL struct {
	file *appendFile
}

// OpenJSONL opens (creating if needed) a JSONL record log at path.
func OpenJSONL(path string) (*JSONL, error) {
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &JSONL{file: f}, nil
}

// Path returns the log file path.
func (l *JSONL) Path() string {
	return l.file.path
}

// Record appends r as one line.
func (l *JSONL) Record(ctx context.Context, r ir.ExperimentRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	line, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal record %s: %w", r.ExperimentID, err)
	}
	return l.file.writeLine(append(line, '\n'))
}

// Close closes the log.
func (l *JSONL) Close() error {
	return l.file.close()
}

// ReadJSONL loads every record from a JSONL log, in file order.
func ReadJSONL(path string) ([]ir.ExperimentRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	var records []ir.ExperimentRecord
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var r ir.ExperimentRecord
		if err := json.Unmarshal(scanner.Bytes(), &r); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		records = append(records, r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

// Tee fans a record out to several loggers. Every logger is attempted;
// the joined errors are returned.
type Tee []Logger

// Record writes r to each logger in order.
func (t Tee) Record(ctx context.Context, r ir.ExperimentRecord) error {
	var errs []error
	for _, l := range t {
		if err := l.Record(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
