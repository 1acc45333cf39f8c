package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Architect8989/EME/internal/clock"
	"github.com/Architect8989/EME/internal/ir"
)

// checksumPrefixLen is the number of checksum hex chars embedded in a
// snapshot file name.
const checksumPrefixLen = 16

// Store captures frames and persists them as verified snapshots.
//
// Thread-safety: Capture may be called concurrently; each call writes its
// own temp file and the rename is the only synchronization point.
type Store struct {
	dir    string
	source Source
	clock  clock.Clock
	logger *slog.Logger

	// testHookPersisted runs between the atomic write and the read-back.
	testHookPersisted func(path string)
}

// New creates a Store writing under dir. The directory is created if
// missing; failure to create it is not reported here and surfaces as an
// ATOMIC_WRITE error on the first capture.
func New(dir string, source Source, clk clock.Clock) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("snapshot dir is required")
	}
	if source == nil {
		return nil, fmt.Errorf("frame source is required")
	}
	if clk == nil {
		return nil, fmt.Errorf("clock is required")
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Store{dir: dir, source: source, clock: clk, logger: slog.Default()}, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// SetLogger replaces the logger used for debug output.
func (s *Store) SetLogger(l *slog.Logger) {
	if l != nil {
		s.logger = l
	}
}

// Capture grabs one frame and returns it as a persisted, verified Snapshot.
// Every failure is an *IntegrityError; no partial Snapshot is returned.
func (s *Store) Capture(ctx context.Context) (ir.Snapshot, error) {
	before := s.clock.Monotonic()

	frame, err := s.source.Grab(ctx)
	if err != nil {
		return ir.Snapshot{}, newIntegrityError(ErrCodeCaptureFailed, "frame grab failed", err)
	}
	if err := checkFrame(frame); err != nil {
		return ir.Snapshot{}, err
	}

	// Freeze the raw bytes exactly as captured.
	checksum := ir.Checksum(frame.Pix)

	after := s.clock.Monotonic()
	wall := s.clock.Now()

	if after < before {
		return ir.Snapshot{}, newIntegrityError(ErrCodeMonotonicClock,
			fmt.Sprintf("clock went backwards across capture (%v < %v)", after, before), nil)
	}

	name := fmt.Sprintf("%d_%s.bin", wall.UnixMilli(), checksum[:checksumPrefixLen])
	target := filepath.Join(s.dir, name)

	if err := writeFileAtomicDurable(target, frame.Pix, 0o644); err != nil {
		ie := newIntegrityError(ErrCodeAtomicWrite, "atomic write failed", err)
		ie.Path = target
		return ir.Snapshot{}, ie
	}

	if s.testHookPersisted != nil {
		s.testHookPersisted(target)
	}

	// Re-read and re-hash: guards against silent write corruption.
	persisted, err := os.ReadFile(target)
	if err != nil {
		ie := newIntegrityError(ErrCodeStorageCorruption, "persisted snapshot unreadable", err)
		ie.Path = target
		return ir.Snapshot{}, ie
	}
	if got := ir.Checksum(persisted); got != checksum {
		ie := newIntegrityError(ErrCodeStorageCorruption,
			fmt.Sprintf("post-persist checksum mismatch: wrote %s, read %s", checksum, got), nil)
		ie.Path = target
		return ir.Snapshot{}, ie
	}

	s.logger.Debug("snapshot captured",
		"path", target,
		"width", frame.Width,
		"height", frame.Height,
		"checksum", checksum,
	)

	return ir.Snapshot{
		Path:               target,
		TimestampMonotonic: after,
		TimestampWall:      float64(wall.UnixNano()) / 1e9,
		Width:              frame.Width,
		Height:             frame.Height,
		Channels:           ir.Channels,
		Checksum:           checksum,
	}, nil
}

// checkFrame enforces the capture invariants.
func checkFrame(f Frame) error {
	if f.Channels != ir.Channels {
		return newIntegrityError(ErrCodeChannelInvariant,
			fmt.Sprintf("expected %d channels, got %d", ir.Channels, f.Channels), nil)
	}
	if f.Width <= 0 || f.Height <= 0 {
		return newIntegrityError(ErrCodeDimensionInvariant,
			fmt.Sprintf("non-positive dimensions %dx%d", f.Width, f.Height), nil)
	}
	if want := f.Width * f.Height * ir.Channels; len(f.Pix) != want {
		return newIntegrityError(ErrCodeFrameSize,
			fmt.Sprintf("expected %d bytes, got %d", want, len(f.Pix)), nil)
	}
	return nil
}

// VerifyResult is the outcome of re-verifying one persisted snapshot.
type VerifyResult struct {
	Path     string `json:"path"`
	Checksum string `json:"checksum"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// Verify re-hashes the snapshot at path and checks the hash against the
// checksum prefix embedded in its file name. Returns the full checksum.
func Verify(path string) (string, error) {
	base := strings.TrimSuffix(filepath.Base(path), ".bin")
	ms, prefix, ok := strings.Cut(base, "_")
	if !ok || len(prefix) != checksumPrefixLen {
		return "", fmt.Errorf("not a snapshot file name: %s", filepath.Base(path))
	}
	if _, err := strconv.ParseInt(ms, 10, 64); err != nil {
		return "", fmt.Errorf("not a snapshot file name: %s", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read snapshot: %w", err)
	}
	sum := ir.Checksum(data)
	if !strings.HasPrefix(sum, prefix) {
		return sum, &IntegrityError{
			Code:    ErrCodeStorageCorruption,
			Message: fmt.Sprintf("content hashes to %s, name says %s", sum[:checksumPrefixLen], prefix),
			Path:    path,
		}
	}
	return sum, nil
}

// VerifyDir verifies every *.bin file in dir, in name order.
func VerifyDir(dir string) ([]VerifyResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read snapshot dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".bin") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	results := make([]VerifyResult, 0, len(names))
	for _, name := range names {
		path := filepath.Join(dir, name)
		sum, err := Verify(path)
		r := VerifyResult{Path: path, Checksum: sum, OK: err == nil}
		if err != nil {
			r.Error = err.Error()
		}
		results = append(results, r)
	}
	return results, nil
}
