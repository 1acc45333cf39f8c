package snapshot

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/testutil"
)

// frameSource returns a fixed frame or error.
type frameSource struct {
	frame Frame
	err   error
}

func (f *frameSource) Grab(ctx context.Context) (Frame, error) {
	if f.err != nil {
		return Frame{}, f.err
	}
	pix := make([]byte, len(f.frame.Pix))
	copy(pix, f.frame.Pix)
	fr := f.frame
	fr.Pix = pix
	return fr, nil
}

func solidSource(w, h int) *frameSource {
	return &frameSource{frame: Frame{
		Pix:      testutil.SolidFrame(w, h, testutil.Pixel{10, 20, 30, 255}),
		Width:    w,
		Height:   h,
		Channels: 4,
	}}
}

func createTestStore(t *testing.T, src Source) *Store {
	t.Helper()
	s, err := New(t.TempDir(), src, testutil.NewStepClock(time.Millisecond))
	require.NoError(t, err)
	return s
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

var snapshotName = regexp.MustCompile(`^\d+_[0-9a-f]{16}\.bin$`)

func TestCapture_PersistsExactBytes(t *testing.T) {
	src := solidSource(8, 6)
	s := createTestStore(t, src)

	snap, err := s.Capture(context.Background())
	require.NoError(t, err)

	persisted, err := os.ReadFile(snap.Path)
	require.NoError(t, err)
	assert.Equal(t, src.frame.Pix, persisted, "persisted bytes must be bit-identical")

	assert.Equal(t, 8, snap.Width)
	assert.Equal(t, 6, snap.Height)
	assert.Equal(t, 4, snap.Channels)
	assert.Equal(t, ir.Checksum(src.frame.Pix), snap.Checksum)
	assert.Equal(t, snap.Size(), len(persisted))
	assert.Regexp(t, snapshotName, filepath.Base(snap.Path))
	assert.True(t, strings.Contains(filepath.Base(snap.Path), snap.Checksum[:16]))
	assert.Equal(t, s.Dir(), filepath.Dir(snap.Path))
}

func TestCapture_RoundTripChecksum(t *testing.T) {
	s := createTestStore(t, NewSynthetic(16, 16, [4]byte{1, 2, 3, 4}))

	for i := 0; i < 5; i++ {
		snap, err := s.Capture(context.Background())
		require.NoError(t, err)

		data, err := os.ReadFile(snap.Path)
		require.NoError(t, err)
		assert.Equal(t, snap.Checksum, ir.Checksum(data))
	}
}

func TestCapture_TimestampsFromClock(t *testing.T) {
	clk := testutil.NewStepClock(time.Second)
	s, err := New(t.TempDir(), solidSource(2, 2), clk)
	require.NoError(t, err)

	snap, err := s.Capture(context.Background())
	require.NoError(t, err)

	// Two readings: before (1s) and after (2s) the grab.
	assert.Equal(t, 2.0, snap.TimestampMonotonic)
	assert.Equal(t, float64(testutil.Epoch.Add(2*time.Second).UnixNano())/1e9, snap.TimestampWall)
	assert.True(t, strings.HasPrefix(filepath.Base(snap.Path),
		fmt.Sprintf("%d_", testutil.Epoch.Add(2*time.Second).UnixMilli())))
}

func TestCapture_RepeatedCapturesDoNotCollide(t *testing.T) {
	s := createTestStore(t, solidSource(4, 4))

	a, err := s.Capture(context.Background())
	require.NoError(t, err)
	b, err := s.Capture(context.Background())
	require.NoError(t, err)

	assert.Equal(t, a.Checksum, b.Checksum)
	assert.NotEqual(t, a.Path, b.Path)
	assert.Len(t, listDir(t, s.Dir()), 2)
}

func TestCapture_InvariantViolations(t *testing.T) {
	tests := []struct {
		name  string
		frame Frame
		code  IntegrityErrorCode
	}{
		{"three channels", Frame{Pix: make([]byte, 4*4*3), Width: 4, Height: 4, Channels: 3}, ErrCodeChannelInvariant},
		{"zero width", Frame{Pix: nil, Width: 0, Height: 4, Channels: 4}, ErrCodeDimensionInvariant},
		{"negative height", Frame{Pix: nil, Width: 4, Height: -1, Channels: 4}, ErrCodeDimensionInvariant},
		{"short buffer", Frame{Pix: make([]byte, 10), Width: 4, Height: 4, Channels: 4}, ErrCodeFrameSize},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := createTestStore(t, &frameSource{frame: tt.frame})

			snap, err := s.Capture(context.Background())
			require.Error(t, err)
			assert.True(t, HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, ir.Snapshot{}, snap, "no partial snapshot")
			assert.Empty(t, listDir(t, s.Dir()), "nothing persisted")
		})
	}
}

func TestCapture_SourceFailure(t *testing.T) {
	boom := errors.New("display gone")
	s := createTestStore(t, &frameSource{err: boom})

	_, err := s.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeCaptureFailed))
	assert.ErrorIs(t, err, boom)
}

func TestCapture_MonotonicViolation(t *testing.T) {
	s, err := New(t.TempDir(), solidSource(2, 2), testutil.NewScriptedClock(5, 3))
	require.NoError(t, err)

	snap, err := s.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeMonotonicClock))
	assert.Equal(t, ir.Snapshot{}, snap)
	assert.Empty(t, listDir(t, s.Dir()))
}

func TestCapture_StorageCorruptionDetected(t *testing.T) {
	s := createTestStore(t, solidSource(4, 4))
	s.testHookPersisted = func(path string) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		data[7] ^= 0xFF
		require.NoError(t, os.WriteFile(path, data, 0o644))
	}

	snap, err := s.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeStorageCorruption))
	assert.Equal(t, ir.Snapshot{}, snap)
}

func TestCapture_AtomicWriteFailureLeavesNoFiles(t *testing.T) {
	src := solidSource(4, 4)
	dir := t.TempDir()
	s, err := New(dir, src, testutil.NewScriptedClock(1, 2))
	require.NoError(t, err)

	// Occupy the final name with a non-empty directory so rename fails.
	name := fmt.Sprintf("%d_%s.bin", testutil.Epoch.UnixMilli(), ir.Checksum(src.frame.Pix)[:16])
	blocker := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "occupied"), 0o755))

	_, err = s.Capture(context.Background())
	require.Error(t, err)
	assert.True(t, HasCode(err, ErrCodeAtomicWrite), "got %v", err)

	assert.Equal(t, []string{name}, listDir(t, dir), "temp file must be removed")
	info, err := os.Stat(blocker)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestCapture_MissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snaps")
	s, err := New(dir, solidSource(2, 2), testutil.NewStepClock(time.Millisecond))
	require.NoError(t, err)
	require.NoError(t, os.RemoveAll(dir))

	_, err = s.Capture(context.Background())
	assert.True(t, HasCode(err, ErrCodeAtomicWrite))
}

func TestCapture_Concurrent(t *testing.T) {
	syn := NewSynthetic(8, 8, [4]byte{})
	s := createTestStore(t, syn)

	const workers = 8
	var wg sync.WaitGroup
	snaps := make(chan ir.Snapshot, workers)
	errs := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = syn.Paint(i, i, [4]byte{byte(i + 1), 0, 0, 255})
			snap, err := s.Capture(context.Background())
			if err != nil {
				errs <- err
				return
			}
			snaps <- snap
		}(i)
	}
	wg.Wait()
	close(snaps)
	close(errs)

	for err := range errs {
		t.Errorf("capture failed: %v", err)
	}
	for snap := range snaps {
		sum, err := Verify(snap.Path)
		require.NoError(t, err)
		assert.Equal(t, snap.Checksum, sum)
	}
}

func TestNew_RequiresArguments(t *testing.T) {
	clk := testutil.NewStepClock(time.Millisecond)
	_, err := New("", solidSource(1, 1), clk)
	assert.Error(t, err)
	_, err = New(t.TempDir(), nil, clk)
	assert.Error(t, err)
	_, err = New(t.TempDir(), solidSource(1, 1), nil)
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	s := createTestStore(t, solidSource(4, 4))
	snap, err := s.Capture(context.Background())
	require.NoError(t, err)

	sum, err := Verify(snap.Path)
	require.NoError(t, err)
	assert.Equal(t, snap.Checksum, sum)

	// Tamper with the content.
	require.NoError(t, os.WriteFile(snap.Path, []byte("tampered"), 0o644))
	_, err = Verify(snap.Path)
	assert.True(t, HasCode(err, ErrCodeStorageCorruption))
}

func TestVerify_RejectsForeignNames(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"frame.bin", "abc_0123456789abcdef.bin", "123_short.bin"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte{1}, 0o644))
		_, err := Verify(path)
		assert.Error(t, err, name)
		assert.False(t, IsIntegrityError(err), name)
	}
}

func TestVerifyDir(t *testing.T) {
	s := createTestStore(t, solidSource(4, 4))
	good, err := s.Capture(context.Background())
	require.NoError(t, err)
	bad, err := s.Capture(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bad.Path, []byte{0}, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Dir(), "notes.txt"), []byte("x"), 0o644))

	results, err := VerifyDir(s.Dir())
	require.NoError(t, err)
	require.Len(t, results, 2)

	byPath := map[string]VerifyResult{}
	for _, r := range results {
		byPath[r.Path] = r
	}
	assert.True(t, byPath[good.Path].OK)
	assert.False(t, byPath[bad.Path].OK)
	assert.NotEmpty(t, byPath[bad.Path].Error)
}
