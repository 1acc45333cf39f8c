package delta

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Architect8989/EME/internal/ir"
	"github.com/Architect8989/EME/internal/testutil"
)

var (
	black = testutil.Pixel{0, 0, 0, 255}
	red   = testutil.Pixel{0, 0, 255, 255}
)

func TestCompute_IdenticalFrames(t *testing.T) {
	frame := testutil.SolidFrame(10, 10, black)

	d := Compute(frame, frame, 10, 10, 10, 10)

	_, failed := d.Err()
	require.False(t, failed)
	changed, ok := d.PixelsChanged()
	require.True(t, ok)
	assert.Equal(t, int64(0), changed)
	pct, _ := d.PercentChanged()
	assert.Equal(t, 0.0, pct)
	_, hasBBox := d.BBox()
	assert.False(t, hasBBox)
	total, _ := d.PixelsTotal()
	assert.Equal(t, int64(100), total)

	data := d.Data()
	assert.Equal(t, ir.Checksum(frame), *data.PreChecksum)
	assert.Equal(t, *data.PreChecksum, *data.PostChecksum)
}

func TestCompute_SinglePixel(t *testing.T) {
	pre := testutil.SolidFrame(8, 5, black)
	post := testutil.WithPixel(pre, 8, 6, 3, red)

	d := Compute(pre, post, 8, 5, 8, 5)

	changed, _ := d.PixelsChanged()
	assert.Equal(t, int64(1), changed)
	pct, _ := d.PercentChanged()
	assert.Equal(t, 1.0/40.0, pct)
	bbox, ok := d.BBox()
	require.True(t, ok)
	assert.Equal(t, ir.BBox{6, 3, 6, 3}, bbox)
	assert.NotEqual(t, d.Data().PreChecksum, d.Data().PostChecksum)
}

func TestCompute_AlphaOnlyChangeCounts(t *testing.T) {
	pre := testutil.SolidFrame(2, 2, black)
	post := testutil.WithPixel(pre, 2, 0, 0, testutil.Pixel{0, 0, 0, 254})

	changed, _ := Compute(pre, post, 2, 2, 2, 2).PixelsChanged()
	assert.Equal(t, int64(1), changed)
}

func TestCompute_BoundingBoxSpansChanges(t *testing.T) {
	pre := testutil.SolidFrame(10, 10, black)
	post := testutil.WithPixel(pre, 10, 7, 1, red)
	post = testutil.WithPixel(post, 10, 2, 4, red)
	post = testutil.WithPixel(post, 10, 5, 8, red)

	d := Compute(pre, post, 10, 10, 10, 10)

	changed, _ := d.PixelsChanged()
	assert.Equal(t, int64(3), changed)
	bbox, _ := d.BBox()
	assert.Equal(t, ir.BBox{2, 1, 7, 8}, bbox)
}

func TestCompute_DimensionsDiffer(t *testing.T) {
	pre := testutil.SolidFrame(4, 3, black)
	post := testutil.SolidFrame(6, 2, black)

	d := Compute(pre, post, 4, 3, 6, 2)

	_, failed := d.Err()
	require.False(t, failed)
	total, _ := d.PixelsTotal()
	changed, _ := d.PixelsChanged()
	pct, _ := d.PercentChanged()
	bbox, _ := d.BBox()
	assert.Equal(t, int64(12), total)
	assert.Equal(t, total, changed)
	assert.Equal(t, 1.0, pct)
	assert.Equal(t, ir.BBox{0, 0, 3, 2}, bbox)
	assert.NotNil(t, d.Data().PreChecksum)
	assert.NotNil(t, d.Data().PostChecksum)
}

func TestCompute_ErrorDeltas(t *testing.T) {
	ok := testutil.SolidFrame(2, 2, black)

	tests := []struct {
		name                     string
		pre, post                []byte
		preW, preH, postW, postH int
	}{
		{"zero width", nil, nil, 0, 2, 0, 2},
		{"negative post height", ok, ok, 2, 2, 2, -1},
		{"short pre", ok[:8], ok, 2, 2, 2, 2},
		{"long post", ok, append(append([]byte{}, ok...), 0), 2, 2, 2, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Compute(tt.pre, tt.post, tt.preW, tt.preH, tt.postW, tt.postH)

			msg, failed := d.Err()
			assert.True(t, failed)
			assert.NotEmpty(t, msg)
			_, measured := d.PixelsChanged()
			assert.False(t, measured)
			_, measured = d.PercentChanged()
			assert.False(t, measured)
			assert.Nil(t, d.Data().PreChecksum)
		})
	}
}

func writeFrame(t *testing.T, dir, name string, buf []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, buf, 0o644))
	return path
}

func TestComputeSnapshots(t *testing.T) {
	dir := t.TempDir()
	pre := testutil.SolidFrame(3, 3, black)
	post := testutil.WithPixel(pre, 3, 1, 1, red)

	d := ComputeSnapshots(
		ir.Snapshot{Path: writeFrame(t, dir, "pre.bin", pre), Width: 3, Height: 3, Channels: 4},
		ir.Snapshot{Path: writeFrame(t, dir, "post.bin", post), Width: 3, Height: 3, Channels: 4},
	)

	changed, _ := d.PixelsChanged()
	assert.Equal(t, int64(1), changed)
	bbox, _ := d.BBox()
	assert.Equal(t, ir.BBox{1, 1, 1, 1}, bbox)
}

func TestComputeSnapshots_MissingFile(t *testing.T) {
	dir := t.TempDir()
	pre := writeFrame(t, dir, "pre.bin", testutil.SolidFrame(1, 1, black))

	d := ComputeSnapshots(
		ir.Snapshot{Path: pre, Width: 1, Height: 1},
		ir.Snapshot{Path: filepath.Join(dir, "gone.bin"), Width: 1, Height: 1},
	)

	msg, failed := d.Err()
	assert.True(t, failed)
	assert.Contains(t, msg, "read post snapshot")
}
