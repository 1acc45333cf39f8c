package action

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePointer struct {
	w, h    int
	sizeErr error
	moveErr error
	movedX  int
	movedY  int
	moves   int
}

func (f *fakePointer) ScreenSize(ctx context.Context) (int, int, error) {
	return f.w, f.h, f.sizeErr
}

func (f *fakePointer) MoveTo(ctx context.Context, x, y int) error {
	if f.moveErr != nil {
		return f.moveErr
	}
	f.movedX, f.movedY = x, y
	f.moves++
	return nil
}

func TestClamp(t *testing.T) {
	tests := []struct {
		x, y, w, h int
		wantX      int
		wantY      int
	}{
		{10, 10, 100, 50, 10, 10},
		{-5, -1, 100, 50, 0, 0},
		{500, 500, 100, 50, 99, 49},
		{99, 49, 100, 50, 99, 49},
		{3, 3, 0, 0, 0, 0},
	}
	for _, tt := range tests {
		x, y := Clamp(tt.x, tt.y, tt.w, tt.h)
		assert.Equal(t, tt.wantX, x)
		assert.Equal(t, tt.wantY, y)
	}
}

func TestPointerMotion_ClampsBeforeMove(t *testing.T) {
	backend := &fakePointer{w: 1920, h: 1080}
	p := PointerMotion{X: 5000, Y: -20, Backend: backend}

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "moved to 1919,0", res)
	assert.Equal(t, 1, backend.moves)
	assert.Equal(t, 1919, backend.movedX)
	assert.Equal(t, 0, backend.movedY)
	assert.Equal(t, "pointer_motion:5000,-20", p.ID())
}

func TestPointerMotion_Errors(t *testing.T) {
	_, err := PointerMotion{X: 1, Y: 1}.Run(context.Background())
	assert.Error(t, err)

	_, err = PointerMotion{Backend: &fakePointer{sizeErr: errors.New("no display")}}.Run(context.Background())
	assert.ErrorContains(t, err, "no display")

	_, err = PointerMotion{Backend: &fakePointer{w: 10, h: 10, moveErr: errors.New("denied")}}.Run(context.Background())
	assert.ErrorContains(t, err, "denied")
}

func TestParseGeometry(t *testing.T) {
	w, h, err := parseGeometry([]byte("1920 1080\n"))
	require.NoError(t, err)
	assert.Equal(t, 1920, w)
	assert.Equal(t, 1080, h)

	_, _, err = parseGeometry([]byte("1920x1080"))
	assert.Error(t, err)
	_, _, err = parseGeometry([]byte("wide 1080"))
	assert.Error(t, err)
}
