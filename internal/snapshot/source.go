package snapshot

import (
	"context"
	"fmt"
	"sync"
)

// Frame is one raw framebuffer grab. Pix holds Height rows of
// Width*Channels bytes with no padding.
type Frame struct {
	Pix      []byte
	Width    int
	Height   int
	Channels int
}

// Source produces raw frames. Implementations must hand out a buffer the
// caller owns.
type Source interface {
	Grab(ctx context.Context) (Frame, error)
}

// Synthetic is a headless frame source: a fixed-size frame that only
// changes when something paints on it. It stands in for a display when
// none is attached and gives the marker action a deterministic effect.
//
// Thread-safety: Synthetic is safe for concurrent use.
type Synthetic struct {
	mu     sync.Mutex
	width  int
	height int
	pix    []byte
}

// NewSynthetic creates a width×height frame filled with fill.
func NewSynthetic(width, height int, fill [4]byte) *Synthetic {
	n := width * height
	if n < 0 {
		n = 0
	}
	pix := make([]byte, n*4)
	for i := 0; i < len(pix); i += 4 {
		copy(pix[i:i+4], fill[:])
	}
	return &Synthetic{width: width, height: height, pix: pix}
}

// Grab returns a copy of the current frame.
func (s *Synthetic) Grab(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	pix := make([]byte, len(s.pix))
	copy(pix, s.pix)
	return Frame{Pix: pix, Width: s.width, Height: s.height, Channels: 4}, nil
}

// Size returns the frame dimensions.
func (s *Synthetic) Size() (width, height int) {
	return s.width, s.height
}

// Paint sets the pixel at (x, y).
func (s *Synthetic) Paint(x, y int, px [4]byte) error {
	if x < 0 || y < 0 || x >= s.width || y >= s.height {
		return fmt.Errorf("paint (%d,%d) outside %dx%d frame", x, y, s.width, s.height)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	off := (y*s.width + x) * 4
	copy(s.pix[off:off+4], px[:])
	return nil
}
