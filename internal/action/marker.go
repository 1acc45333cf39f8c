package action

import (
	"context"
	"fmt"
)

// Painter is a surface a Marker can draw on. The synthetic frame source
// implements it.
type Painter interface {
	Paint(x, y int, px [4]byte) error
}

// Marker is a simulated action. With a Painter it sets one pixel, which
// gives the experiment a known, minimal observable effect; without one it
// only returns its label.
type Marker struct {
	Label   string
	Painter Painter
	X, Y    int
	Color   [4]byte
}

// ID returns "marker:<label>".
func (m Marker) ID() string {
	if m.Label == "" {
		return "marker"
	}
	return "marker:" + m.Label
}

// Run paints the marker pixel.
func (m Marker) Run(ctx context.Context) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.Painter == nil {
		return fmt.Sprintf("marker %s (no surface)", m.Label), nil
	}
	if err := m.Painter.Paint(m.X, m.Y, m.Color); err != nil {
		return nil, fmt.Errorf("paint marker: %w", err)
	}
	return fmt.Sprintf("marker %s at %d,%d", m.Label, m.X, m.Y), nil
}
