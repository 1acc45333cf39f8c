package action

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// PointerBackend moves the system pointer.
type PointerBackend interface {
	ScreenSize(ctx context.Context) (width, height int, err error)
	MoveTo(ctx context.Context, x, y int) error
}

// PointerMotion moves the pointer to an absolute position. The target is
// clamped to the screen before the move.
type PointerMotion struct {
	X, Y    int
	Backend PointerBackend
}

// ID returns "pointer_motion:<x>,<y>" for the requested target.
func (p PointerMotion) ID() string {
	return fmt.Sprintf("pointer_motion:%d,%d", p.X, p.Y)
}

// Run clamps the target and moves the pointer there.
func (p PointerMotion) Run(ctx context.Context) (any, error) {
	if p.Backend == nil {
		return nil, fmt.Errorf("pointer motion: no backend")
	}
	w, h, err := p.Backend.ScreenSize(ctx)
	if err != nil {
		return nil, fmt.Errorf("pointer motion: screen size: %w", err)
	}
	x, y := Clamp(p.X, p.Y, w, h)
	if err := p.Backend.MoveTo(ctx, x, y); err != nil {
		return nil, fmt.Errorf("pointer motion: move to %d,%d: %w", x, y, err)
	}
	return fmt.Sprintf("moved to %d,%d", x, y), nil
}

// Clamp limits (x, y) to a width×height screen.
func Clamp(x, y, width, height int) (int, int) {
	return clampInt(x, 0, width-1), clampInt(y, 0, height-1)
}

func clampInt(v, lo, hi int) int {
	if hi < lo {
		hi = lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// XdotoolBackend drives the X11 pointer through the xdotool binary.
type XdotoolBackend struct {
	// Path to xdotool; defaults to looking it up in PATH.
	Path string
}

func (b XdotoolBackend) bin() string {
	if b.Path != "" {
		return b.Path
	}
	return "xdotool"
}

// ScreenSize runs `xdotool getdisplaygeometry`.
func (b XdotoolBackend) ScreenSize(ctx context.Context) (int, int, error) {
	out, err := exec.CommandContext(ctx, b.bin(), "getdisplaygeometry").Output()
	if err != nil {
		return 0, 0, err
	}
	return parseGeometry(out)
}

// MoveTo runs `xdotool mousemove x y`.
func (b XdotoolBackend) MoveTo(ctx context.Context, x, y int) error {
	return exec.CommandContext(ctx, b.bin(), "mousemove", strconv.Itoa(x), strconv.Itoa(y)).Run()
}

func parseGeometry(out []byte) (int, int, error) {
	fields := strings.Fields(string(bytes.TrimSpace(out)))
	if len(fields) != 2 {
		return 0, 0, fmt.Errorf("unexpected geometry %q", out)
	}
	w, err := strconv.Atoi(fields[0])
	if err != nil {
		return 0, 0, fmt.Errorf("geometry width: %w", err)
	}
	h, err := strconv.Atoi(fields[1])
	if err != nil {
		return 0, 0, fmt.Errorf("geometry height: %w", err)
	}
	return w, h, nil
}
