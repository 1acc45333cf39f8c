package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// FBDev grabs frames from a Linux framebuffer device such as /dev/fb0.
//
// Geometry comes from sysfs (virtual_size, bits_per_pixel, stride). Rows
// are copied verbatim; only the per-row stride padding is dropped, pixel
// bytes are never touched. A device that is not 32 bpp reports its real
// channel count and fails the store's channel invariant.
type FBDev struct {
	Device    string // e.g. /dev/fb0
	SysfsRoot string // defaults to /sys/class/graphics
}

// NewFBDev creates a source for device.
func NewFBDev(device string) *FBDev {
	return &FBDev{Device: device, SysfsRoot: "/sys/class/graphics"}
}

type fbGeometry struct {
	width, height, bpp, stride int
}

func (f *FBDev) geometry() (fbGeometry, error) {
	dir := filepath.Join(f.SysfsRoot, filepath.Base(f.Device))

	size, err := readSysfs(dir, "virtual_size")
	if err != nil {
		return fbGeometry{}, err
	}
	w, h, ok := strings.Cut(size, ",")
	if !ok {
		return fbGeometry{}, fmt.Errorf("malformed virtual_size %q", size)
	}
	var g fbGeometry
	if g.width, err = strconv.Atoi(w); err != nil {
		return fbGeometry{}, fmt.Errorf("virtual_size width: %w", err)
	}
	if g.height, err = strconv.Atoi(h); err != nil {
		return fbGeometry{}, fmt.Errorf("virtual_size height: %w", err)
	}

	bpp, err := readSysfs(dir, "bits_per_pixel")
	if err != nil {
		return fbGeometry{}, err
	}
	if g.bpp, err = strconv.Atoi(bpp); err != nil {
		return fbGeometry{}, fmt.Errorf("bits_per_pixel: %w", err)
	}

	stride, err := readSysfs(dir, "stride")
	if err != nil {
		return fbGeometry{}, err
	}
	if g.stride, err = strconv.Atoi(stride); err != nil {
		return fbGeometry{}, fmt.Errorf("stride: %w", err)
	}
	return g, nil
}

// Grab reads one full frame from the device.
func (f *FBDev) Grab(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	g, err := f.geometry()
	if err != nil {
		return Frame{}, fmt.Errorf("fbdev geometry: %w", err)
	}
	channels := g.bpp / 8
	rowBytes := g.width * channels
	if g.width <= 0 || g.height <= 0 || channels <= 0 {
		// Let the store's invariants name the violation.
		return Frame{Width: g.width, Height: g.height, Channels: channels}, nil
	}
	if g.stride < rowBytes {
		return Frame{}, fmt.Errorf("fbdev stride %d shorter than row %d", g.stride, rowBytes)
	}

	dev, err := os.Open(f.Device)
	if err != nil {
		return Frame{}, fmt.Errorf("open framebuffer: %w", err)
	}
	defer dev.Close()

	raw := make([]byte, g.stride*g.height)
	if _, err := io.ReadFull(dev, raw); err != nil {
		return Frame{}, fmt.Errorf("read framebuffer: %w", err)
	}

	pix := raw
	if g.stride != rowBytes {
		pix = make([]byte, rowBytes*g.height)
		for y := 0; y < g.height; y++ {
			copy(pix[y*rowBytes:(y+1)*rowBytes], raw[y*g.stride:y*g.stride+rowBytes])
		}
	}
	return Frame{Pix: pix, Width: g.width, Height: g.height, Channels: channels}, nil
}

func readSysfs(dir, name string) (string, error) {
	b, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
