package testutil

// Pixel is one 4-channel pixel value.
type Pixel [4]byte

// SolidFrame returns a w×h 4-channel buffer filled with px.
func SolidFrame(w, h int, px Pixel) []byte {
	buf := make([]byte, w*h*4)
	for i := 0; i < len(buf); i += 4 {
		copy(buf[i:i+4], px[:])
	}
	return buf
}

// WithPixel returns a copy of buf (row width w) with (x, y) set to px.
func WithPixel(buf []byte, w, x, y int, px Pixel) []byte {
	out := make([]byte, len(buf))
	copy(out, buf)
	off := (y*w + x) * 4
	copy(out[off:off+4], px[:])
	return out
}
