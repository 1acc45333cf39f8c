// Package delta compares two raw frames.
//
// The comparison is strict: a pixel differs when any of its 4 channel
// bytes differs. There is no tolerance and no color conversion, so a
// pure-hue change that a grayscale comparison would miss still counts.
//
// Compute never fails the caller. Anything that prevents a measurement
// (bad geometry, short buffers, unreadable files, a panic) is returned
// as a Delta whose error field is set and whose measurements are null.
package delta

import (
	"fmt"
	"os"

	"github.com/Architect8989/EME/internal/ir"
)

// Compute compares pre and post, both raw 4-channel frames.
//
// When the dimensions differ the whole frame counts as changed and the
// bounding box covers the pre frame.
func Compute(pre, post []byte, preW, preH, postW, postH int) (d *ir.Delta) {
	defer func() {
		if r := recover(); r != nil {
			d = errorDelta(fmt.Sprintf("delta panic: %v", r))
		}
	}()

	if preW <= 0 || preH <= 0 || postW <= 0 || postH <= 0 {
		return errorDelta(fmt.Sprintf("zero-sized frame: pre %dx%d, post %dx%d", preW, preH, postW, postH))
	}
	if want := preW * preH * ir.Channels; len(pre) != want {
		return errorDelta(fmt.Sprintf("pre buffer is %d bytes, want %d", len(pre), want))
	}
	if want := postW * postH * ir.Channels; len(post) != want {
		return errorDelta(fmt.Sprintf("post buffer is %d bytes, want %d", len(post), want))
	}

	preSum := ir.Checksum(pre)
	postSum := ir.Checksum(post)

	if preW != postW || preH != postH {
		total := int64(preW) * int64(preH)
		return ir.NewDelta(ir.DeltaData{
			PreChecksum:    &preSum,
			PostChecksum:   &postSum,
			PixelsTotal:    ir.Ptr(total),
			PixelsChanged:  ir.Ptr(total),
			PercentChanged: ir.Ptr(1.0),
			BBox:           &ir.BBox{0, 0, preW - 1, preH - 1},
		})
	}

	total := int64(preW) * int64(preH)
	changed, bbox := diff(pre, post, preW)

	data := ir.DeltaData{
		PreChecksum:    &preSum,
		PostChecksum:   &postSum,
		PixelsTotal:    ir.Ptr(total),
		PixelsChanged:  ir.Ptr(changed),
		PercentChanged: ir.Ptr(float64(changed) / float64(total)),
	}
	if changed > 0 {
		data.BBox = &bbox
	}
	return ir.NewDelta(data)
}

// diff counts differing pixels and tracks their bounding box in one pass.
func diff(pre, post []byte, width int) (int64, ir.BBox) {
	var changed int64
	minX, minY, maxX, maxY := -1, -1, -1, -1

	for i := 0; i < len(pre); i += ir.Channels {
		if pre[i] == post[i] && pre[i+1] == post[i+1] &&
			pre[i+2] == post[i+2] && pre[i+3] == post[i+3] {
			continue
		}
		changed++
		p := i / ir.Channels
		x, y := p%width, p/width
		if minX < 0 || x < minX {
			minX = x
		}
		if x > maxX {
			maxX = x
		}
		if minY < 0 {
			minY = y
		}
		maxY = y
	}
	return changed, ir.BBox{minX, minY, maxX, maxY}
}

// ComputeSnapshots reads both persisted snapshots and compares them.
// A read failure becomes an error Delta.
func ComputeSnapshots(pre, post ir.Snapshot) *ir.Delta {
	preBuf, err := os.ReadFile(pre.Path)
	if err != nil {
		return errorDelta(fmt.Sprintf("read pre snapshot: %v", err))
	}
	postBuf, err := os.ReadFile(post.Path)
	if err != nil {
		return errorDelta(fmt.Sprintf("read post snapshot: %v", err))
	}
	return Compute(preBuf, postBuf, pre.Width, pre.Height, post.Width, post.Height)
}

func errorDelta(msg string) *ir.Delta {
	return ir.NewDelta(ir.DeltaData{Error: &msg})
}
