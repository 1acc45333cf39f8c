package ir

import "encoding/json"

// BBox is an inclusive axis-aligned rectangle [minX, minY, maxX, maxY].
type BBox [4]int

// DeltaData is the raw field set of a Delta. Nil pointers serialize as
// JSON null and mean "not measured".
type DeltaData struct {
	Error          *string  `json:"error"`
	PreChecksum    *string  `json:"pre_checksum"`
	PostChecksum   *string  `json:"post_checksum"`
	PixelsTotal    *int64   `json:"pixels_total"`
	PixelsChanged  *int64   `json:"pixels_changed"`
	PercentChanged *float64 `json:"percent_changed"`
	BBox           *BBox    `json:"bbox"`
}

// Delta is a factual comparison between two snapshots.
//
// A Delta is built once from DeltaData and can only be read afterwards:
// every accessor hands out copies, so holders cannot edit what another
// stage already observed.
type Delta struct {
	data DeltaData
}

// NewDelta freezes d into a Delta.
func NewDelta(d DeltaData) *Delta {
	return &Delta{data: cloneDeltaData(d)}
}

// Data returns a copy of the underlying fields.
func (d *Delta) Data() DeltaData {
	return cloneDeltaData(d.data)
}

// Err returns the internal error message, if the engine recorded one.
func (d *Delta) Err() (string, bool) {
	if d.data.Error == nil {
		return "", false
	}
	return *d.data.Error, true
}

// PixelsChanged returns the changed pixel count and whether it was measured.
func (d *Delta) PixelsChanged() (int64, bool) {
	if d.data.PixelsChanged == nil {
		return 0, false
	}
	return *d.data.PixelsChanged, true
}

// PixelsTotal returns the total pixel count and whether it was measured.
func (d *Delta) PixelsTotal() (int64, bool) {
	if d.data.PixelsTotal == nil {
		return 0, false
	}
	return *d.data.PixelsTotal, true
}

// PercentChanged returns the changed fraction in [0, 1] and whether it was
// measured.
func (d *Delta) PercentChanged() (float64, bool) {
	if d.data.PercentChanged == nil {
		return 0, false
	}
	return *d.data.PercentChanged, true
}

// BBox returns the change bounding box, absent when nothing changed.
func (d *Delta) BBox() (BBox, bool) {
	if d.data.BBox == nil {
		return BBox{}, false
	}
	return *d.data.BBox, true
}

// Map returns the Delta as an opaque key/value mapping. Unmeasured fields
// map to nil.
func (d *Delta) Map() map[string]any {
	m := map[string]any{
		"error":           nil,
		"pre_checksum":    nil,
		"post_checksum":   nil,
		"pixels_total":    nil,
		"pixels_changed":  nil,
		"percent_changed": nil,
		"bbox":            nil,
	}
	if d.data.Error != nil {
		m["error"] = *d.data.Error
	}
	if d.data.PreChecksum != nil {
		m["pre_checksum"] = *d.data.PreChecksum
	}
	if d.data.PostChecksum != nil {
		m["post_checksum"] = *d.data.PostChecksum
	}
	if d.data.PixelsTotal != nil {
		m["pixels_total"] = *d.data.PixelsTotal
	}
	if d.data.PixelsChanged != nil {
		m["pixels_changed"] = *d.data.PixelsChanged
	}
	if d.data.PercentChanged != nil {
		m["percent_changed"] = *d.data.PercentChanged
	}
	if d.data.BBox != nil {
		b := *d.data.BBox
		m["bbox"] = []int{b[0], b[1], b[2], b[3]}
	}
	return m
}

// MarshalJSON encodes the Delta with every key present.
func (d *Delta) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.data)
}

// UnmarshalJSON decodes a Delta read back from a log or ledger.
func (d *Delta) UnmarshalJSON(b []byte) error {
	var data DeltaData
	if err := json.Unmarshal(b, &data); err != nil {
		return err
	}
	d.data = data
	return nil
}

func cloneDeltaData(d DeltaData) DeltaData {
	out := DeltaData{
		Error:          cloneValue(d.Error),
		PreChecksum:    cloneValue(d.PreChecksum),
		PostChecksum:   cloneValue(d.PostChecksum),
		PixelsTotal:    cloneValue(d.PixelsTotal),
		PixelsChanged:  cloneValue(d.PixelsChanged),
		PercentChanged: cloneValue(d.PercentChanged),
		BBox:           cloneValue(d.BBox),
	}
	return out
}

func cloneValue[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Ptr returns a pointer to v. Convenience for building DeltaData literals.
func Ptr[T any](v T) *T {
	return &v
}
