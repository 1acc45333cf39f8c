package ir

// Channels is the only pixel layout the pipeline accepts (BGRA/RGBA, one
// byte per channel).
const Channels = 4

// Snapshot is an integrity-verified capture of the environment's visual
// state. Only the snapshot store creates one; it is passed by value and
// never mutated.
type Snapshot struct {
	Path               string  `json:"path"`
	TimestampMonotonic float64 `json:"timestamp_monotonic"`
	TimestampWall      float64 `json:"timestamp_wall"`
	Width              int     `json:"width"`
	Height             int     `json:"height"`
	Channels           int     `json:"channels"`
	Checksum           string  `json:"checksum"`
}

// Size returns the exact byte length of the persisted frame.
func (s Snapshot) Size() int {
	return s.Width * s.Height * Channels
}

// Summary is the projection of a Snapshot embedded in an ExperimentRecord.
func (s Snapshot) Summary() SnapshotSummary {
	return SnapshotSummary{
		Path:      s.Path,
		Timestamp: s.TimestampMonotonic,
		Width:     s.Width,
		Height:    s.Height,
		Checksum:  s.Checksum,
	}
}

// SnapshotSummary references a snapshot from a record; the record does not
// own the file.
type SnapshotSummary struct {
	Path      string  `json:"path"`
	Timestamp float64 `json:"timestamp"`
	Width     int     `json:"width"`
	Height    int     `json:"height"`
	Checksum  string  `json:"checksum"`
}
