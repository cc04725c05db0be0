package availability

import "math"

// Window is the inferred set of byte offsets of one file that are safe to read.
//
// The torrent client only reports a scalar progress per file, not a piece
// bitmap, so availability is approximated as the prefix [0, Available). That
// prefix is only contiguous when pieces are fetched in order. Without
// sequential mode the single offset range that is trusted is one starting at
// byte zero, and even that is optimistic: rarest-first selection can leave
// holes below Available. This is a known limitation of progress-based
// inference, not a guarantee.
type Window struct {
	Size       int64 `json:"size"`
	Available  int64 `json:"availableBytes"`
	Floor      int64 `json:"floorBytes"`
	Sequential bool  `json:"sequential"`
	Skipped    bool  `json:"skipped"`
}

// NewWindow derives a window from file progress. minFraction is the share of
// the file that must be present before any range is considered ready.
func NewWindow(size int64, progress float64, minFraction float64, sequential, skipped bool) Window {
	if size < 0 {
		size = 0
	}
	if progress < 0 || math.IsNaN(progress) {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	if minFraction < 0 {
		minFraction = 0
	}
	if minFraction > 1 {
		minFraction = 1
	}

	available := int64(math.Floor(progress * float64(size)))
	if available > size {
		available = size
	}
	return Window{
		Size:       size,
		Available:  available,
		Floor:      int64(math.Ceil(minFraction * float64(size))),
		Sequential: sequential,
		Skipped:    skipped,
	}
}

// Complete reports whether every byte of the file is present.
func (w Window) Complete() bool {
	return w.Size > 0 && w.Available >= w.Size
}

// Ready reports whether the inclusive byte range [start, end] can be read now.
func (w Window) Ready(start, end int64) bool {
	if w.Size <= 0 || w.Skipped {
		return false
	}
	if start < 0 || end < start || end >= w.Size {
		return false
	}
	if w.Complete() {
		return true
	}
	if w.Available < w.Floor {
		return false
	}
	if end >= w.Available {
		return false
	}
	if !w.Sequential && start != 0 {
		return false
	}
	return true
}

// ReadableEnd returns the last byte index that can be served for an
// open-ended range beginning at start, or -1 when nothing is ready.
func (w Window) ReadableEnd(start int64) int64 {
	if !w.Ready(start, start) {
		return -1
	}
	if w.Complete() {
		return w.Size - 1
	}
	return w.Available - 1
}
