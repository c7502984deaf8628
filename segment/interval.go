// Package segment holds the frame-interval and key model shared by every
// pipeline stage: half-open frame intervals, utterance key derivation and the
// segment/archive key formats used in list files and feature archives.
package segment

import (
	"fmt"
	"math"
)

// FramesPerSecond is the analysis frame rate (10ms frames).
const FramesPerSecond = 100

// Interval is a half-open frame range [Start, End).
type Interval struct {
	Start int
	End   int
}

// Len returns the number of frames covered. Degenerate intervals are empty.
func (iv Interval) Len() int {
	if iv.End <= iv.Start {
		return 0
	}
	return iv.End - iv.Start
}

// Overlap returns the length of the intersection of iv and o.
func (iv Interval) Overlap(o Interval) int {
	if o.End <= iv.Start || o.Start >= iv.End {
		return 0
	}
	return iv.Clip(o).Len()
}

// Clip restricts iv to the bounds of o.
func (iv Interval) Clip(o Interval) Interval {
	return Interval{Start: max(iv.Start, o.Start), End: min(iv.End, o.End)}
}

// Contains reports whether frame f lies in the closed range [Start, End].
// The segment cutter matches on this inclusive form.
func (iv Interval) Contains(f int) bool { return iv.Start <= f && f <= iv.End }

func (iv Interval) String() string { return fmt.Sprintf("%06d-%06d", iv.Start, iv.End) }

// RoundFrame converts seconds to the nearest frame, rounding halves to even.
func RoundFrame(sec float64) int {
	return int(math.RoundToEven(sec * FramesPerSecond))
}

// FloorFrame converts seconds to the frame that contains them.
func FloorFrame(sec float64) int {
	return int(math.Floor(sec * FramesPerSecond))
}
