package pairs

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/segment"
)

// ErrUnknownUtterance is returned when a pair references an utterance that
// has no entry in the VAD table.
var ErrUnknownUtterance = errors.New("unknown utterance")

// StripStats counts the outcome of Stripper.Strip.
type StripStats struct {
	Total       int
	Kept        int
	Excluded    int // references an excluded utterance
	SelfOverlap int // same utterance, overlapping halves
	Silence     int // at least one side outside every VAD region
}

// Dropped returns the number of pairs not kept.
func (s StripStats) Dropped() int { return s.Total - s.Kept }

// Stripper clips pair intervals to voice activity regions.
type Stripper struct {
	VAD      alignment.Table
	Keyer    segment.Keyer
	Excluded map[string]bool // utterance keys without usable alignments
	Log      logrus.FieldLogger
}

// NewStripper returns a Stripper over vad with the default keyer.
func NewStripper(vad alignment.Table, excluded ...string) *Stripper {
	ex := make(map[string]bool, len(excluded))
	for _, u := range excluded {
		ex[u] = true
	}
	return &Stripper{VAD: vad, Keyer: segment.NewKeyer(), Excluded: ex, Log: logrus.StandardLogger()}
}

// Strip normalises every raw pair and clips both sides to their best
// overlapping VAD interval. A pair is kept only if both sides survive.
// Pairs are dropped silently (and counted) when they reference an excluded
// utterance, overlap themselves within one utterance, or have a side with no
// VAD overlap. A side whose utterance is absent from the table is an error.
func (s *Stripper) Strip(raws []Raw) ([]Record, StripStats, error) {
	var out []Record
	st := StripStats{Total: len(raws)}
	for i, raw := range raws {
		rec := raw.Normalize(s.Keyer)
		if s.Excluded[rec.A.Utterance] || s.Excluded[rec.B.Utterance] {
			st.Excluded++
			s.debug(i, rec, "excluded utterance")
			continue
		}
		if rec.SelfOverlapping() {
			st.SelfOverlap++
			s.debug(i, rec, "self overlap")
			continue
		}
		a, okA, err := s.clip(rec.A)
		if err != nil {
			return nil, st, fmt.Errorf("pair %d: %w", i+1, err)
		}
		b, okB, err := s.clip(rec.B)
		if err != nil {
			return nil, st, fmt.Errorf("pair %d: %w", i+1, err)
		}
		if !okA || !okB {
			st.Silence++
			s.debug(i, rec, "outside VAD")
			continue
		}
		rec.A, rec.B = a, b
		out = append(out, rec)
	}
	st.Kept = len(out)
	return out, st, nil
}

// clip selects the VAD interval with the largest overlap, the first one on
// ties, and restricts the side to it. ok is false when nothing overlaps.
func (s *Stripper) clip(side Side) (Side, bool, error) {
	ivs, found := s.VAD[side.Utterance]
	if !found {
		return side, false, fmt.Errorf("%w: %q", ErrUnknownUtterance, side.Utterance)
	}
	best, bestOverlap := -1, 0
	for i, vad := range ivs {
		if ov := side.Interval.Overlap(vad); ov > bestOverlap {
			best, bestOverlap = i, ov
		}
	}
	if best < 0 {
		return side, false, nil
	}
	side.Interval = side.Interval.Clip(ivs[best])
	return side, true, nil
}

func (s *Stripper) debug(i int, rec Record, reason string) {
	if s.Log == nil {
		return
	}
	s.Log.WithFields(logrus.Fields{"pair": i + 1, "reason": reason}).Debugf("dropping %s", rec)
}
