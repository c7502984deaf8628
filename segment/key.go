package segment

import (
	"fmt"
	"strconv"
	"strings"
)

// SpeakerLen is the length of the speaker id prefix of an utterance key.
const SpeakerLen = 3

// DefaultAltPrefixes are the label prefixes that select the underscore
// delimited (NCHLT style) key rule.
var DefaultAltPrefixes = []string{"nchlt"}

// Keyer derives canonical utterance keys from raw utterance labels.
type Keyer struct {
	// AltPrefixes select the alternate-corpus rule: the label is split on
	// underscores and its third field becomes the speaker id.
	AltPrefixes []string
}

// NewKeyer returns a Keyer using DefaultAltPrefixes.
func NewKeyer() Keyer { return Keyer{AltPrefixes: DefaultAltPrefixes} }

// UttKey maps a raw utterance label to its canonical key.
//
// Buckeye style labels ("s0101a") become speaker + "_" + suffix ("s01_01a"),
// with any underscores in the label first replaced by hyphens. Alternate
// corpus labels ("nchlt_tso_001m_0003") have field 2 extracted as the speaker
// and the remaining fields joined by hyphens ("001m_nchlt-tso-0003").
func (k Keyer) UttKey(label string) string {
	for _, p := range k.AltPrefixes {
		if p == "" || !strings.HasPrefix(label, p) {
			continue
		}
		fields := strings.Split(label, "_")
		if len(fields) < 3 {
			break
		}
		speaker := fields[2]
		rest := append(append([]string{}, fields[:2]...), fields[3:]...)
		return speaker + "_" + strings.Join(rest, "-")
	}
	l := strings.ReplaceAll(label, "_", "-")
	n := min(SpeakerLen, len(l))
	return l[:n] + "_" + l[n:]
}

// Speaker returns the speaker id prefix of an utterance key.
func Speaker(uttKey string) string {
	return uttKey[:min(SpeakerLen, len(uttKey))]
}

// SegmentKey identifies one extracted span: label_utterance_SSSSSS-EEEEEE.
// The utterance key itself contains exactly one underscore.
type SegmentKey struct {
	Label     string
	Utterance string
	Interval  Interval
}

func (k SegmentKey) String() string {
	return k.Label + "_" + k.Utterance + "_" + k.Interval.String()
}

// ParseSegmentKey parses a key produced by SegmentKey.String. The utterance
// is taken as the third- and second-to-last underscore fields, everything
// before them is the label.
func ParseSegmentKey(s string) (SegmentKey, error) {
	fields := strings.Split(s, "_")
	n := len(fields)
	if n < 4 {
		return SegmentKey{}, fmt.Errorf("%w: segment key %q", ErrMalformedKey, s)
	}
	iv, err := parseRange(fields[n-1])
	if err != nil {
		return SegmentKey{}, fmt.Errorf("%w: segment key %q: %v", ErrMalformedKey, s, err)
	}
	return SegmentKey{
		Label:     strings.Join(fields[:n-3], "_"),
		Utterance: fields[n-3] + "_" + fields[n-2],
		Interval:  iv,
	}, nil
}

// ArchiveKey identifies one utterance-level entry: utterance_SSSSSS-EEEEEE,
// where the range is the absolute frame span the entry covers.
type ArchiveKey struct {
	Utterance string
	Interval  Interval
}

func (k ArchiveKey) String() string {
	return k.Utterance + "_" + k.Interval.String()
}

// ParseArchiveKey splits an archive key on its last underscore.
func ParseArchiveKey(s string) (ArchiveKey, error) {
	i := strings.LastIndexByte(s, '_')
	if i <= 0 {
		return ArchiveKey{}, fmt.Errorf("%w: archive key %q", ErrMalformedKey, s)
	}
	iv, err := parseRange(s[i+1:])
	if err != nil {
		return ArchiveKey{}, fmt.Errorf("%w: archive key %q: %v", ErrMalformedKey, s, err)
	}
	return ArchiveKey{Utterance: s[:i], Interval: iv}, nil
}

func parseRange(s string) (Interval, error) {
	a, b, ok := strings.Cut(s, "-")
	if !ok {
		return Interval{}, fmt.Errorf("range %q has no '-'", s)
	}
	start, err := strconv.Atoi(a)
	if err != nil {
		return Interval{}, err
	}
	end, err := strconv.Atoi(b)
	if err != nil {
		return Interval{}, err
	}
	return Interval{Start: start, End: end}, nil
}
