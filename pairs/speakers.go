package pairs

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// SpeakerSet is an allowlist of speaker ids.
type SpeakerSet map[string]struct{}

// Has reports whether id is allowed.
func (s SpeakerSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

// Sorted returns the ids in sorted order.
func (s SpeakerSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// ReadSpeakers reads one speaker id per line.
func ReadSpeakers(r io.Reader, source string) (SpeakerSet, error) {
	set := SpeakerSet{}
	err := scanLines(r, source, func(_ int, _ string, fields []string) error {
		set[fields[0]] = struct{}{}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return set, nil
}

// ReadSpeakersFile opens path and parses it with ReadSpeakers.
func ReadSpeakersFile(path string) (SpeakerSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open speakers: %w", err)
	}
	defer f.Close()
	return ReadSpeakers(f, path)
}

// FilterStats counts kept records against all records.
type FilterStats struct {
	Kept  int
	Total int
}

// FilterSpeakers keeps the records whose two utterances both belong to an
// allowed speaker.
func FilterSpeakers(recs []Record, allowed SpeakerSet) ([]Record, FilterStats) {
	var out []Record
	for _, r := range recs {
		if allowed.Has(segment.Speaker(r.A.Utterance)) && allowed.Has(segment.Speaker(r.B.Utterance)) {
			out = append(out, r)
		}
	}
	return out, FilterStats{Kept: len(out), Total: len(recs)}
}
