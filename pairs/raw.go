package pairs

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// Raw is a pair as read from a discovery list, before key derivation and
// frame quantisation. It is either a RawPair9 or a RawPair6.
type Raw interface {
	Normalize(k segment.Keyer) Record
	isRaw()
}

// RawPair9 is "cluster utt1 speaker1 start1 end1 utt2 speaker2 start2 end2"
// with raw utterance labels and frame intervals.
type RawPair9 struct {
	Cluster          string
	Label1, Speaker1 string
	Start1, End1     int
	Label2, Speaker2 string
	Start2, End2     int
}

func (RawPair9) isRaw() {}

// Normalize derives utterance keys from the raw labels.
func (p RawPair9) Normalize(k segment.Keyer) Record {
	return Record{
		Cluster: p.Cluster,
		A:       Side{Utterance: k.UttKey(p.Label1), Interval: segment.Interval{Start: p.Start1, End: p.End1}},
		B:       Side{Utterance: k.UttKey(p.Label2), Interval: segment.Interval{Start: p.Start2, End: p.End2}},
	}
}

// RawPair6 is "utt1 start1 end1 utt2 start2 end2" with utterance keys and
// utterance-local times in seconds.
type RawPair6 struct {
	Utt1         string
	Start1, End1 float64
	Utt2         string
	Start2, End2 float64
}

func (RawPair6) isRaw() {}

// Normalize floors the times to frames. The cluster is unknown.
func (p RawPair6) Normalize(segment.Keyer) Record {
	return Record{
		Cluster: UnknownCluster,
		A: Side{Utterance: p.Utt1, Interval: segment.Interval{
			Start: segment.FloorFrame(p.Start1), End: segment.FloorFrame(p.End1)}},
		B: Side{Utterance: p.Utt2, Interval: segment.Interval{
			Start: segment.FloorFrame(p.Start2), End: segment.FloorFrame(p.End2)}},
	}
}

// ParseRaw dispatches on the field count.
func ParseRaw(fields []string) (Raw, error) {
	switch len(fields) {
	case 9:
		ints, err := atois(fields[3], fields[4], fields[7], fields[8])
		if err != nil {
			return nil, err
		}
		return RawPair9{
			Cluster:  fields[0],
			Label1:   fields[1],
			Speaker1: fields[2],
			Start1:   ints[0],
			End1:     ints[1],
			Label2:   fields[5],
			Speaker2: fields[6],
			Start2:   ints[2],
			End2:     ints[3],
		}, nil
	case 6:
		var fs [4]float64
		for i, s := range []string{fields[1], fields[2], fields[4], fields[5]} {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("bad time %q", s)
			}
			fs[i] = v
		}
		return RawPair6{
			Utt1:   fields[0],
			Start1: fs[0],
			End1:   fs[1],
			Utt2:   fields[3],
			Start2: fs[2],
			End2:   fs[3],
		}, nil
	default:
		return nil, fmt.Errorf("want 9 or 6 fields, got %d", len(fields))
	}
}

// ReadRaw parses a discovery pair list in either encoding.
func ReadRaw(r io.Reader, source string) ([]Raw, error) {
	var out []Raw
	err := scanLines(r, source, func(line int, text string, fields []string) error {
		p, err := ParseRaw(fields)
		if err != nil {
			return &segment.ParseError{Source: source, Line: line, Text: text, Reason: err.Error()}
		}
		out = append(out, p)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadRawFile opens path and parses it with ReadRaw.
func ReadRawFile(path string) ([]Raw, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs: %w", err)
	}
	defer f.Close()
	return ReadRaw(f, path)
}
