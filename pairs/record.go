// Package pairs cleans discovered-term pair lists against voice activity
// regions and reduces them to term and speaker-restricted lists.
package pairs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// UnknownCluster labels pairs read from encodings that carry no cluster.
const UnknownCluster = "?"

// Side is one half of a pair: an utterance key and a frame interval.
type Side struct {
	Utterance string
	Interval  segment.Interval
}

// Record is a pair in canonical form. Utterances are canonical keys.
type Record struct {
	Cluster string
	A, B    Side
}

// SelfOverlapping reports whether both sides sit in the same utterance with
// overlapping intervals.
func (r Record) SelfOverlapping() bool {
	return r.A.Utterance == r.B.Utterance && r.A.Interval.Overlap(r.B.Interval) > 0
}

// String encodes r as "cluster utt1 start1 end1 utt2 start2 end2".
func (r Record) String() string {
	return fmt.Sprintf("%s %s %d %d %s %d %d", r.Cluster,
		r.A.Utterance, r.A.Interval.Start, r.A.Interval.End,
		r.B.Utterance, r.B.Interval.Start, r.B.Interval.End)
}

// ReadRecords parses a canonical pair list.
func ReadRecords(r io.Reader, source string) ([]Record, error) {
	var out []Record
	err := scanLines(r, source, func(line int, text string, fields []string) error {
		if len(fields) != 7 {
			return &segment.ParseError{Source: source, Line: line, Text: text,
				Reason: fmt.Sprintf("want 7 fields, got %d", len(fields))}
		}
		ints, err := atois(fields[2], fields[3], fields[5], fields[6])
		if err != nil {
			return &segment.ParseError{Source: source, Line: line, Text: text, Reason: err.Error()}
		}
		out = append(out, Record{
			Cluster: fields[0],
			A:       Side{Utterance: fields[1], Interval: segment.Interval{Start: ints[0], End: ints[1]}},
			B:       Side{Utterance: fields[4], Interval: segment.Interval{Start: ints[2], End: ints[3]}},
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ReadRecordsFile opens path and parses it with ReadRecords.
func ReadRecordsFile(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pairs: %w", err)
	}
	defer f.Close()
	return ReadRecords(f, path)
}

// WriteRecords writes one canonical record per line.
func WriteRecords(w io.Writer, recs []Record) error {
	bw := bufio.NewWriter(w)
	for _, r := range recs {
		if _, err := fmt.Fprintln(bw, r.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// scanLines calls fn for each non-blank line with its 1-based number.
func scanLines(r io.Reader, source string, fn func(line int, text string, fields []string) error) error {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if err := fn(line, sc.Text(), fields); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}
	return nil
}

func atois(ss ...string) ([]int, error) {
	out := make([]int, len(ss))
	for i, s := range ss {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("bad frame %q", s)
		}
		out[i] = v
	}
	return out, nil
}
