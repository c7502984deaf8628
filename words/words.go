// Package words builds same-different word lists from forced alignments.
package words

import (
	"bufio"
	"fmt"
	"io"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/segment"
)

const (
	DefaultMinFrames = 50
	DefaultMinChars  = 5
)

// Token is a word that survived the length filters.
type Token struct {
	Label     string
	Utterance string // raw utterance label
	Interval  segment.Interval
}

// Stats counts kept tokens against all non-silence tokens.
type Stats struct {
	Kept  int
	Total int
}

// Builder filters alignment tokens into word tokens.
type Builder struct {
	MinFrames int
	MinChars  int
	Keyer     segment.Keyer
}

// NewBuilder returns a Builder with the default thresholds.
func NewBuilder() Builder {
	return Builder{MinFrames: DefaultMinFrames, MinChars: DefaultMinChars, Keyer: segment.NewKeyer()}
}

// Build keeps every non-silence token spanning at least MinFrames frames
// whose label has at least MinChars characters. Input order is preserved.
func (b Builder) Build(tokens []alignment.Token) ([]Token, Stats) {
	var out []Token
	var st Stats
	for _, tok := range tokens {
		if alignment.IsSilence(tok.Label) {
			continue
		}
		st.Total++
		iv := segment.Interval{Start: segment.RoundFrame(tok.Start), End: segment.RoundFrame(tok.End)}
		if iv.End-iv.Start < b.MinFrames || len(tok.Label) < b.MinChars {
			continue
		}
		out = append(out, Token{Label: tok.Label, Utterance: tok.Utterance, Interval: iv})
	}
	st.Kept = len(out)
	return out, st
}

// Key returns the list key of tok. The written end is one past the rounded
// end frame.
func (b Builder) Key(tok Token) segment.SegmentKey {
	return segment.SegmentKey{
		Label:     tok.Label,
		Utterance: b.Keyer.UttKey(tok.Utterance),
		Interval:  segment.Interval{Start: tok.Interval.Start, End: tok.Interval.End + 1},
	}
}

// Write writes one key per line.
func (b Builder) Write(w io.Writer, tokens []Token) error {
	bw := bufio.NewWriter(w)
	for _, tok := range tokens {
		if _, err := fmt.Fprintln(bw, b.Key(tok).String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
