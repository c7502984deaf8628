package pairs

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// Term is one side of a pair together with its cluster.
type Term struct {
	Cluster   string
	Utterance string
	Interval  segment.Interval
}

// Key returns the list key of t. The interval end is already exclusive.
func (t Term) Key() segment.SegmentKey {
	return segment.SegmentKey{Label: t.Cluster, Utterance: t.Utterance, Interval: t.Interval}
}

// Terms collects both sides of every record, dropping exact duplicates, and
// returns them ordered by cluster, utterance, start and end.
func Terms(recs []Record) []Term {
	seen := make(map[Term]struct{}, 2*len(recs))
	out := make([]Term, 0, 2*len(recs))
	for _, r := range recs {
		for _, side := range [2]Side{r.A, r.B} {
			t := Term{Cluster: r.Cluster, Utterance: side.Utterance, Interval: side.Interval}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Cluster != b.Cluster {
			return a.Cluster < b.Cluster
		}
		if a.Utterance != b.Utterance {
			return a.Utterance < b.Utterance
		}
		if a.Interval.Start != b.Interval.Start {
			return a.Interval.Start < b.Interval.Start
		}
		return a.Interval.End < b.Interval.End
	})
	return out
}

// WriteTerms writes one term key per line.
func WriteTerms(w io.Writer, terms []Term) error {
	bw := bufio.NewWriter(w)
	for _, t := range terms {
		if _, err := fmt.Fprintln(bw, t.Key().String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}
