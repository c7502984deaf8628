package archive

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// CutOptions controls Cut.
type CutOptions struct {
	// Strict also requires the target end to lie within the source range.
	// By default only the target start is checked and the slice is clamped
	// to the source matrix.
	Strict bool

	// Workers bounds the number of targets searched concurrently. Values
	// below 2 run sequentially.
	Workers int
}

// CutStats counts matched targets against all targets.
type CutStats struct {
	Matched int
	Total   int
}

type source struct {
	key segment.ArchiveKey
	m   *mat.Dense
}

// Cut extracts every target segment from src, an utterance-level archive
// whose keys carry the absolute frame range they cover. For each target the
// first source entry (in key order) of the same utterance whose range holds
// the target start is sliced at the target's local offset. Targets without a
// match are left out of the result and only counted. A matched target whose
// clamped slice has no rows counts as matched but has no entry in the result.
func Cut(ctx context.Context, src Archive, targets []string, opts CutOptions) (Archive, CutStats, error) {
	index := map[string][]source{}
	for _, k := range src.Keys() {
		ak, err := segment.ParseArchiveKey(k)
		if err != nil {
			return nil, CutStats{}, fmt.Errorf("source archive: %w", err)
		}
		index[ak.Utterance] = append(index[ak.Utterance], source{key: ak, m: src[k]})
	}

	sorted := append([]string(nil), targets...)
	sort.Strings(sorted)
	parsed := make([]segment.SegmentKey, len(sorted))
	for i, k := range sorted {
		sk, err := segment.ParseSegmentKey(k)
		if err != nil {
			return nil, CutStats{}, fmt.Errorf("target list: %w", err)
		}
		parsed[i] = sk
	}

	cut := make([]*mat.Dense, len(sorted))
	matched := make([]bool, len(sorted))
	match := func(i int) {
		t := parsed[i]
		for _, s := range index[t.Utterance] {
			if !s.key.Interval.Contains(t.Interval.Start) {
				continue
			}
			if opts.Strict && t.Interval.End > s.key.Interval.End {
				continue
			}
			off := s.key.Interval.Start
			matched[i] = true
			cut[i] = rows(s.m, t.Interval.Start-off, t.Interval.End-off)
			return
		}
	}

	if opts.Workers < 2 {
		for i := range parsed {
			if err := ctx.Err(); err != nil {
				return nil, CutStats{}, err
			}
			match(i)
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(opts.Workers)
		for i := range parsed {
			i := i
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				match(i)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, CutStats{}, err
		}
	}

	out := make(Archive, len(sorted))
	st := CutStats{Total: len(sorted)}
	for i, m := range cut {
		if !matched[i] {
			continue
		}
		st.Matched++
		if m != nil {
			out[sorted[i]] = m
		}
	}
	return out, st, nil
}
