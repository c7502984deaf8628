// Package orchestrator runs the segment extraction stages for one
// configuration and records what each stage kept.
package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/archive"
	cfg "github.com/maastricht-university/samediff-pipeline/config"
	"github.com/maastricht-university/samediff-pipeline/observe"
	"github.com/maastricht-university/samediff-pipeline/pairs"
	"github.com/maastricht-university/samediff-pipeline/segment"
	"github.com/maastricht-university/samediff-pipeline/words"
)

// Output file names inside a run directory.
const (
	WordsList     = "words.list"
	CleanPairs    = "pairs.clean"
	TermsList     = "terms.list"
	SpeakerPairs  = "pairs.speakers"
	RegionArchive = "features.vad.npz"
	WordsArchive  = "words.npz"
	TermsArchive  = "terms.npz"
	ReportFile    = "report.json"
)

type Pipeline struct {
	cfg     *cfg.Root
	log     logrus.FieldLogger
	metrics *observe.Metrics
	report  *Report
}

// NewPipeline returns a pipeline for c. metrics may be nil.
func NewPipeline(c *cfg.Root, log logrus.FieldLogger, metrics *observe.Metrics) *Pipeline {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{cfg: c, log: log, metrics: metrics}
}

// inputs holds everything Run reads before the first stage writes a file.
type inputs struct {
	tokens   []alignment.Token
	raws     []pairs.Raw
	speakers pairs.SpeakerSet
	features archive.Archive
}

func (p *Pipeline) readInputs() (*inputs, error) {
	in := &inputs{}
	var err error
	if in.tokens, err = alignment.ReadTokensFile(p.cfg.Paths.Alignment); err != nil {
		return nil, err
	}
	if p.cfg.Paths.Pairs != "" {
		if in.raws, err = pairs.ReadRawFile(p.cfg.Paths.Pairs); err != nil {
			return nil, err
		}
		if p.cfg.Paths.Speakers != "" {
			if in.speakers, err = pairs.ReadSpeakersFile(p.cfg.Paths.Speakers); err != nil {
				return nil, err
			}
		}
	}
	if p.cfg.Paths.Features != "" {
		if in.features, err = archive.Load(p.cfg.Paths.Features); err != nil {
			return nil, err
		}
		// Without region extraction the archive is cut directly, so its keys
		// must already carry frame ranges.
		if !p.cfg.Archive.ExtractVAD {
			for _, k := range in.features.Keys() {
				if _, err := segment.ParseArchiveKey(k); err != nil {
					return nil, fmt.Errorf("source archive: %w", err)
				}
			}
		}
	}
	return in, nil
}

// Run executes every stage whose inputs are configured, writing outputs into
// a fresh run directory under paths.outputs. All inputs are read before the
// first output is written. Any error aborts the run and removes its
// directory, so a run directory on disk always holds a complete run.
func (p *Pipeline) Run(ctx context.Context) (rep *Report, err error) {
	in, err := p.readInputs()
	if err != nil {
		return nil, err
	}

	rid, dir, err := mkRunDir(p.cfg.Paths.Outputs)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			if rmErr := os.RemoveAll(dir); rmErr != nil {
				p.log.WithError(rmErr).WithField("dir", dir).Warn("could not remove failed run")
			}
		}
	}()
	p.report = &Report{RunID: rid, Dir: dir}
	keyer := p.cfg.Keyer()
	out := func(name string) string { return filepath.Join(dir, name) }

	// Voice activity regions and ground-truth words share one transcript.
	var vad alignment.Table
	if _, err := p.stage(ctx, StageVAD, func() (StageReport, error) {
		vad = alignment.VAD(in.tokens, keyer)
		return StageReport{Kept: vad.NumIntervals(), Total: len(vad)}, nil
	}); err != nil {
		return nil, err
	}

	var wordKeys []string
	if _, err := p.stage(ctx, StageWords, func() (StageReport, error) {
		b := words.Builder{MinFrames: p.cfg.Words.MinFrames, MinChars: p.cfg.Words.MinChars, Keyer: keyer}
		toks, st := b.Build(in.tokens)
		for _, t := range toks {
			wordKeys = append(wordKeys, b.Key(t).String())
		}
		err := WriteFile(out(WordsList), func(w io.Writer) error { return b.Write(w, toks) })
		return StageReport{Kept: st.Kept, Total: st.Total, Output: out(WordsList)}, err
	}); err != nil {
		return nil, err
	}

	var termKeys []string
	if p.cfg.Paths.Pairs != "" {
		if termKeys, err = p.runPairs(ctx, in, vad, keyer, out); err != nil {
			return nil, err
		}
	}

	if p.cfg.Paths.Features != "" {
		if err := p.runArchives(ctx, in.features, vad, wordKeys, termKeys, out); err != nil {
			return nil, err
		}
	}

	path, err := persist(p.report)
	if err != nil {
		return nil, err
	}
	p.log.WithField("report", path).Info("run complete")
	return p.report, nil
}

func (p *Pipeline) runPairs(ctx context.Context, in *inputs, vad alignment.Table, keyer segment.Keyer, out func(string) string) ([]string, error) {
	var clean []pairs.Record
	if _, err := p.stage(ctx, StageStrip, func() (StageReport, error) {
		s := pairs.NewStripper(vad, p.cfg.Pairs.ExcludedUtterances...)
		s.Keyer = keyer
		s.Log = p.log
		var st pairs.StripStats
		var err error
		if clean, st, err = s.Strip(in.raws); err != nil {
			return StageReport{}, err
		}
		p.log.WithFields(logrus.Fields{
			"excluded":     st.Excluded,
			"self_overlap": st.SelfOverlap,
			"silence":      st.Silence,
		}).Debug("strip drops")
		err = WriteFile(out(CleanPairs), func(w io.Writer) error { return pairs.WriteRecords(w, clean) })
		return StageReport{Kept: st.Kept, Total: st.Total, Output: out(CleanPairs)}, err
	}); err != nil {
		return nil, err
	}

	var termKeys []string
	if _, err := p.stage(ctx, StageTerms, func() (StageReport, error) {
		terms := pairs.Terms(clean)
		for _, t := range terms {
			termKeys = append(termKeys, t.Key().String())
		}
		err := WriteFile(out(TermsList), func(w io.Writer) error { return pairs.WriteTerms(w, terms) })
		return StageReport{Kept: len(terms), Total: 2 * len(clean), Output: out(TermsList)}, err
	}); err != nil {
		return nil, err
	}

	if in.speakers != nil {
		if _, err := p.stage(ctx, StageSpeakers, func() (StageReport, error) {
			kept, st := pairs.FilterSpeakers(clean, in.speakers)
			err := WriteFile(out(SpeakerPairs), func(w io.Writer) error { return pairs.WriteRecords(w, kept) })
			return StageReport{Kept: st.Kept, Total: st.Total, Output: out(SpeakerPairs)}, err
		}); err != nil {
			return nil, err
		}
	}
	return termKeys, nil
}

func (p *Pipeline) runArchives(ctx context.Context, src archive.Archive, vad alignment.Table, wordKeys, termKeys []string, out func(string) string) error {
	if p.cfg.Archive.ExtractVAD {
		if _, err := p.stage(ctx, StageRegions, func() (StageReport, error) {
			regions, st := archive.ExtractVAD(src, vad)
			if st.Missing > 0 {
				p.log.WithField("missing", st.Missing).Warn("utterances without features")
			}
			if p.cfg.Archive.SpeakerMVN {
				regions = archive.SpeakerMVN(regions)
			}
			src = regions
			err := archive.Save(out(RegionArchive), regions)
			return StageReport{Kept: st.Regions, Total: vad.NumIntervals(), Output: out(RegionArchive)}, err
		}); err != nil {
			return err
		}
	}

	opts := archive.CutOptions{Strict: p.cfg.Archive.Strict, Workers: p.cfg.Archive.Workers}
	cut := func(name string, keys []string, file string) error {
		_, err := p.stage(ctx, name, func() (StageReport, error) {
			seg, st, err := archive.Cut(ctx, src, keys, opts)
			if err != nil {
				return StageReport{}, err
			}
			err = archive.Save(out(file), seg)
			return StageReport{Kept: st.Matched, Total: st.Total, Output: out(file)}, err
		})
		return err
	}
	if err := cut(StageCutWords, wordKeys, WordsArchive); err != nil {
		return err
	}
	if p.cfg.Paths.Pairs != "" {
		return cut(StageCutTerms, termKeys, TermsArchive)
	}
	return nil
}
