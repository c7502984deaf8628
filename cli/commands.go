package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/archive"
	"github.com/maastricht-university/samediff-pipeline/config"
	"github.com/maastricht-university/samediff-pipeline/observe"
	"github.com/maastricht-university/samediff-pipeline/orchestrator"
	"github.com/maastricht-university/samediff-pipeline/pairs"
	"github.com/maastricht-university/samediff-pipeline/segment"
	"github.com/maastricht-university/samediff-pipeline/words"
)

// need fails unless every named setting is non-empty.
func need(v *viper.Viper, names ...string) error {
	for _, n := range names {
		if v.GetString(n) == "" {
			return fmt.Errorf("--%s is required", n)
		}
	}
	return nil
}

func newVADCommand(keyer func() segment.Keyer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vad",
		Short: "Write the voice activity regions of a forced alignment",
	}
	cmd.Flags().String("alignment", "", "forced-alignment transcript")
	cmd.Flags().String("out", "", "output file, one 'utterance start end' line per region")
	cmd.Flags().Bool("seconds", false, "write regions in seconds instead of frames")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "alignment", "out"); err != nil {
			return err
		}
		if v.GetBool("seconds") {
			spans, err := alignment.ReadSpansFile(v.GetString("alignment"), keyer())
			if err != nil {
				return err
			}
			return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error {
				bw := bufio.NewWriter(w)
				for _, k := range spans.Keys() {
					for _, sp := range spans[k] {
						fmt.Fprintf(bw, "%s %g %g\n", k, sp.Start, sp.End)
					}
				}
				return bw.Flush()
			})
		}
		vad, err := alignment.ReadVADFile(v.GetString("alignment"), keyer())
		if err != nil {
			return err
		}
		stats("vad", vad.NumIntervals(), len(vad))
		return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error {
			bw := bufio.NewWriter(w)
			for _, k := range vad.Keys() {
				for _, iv := range vad[k] {
					fmt.Fprintf(bw, "%s %d %d\n", k, iv.Start, iv.End)
				}
			}
			return bw.Flush()
		})
	}
	return cmd
}

func newWordsCommand(keyer func() segment.Keyer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "words",
		Short: "Write the same-different word list of a forced alignment",
	}
	cmd.Flags().String("alignment", "", "forced-alignment transcript")
	cmd.Flags().String("out", "", "output word list")
	cmd.Flags().Int("min-frames", words.DefaultMinFrames, "minimum word duration in frames")
	cmd.Flags().Int("min-chars", words.DefaultMinChars, "minimum label length in characters")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "alignment", "out"); err != nil {
			return err
		}
		toks, err := alignment.ReadTokensFile(v.GetString("alignment"))
		if err != nil {
			return err
		}
		b := words.Builder{MinFrames: v.GetInt("min-frames"), MinChars: v.GetInt("min-chars"), Keyer: keyer()}
		kept, st := b.Build(toks)
		stats("words", st.Kept, st.Total)
		return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error { return b.Write(w, kept) })
	}
	return cmd
}

func newStripCommand(keyer func() segment.Keyer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "strip",
		Short: "Clip discovered pairs to voice activity regions",
	}
	cmd.Flags().String("alignment", "", "forced-alignment transcript")
	cmd.Flags().String("pairs", "", "discovered pairs (9 or 6 field encoding)")
	cmd.Flags().String("out", "", "output cleaned pair list")
	cmd.Flags().StringSlice("exclude", nil, "utterance keys to drop")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "alignment", "pairs", "out"); err != nil {
			return err
		}
		vad, err := alignment.ReadVADFile(v.GetString("alignment"), keyer())
		if err != nil {
			return err
		}
		raws, err := pairs.ReadRawFile(v.GetString("pairs"))
		if err != nil {
			return err
		}
		s := pairs.NewStripper(vad, v.GetStringSlice("exclude")...)
		s.Keyer = keyer()
		s.Log = log
		clean, st, err := s.Strip(raws)
		if err != nil {
			return err
		}
		stats("strip", st.Kept, st.Total)
		return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error { return pairs.WriteRecords(w, clean) })
	}
	return cmd
}

func newTermsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "terms",
		Short: "Reduce a cleaned pair list to a sorted term list",
	}
	cmd.Flags().String("pairs", "", "cleaned pair list")
	cmd.Flags().String("out", "", "output term list")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "pairs", "out"); err != nil {
			return err
		}
		recs, err := pairs.ReadRecordsFile(v.GetString("pairs"))
		if err != nil {
			return err
		}
		terms := pairs.Terms(recs)
		stats("terms", len(terms), 2*len(recs))
		return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error { return pairs.WriteTerms(w, terms) })
	}
	return cmd
}

func newSpeakersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "speakers",
		Short: "Keep the pairs whose utterances both belong to allowed speakers",
	}
	cmd.Flags().String("speakers", "", "speaker allowlist, one id per line")
	cmd.Flags().String("pairs", "", "cleaned pair list")
	cmd.Flags().String("out", "", "output pair list")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "speakers", "pairs", "out"); err != nil {
			return err
		}
		allowed, err := pairs.ReadSpeakersFile(v.GetString("speakers"))
		if err != nil {
			return err
		}
		log.WithField("speakers", allowed.Sorted()).Debug("allowlist")
		recs, err := pairs.ReadRecordsFile(v.GetString("pairs"))
		if err != nil {
			return err
		}
		kept, st := pairs.FilterSpeakers(recs, allowed)
		stats("speakers", st.Kept, st.Total)
		return orchestrator.WriteFile(v.GetString("out"), func(w io.Writer) error { return pairs.WriteRecords(w, kept) })
	}
	return cmd
}

func newPrepareCommand(keyer func() segment.Keyer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prepare",
		Short: "Keep the voice-active regions of a whole-utterance feature archive",
	}
	cmd.Flags().String("archive", "", "npz archive keyed by utterance")
	cmd.Flags().String("alignment", "", "forced-alignment transcript")
	cmd.Flags().String("out", "", "output npz archive keyed by utterance and frame range")
	cmd.Flags().Bool("mvn", true, "apply per-speaker mean and variance normalisation")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "archive", "alignment", "out"); err != nil {
			return err
		}
		vad, err := alignment.ReadVADFile(v.GetString("alignment"), keyer())
		if err != nil {
			return err
		}
		feats, err := archive.Load(v.GetString("archive"))
		if err != nil {
			return err
		}
		regions, st := archive.ExtractVAD(feats, vad)
		if st.Missing > 0 {
			log.WithField("missing", st.Missing).Warn("utterances without features")
		}
		if v.GetBool("mvn") {
			regions = archive.SpeakerMVN(regions)
		}
		stats("regions", st.Regions, vad.NumIntervals())
		return archive.Save(v.GetString("out"), regions)
	}
	return cmd
}

func newCutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cut",
		Short: "Cut the segments of a word or term list out of a feature archive",
	}
	cmd.Flags().String("archive", "", "npz archive keyed by utterance and frame range")
	cmd.Flags().String("list", "", "word or term list")
	cmd.Flags().String("out", "", "output npz archive")
	cmd.Flags().Bool("strict", false, "also require segment ends to lie inside the source range")
	cmd.Flags().Int("workers", 1, "targets searched concurrently")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "archive", "list", "out"); err != nil {
			return err
		}
		src, err := archive.Load(v.GetString("archive"))
		if err != nil {
			return err
		}
		keys, err := archive.ReadKeys(v.GetString("list"))
		if err != nil {
			return err
		}
		opts := archive.CutOptions{Strict: v.GetBool("strict"), Workers: v.GetInt("workers")}
		seg, st, err := archive.Cut(cmd.Context(), src, keys, opts)
		if err != nil {
			return err
		}
		stats("cut", st.Matched, st.Total)
		return archive.Save(v.GetString("out"), seg)
	}
	return cmd
}

func newItemsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "items",
		Short: "List the segments of a cut archive with their label, speaker and length",
	}
	cmd.Flags().String("archive", "", "npz archive keyed by segment")
	cmd.Flags().Int("min-length", 0, "skip segments of at most this many frames")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := need(v, "archive"); err != nil {
			return err
		}
		a, err := archive.Load(v.GetString("archive"))
		if err != nil {
			return err
		}
		items := archive.Items(a, v.GetInt("min-length"))
		stats("items", len(items), len(a))
		bw := bufio.NewWriter(cmd.OutOrStdout())
		for _, it := range items {
			fmt.Fprintf(bw, "%s\t%s\t%s\t%d\n", it.Key, it.Label, it.Speaker, it.Len())
		}
		return bw.Flush()
	}
	return cmd
}

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every configured stage from a YAML config",
	}
	cmd.Flags().String("config", "", "config file (default: config/$CONFIG_ENV/config.yaml, then config.yaml)")
	v := bind(cmd.Flags())

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		var (
			conf *config.Root
			err  error
		)
		if path := v.GetString("config"); path != "" {
			conf, err = config.LoadFile(path)
		} else {
			conf, err = config.Load()
		}
		if err != nil {
			return err
		}
		if !cmd.Flags().Changed("log-level") && conf.Pipeline.LogLvl != "" {
			if lvl, err := logrus.ParseLevel(conf.Pipeline.LogLvl); err == nil {
				log.SetLevel(lvl)
			}
		}
		metrics, err := observe.Default()
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rep, err := orchestrator.NewPipeline(conf, log.WithField("pipeline", conf.Pipeline.Name), metrics).Run(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), rep.Dir)
		return nil
	}
	return cmd
}
