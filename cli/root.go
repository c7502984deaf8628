// Package cli wires the pipeline stages to cobra commands. Every flag can
// also be set through a SAMEDIFF_* environment variable.
package cli

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

const envPrefix = "SAMEDIFF"

var log = logrus.New()

// NewRootCommand builds the samediff command tree.
func NewRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "samediff",
		Short:         "Extract voice-active segments and same-different word archives",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	root.PersistentFlags().StringSlice("alt-prefix", segment.DefaultAltPrefixes, "utterance label prefixes using the underscore-field key rule")

	rv := bind(root.PersistentFlags())
	root.PersistentPreRunE = func(cmd *cobra.Command, _ []string) error {
		lvl, err := logrus.ParseLevel(rv.GetString("log-level"))
		if err != nil {
			return err
		}
		log.SetLevel(lvl)
		log.SetOutput(cmd.ErrOrStderr())
		return nil
	}

	keyer := func() segment.Keyer { return segment.Keyer{AltPrefixes: rv.GetStringSlice("alt-prefix")} }
	root.AddCommand(
		newVADCommand(keyer),
		newWordsCommand(keyer),
		newStripCommand(keyer),
		newTermsCommand(),
		newSpeakersCommand(),
		newPrepareCommand(keyer),
		newCutCommand(),
		newItemsCommand(),
		newRunCommand(),
	)
	return root
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		log.Error(err)
	}
	return err
}

// bind returns a viper instance reading the given flags, falling back to
// SAMEDIFF_<FLAG_NAME> environment variables.
func bind(fs *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(fs)
	return v
}

// stats logs the "N out of M" summary of a stage.
func stats(stage string, kept, total int) {
	log.WithFields(logrus.Fields{"stage": stage, "kept": kept, "total": total}).
		Infof("%s: %d out of %d", stage, kept, total)
}
