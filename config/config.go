package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

type Pipeline struct {
	Name   string `yaml:"name"`
	LogLvl string `yaml:"log_level"`
}

// Paths are the inputs and output directory of one run. Empty inputs skip
// the stages that need them.
type Paths struct {
	Alignment string `yaml:"alignment"` // forced-alignment transcript
	Pairs     string `yaml:"pairs"`     // discovered pairs, 9 or 6 field encoding
	Speakers  string `yaml:"speakers"`  // speaker allowlist
	Features  string `yaml:"features"`  // npz feature archive
	Outputs   string `yaml:"outputs"`
}

type Words struct {
	MinFrames int `yaml:"min_frames"`
	MinChars  int `yaml:"min_chars"`
}

type Pairs struct {
	ExcludedUtterances []string `yaml:"excluded_utterances"`
	AltPrefixes        []string `yaml:"alt_prefixes"`
}

type Archive struct {
	ExtractVAD bool `yaml:"extract_vad"` // features are whole utterances keyed by utterance
	SpeakerMVN bool `yaml:"speaker_mvn"`
	Strict     bool `yaml:"strict"`
	Workers    int  `yaml:"workers"`
}

type Root struct {
	Pipeline Pipeline `yaml:"pipeline"`
	Paths    Paths    `yaml:"paths"`
	Words    Words    `yaml:"words"`
	Pairs    Pairs    `yaml:"pairs"`
	Archive  Archive  `yaml:"archive"`
}

// Default returns the configuration used for fields a file leaves unset.
func Default() *Root {
	return &Root{
		Pipeline: Pipeline{Name: "samediff", LogLvl: "info"},
		Paths:    Paths{Outputs: "outputs"},
		Words:    Words{MinFrames: 50, MinChars: 5},
		Pairs:    Pairs{AltPrefixes: append([]string(nil), segment.DefaultAltPrefixes...)},
		Archive:  Archive{Workers: 1},
	}
}

// Keyer returns the utterance key rules selected by the configuration.
func (r *Root) Keyer() segment.Keyer {
	return segment.Keyer{AltPrefixes: r.Pairs.AltPrefixes}
}

// Load decodes the first readable config among the CONFIG_ENV guess paths.
func Load() (*Root, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	guess := []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	}
	var err error
	for _, p := range guess {
		var cfg *Root
		if cfg, err = LoadFile(p); err == nil {
			return cfg, nil
		}
	}
	return nil, err
}

// LoadFile decodes and validates the YAML config at path.
func LoadFile(path string) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()
	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config over the defaults and validates it.
func LoadFromReader(r io.Reader) (*Root, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

// Validate returns every problem found in cfg, joined.
func Validate(cfg *Root) error {
	var errs []error
	if cfg.Pipeline.LogLvl != "" && !validLevels[cfg.Pipeline.LogLvl] {
		errs = append(errs, fmt.Errorf("pipeline.log_level %q is invalid", cfg.Pipeline.LogLvl))
	}
	if cfg.Paths.Alignment == "" {
		errs = append(errs, errors.New("paths.alignment is required"))
	}
	if cfg.Paths.Outputs == "" {
		errs = append(errs, errors.New("paths.outputs is required"))
	}
	if cfg.Paths.Speakers != "" && cfg.Paths.Pairs == "" {
		errs = append(errs, errors.New("paths.speakers needs paths.pairs"))
	}
	if cfg.Words.MinFrames < 0 {
		errs = append(errs, fmt.Errorf("words.min_frames %d is negative", cfg.Words.MinFrames))
	}
	if cfg.Words.MinChars < 0 {
		errs = append(errs, fmt.Errorf("words.min_chars %d is negative", cfg.Words.MinChars))
	}
	if cfg.Archive.Workers < 0 {
		errs = append(errs, fmt.Errorf("archive.workers %d is negative", cfg.Archive.Workers))
	}
	return errors.Join(errs...)
}
