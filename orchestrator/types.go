package orchestrator

import "time"

// Stage names used in logs, metrics and the run report.
const (
	StageVAD      = "vad"
	StageWords    = "words"
	StageStrip    = "strip"
	StageTerms    = "terms"
	StageSpeakers = "speakers"
	StageRegions  = "regions"
	StageCutWords = "cut_words"
	StageCutTerms = "cut_terms"
)

// StageReport is the outcome of one stage: Kept out of Total records and the
// file it wrote, if any.
type StageReport struct {
	Stage    string        `json:"stage"`
	Kept     int           `json:"kept"`
	Total    int           `json:"total"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is everything a run produced.
type Report struct {
	RunID       string        `json:"run_id"`
	Dir         string        `json:"dir"`
	GeneratedAt time.Time     `json:"generated_at"`
	Stages      []StageReport `json:"stages"`
}

// Stage returns the report of the named stage.
func (r *Report) Stage(name string) (StageReport, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageReport{}, false
}
