package orchestrator

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
)

// stage runs fn, then logs and records its counts. fn returns the report
// fields it knows; name and duration are filled in here.
func (p *Pipeline) stage(ctx context.Context, name string, fn func() (StageReport, error)) (StageReport, error) {
	if err := ctx.Err(); err != nil {
		return StageReport{}, err
	}
	start := time.Now()
	rep, err := fn()
	if err != nil {
		return StageReport{}, fmt.Errorf("%s: %w", name, err)
	}
	rep.Stage = name
	rep.Duration = time.Since(start)
	p.report.Stages = append(p.report.Stages, rep)

	if p.metrics != nil {
		p.metrics.RecordStage(ctx, name, rep.Kept, rep.Total, rep.Duration)
	}
	p.log.WithFields(logrus.Fields{
		"stage":  name,
		"kept":   rep.Kept,
		"total":  rep.Total,
		"output": rep.Output,
	}).Infof("%s: %d out of %d", name, rep.Kept, rep.Total)
	return rep, nil
}

// WriteFile writes path through fn via a temporary file that is renamed into
// place only when fn succeeds.
func WriteFile(path string, fn func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()
	if err = fn(tmp); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
