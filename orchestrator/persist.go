package orchestrator

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// mkRunDir creates a new run_<time>_<suffix> directory under outputsRoot.
func mkRunDir(outputsRoot string) (rid, dir string, err error) {
	if err := os.MkdirAll(outputsRoot, 0o755); err != nil {
		return "", "", err
	}
	dir, err = os.MkdirTemp(outputsRoot, "run_"+time.Now().Format("20060102-150405")+"_")
	if err != nil {
		return "", "", err
	}
	return filepath.Base(dir), dir, nil
}

// persist writes the run report next to the stage outputs. A run directory
// without report.json never finished.
func persist(r *Report) (string, error) {
	r.GeneratedAt = time.Now()
	path := filepath.Join(r.Dir, ReportFile)
	err := WriteFile(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	})
	if err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}
