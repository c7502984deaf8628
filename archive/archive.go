// Package archive stores keyed feature matrices and cuts segment archives
// out of utterance-level ones.
//
// Archives are persisted as numpy .npz files so that they can be consumed by
// the training and evaluation tools unchanged.
package archive

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sbinet/npyio/npz"
	"gonum.org/v1/gonum/mat"
)

// Archive maps keys to frames x dimension feature matrices. Archives are
// never mutated once loaded; every operation returns a new one.
type Archive map[string]*mat.Dense

// Keys returns the archive keys in sorted order.
func (a Archive) Keys() []string {
	keys := make([]string, 0, len(a))
	for k := range a {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Load reads every array of the npz archive at path.
func Load(path string) (Archive, error) {
	r, err := npz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", path, err)
	}
	defer r.Close()

	a := Archive{}
	for _, name := range r.Keys() {
		var m mat.Dense
		if err := r.Read(name, &m); err != nil {
			return nil, fmt.Errorf("read %s[%s]: %w", path, name, err)
		}
		a[strings.TrimSuffix(name, ".npy")] = &m
	}
	return a, nil
}

// Save writes a to path. The archive is assembled in a temporary file in the
// destination directory and renamed into place, so a failed write never
// leaves a partial archive behind.
func Save(path string, a Archive) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".archive-*.npz")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := npz.NewWriter(tmp)
	for _, k := range a.Keys() {
		if err = w.Write(k, a[k]); err != nil {
			return fmt.Errorf("write %s[%s]: %w", path, k, err)
		}
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("close archive %s: %w", path, err)
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadKeys reads a list file with one segment key per line.
func ReadKeys(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open list: %w", err)
	}
	defer f.Close()

	var keys []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if k := strings.TrimSpace(sc.Text()); k != "" {
			keys = append(keys, k)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return keys, nil
}

// rows returns m[lo:hi] as a fresh matrix, clamping hi to the matrix length.
// It returns nil when the clamped range is empty.
func rows(m *mat.Dense, lo, hi int) *mat.Dense {
	r, c := m.Dims()
	hi = min(hi, r)
	if lo < 0 || hi <= lo {
		return nil
	}
	return mat.DenseCopyOf(m.Slice(lo, hi, 0, c))
}
