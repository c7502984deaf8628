package archive

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/segment"
)

// rampMatrix returns an n x dim matrix whose row i is filled with base+i.
func rampMatrix(n, dim int, base float64) *mat.Dense {
	m := mat.NewDense(n, dim, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < dim; j++ {
			m.Set(i, j, base+float64(i))
		}
	}
	return m
}

func TestCutExtractsLocalRows(t *testing.T) {
	src := Archive{"s01_01a_000000-001000": rampMatrix(1000, 3, 0)}
	out, st, err := Cut(context.Background(), src, []string{"label_s01_01a_000100-000200"}, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 1 || st.Total != 1 {
		t.Fatalf("stats = %+v", st)
	}
	m := out["label_s01_01a_000100-000200"]
	if r, c := m.Dims(); r != 100 || c != 3 {
		t.Fatalf("dims = %d x %d", r, c)
	}
	if got := m.At(0, 0); got != 100 {
		t.Errorf("row 0 = %v, want 100", got)
	}
	if got := m.At(99, 2); got != 199 {
		t.Errorf("row 99 = %v, want 199", got)
	}
}

func TestCutUsesOffsetRegion(t *testing.T) {
	src := Archive{
		"s01_01a_000000-000100": rampMatrix(100, 2, 0),
		"s01_01a_000300-000400": rampMatrix(100, 2, 300),
		"s02_01a_000300-000400": rampMatrix(100, 2, 9000),
	}
	targets := []string{
		"w_s01_01a_000310-000320",
		"w_s01_01a_000150-000160", // between regions
		"w_s03_01a_000000-000010", // unknown utterance
	}
	out, st, err := Cut(context.Background(), src, targets, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 1 || st.Total != 3 || len(out) != 1 {
		t.Fatalf("stats = %+v, out %d", st, len(out))
	}
	if got := out["w_s01_01a_000310-000320"].At(0, 0); got != 310 {
		t.Errorf("row 0 = %v, want 310", got)
	}
}

func TestCutLooseAndStrict(t *testing.T) {
	src := Archive{"s01_01a_000000-000100": rampMatrix(100, 1, 0)}
	targets := []string{"w_s01_01a_000090-000120"}

	out, st, err := Cut(context.Background(), src, targets, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 1 {
		t.Fatalf("loose stats = %+v", st)
	}
	if r, _ := out[targets[0]].Dims(); r != 10 {
		t.Errorf("loose rows = %d, want 10 (clamped)", r)
	}

	_, st, err = Cut(context.Background(), src, targets, CutOptions{Strict: true})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 0 || st.Total != 1 {
		t.Errorf("strict stats = %+v", st)
	}
}

func TestCutStartAtSourceEnd(t *testing.T) {
	src := Archive{"s01_01a_000100-000110": rampMatrix(10, 1, 100)}
	targets := []string{
		"w_s01_01a_000110-000120",
		"w_s01_01a_000105-000108",
	}
	out, st, err := Cut(context.Background(), src, targets, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 2 || st.Total != 2 {
		t.Errorf("stats = %+v, want 2 of 2", st)
	}
	if _, ok := out["w_s01_01a_000110-000120"]; ok {
		t.Error("empty slice written to the result")
	}
	if m := out["w_s01_01a_000105-000108"]; m == nil || m.At(0, 0) != 105 {
		t.Errorf("result keys = %v", out.Keys())
	}
}

func TestCutMatchesWholeUtterance(t *testing.T) {
	src := Archive{"s01_01_000000-000100": rampMatrix(100, 1, 0)}
	_, st, err := Cut(context.Background(), src, []string{"w_s01_01a_000010-000020"}, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if st.Matched != 0 {
		t.Errorf("utterance s01_01a matched source s01_01: %+v", st)
	}
}

func TestCutParallelMatchesSequential(t *testing.T) {
	src := Archive{}
	var targets []string
	for u := 0; u < 5; u++ {
		utt := segment.ArchiveKey{Utterance: "s0" + string(rune('1'+u)) + "_01a", Interval: segment.Interval{Start: 0, End: 500}}
		src[utt.String()] = rampMatrix(500, 2, float64(u*1000))
		for s := 0; s < 400; s += 50 {
			targets = append(targets, segment.SegmentKey{Label: "w", Utterance: utt.Utterance,
				Interval: segment.Interval{Start: s, End: s + 30}}.String())
		}
	}
	seq, seqSt, err := Cut(context.Background(), src, targets, CutOptions{})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	par, parSt, err := Cut(context.Background(), src, targets, CutOptions{Workers: 4})
	if err != nil {
		t.Fatalf("Cut: %v", err)
	}
	if seqSt != parSt || len(seq) != len(par) {
		t.Fatalf("stats differ: %+v vs %+v", seqSt, parSt)
	}
	for k, m := range seq {
		if !mat.Equal(m, par[k]) {
			t.Errorf("%s differs", k)
		}
	}
}

func TestCutMalformedKeys(t *testing.T) {
	src := Archive{"s01_01a": rampMatrix(10, 1, 0)}
	if _, _, err := Cut(context.Background(), src, nil, CutOptions{}); !errors.Is(err, segment.ErrMalformedKey) {
		t.Errorf("err = %v, want ErrMalformedKey", err)
	}
	src = Archive{"s01_01a_000000-000010": rampMatrix(10, 1, 0)}
	if _, _, err := Cut(context.Background(), src, []string{"nope"}, CutOptions{}); !errors.Is(err, segment.ErrMalformedKey) {
		t.Errorf("err = %v, want ErrMalformedKey", err)
	}
}

func TestCutCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	src := Archive{"s01_01a_000000-000010": rampMatrix(10, 1, 0)}
	if _, _, err := Cut(ctx, src, []string{"w_s01_01a_000001-000002"}, CutOptions{}); !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestExtractVAD(t *testing.T) {
	feats := Archive{"s01_01a": rampMatrix(600, 2, 0)}
	vad := alignment.Table{
		"s01_01a": {{Start: 100, End: 301}, {Start: 400, End: 501}},
		"s02_01a": {{Start: 0, End: 10}},
	}
	out, st := ExtractVAD(feats, vad)
	if st.Utterances != 2 || st.Missing != 1 || st.Regions != 2 {
		t.Fatalf("stats = %+v", st)
	}
	m, ok := out["s01_01a_000100-000301"]
	if !ok {
		t.Fatalf("missing region, keys %v", out.Keys())
	}
	if r, _ := m.Dims(); r != 201 || m.At(0, 0) != 100 {
		t.Errorf("region rows = %d, first = %v", r, m.At(0, 0))
	}
}

func TestSpeakerMVN(t *testing.T) {
	a := Archive{
		"s01_01a_000000-000002": mat.NewDense(2, 2, []float64{1, 5, 3, 5}),
		"s01_02a_000000-000002": mat.NewDense(2, 2, []float64{1, 5, 3, 5}),
		"s02_01a_000000-000001": mat.NewDense(1, 2, []float64{7, 7}),
	}
	out := SpeakerMVN(a)
	m := out["s01_01a_000000-000002"]
	// Column 0 has mean 2 and population std 1; column 1 is constant.
	want := mat.NewDense(2, 2, []float64{-1, 0, 1, 0})
	if !mat.EqualApprox(m, want, 1e-12) {
		t.Errorf("normalised = %v, want %v", mat.Formatted(m), mat.Formatted(want))
	}
	if got := out["s02_01a_000000-000001"].At(0, 0); got != 0 {
		t.Errorf("single-frame speaker = %v, want 0", got)
	}
	if a["s01_01a_000000-000002"].At(0, 0) != 1 {
		t.Error("input archive was modified")
	}
}

func TestItems(t *testing.T) {
	a := Archive{
		"people_s01_01a_000000-000060": rampMatrix(60, 1, 0),
		"because_s02_01a_000000-000010": rampMatrix(10, 1, 0),
	}
	items := Items(a, 10)
	if len(items) != 1 {
		t.Fatalf("items = %d, want 1", len(items))
	}
	if it := items[0]; it.Label != "people" || it.Speaker != "s01" || it.Len() != 60 {
		t.Errorf("item = %+v", it)
	}
	if got := Items(a, 0); len(got) != 2 || got[0].Label != "because" {
		t.Errorf("unfiltered items = %v", got)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out", "test.npz")
	a := Archive{
		"s01_01a_000000-000010": rampMatrix(10, 3, 0),
		"s02_01a_000005-000009": rampMatrix(4, 3, 5),
	}
	if err := Save(path, a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != len(a) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(a))
	}
	for k, m := range a {
		if !mat.Equal(m, got[k]) {
			t.Errorf("%s differs after round trip", k)
		}
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected only the archive in output dir, got %d entries", len(entries))
	}
}

func TestReadKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list")
	if err := os.WriteFile(path, []byte("a_s01_01a_000001-000002\n\n b_s01_01a_000003-000004 \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	keys, err := ReadKeys(path)
	if err != nil {
		t.Fatalf("ReadKeys: %v", err)
	}
	if len(keys) != 2 || keys[1] != "b_s01_01a_000003-000004" {
		t.Errorf("keys = %v", keys)
	}
}
