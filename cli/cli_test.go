package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/maastricht-university/samediff-pipeline/archive"
)

const transcript = `s0101a 0.00 1.00 SIL
s0101a 1.00 2.00 a
s0101a 2.00 3.00 b
s0101a 4.00 5.00 c
nchlt_tso_001m_0003 0.00 0.60 xitsonga
`

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestVADCommand(t *testing.T) {
	dir := t.TempDir()
	wrd := writeFile(t, dir, "english.wrd", transcript)
	out := filepath.Join(dir, "vad.txt")
	if _, err := runCLI(t, "vad", "--alignment", wrd, "--out", out); err != nil {
		t.Fatalf("vad: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "001m_nchlt-tso-0003 0 61\ns01_01a 100 301\ns01_01a 400 501\n"
	if string(got) != want {
		t.Errorf("vad output = %q, want %q", got, want)
	}
}

func TestVADCommandSeconds(t *testing.T) {
	dir := t.TempDir()
	wrd := writeFile(t, dir, "english.wrd", transcript)
	out := filepath.Join(dir, "vad.txt")
	if _, err := runCLI(t, "vad", "--alignment", wrd, "--out", out, "--seconds"); err != nil {
		t.Fatalf("vad: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "001m_nchlt-tso-0003 0 0.6\ns01_01a 1 3\ns01_01a 4 5\n"
	if string(got) != want {
		t.Errorf("vad output = %q, want %q", got, want)
	}
}

func TestItemsCommand(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "words.npz")
	a := archive.Archive{
		"because_s01_01a_000010-000071": mat.NewDense(61, 2, nil),
		"the_s02_01a_000150-000160":     mat.NewDense(10, 2, nil),
	}
	if err := archive.Save(src, a); err != nil {
		t.Fatalf("Save: %v", err)
	}
	out, err := runCLI(t, "items", "--archive", src, "--min-length", "10")
	if err != nil {
		t.Fatalf("items: %v", err)
	}
	if want := "because_s01_01a_000010-000071\tbecause\ts01\t61\n"; out != want {
		t.Errorf("items output = %q, want %q", out, want)
	}
}

func TestWordsCommandFlagsAndEnv(t *testing.T) {
	dir := t.TempDir()
	wrd := writeFile(t, dir, "english.wrd", transcript)
	out := filepath.Join(dir, "words.list")

	t.Setenv("SAMEDIFF_MIN_CHARS", "1")
	if _, err := runCLI(t, "words", "--alignment", wrd, "--out", out, "--min-frames", "100"); err != nil {
		t.Fatalf("words: %v", err)
	}
	got, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	want := "a_s01_01a_000100-000201\nb_s01_01a_000200-000301\nc_s01_01a_000400-000501\n"
	if string(got) != want {
		t.Errorf("words output = %q, want %q", got, want)
	}
}

func TestMissingFlag(t *testing.T) {
	if _, err := runCLI(t, "words", "--out", filepath.Join(t.TempDir(), "x")); err == nil {
		t.Fatal("expected error for missing --alignment")
	}
}

func TestStripTermsCut(t *testing.T) {
	dir := t.TempDir()
	wrd := writeFile(t, dir, "english.wrd", transcript)
	raw := writeFile(t, dir, "pairs.txt", "s01_01a 0.9 1.5 s01_01a 4.2 4.8\n")
	clean := filepath.Join(dir, "pairs.clean")
	terms := filepath.Join(dir, "terms.list")

	if _, err := runCLI(t, "strip", "--alignment", wrd, "--pairs", raw, "--out", clean); err != nil {
		t.Fatalf("strip: %v", err)
	}
	if got, _ := os.ReadFile(clean); string(got) != "? s01_01a 100 150 s01_01a 420 480\n" {
		t.Fatalf("clean = %q", got)
	}
	if _, err := runCLI(t, "terms", "--pairs", clean, "--out", terms); err != nil {
		t.Fatalf("terms: %v", err)
	}

	m := mat.NewDense(1000, 1, nil)
	for i := 0; i < 1000; i++ {
		m.Set(i, 0, float64(i))
	}
	src := filepath.Join(dir, "vad.npz")
	if err := archive.Save(src, archive.Archive{"s01_01a_000000-001000": m}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	seg := filepath.Join(dir, "terms.npz")
	if _, err := runCLI(t, "cut", "--archive", src, "--list", terms, "--out", seg, "--workers", "2"); err != nil {
		t.Fatalf("cut: %v", err)
	}
	a, err := archive.Load(seg)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := a["?_s01_01a_000420-000480"]; got == nil || got.At(0, 0) != 420 {
		t.Errorf("cut archive keys = %v", a.Keys())
	}
}
