// Package alignment reads forced-alignment transcripts and folds them into
// per-utterance voice activity regions.
package alignment

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// Token is one line of a forced-alignment transcript.
type Token struct {
	Utterance string  // raw utterance label
	Start     float64 // seconds
	End       float64 // seconds
	Label     string
}

// IsSilence reports whether label marks silence or spoken noise.
func IsSilence(label string) bool { return label == "SIL" || label == "SPN" }

// ReadTokens parses whitespace-delimited "utterance start end label" lines.
// Blank lines are skipped; any other line without exactly four fields or
// with non-numeric times fails the whole read.
func ReadTokens(r io.Reader, source string) ([]Token, error) {
	var toks []Token
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := sc.Text()
		fields := strings.Fields(text)
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, &segment.ParseError{Source: source, Line: line, Text: text,
				Reason: fmt.Sprintf("want 4 fields, got %d", len(fields))}
		}
		start, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, &segment.ParseError{Source: source, Line: line, Text: text, Reason: "bad start time"}
		}
		end, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &segment.ParseError{Source: source, Line: line, Text: text, Reason: "bad end time"}
		}
		toks = append(toks, Token{Utterance: fields[0], Start: start, End: end, Label: fields[3]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", source, err)
	}
	return toks, nil
}

// ReadTokensFile opens path and parses it with ReadTokens.
func ReadTokensFile(path string) ([]Token, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open alignment: %w", err)
	}
	defer f.Close()
	return ReadTokens(f, path)
}
