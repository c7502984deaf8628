package alignment

import (
	"sort"

	"github.com/maastricht-university/samediff-pipeline/segment"
)

// Span is a voice-active run in seconds.
type Span struct {
	Start float64
	End   float64
}

// SpanTable maps utterance keys to their voice-active runs in seconds.
type SpanTable map[string][]Span

// Keys returns the utterance keys in sorted order.
func (t SpanTable) Keys() []string { return sortedKeys(t) }

// Table maps utterance keys to their voice-active frame intervals, in
// transcript order. Every utterance seen in the transcript has an entry,
// possibly empty.
type Table map[string][]segment.Interval

// Keys returns the utterance keys in sorted order.
func (t Table) Keys() []string { return sortedKeys(t) }

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// NumIntervals returns the total number of intervals across utterances.
func (t Table) NumIntervals() int {
	n := 0
	for _, ivs := range t {
		n += len(ivs)
	}
	return n
}

// runState is the fold accumulator: the open run, and the utterance and end
// time of the previous speech token.
type runState struct {
	open     bool
	runStart float64
	prevKey  string
	prevEnd  float64
}

func (s runState) close(t SpanTable) {
	if s.open {
		t[s.prevKey] = append(t[s.prevKey], Span{Start: s.runStart, End: s.prevEnd})
	}
}

func (s runState) step(t SpanTable, key string, tok Token) runState {
	if !s.open || s.prevEnd != tok.Start || s.prevKey != key {
		s.close(t)
		s.open = true
		s.runStart = tok.Start
	}
	s.prevKey = key
	s.prevEnd = tok.End
	return s
}

// Spans folds tokens into merged voice-active runs. Tokens must be ordered by
// utterance then time; runs merge when a speech token starts exactly where the
// previous one ended. Silence tokens neither start nor extend a run.
func Spans(tokens []Token, keyer segment.Keyer) SpanTable {
	t := SpanTable{}
	var s runState
	for _, tok := range tokens {
		key := keyer.UttKey(tok.Utterance)
		if _, ok := t[key]; !ok {
			t[key] = []Span{}
		}
		if IsSilence(tok.Label) {
			continue
		}
		s = s.step(t, key, tok)
	}
	s.close(t)
	return t
}

// VAD folds tokens into frame intervals. Start and end times are rounded to
// frames and the end is incremented by one so that it is excluded.
func VAD(tokens []Token, keyer segment.Keyer) Table {
	spans := Spans(tokens, keyer)
	t := make(Table, len(spans))
	for key, ss := range spans {
		ivs := make([]segment.Interval, 0, len(ss))
		for _, sp := range ss {
			ivs = append(ivs, segment.Interval{
				Start: segment.RoundFrame(sp.Start),
				End:   segment.RoundFrame(sp.End) + 1,
			})
		}
		t[key] = ivs
	}
	return t
}

// ReadVADFile reads a transcript and returns its frame-indexed VAD table.
func ReadVADFile(path string, keyer segment.Keyer) (Table, error) {
	toks, err := ReadTokensFile(path)
	if err != nil {
		return nil, err
	}
	return VAD(toks, keyer), nil
}

// ReadSpansFile reads a transcript and returns second-valued VAD runs.
func ReadSpansFile(path string, keyer segment.Keyer) (SpanTable, error) {
	toks, err := ReadTokensFile(path)
	if err != nil {
		return nil, err
	}
	return Spans(toks, keyer), nil
}
