package archive

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/maastricht-university/samediff-pipeline/alignment"
	"github.com/maastricht-university/samediff-pipeline/segment"
)

// VADStats reports how many utterances of the VAD table had features.
type VADStats struct {
	Utterances int
	Missing    int
	Regions    int
}

// ExtractVAD keeps only the voice-active regions of a whole-utterance
// archive keyed by utterance key. Each region becomes one entry keyed
// utterance_SSSSSS-EEEEEE.
func ExtractVAD(feats Archive, vad alignment.Table) (Archive, VADStats) {
	out := Archive{}
	var st VADStats
	for _, utt := range vad.Keys() {
		st.Utterances++
		m, ok := feats[utt]
		if !ok {
			st.Missing++
			continue
		}
		for _, iv := range vad[utt] {
			if r := rows(m, iv.Start, iv.End); r != nil {
				out[segment.ArchiveKey{Utterance: utt, Interval: iv}.String()] = r
				st.Regions++
			}
		}
	}
	return out, st
}

// SpeakerMVN normalises every matrix to zero mean and unit variance per
// dimension, with statistics pooled over all frames of the same speaker.
// Dimensions with zero variance are only mean-centred.
func SpeakerMVN(a Archive) Archive {
	bySpeaker := map[string][]string{}
	for _, k := range a.Keys() {
		spk := segment.Speaker(k)
		bySpeaker[spk] = append(bySpeaker[spk], k)
	}

	out := make(Archive, len(a))
	for _, keys := range bySpeaker {
		mean, std := pooledMoments(a, keys)
		for _, k := range keys {
			r, c := a[k].Dims()
			n := mat.NewDense(r, c, nil)
			n.Apply(func(_, j int, v float64) float64 {
				if std[j] == 0 {
					return v - mean[j]
				}
				return (v - mean[j]) / std[j]
			}, a[k])
			out[k] = n
		}
	}
	return out
}

// pooledMoments returns per-dimension population mean and standard deviation
// over all rows of the given entries.
func pooledMoments(a Archive, keys []string) (mean, std []float64) {
	_, c := a[keys[0]].Dims()
	mean = make([]float64, c)
	std = make([]float64, c)
	var col []float64
	for j := 0; j < c; j++ {
		col = col[:0]
		for _, k := range keys {
			col = append(col, mat.Col(nil, j, a[k])...)
		}
		n := float64(len(col))
		mean[j] = stat.Mean(col, nil)
		if n > 1 {
			std[j] = math.Sqrt(stat.Variance(col, nil) * (n - 1) / n)
		}
	}
	return mean, std
}

// Item is one entry of a segment-keyed archive with its label and speaker
// recovered from the key.
type Item struct {
	Key      string
	Label    string
	Speaker  string
	Features *mat.Dense
}

// Len returns the number of frames.
func (it Item) Len() int {
	r, _ := it.Features.Dims()
	return r
}

// Items lists the entries of a segment-keyed archive in key order. When
// minLength is positive, entries of at most minLength frames are skipped.
func Items(a Archive, minLength int) []Item {
	var out []Item
	for _, k := range a.Keys() {
		m := a[k]
		if r, _ := m.Dims(); minLength > 0 && r <= minLength {
			continue
		}
		fields := strings.SplitN(k, "_", 3)
		it := Item{Key: k, Label: fields[0], Features: m}
		if len(fields) > 1 {
			it.Speaker = segment.Speaker(fields[1])
		}
		out = append(out, it)
	}
	return out
}
