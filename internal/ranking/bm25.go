package ranking

import (
	"math"
	"strings"
)

// BM25 Okapi parameters.
const (
	DefaultK1      = 1.5
	DefaultB       = 0.75
	DefaultEpsilon = 0.25
)

// Tokenize lowercases s and splits it on runs of whitespace.
func Tokenize(s string) []string {
	return strings.Fields(strings.ToLower(s))
}

// BM25 is an Okapi BM25 model fitted to a fixed document set.
//
// Terms whose raw idf is negative (present in more than half of the
// documents) get epsilon times the mean idf instead.
type BM25 struct {
	k1, b   float64
	avgdl   float64
	docLens []float64
	freqs   []map[string]int
	idf     map[string]float64
}

// NewBM25 fits a model over the tokenized documents using the default
// parameters.
func NewBM25(docs [][]string) *BM25 {
	return NewBM25WithParams(docs, DefaultK1, DefaultB, DefaultEpsilon)
}

// NewBM25WithParams fits a model with explicit k1, b and epsilon.
func NewBM25WithParams(docs [][]string, k1, b, epsilon float64) *BM25 {
	m := &BM25{
		k1:      k1,
		b:       b,
		docLens: make([]float64, len(docs)),
		freqs:   make([]map[string]int, len(docs)),
		idf:     make(map[string]float64),
	}

	docFreq := make(map[string]int)
	total := 0
	for i, doc := range docs {
		total += len(doc)
		m.docLens[i] = float64(len(doc))

		tf := make(map[string]int, len(doc))
		for _, term := range doc {
			tf[term]++
		}
		m.freqs[i] = tf
		for term := range tf {
			docFreq[term]++
		}
	}
	if len(docs) > 0 {
		m.avgdl = float64(total) / float64(len(docs))
	}

	n := float64(len(docs))
	var idfSum float64
	var negative []string
	for term, df := range docFreq {
		idf := math.Log(n-float64(df)+0.5) - math.Log(float64(df)+0.5)
		m.idf[term] = idf
		idfSum += idf
		if idf < 0 {
			negative = append(negative, term)
		}
	}
	if len(m.idf) > 0 {
		eps := epsilon * idfSum / float64(len(m.idf))
		for _, term := range negative {
			m.idf[term] = eps
		}
	}

	return m
}

// Scores returns one score per fitted document, in document order. Every
// occurrence of a repeated query term contributes again.
func (m *BM25) Scores(query []string) []float64 {
	scores := make([]float64, len(m.freqs))
	if m.avgdl == 0 {
		return scores
	}

	for _, term := range query {
		idf, ok := m.idf[term]
		if !ok {
			continue
		}
		for i, tf := range m.freqs {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			norm := m.k1 * (1 - m.b + m.b*m.docLens[i]/m.avgdl)
			scores[i] += idf * (f * (m.k1 + 1) / (f + norm))
		}
	}
	return scores
}

// IDF returns the idf of term and whether the term occurs in the fitted set.
func (m *BM25) IDF(term string) (float64, bool) {
	v, ok := m.idf[term]
	return v, ok
}
