package retrieval

import (
	"math"
	"sort"
)

// MaxFeatures caps the vocabulary size.
const MaxFeatures = 20000

type entry struct {
	term   int
	weight float64
}

// sparseVector is an L2-normalised row sorted by term id.
type sparseVector []entry

func (v sparseVector) dot(q map[int]float64) float64 {
	var sum float64
	for _, e := range v {
		if w, ok := q[e.term]; ok {
			sum += e.weight * w
		}
	}
	return sum
}

// Vectorizer holds a fitted vocabulary and smoothed inverse document frequencies.
type Vectorizer struct {
	vocab map[string]int
	idf   []float64
}

// Fit learns the vocabulary and idf weights from the corpus. Terms are ranked
// by total corpus frequency when the vocabulary exceeds maxFeatures, ties
// broken alphabetically.
func Fit(corpus []string, maxFeatures int) (*Vectorizer, []map[string]int) {
	counts := make([]map[string]int, len(corpus))
	total := map[string]int{}
	df := map[string]int{}
	for i, doc := range corpus {
		tf := map[string]int{}
		for _, tok := range analyze(doc) {
			tf[tok]++
		}
		counts[i] = tf
		for term, c := range tf {
			total[term] += c
			df[term]++
		}
	}

	terms := make([]string, 0, len(total))
	for term := range total {
		terms = append(terms, term)
	}
	sort.Strings(terms)
	if maxFeatures > 0 && len(terms) > maxFeatures {
		sort.SliceStable(terms, func(i, j int) bool { return total[terms[i]] > total[terms[j]] })
		terms = terms[:maxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(corpus))
	v := &Vectorizer{vocab: make(map[string]int, len(terms)), idf: make([]float64, len(terms))}
	for i, term := range terms {
		v.vocab[term] = i
		v.idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return v, counts
}

// VocabularySize returns the number of retained terms.
func (v *Vectorizer) VocabularySize() int {
	return len(v.vocab)
}

func (v *Vectorizer) weigh(tf map[string]int) sparseVector {
	vec := make(sparseVector, 0, len(tf))
	var norm float64
	for term, c := range tf {
		id, ok := v.vocab[term]
		if !ok {
			continue
		}
		w := float64(c) * v.idf[id]
		vec = append(vec, entry{term: id, weight: w})
		norm += w * w
	}
	if norm > 0 {
		norm = math.Sqrt(norm)
		for i := range vec {
			vec[i].weight /= norm
		}
	}
	sort.Slice(vec, func(i, j int) bool { return vec[i].term < vec[j].term })
	return vec
}

// transform vectorises text with the fitted vocabulary.
func (v *Vectorizer) transform(text string) sparseVector {
	tf := map[string]int{}
	for _, tok := range analyze(text) {
		tf[tok]++
	}
	return v.weigh(tf)
}
