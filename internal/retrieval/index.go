// Package retrieval ranks chunk texts against a query with a TF-IDF vector space.
package retrieval

import "sort"

// Index is a fitted TF-IDF space over an ordered set of texts. Row i of the
// document matrix corresponds to texts[i].
type Index struct {
	texts      []string
	vectorizer *Vectorizer
	rows       []sparseVector
}

// Build fits an index over texts. An empty corpus, or one with no terms left
// after stop-word removal, yields a degenerate index that matches nothing.
func Build(texts []string) *Index {
	idx := &Index{texts: texts}
	if len(texts) == 0 {
		return idx
	}
	v, counts := Fit(texts, MaxFeatures)
	if v.VocabularySize() == 0 {
		return idx
	}
	idx.vectorizer = v
	idx.rows = make([]sparseVector, len(texts))
	for i, tf := range counts {
		idx.rows[i] = v.weigh(tf)
	}
	return idx
}

// Len returns the number of indexed texts.
func (idx *Index) Len() int {
	return len(idx.texts)
}

// Degenerate reports whether every query returns no results.
func (idx *Index) Degenerate() bool {
	return idx.vectorizer == nil
}

// Similarities returns the cosine similarity of query to every row.
func (idx *Index) Similarities(query string) []float64 {
	if idx.Degenerate() {
		return nil
	}
	q := map[int]float64{}
	for _, e := range idx.vectorizer.transform(query) {
		q[e.term] = e.weight
	}
	sims := make([]float64, len(idx.rows))
	if len(q) == 0 {
		return sims
	}
	for i, row := range idx.rows {
		sims[i] = row.dot(q)
	}
	return sims
}

// Query returns up to k row positions ordered by descending similarity, with
// ties resolved by lower position. Positions with similarity <= 0 are dropped,
// so fewer than k results is normal.
func (idx *Index) Query(query string, k int) []int {
	if idx.Degenerate() || k <= 0 {
		return []int{}
	}
	sims := idx.Similarities(query)
	order := make([]int, len(sims))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return sims[order[a]] > sims[order[b]] })
	if len(order) > k {
		order = order[:k]
	}
	out := make([]int, 0, len(order))
	for _, i := range order {
		if sims[i] > 0 {
			out = append(out, i)
		}
	}
	return out
}
