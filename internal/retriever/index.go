package retriever

import (
	"math"
	"strings"
)

// tfidfIndex is the immutable term-weight model of one corpus. Vectors and
// norms are positional: entry i belongs to the corpus document at position
// i. A rebuilt corpus gets a brand-new index; there is no mutation path.
type tfidfIndex struct {
	vectors []map[string]float64
	norms   []float64
	df      map[string]int
	total   int
}

// buildIndex trains TF-IDF weights over unigrams and bigrams of the
// whitespace-tokenized documents. Weights use the smoothed formula
// tf * (ln((total+1)/(df+1)) + 1); document norms are kept for cosine
// scoring.
func buildIndex(docs []string) *tfidfIndex {
	idx := &tfidfIndex{
		vectors: make([]map[string]float64, len(docs)),
		norms:   make([]float64, len(docs)),
		df:      make(map[string]int),
		total:   len(docs),
	}
	for i, doc := range docs {
		tf := make(map[string]float64)
		for _, term := range ngrams(doc) {
			tf[term]++
		}
		for term := range tf {
			idx.df[term]++
		}
		idx.vectors[i] = tf
	}
	for i, tf := range idx.vectors {
		var norm float64
		for term, freq := range tf {
			weight := idx.weight(term, freq)
			tf[term] = weight
			norm += weight * weight
		}
		idx.norms[i] = math.Sqrt(norm)
	}
	return idx
}

func (idx *tfidfIndex) weight(term string, freq float64) float64 {
	df := float64(idx.df[term])
	if df == 0 {
		return 0
	}
	idf := math.Log((float64(idx.total)+1)/(df+1)) + 1
	return freq * idf
}

// score computes the cosine similarity of the already-normalized query
// against every document, returned by corpus position. Out-of-vocabulary
// query terms weigh zero; a zero-norm side scores zero rather than erroring.
func (idx *tfidfIndex) score(query string) []float64 {
	sims := make([]float64, idx.total)
	terms := ngrams(query)
	if len(terms) == 0 {
		return sims
	}
	qtf := make(map[string]float64)
	for _, term := range terms {
		qtf[term]++
	}
	var qnorm float64
	for term, freq := range qtf {
		weight := idx.weight(term, freq)
		qtf[term] = weight
		qnorm += weight * weight
	}
	qnorm = math.Sqrt(qnorm)
	if qnorm == 0 {
		return sims
	}
	for i, dv := range idx.vectors {
		if len(dv) == 0 {
			continue
		}
		var dot float64
		for term, weight := range qtf {
			if weight == 0 {
				continue
			}
			dot += weight * dv[term]
		}
		denom := qnorm * idx.norms[i]
		if denom == 0 {
			continue
		}
		sims[i] = dot / denom
	}
	return sims
}

// ngrams expands whitespace tokens into unigrams plus adjacent bigrams; a
// bigram key is its two tokens joined by a single space.
func ngrams(text string) []string {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil
	}
	terms := make([]string, 0, 2*len(tokens)-1)
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}
