package classifier

import (
	"encoding/json"
	"math"
	"sort"
	"strings"
	"sync"
)

// TermWeight is a term and its tf-idf weight
type TermWeight struct {
	Term   string  `json:"term"`
	Weight float64 `json:"weight"`
}

// TermIndex keeps one tf-idf corpus per category, one document per training
// call. It is only used to report important words and never affects scoring.
type TermIndex struct {
	mu   sync.RWMutex
	docs map[string][]map[string]int // category -> documents -> term -> count
}

// NewTermIndex returns an empty TermIndex
func NewTermIndex() *TermIndex {
	return &TermIndex{docs: make(map[string][]map[string]int)}
}

// Reset drops every document
func (ti *TermIndex) Reset() {
	ti.mu.Lock()
	ti.docs = make(map[string][]map[string]int)
	ti.mu.Unlock()
}

// AddDocument adds doc, a space separated token string, to the category's corpus
func (ti *TermIndex) AddDocument(category, doc string) {
	terms := make(map[string]int)
	for _, t := range strings.Fields(doc) {
		terms[t]++
	}
	ti.mu.Lock()
	ti.docs[category] = append(ti.docs[category], terms)
	ti.mu.Unlock()
}

// Documents returns the number of documents indexed for category
func (ti *TermIndex) Documents(category string) int {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	return len(ti.docs[category])
}

func (ti *TermIndex) idf(docs []map[string]int, term string) float64 {
	df := 0
	for _, d := range docs {
		if d[term] > 0 {
			df++
		}
	}
	return 1 + math.Log(float64(len(docs))/float64(1+df))
}

// TFIDF returns the weight of term in document doc of category. An unknown
// category or document index gives 0.
func (ti *TermIndex) TFIDF(category, term string, doc int) float64 {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	docs := ti.docs[category]
	if doc < 0 || doc >= len(docs) {
		return 0
	}
	tf := docs[doc][term]
	if tf == 0 {
		return 0
	}
	return float64(tf) * ti.idf(docs, term)
}

// ListTerms returns every term of one document ordered by weight, highest first
func (ti *TermIndex) ListTerms(category string, doc int) []TermWeight {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	docs := ti.docs[category]
	if doc < 0 || doc >= len(docs) {
		return nil
	}
	terms := make([]TermWeight, 0, len(docs[doc]))
	for t, tf := range docs[doc] {
		terms = append(terms, TermWeight{Term: t, Weight: float64(tf) * ti.idf(docs, t)})
	}
	sortTerms(terms)
	return terms
}

// TopTerms sums each term's weight over all documents of category and
// returns the n heaviest. n <= 0 returns all of them.
func (ti *TermIndex) TopTerms(category string, n int) []TermWeight {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	docs := ti.docs[category]
	sums := make(map[string]float64)
	idfs := make(map[string]float64)
	for _, d := range docs {
		for t, tf := range d {
			idf, ok := idfs[t]
			if !ok {
				idf = ti.idf(docs, t)
				idfs[t] = idf
			}
			sums[t] += float64(tf) * idf
		}
	}
	terms := make([]TermWeight, 0, len(sums))
	for t, w := range sums {
		terms = append(terms, TermWeight{Term: t, Weight: w})
	}
	sortTerms(terms)
	if n > 0 && len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func sortTerms(terms []TermWeight) {
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].Weight != terms[j].Weight {
			return terms[i].Weight > terms[j].Weight
		}
		return terms[i].Term < terms[j].Term
	})
}

// MarshalCategory encodes the documents of category
func (ti *TermIndex) MarshalCategory(category string) (json.RawMessage, error) {
	ti.mu.RLock()
	defer ti.mu.RUnlock()
	docs := ti.docs[category]
	if docs == nil {
		docs = []map[string]int{}
	}
	return json.Marshal(docs)
}

// decodeTermDocuments decodes a category's documents as written by
// MarshalCategory. null decodes to nil.
func decodeTermDocuments(data json.RawMessage) ([]map[string]int, error) {
	var docs []map[string]int
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	return docs, nil
}

// replace swaps in docs as the whole index
func (ti *TermIndex) replace(docs map[string][]map[string]int) {
	if docs == nil {
		docs = make(map[string][]map[string]int)
	}
	ti.mu.Lock()
	ti.docs = docs
	ti.mu.Unlock()
}
