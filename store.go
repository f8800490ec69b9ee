package classifier

import (
	"errors"
	"sort"
	"sync"
)

var (
	// ErrNoCategories is returned when classifying before any category was trained.
	ErrNoCategories = errors.New("classifier: no categories")
)

// ErrCategoryDoesNotExist is the error returned when a category doesn't exist.
type ErrCategoryDoesNotExist string

func (e ErrCategoryDoesNotExist) Error() string {
	return "classifier: category " + string(e) + " does not exist"
}

// Store is the storage interface for a classifier model
type Store interface {
	Categories() ([]string, error) // stored order
	AddCategory(name string) error
	AddDocument(category string, tokens []string) error
	Totals() (map[string]int64, error) // category -> token total
	VocabularySize() (int, error)
	TokenCounts(categories, tokens []string) (map[string]map[string]int64, error) // category -> token -> count
	Snapshot() (*Snapshot, error)
	Restore(s *Snapshot) error
}

type localStore struct {
	mu             sync.RWMutex
	categories     []string
	totals         map[string]int64            // category -> token total
	documentCounts map[string]int64            // category -> count
	tokenCounts    map[string]map[string]int64 // category -> token -> count
	vocabulary     map[string]struct{}
}

// NewLocalStore returns a new in-memory store
func NewLocalStore() Store {
	ls := &localStore{}
	ls.reset()
	return ls
}

func (ls *localStore) reset() {
	ls.categories = make([]string, 0)
	ls.totals = make(map[string]int64)
	ls.documentCounts = make(map[string]int64)
	ls.tokenCounts = make(map[string]map[string]int64)
	ls.vocabulary = make(map[string]struct{})
}

func (ls *localStore) Categories() ([]string, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return append([]string(nil), ls.categories...), nil
}

func (ls *localStore) AddCategory(name string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.addCategory(name)
	return nil
}

func (ls *localStore) addCategory(name string) {
	if _, ok := ls.tokenCounts[name]; ok {
		return
	}
	ls.categories = append(ls.categories, name)
	ls.totals[name] = 0
	ls.documentCounts[name] = 0
	ls.tokenCounts[name] = make(map[string]int64)
}

func (ls *localStore) AddDocument(category string, tokens []string) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	wc, ok := ls.tokenCounts[category]
	if !ok {
		return ErrCategoryDoesNotExist(category)
	}
	ls.documentCounts[category]++
	for _, token := range tokens {
		wc[token]++
		ls.vocabulary[token] = struct{}{}
	}
	ls.totals[category] += int64(len(tokens))
	return nil
}

func (ls *localStore) Totals() (map[string]int64, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	totals := make(map[string]int64, len(ls.totals))
	for cat, n := range ls.totals {
		totals[cat] = n
	}
	return totals, nil
}

func (ls *localStore) VocabularySize() (int, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	return len(ls.vocabulary), nil
}

func (ls *localStore) TokenCounts(categories, tokens []string) (map[string]map[string]int64, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	if categories == nil {
		categories = ls.categories
	}
	counts := make(map[string]map[string]int64, len(categories))
	for _, cat := range categories {
		tc, ok := ls.tokenCounts[cat]
		if !ok {
			return nil, ErrCategoryDoesNotExist(cat)
		}
		counts2 := make(map[string]int64, len(tokens))
		for _, t := range tokens {
			counts2[t] = tc[t]
		}
		counts[cat] = counts2
	}
	return counts, nil
}

func (ls *localStore) Snapshot() (*Snapshot, error) {
	ls.mu.RLock()
	defer ls.mu.RUnlock()
	s := &Snapshot{
		Categories: make([]CategoryStats, 0, len(ls.categories)),
		Vocab:      make([]string, 0, len(ls.vocabulary)),
	}
	for _, cat := range ls.categories {
		wc := make(map[string]int64, len(ls.tokenCounts[cat]))
		for t, n := range ls.tokenCounts[cat] {
			wc[t] = n
		}
		s.Categories = append(s.Categories, CategoryStats{
			Name:      cat,
			Total:     ls.totals[cat],
			Documents: ls.documentCounts[cat],
			WordCount: wc,
		})
	}
	for t := range ls.vocabulary {
		s.Vocab = append(s.Vocab, t)
	}
	sort.Strings(s.Vocab)
	return s, nil
}

func (ls *localStore) Restore(s *Snapshot) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	ls.reset()
	for _, cs := range s.Categories {
		ls.addCategory(cs.Name)
		ls.totals[cs.Name] = cs.Total
		ls.documentCounts[cs.Name] = cs.Documents
		wc := ls.tokenCounts[cs.Name]
		for t, n := range cs.WordCount {
			wc[t] = n
		}
	}
	for _, t := range s.Vocab {
		ls.vocabulary[t] = struct{}{}
	}
	return nil
}
