package classifier

import (
	"math"
	"strings"

	"go.uber.org/zap"
)

// Score is the log score of one category for a text
type Score struct {
	Category string
	Score    float64
}

// BayesianClassifier is a multinomial naive Bayes classifier with add-one smoothing
type BayesianClassifier struct {
	store     Store
	tokenizer Tokenizer

	// Index, when set, receives every trained document. It never affects scoring.
	Index *TermIndex
	// Logger receives persistence failures. nil discards them.
	Logger *zap.Logger
}

// NewBayesianClassifier returns a new BayesianClassifier
func NewBayesianClassifier(store Store, tokenizer Tokenizer) (*BayesianClassifier, error) {
	return &BayesianClassifier{
		store:     store,
		tokenizer: tokenizer,
	}, nil
}

// Store returns the classifier's model store
func (bc *BayesianClassifier) Store() Store {
	return bc.store
}

func (bc *BayesianClassifier) logger() *zap.Logger {
	if bc.Logger == nil {
		return zap.NewNop()
	}
	return bc.Logger
}

// Train feeds text into category, creating the category if needed.
// Text without tokens only creates the category.
func (bc *BayesianClassifier) Train(text, category string) error {
	tokens, err := bc.tokenizer.Tokenize(text)
	if err != nil {
		return err
	}
	if err := bc.store.AddCategory(category); err != nil {
		return err
	}
	if err := bc.store.AddDocument(category, tokens); err != nil {
		return err
	}
	if bc.Index != nil {
		bc.Index.AddDocument(category, strings.Join(tokens, " "))
	}
	return nil
}

// Scores returns the log score of every category, in stored order.
//
//	score(c) = log((total(c)+1) / (sum of totals + categories))
//	         + sum over tokens w of log((count(c, w)+1) / (total(c) + vocabulary))
func (bc *BayesianClassifier) Scores(text string) ([]Score, error) {
	tokens, err := bc.tokenizer.Tokenize(text)
	if err != nil {
		return nil, err
	}
	categories, err := bc.store.Categories()
	if err != nil {
		return nil, err
	}
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}
	totals, err := bc.store.Totals()
	if err != nil {
		return nil, err
	}
	vocab, err := bc.store.VocabularySize()
	if err != nil {
		return nil, err
	}
	tokenCounts, err := bc.store.TokenCounts(categories, tokens)
	if err != nil {
		return nil, err
	}

	var sum int64
	for _, cat := range categories {
		sum += totals[cat]
	}
	priorDenom := float64(sum + int64(len(categories)))

	scores := make([]Score, len(categories))
	for i, cat := range categories {
		total := totals[cat]
		score := math.Log(float64(total+1) / priorDenom)
		denom := float64(total + int64(vocab))
		counts := tokenCounts[cat]
		for _, t := range tokens {
			score += math.Log(float64(counts[t]+1) / denom)
		}
		scores[i] = Score{Category: cat, Score: score}
	}
	return scores, nil
}

// Classify returns the highest scoring category for text. On equal scores
// the category stored first wins.
func (bc *BayesianClassifier) Classify(text string) (string, error) {
	scores, err := bc.Scores(text)
	if err != nil {
		return "", err
	}
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Score > best.Score {
			best = s
		}
	}
	return best.Category, nil
}

// CategoryInfo summarizes one trained category
type CategoryInfo struct {
	Name      string `json:"name"`
	Total     int64  `json:"total"`
	Documents int64  `json:"documents"`
	Words     int    `json:"words"`
}

// ModelInfo summarizes the trained model
type ModelInfo struct {
	Categories     []CategoryInfo `json:"categories"`
	VocabularySize int            `json:"vocabulary_size"`
}

// Info returns information about the trained model
func (bc *BayesianClassifier) Info() (*ModelInfo, error) {
	snap, err := bc.store.Snapshot()
	if err != nil {
		return nil, err
	}
	info := &ModelInfo{
		Categories:     make([]CategoryInfo, len(snap.Categories)),
		VocabularySize: len(snap.Vocab),
	}
	for i, cs := range snap.Categories {
		info.Categories[i] = CategoryInfo{
			Name:      cs.Name,
			Total:     cs.Total,
			Documents: cs.Documents,
			Words:     len(cs.WordCount),
		}
	}
	return info, nil
}
