package classifier

import (
	"errors"
	"fmt"
)

// ErrInvalidFolds is returned when cross-validation can't build k non-empty folds
var ErrInvalidFolds = errors.New("classifier: invalid number of folds")

// Example is a labelled text
type Example struct {
	Text     string
	Category string
}

// Predictor is anything that can classify text
type Predictor interface {
	Classify(text string) (string, error)
}

// Confusion counts the outcomes for one category
type Confusion struct {
	TruePositives  int `json:"tp"`
	FalsePositives int `json:"fp"`
	FalseNegatives int `json:"fn"`
}

// Metrics holds micro-averaged precision, recall and F1
type Metrics struct {
	Precision   float64              `json:"precision"`
	Recall      float64              `json:"recall"`
	F1          float64              `json:"f1"`
	PerCategory map[string]Confusion `json:"per_category"`
}

// Evaluate returns the fraction of examples p classifies correctly. An
// empty set gives NaN.
func Evaluate(p Predictor, examples []Example) (float64, error) {
	correct := 0
	for _, ex := range examples {
		got, err := p.Classify(ex.Text)
		if err != nil {
			return 0, err
		}
		if got == ex.Category {
			correct++
		}
	}
	return float64(correct) / float64(len(examples)), nil
}

// PrecisionRecallF1 sums per-category confusion counts over examples and
// computes precision, recall and F1 from the totals. Zero denominators give NaN.
func PrecisionRecallF1(p Predictor, examples []Example) (*Metrics, error) {
	per := make(map[string]Confusion)
	for _, ex := range examples {
		got, err := p.Classify(ex.Text)
		if err != nil {
			return nil, err
		}
		if got == ex.Category {
			c := per[ex.Category]
			c.TruePositives++
			per[ex.Category] = c
			continue
		}
		c := per[got]
		c.FalsePositives++
		per[got] = c
		c = per[ex.Category]
		c.FalseNegatives++
		per[ex.Category] = c
	}

	var tp, fp, fn float64
	for _, c := range per {
		tp += float64(c.TruePositives)
		fp += float64(c.FalsePositives)
		fn += float64(c.FalseNegatives)
	}
	m := &Metrics{PerCategory: per}
	m.Precision = tp / (tp + fp)
	m.Recall = tp / (tp + fn)
	m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	return m, nil
}

// Folds splits data into k contiguous folds of len(data)/k examples. The
// remaining len(data)%k examples at the tail belong to no fold.
func Folds(data []Example, k int) ([][]Example, error) {
	if k < 1 {
		return nil, ErrInvalidFolds
	}
	size := len(data) / k
	if size == 0 {
		return nil, ErrInvalidFolds
	}
	folds := make([][]Example, k)
	for i := range folds {
		folds[i] = data[i*size : (i+1)*size]
	}
	return folds, nil
}

// CrossValidate trains a fresh classifier from newClassifier on all folds
// but one, evaluates it on the held out fold, and returns the mean accuracy
// over the k folds.
func CrossValidate(data []Example, k int, newClassifier func() (*BayesianClassifier, error)) (float64, error) {
	folds, err := Folds(data, k)
	if err != nil {
		return 0, err
	}
	var sum float64
	for i, fold := range folds {
		bc, err := newClassifier()
		if err != nil {
			return 0, err
		}
		for j, train := range folds {
			if j == i {
				continue
			}
			for _, ex := range train {
				if err := bc.Train(ex.Text, ex.Category); err != nil {
					return 0, fmt.Errorf("classifier: fold %d: %w", i, err)
				}
			}
		}
		acc, err := Evaluate(bc, fold)
		if err != nil {
			return 0, fmt.Errorf("classifier: fold %d: %w", i, err)
		}
		sum += acc
	}
	return sum / float64(len(folds)), nil
}

// CrossValidate runs CrossValidate with in-memory classifiers that share
// bc's tokenizer. bc itself is not modified.
func (bc *BayesianClassifier) CrossValidate(data []Example, k int) (float64, error) {
	return CrossValidate(data, k, func() (*BayesianClassifier, error) {
		return NewBayesianClassifier(NewLocalStore(), bc.tokenizer)
	})
}
