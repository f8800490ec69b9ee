package classifier

import (
	"errors"
	"math"
	"testing"
)

func almostEqual(a, b, d float64) bool {
	return math.Abs(a-b) < d
}

func newTestClassifier(t *testing.T) *BayesianClassifier {
	t.Helper()
	bc, err := NewBayesianClassifier(NewLocalStore(), newTestPreprocessor(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	return bc
}

func TestBayesianClassifier(t *testing.T) {
	bc := newTestClassifier(t)
	if err := bc.Train("I love cats", "positive"); err != nil {
		t.Fatal(err)
	}
	if err := bc.Train("I hate dogs", "negative"); err != nil {
		t.Fatal(err)
	}
	cat, err := bc.Classify("I love dogs")
	if err != nil {
		t.Fatal(err)
	}
	// both categories score the same, the first trained one wins
	if cat != "positive" {
		t.Fatalf("Expected positive instead of %s", cat)
	}
	if cat, _ := bc.Classify("love love cats"); cat != "positive" {
		t.Fatalf("Expected positive instead of %s", cat)
	}
	if cat, _ := bc.Classify("hate dogs"); cat != "negative" {
		t.Fatalf("Expected negative instead of %s", cat)
	}
}

func TestScores(t *testing.T) {
	bc := newTestClassifier(t)
	bc.Train("apple apple banana", "fruit")
	bc.Train("carrot", "veg")

	scores, err := bc.Scores("apple carrot unseen")
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 2 || scores[0].Category != "fruit" || scores[1].Category != "veg" {
		t.Fatalf("Unexpected scores %+v", scores)
	}

	// totals: fruit=3 veg=1, vocabulary=3, categories=2
	fruit := math.Log(4.0/6.0) + math.Log(3.0/6.0) + math.Log(1.0/6.0) + math.Log(1.0/6.0)
	veg := math.Log(2.0/6.0) + math.Log(1.0/4.0) + math.Log(2.0/4.0) + math.Log(1.0/4.0)
	if !almostEqual(scores[0].Score, fruit, 1e-9) {
		t.Errorf("fruit score %f instead of %f", scores[0].Score, fruit)
	}
	if !almostEqual(scores[1].Score, veg, 1e-9) {
		t.Errorf("veg score %f instead of %f", scores[1].Score, veg)
	}
	if cat, _ := bc.Classify("apple carrot unseen"); cat != "veg" {
		t.Fatalf("Expected veg instead of %s", cat)
	}
}

func TestClassifyNoCategories(t *testing.T) {
	bc := newTestClassifier(t)
	cat, err := bc.Classify("anything")
	if err != ErrNoCategories {
		t.Fatalf("Expected ErrNoCategories instead of %v", err)
	}
	if cat != "" {
		t.Fatalf("Expected empty category instead of %q", cat)
	}
}

func TestClassifySingleCategory(t *testing.T) {
	bc := newTestClassifier(t)
	text := "Exactly this text, nothing else"
	bc.Train(text, "only")
	if cat, err := bc.Classify(text); err != nil {
		t.Fatal(err)
	} else if cat != "only" {
		t.Fatalf("Expected only instead of %s", cat)
	}
}

func TestClassifyTieFirstStoredWins(t *testing.T) {
	bc := newTestClassifier(t)
	bc.Train("alpha", "b")
	bc.Train("beta", "a")
	if cat, _ := bc.Classify("gamma"); cat != "b" {
		t.Fatalf("Expected b instead of %s", cat)
	}
}

func TestTrainEmptyText(t *testing.T) {
	bc := newTestClassifier(t)
	if err := bc.Train("the and of", "empty"); err != nil {
		t.Fatal(err)
	}
	cats, _ := bc.Store().Categories()
	if len(cats) != 1 || cats[0] != "empty" {
		t.Fatalf("Expected [empty] instead of %v", cats)
	}
	totals, _ := bc.Store().Totals()
	if totals["empty"] != 0 {
		t.Fatalf("Expected total 0 instead of %d", totals["empty"])
	}
	if n, _ := bc.Store().VocabularySize(); n != 0 {
		t.Fatalf("Expected empty vocabulary instead of %d", n)
	}
}

func TestTotalInvariant(t *testing.T) {
	bc := newTestClassifier(t)
	for _, ex := range []Example{
		{"green apples and red apples", "fruit"},
		{"bananas are yellow", "fruit"},
		{"carrots carrots carrots", "veg"},
		{"", "veg"},
	} {
		if err := bc.Train(ex.Text, ex.Category); err != nil {
			t.Fatal(err)
		}
	}
	snap, err := bc.Store().Snapshot()
	if err != nil {
		t.Fatal(err)
	}
	vocab := make(map[string]bool)
	for _, cs := range snap.Categories {
		var sum int64
		for w, n := range cs.WordCount {
			sum += n
			vocab[w] = true
		}
		if sum != cs.Total {
			t.Errorf("%s: total %d but word counts sum to %d", cs.Name, cs.Total, sum)
		}
	}
	if len(vocab) != len(snap.Vocab) {
		t.Fatalf("Vocabulary %v doesn't match word counts %v", snap.Vocab, vocab)
	}
	for _, w := range snap.Vocab {
		if !vocab[w] {
			t.Errorf("%s in vocabulary but in no category", w)
		}
	}
}

func TestTrainFeedsTermIndex(t *testing.T) {
	bc := newTestClassifier(t)
	bc.Index = NewTermIndex()
	bc.Train("apples apples pears", "fruit")
	bc.Train("plums", "fruit")
	if n := bc.Index.Documents("fruit"); n != 2 {
		t.Fatalf("Expected 2 documents instead of %d", n)
	}
	if w := bc.Index.TFIDF("fruit", "apple", 0); w <= 0 {
		t.Fatalf("Expected positive weight instead of %f", w)
	}
}

type failingStore struct {
	Store
}

func (failingStore) AddDocument(string, []string) error { return errors.New("store unavailable") }

func TestTrainStoreFailureSkipsIndex(t *testing.T) {
	bc, err := NewBayesianClassifier(failingStore{NewLocalStore()}, newTestPreprocessor(t, 1))
	if err != nil {
		t.Fatal(err)
	}
	bc.Index = NewTermIndex()
	if err := bc.Train("apples pears", "fruit"); err == nil {
		t.Fatal("Expected the store error")
	}
	if n := bc.Index.Documents("fruit"); n != 0 {
		t.Fatalf("Expected no indexed documents instead of %d", n)
	}
}

func TestInfo(t *testing.T) {
	bc := newTestClassifier(t)
	bc.Train("apples pears", "fruit")
	bc.Train("apples", "fruit")
	bc.Train("carrots", "veg")
	info, err := bc.Info()
	if err != nil {
		t.Fatal(err)
	}
	if info.VocabularySize != 3 {
		t.Fatalf("Expected vocabulary 3 instead of %d", info.VocabularySize)
	}
	if len(info.Categories) != 2 {
		t.Fatalf("Expected 2 categories instead of %+v", info.Categories)
	}
	f := info.Categories[0]
	if f.Name != "fruit" || f.Total != 3 || f.Documents != 2 || f.Words != 2 {
		t.Fatalf("Unexpected fruit info %+v", f)
	}
}
