package classifier

import (
	"errors"
	"regexp"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kljensen/snowball/english"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// DefaultCacheSize is the number of reduced words a Preprocessor remembers
const DefaultCacheSize = 4096

// ErrInvalidNGram is returned for an n-gram size below 1
var ErrInvalidNGram = errors.New("classifier: n-gram size must be at least 1")

var punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]+`)

// Tokenizer is the interface for a text tokenizer
type Tokenizer interface {
	Tokenize(text string) ([]string, error)
}

// Stemmer reduces a word to its stem
type Stemmer interface {
	Stem(word string) string
}

// Lemmatizer maps a word to its dictionary form
type Lemmatizer interface {
	Lemma(word string) string
}

// StemmerFunc adapts a function to the Stemmer interface
type StemmerFunc func(string) string

func (f StemmerFunc) Stem(word string) string { return f(word) }

// LemmatizerFunc adapts a function to the Lemmatizer interface
type LemmatizerFunc func(string) string

func (f LemmatizerFunc) Lemma(word string) string { return f(word) }

type snowballStemmer struct{}

func (snowballStemmer) Stem(word string) string {
	return english.Stem(word, true)
}

// EnglishStemmer is the Snowball English stemmer
var EnglishStemmer Stemmer = snowballStemmer{}

var (
	englishLemmatizerOnce sync.Once
	englishLemmatizer     *golem.Lemmatizer
	englishLemmatizerErr  error
)

// EnglishLemmatizer returns the shared golem English lemmatizer. The
// dictionary is loaded on first use.
func EnglishLemmatizer() (Lemmatizer, error) {
	englishLemmatizerOnce.Do(func() {
		englishLemmatizer, englishLemmatizerErr = golem.New(en.New())
	})
	if englishLemmatizerErr != nil {
		return nil, englishLemmatizerErr
	}
	return englishLemmatizer, nil
}

// PreprocessorConfig configures NewPreprocessor. Zero values select the defaults.
type PreprocessorConfig struct {
	NGram      int      // 0 means 1
	StopWords  []string // nil means DefaultStopWords
	Stemmer    Stemmer
	Lemmatizer Lemmatizer
	CacheSize  int // 0 means DefaultCacheSize, negative disables the cache
}

// Preprocessor normalizes text into tokens: lowercase, strip punctuation,
// split on whitespace, drop stop words, stem then lemmatize the stem, and
// optionally join sliding windows of NGram tokens.
type Preprocessor struct {
	ngram      int
	stopWords  map[string]struct{}
	stemmer    Stemmer
	lemmatizer Lemmatizer
	cache      *lru.Cache[string, string]
}

// NewPreprocessor returns a Preprocessor for cfg
func NewPreprocessor(cfg PreprocessorConfig) (*Preprocessor, error) {
	if cfg.NGram == 0 {
		cfg.NGram = 1
	}
	if cfg.NGram < 1 {
		return nil, ErrInvalidNGram
	}
	if cfg.StopWords == nil {
		cfg.StopWords = DefaultStopWords
	}
	if cfg.Stemmer == nil {
		cfg.Stemmer = EnglishStemmer
	}
	if cfg.Lemmatizer == nil {
		lem, err := EnglishLemmatizer()
		if err != nil {
			return nil, err
		}
		cfg.Lemmatizer = lem
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = DefaultCacheSize
	}

	p := &Preprocessor{
		ngram:      cfg.NGram,
		stopWords:  make(map[string]struct{}, len(cfg.StopWords)),
		stemmer:    cfg.Stemmer,
		lemmatizer: cfg.Lemmatizer,
	}
	for _, w := range cfg.StopWords {
		p.stopWords[w] = struct{}{}
	}
	if cfg.CacheSize > 0 {
		cache, err := lru.New[string, string](cfg.CacheSize)
		if err != nil {
			return nil, err
		}
		p.cache = cache
	}
	return p, nil
}

// NGram returns the configured n-gram size
func (p *Preprocessor) NGram() int {
	return p.ngram
}

// IsStopWord reports whether word is dropped from the token stream
func (p *Preprocessor) IsStopWord(word string) bool {
	_, ok := p.stopWords[word]
	return ok
}

func (p *Preprocessor) reduce(word string) string {
	if p.cache != nil {
		if r, ok := p.cache.Get(word); ok {
			return r
		}
	}
	r := p.lemmatizer.Lemma(p.stemmer.Stem(word))
	if p.cache != nil {
		p.cache.Add(word, r)
	}
	return r
}

// Tokenize never fails; the error is there to satisfy Tokenizer.
func (p *Preprocessor) Tokenize(text string) ([]string, error) {
	text = cases.Lower(language.Und).String(text)
	text = punctuation.ReplaceAllString(text, "")
	fields := strings.Fields(text)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if p.IsStopWord(f) {
			continue
		}
		// "doings" reduces to "do"
		r := p.reduce(f)
		if p.IsStopWord(r) {
			continue
		}
		tokens = append(tokens, r)
	}
	if p.ngram == 1 {
		return tokens, nil
	}
	return ngrams(tokens, p.ngram), nil
}

func ngrams(tokens []string, n int) []string {
	if len(tokens) < n {
		return []string{}
	}
	grams := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		grams = append(grams, strings.Join(tokens[i:i+n], " "))
	}
	return grams
}

type simpleTokenizer struct{}

// SimpleTokenizer splits on whitespace using strings.Fields and lowercases
// each field. It does no other normalization.
var SimpleTokenizer = simpleTokenizer{}

func (t simpleTokenizer) Tokenize(text string) ([]string, error) {
	fields := strings.Fields(text)
	for i, s := range fields {
		fields[i] = strings.ToLower(s)
	}
	return fields, nil
}
