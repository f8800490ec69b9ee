package classifier

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// CategoryStats is the aggregate training data of one category
type CategoryStats struct {
	Name      string           `json:"-"`
	Total     int64            `json:"total"`
	Documents int64            `json:"documents,omitempty"`
	WordCount map[string]int64 `json:"wordCount"`

	// TermFrequencyIndex holds the diagnostic term index documents. It is
	// only read back when the classifier has a TermIndex attached.
	TermFrequencyIndex json.RawMessage `json:"termFrequencyIndex,omitempty"`
}

// Snapshot is the persisted form of a model. Categories keep their stored order.
type Snapshot struct {
	Categories []CategoryStats
	Vocab      []string
}

type snapshotJSON struct {
	Categories orderedCategories `json:"categories"`
	Vocab      []string          `json:"vocab"`
}

// orderedCategories encodes as a JSON object whose keys follow slice order
type orderedCategories []CategoryStats

func (oc orderedCategories) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, cs := range oc {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(cs.Name)
		if err != nil {
			return nil, err
		}
		body, err := json.Marshal(cs)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(body)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (oc *orderedCategories) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*oc = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("classifier: categories must be an object")
	}
	var out orderedCategories
	seen := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("classifier: bad category key %v", tok)
		}
		var cs CategoryStats
		if err := dec.Decode(&cs); err != nil {
			return fmt.Errorf("classifier: category %q: %w", name, err)
		}
		cs.Name = name
		if cs.WordCount == nil {
			cs.WordCount = make(map[string]int64)
		}
		// a repeated key overrides in place, as with plain decoding
		if i, dup := seen[name]; dup {
			out[i] = cs
			continue
		}
		seen[name] = len(out)
		out = append(out, cs)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*oc = out
	return nil
}

func (s *Snapshot) MarshalJSON() ([]byte, error) {
	vocab := s.Vocab
	if vocab == nil {
		vocab = []string{}
	}
	return json.Marshal(snapshotJSON{Categories: s.Categories, Vocab: vocab})
}

func (s *Snapshot) UnmarshalJSON(data []byte) error {
	var sj snapshotJSON
	if err := json.Unmarshal(data, &sj); err != nil {
		return err
	}
	s.Categories = sj.Categories
	s.Vocab = sj.Vocab
	return nil
}

// SaveModel writes the model as JSON to w
func (bc *BayesianClassifier) SaveModel(w io.Writer) error {
	err := bc.saveModel(w)
	if err != nil {
		bc.logger().Error("save model failed", zap.Error(err))
	}
	return err
}

func (bc *BayesianClassifier) saveModel(w io.Writer) error {
	snap, err := bc.store.Snapshot()
	if err != nil {
		return fmt.Errorf("classifier: snapshot: %w", err)
	}
	if bc.Index != nil {
		for i := range snap.Categories {
			raw, err := bc.Index.MarshalCategory(snap.Categories[i].Name)
			if err != nil {
				return fmt.Errorf("classifier: term index: %w", err)
			}
			snap.Categories[i].TermFrequencyIndex = raw
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("classifier: encode model: %w", err)
	}
	return nil
}

// SaveModelFile writes the model to the file at path, replacing it
func (bc *BayesianClassifier) SaveModelFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		bc.logger().Error("save model failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("classifier: create model file: %w", err)
	}
	if err := bc.SaveModel(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		bc.logger().Error("save model failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("classifier: close model file: %w", err)
	}
	bc.logger().Debug("model saved", zap.String("path", path))
	return nil
}

// LoadModel replaces the model with the JSON snapshot read from r. The
// snapshot is decoded fully before the store is touched. A term index
// payload that cannot be read is logged and skipped; it never fails the load.
func (bc *BayesianClassifier) LoadModel(r io.Reader) error {
	err := bc.loadModel(r)
	if err != nil {
		bc.logger().Error("load model failed", zap.Error(err))
	}
	return err
}

func (bc *BayesianClassifier) loadModel(r io.Reader) error {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return fmt.Errorf("classifier: decode model: %w", err)
	}
	var index map[string][]map[string]int
	if bc.Index != nil {
		index = make(map[string][]map[string]int)
		for _, cs := range snap.Categories {
			if len(cs.TermFrequencyIndex) == 0 {
				continue
			}
			docs, err := decodeTermDocuments(cs.TermFrequencyIndex)
			if err != nil {
				bc.logger().Warn("skipping unreadable term index",
					zap.String("category", cs.Name), zap.Error(err))
				continue
			}
			if docs != nil {
				index[cs.Name] = docs
			}
		}
	}
	if err := bc.store.Restore(&snap); err != nil {
		return fmt.Errorf("classifier: restore: %w", err)
	}
	if bc.Index != nil {
		bc.Index.replace(index)
	}
	return nil
}

// LoadModelFile loads the model stored at path
func (bc *BayesianClassifier) LoadModelFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		bc.logger().Error("load model failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("classifier: open model file: %w", err)
	}
	defer f.Close()
	if err := bc.LoadModel(f); err != nil {
		return err
	}
	bc.logger().Debug("model loaded", zap.String("path", path))
	return nil
}
