// Package dataset reads and writes labelled examples, one per line as
// "category<TAB>text". Blank lines and lines starting with # are skipped.
package dataset

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	classifier "github.com/samuel/go-textclassifier"
)

// maxLine bounds a single example
const maxLine = 1 << 20

// Read parses examples from r
func Read(r io.Reader) ([]classifier.Example, error) {
	var examples []classifier.Example
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(s) == "" || strings.HasPrefix(s, "#") {
			continue
		}
		category, text, ok := strings.Cut(s, "\t")
		category = strings.TrimSpace(category)
		if !ok || category == "" {
			return nil, fmt.Errorf("line %d: expected category<TAB>text", line)
		}
		examples = append(examples, classifier.Example{Text: text, Category: category})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("line %d: %w", line+1, err)
	}
	return examples, nil
}

// ReadFile parses the examples in the file at path
func ReadFile(path string) ([]classifier.Example, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	examples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return examples, nil
}

// Write writes examples to w. Tabs and newlines inside a text become spaces.
func Write(w io.Writer, examples []classifier.Example) error {
	bw := bufio.NewWriter(w)
	clean := strings.NewReplacer("\t", " ", "\n", " ", "\r", " ")
	for _, ex := range examples {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", clean.Replace(ex.Category), clean.Replace(ex.Text)); err != nil {
			return err
		}
	}
	return bw.Flush()
}
