// internal/filter/filter.go
package filter

import (
	"bufio"
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"
	"strings"
)

//go:embed data/banned-words.txt
var defaultWords []byte

// WordList rejects names containing any listed substring, ignoring case.
type WordList struct {
	words []string
}

// NewWordList builds a filter from the given words. Blank entries are ignored.
func NewWordList(words []string) *WordList {
	w := &WordList{}
	for _, word := range words {
		word = strings.ToLower(strings.TrimSpace(word))
		if word != "" {
			w.words = append(w.words, word)
		}
	}
	return w
}

// Load reads one word per line. Lines starting with '#' are comments.
func Load(r io.Reader) (*WordList, error) {
	var words []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		words = append(words, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read word list: %w", err)
	}
	return NewWordList(words), nil
}

// LoadFile reads a word list from disk.
func LoadFile(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open word list %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the word list bundled into the binary.
func Default() *WordList {
	w, err := Load(bytes.NewReader(defaultWords))
	if err != nil {
		// The embedded file is always readable.
		panic(err)
	}
	return w
}

// Allowed reports whether name contains none of the banned substrings.
func (w *WordList) Allowed(name string) bool {
	lower := strings.ToLower(name)
	for _, bad := range w.words {
		if strings.Contains(lower, bad) {
			return false
		}
	}
	return true
}

// Len returns the number of banned entries.
func (w *WordList) Len() int { return len(w.words) }
