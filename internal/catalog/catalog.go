// internal/catalog/catalog.go
package catalog

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// BoardSize is the number of clues on every board.
const BoardSize = 16

//go:embed data/clues.json
var defaultClues []byte

// Board is one grid of clues from which the secret word is chosen.
type Board struct {
	Name    string   `json:"name"`
	Clues16 []string `json:"clues16"`
}

// Category groups boards under a theme.
type Category struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Icon   string  `json:"icon"`
	Boards []Board `json:"boards"`
}

// Meta is the part of a category that is shown to clients before a round starts.
type Meta struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
}

// Catalog is the read-only set of built-in categories.
type Catalog struct {
	categories []Category
	byID       map[string]int
}

type catalogFile struct {
	Categories []Category `json:"categories"`
}

// Validate checks that a board carries exactly BoardSize non-empty clues.
func (b Board) Validate() error {
	if len(b.Clues16) != BoardSize {
		return fmt.Errorf("board %q has %d clues, want %d", b.Name, len(b.Clues16), BoardSize)
	}
	for i, c := range b.Clues16 {
		if strings.TrimSpace(c) == "" {
			return fmt.Errorf("board %q clue %d is empty", b.Name, i)
		}
	}
	return nil
}

// Validate checks the category identity and all of its boards.
func (c Category) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("category id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return fmt.Errorf("category %q has no name", c.ID)
	}
	if len(c.Boards) == 0 {
		return fmt.Errorf("category %q has no boards", c.ID)
	}
	for _, b := range c.Boards {
		if err := b.Validate(); err != nil {
			return fmt.Errorf("category %q: %w", c.ID, err)
		}
	}
	return nil
}

// Meta returns the public description of the category.
func (c Category) Meta() Meta {
	return Meta{ID: c.ID, Name: c.Name, Icon: c.Icon}
}

// Load decodes and validates a catalog document.
func Load(r io.Reader) (*Catalog, error) {
	var f catalogFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if len(f.Categories) == 0 {
		return nil, errors.New("catalog has no categories")
	}

	c := &Catalog{byID: make(map[string]int, len(f.Categories))}
	for _, cat := range f.Categories {
		if err := cat.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[cat.ID]; dup {
			return nil, fmt.Errorf("duplicate category id %q", cat.ID)
		}
		c.byID[cat.ID] = len(c.categories)
		c.categories = append(c.categories, cat)
	}
	return c, nil
}

// LoadFile reads a catalog from disk.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog %s: %w", path, err)
	}
	defer f.Close()
	return Load(f)
}

// Default returns the catalog bundled into the binary.
func Default() (*Catalog, error) {
	return Load(bytes.NewReader(defaultClues))
}

// Category looks up a built-in category by id.
func (c *Catalog) Category(id string) (Category, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Category{}, false
	}
	return c.categories[i], true
}

// First returns the first built-in category, used when no selected category resolves.
func (c *Catalog) First() Category {
	return c.categories[0]
}

// Categories lists the public metadata of every built-in category in file order.
func (c *Catalog) Categories() []Meta {
	out := make([]Meta, 0, len(c.categories))
	for _, cat := range c.categories {
		out = append(out, cat.Meta())
	}
	return out
}
