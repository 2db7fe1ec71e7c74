// internal/game/settings.go
package game

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jason-s-yu/fraud/internal/catalog"
)

// Limits applied to host supplied settings.
const (
	MinTimeLimitSeconds = 10
	MaxTimeLimitSeconds = 600
	MaxCustomCategories = 20
	MaxImposterCount    = 10
)

// Settings are the host-controlled options of a lobby. Slices are replaced on
// update and never mutated in place, so copies of a Settings value may share them.
type Settings struct {
	Categories             []string           `json:"categories"`             // selected category ids, built-in or custom
	CustomCategories       []catalog.Category `json:"customCategories"`       // host supplied categories
	ImposterCount          int                `json:"imposterCount"`          // clamped to [1, N-1] at round start
	RandomizeImposterCount bool               `json:"randomizeImposterCount"` // pick the count uniformly from [1, min(3, N-1)]
	AnonymousVoting        bool               `json:"anonymousVoting"`        // hide who voted for whom
	FraudNeverGoesFirst    bool               `json:"fraudNeverGoesFirst"`    // never pick a fraud as the first clue giver
	TimeLimitEnabled       bool               `json:"timeLimitEnabled"`
	TimeLimitSeconds       int                `json:"timeLimitSeconds"`
}

// DefaultSettings returns the settings of a freshly created lobby.
func DefaultSettings() Settings {
	return Settings{
		Categories:       []string{"movies"},
		CustomCategories: []catalog.Category{},
		ImposterCount:    1,
		TimeLimitSeconds: 60,
	}
}

// CustomCategory looks up a host supplied category by id.
func (s Settings) CustomCategory(id string) (catalog.Category, bool) {
	for _, c := range s.CustomCategories {
		if c.ID == id {
			return c, true
		}
	}
	return catalog.Category{}, false
}

// Update applies a partial settings object. Keys that are absent (or null)
// keep their old value, unknown keys are ignored. builtin reports whether a
// category id exists in the built-in catalog. On error s is left unchanged.
func (s *Settings) Update(partial map[string]interface{}, builtin func(id string) bool) error {
	next := *s
	var ok bool

	assignBool := func(field *bool, key string) error {
		if val, exists := partial[key]; exists && val != nil {
			*field, ok = val.(bool)
			if !ok {
				return fmt.Errorf("invalid type for %s", key)
			}
		}
		return nil
	}

	assignInt := func(field *int, key string, minVal, maxVal int) error {
		val, exists := partial[key]
		if !exists || val == nil {
			return nil
		}
		var n int
		switch v := val.(type) {
		case float64:
			if v != float64(int(v)) {
				return fmt.Errorf("%s must be a whole number", key)
			}
			n = int(v)
		case int:
			n = v
		default:
			return fmt.Errorf("invalid type for %s", key)
		}
		if n < minVal || n > maxVal {
			return fmt.Errorf("%s must be between %d and %d", key, minVal, maxVal)
		}
		*field = n
		return nil
	}

	if err := assignBool(&next.RandomizeImposterCount, "randomizeImposterCount"); err != nil {
		return err
	}
	if err := assignBool(&next.AnonymousVoting, "anonymousVoting"); err != nil {
		return err
	}
	if err := assignBool(&next.FraudNeverGoesFirst, "fraudNeverGoesFirst"); err != nil {
		return err
	}
	if err := assignBool(&next.TimeLimitEnabled, "timeLimitEnabled"); err != nil {
		return err
	}
	if err := assignInt(&next.ImposterCount, "imposterCount", 1, MaxImposterCount); err != nil {
		return err
	}
	if err := assignInt(&next.TimeLimitSeconds, "timeLimitSeconds", MinTimeLimitSeconds, MaxTimeLimitSeconds); err != nil {
		return err
	}

	if val, exists := partial["customCategories"]; exists && val != nil {
		custom, err := decodeCustomCategories(val, builtin)
		if err != nil {
			return err
		}
		next.CustomCategories = custom
	}

	if val, exists := partial["categories"]; exists && val != nil {
		var raw []interface{}
		switch v := val.(type) {
		case []interface{}:
			raw = v
		case []string:
			for _, id := range v {
				raw = append(raw, id)
			}
		default:
			return fmt.Errorf("invalid type for categories")
		}
		ids := make([]string, 0, len(raw))
		seen := make(map[string]bool, len(raw))
		for _, item := range raw {
			id, isString := item.(string)
			if !isString || strings.TrimSpace(id) == "" {
				return fmt.Errorf("categories must be a list of ids")
			}
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
		next.Categories = ids
	}

	// Selected categories must resolve against the resulting custom list too,
	// since removing a custom category can orphan a selection.
	if len(next.Categories) == 0 {
		return fmt.Errorf("select at least one category")
	}
	for _, id := range next.Categories {
		if builtin != nil && builtin(id) {
			continue
		}
		if _, found := next.CustomCategory(id); !found {
			return fmt.Errorf("unknown category %q", id)
		}
	}

	*s = next
	return nil
}

func decodeCustomCategories(val interface{}, builtin func(id string) bool) ([]catalog.Category, error) {
	data, err := json.Marshal(val)
	if err != nil {
		return nil, fmt.Errorf("invalid customCategories: %w", err)
	}
	var custom []catalog.Category
	if err := json.Unmarshal(data, &custom); err != nil {
		return nil, fmt.Errorf("invalid customCategories: %w", err)
	}
	if len(custom) > MaxCustomCategories {
		return nil, fmt.Errorf("at most %d custom categories", MaxCustomCategories)
	}
	seen := make(map[string]bool, len(custom))
	for i := range custom {
		c := &custom[i]
		c.ID = strings.TrimSpace(c.ID)
		c.Name = strings.TrimSpace(c.Name)
		if err := c.Validate(); err != nil {
			return nil, err
		}
		if seen[c.ID] || (builtin != nil && builtin(c.ID)) {
			return nil, fmt.Errorf("duplicate custom category %q", c.ID)
		}
		seen[c.ID] = true
	}
	return custom, nil
}
