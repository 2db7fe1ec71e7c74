// internal/lobby/lobby_store.go
package lobby

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Store is the registry of live lobbies. Its mutex is a leaf lock: it is
// never held while a lobby lock is acquired. Lobbies push their public
// summary into the store, so listing never touches lobby locks.
type Store struct {
	mu        sync.Mutex
	lobbies   map[string]*Lobby  // lobby id -> lobby
	codes     map[string]string  // join code -> lobby id
	summaries map[string]Summary // lobby id -> last published summary
}

// NewStore initializes and returns an empty Store.
func NewStore() *Store {
	return &Store{
		lobbies:   make(map[string]*Lobby),
		codes:     make(map[string]string),
		summaries: make(map[string]Summary),
	}
}

// Add registers a lobby. It fails if the id or the code is already taken,
// or if any lobby id equals any join code.
func (s *Store) Add(l *Lobby, summary Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.lobbies[l.ID]; exists {
		return fmt.Errorf("lobby id %s already in use", l.ID)
	}
	if _, exists := s.codes[l.Code]; exists {
		return fmt.Errorf("lobby code already in use")
	}
	if _, clash := s.codes[l.ID]; clash || s.lobbies[l.Code] != nil || l.ID == l.Code {
		return fmt.Errorf("lobby id and code overlap")
	}
	s.lobbies[l.ID] = l
	s.codes[l.Code] = l.ID
	s.summaries[l.ID] = summary
	return nil
}

// Delete removes a lobby. Deleting an unknown id is a no-op.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	if !ok {
		return
	}
	delete(s.codes, l.Code)
	delete(s.lobbies, id)
	delete(s.summaries, id)
}

// Get retrieves a lobby by id.
func (s *Store) Get(id string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lobbies[id]
	return l, ok
}

// FindByCode retrieves a lobby by its exact join code.
func (s *Store) FindByCode(code string) (*Lobby, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.codes[code]
	if !ok {
		return nil, false
	}
	l, ok := s.lobbies[id]
	return l, ok
}

// Taken reports whether s is in use as a lobby id or a join code.
func (s *Store) Taken(v string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, id := s.lobbies[v]
	_, code := s.codes[v]
	return id || code
}

// Publish stores the latest summary of a registered lobby. It reports
// whether the summary changed.
func (s *Store) Publish(sum Summary) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.lobbies[sum.ID]; !ok {
		return false
	}
	if prev, ok := s.summaries[sum.ID]; ok && prev == sum {
		return false
	}
	s.summaries[sum.ID] = sum
	return true
}

// Summaries lists public lobbies sorted by name. Private lobbies are left out.
func (s *Store) Summaries() []Summary {
	s.mu.Lock()
	out := make([]Summary, 0, len(s.summaries))
	for _, sum := range s.summaries {
		if !sum.private {
			out = append(out, sum)
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := strings.ToLower(out[i].Name), strings.ToLower(out[j].Name)
		if a != b {
			return a < b
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Len returns the number of live lobbies.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lobbies)
}

// Lobbies returns a snapshot of every live lobby.
func (s *Store) Lobbies() []*Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, l)
	}
	return out
}
