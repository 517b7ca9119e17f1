// Package css keeps the stylesheet fragments injected into the client.
package css

import (
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// Store is a keyed set of CSS fragments, rendered in insertion order.
type Store struct {
	mu     sync.RWMutex
	sheets map[string]string
	order  []string
	logger *zap.Logger
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	return &Store{
		sheets: make(map[string]string),
		logger: logger.Named("css"),
	}
}

// Upsert sets the fragment for key. Replacing a fragment keeps its position.
func (s *Store) Upsert(key, css string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sheets[key]; !exists {
		s.order = append(s.order, key)
	}
	s.sheets[key] = css

	s.logger.Debug("Stylesheet updated", zap.String("key", key), zap.Int("bytes", len(css)))
}

// Remove deletes the fragment for key, if any.
func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sheets[key]; !exists {
		return
	}
	delete(s.sheets, key)
	s.order = slices.DeleteFunc(s.order, func(k string) bool { return k == key })

	s.logger.Debug("Stylesheet removed", zap.String("key", key))
}

// Get returns the fragment stored under key.
func (s *Store) Get(key string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	css, ok := s.sheets[key]
	return css, ok
}

// Keys returns the stored keys in insertion order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// Render concatenates every fragment into one stylesheet.
func (s *Store) Render() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var b strings.Builder
	for _, key := range s.order {
		b.WriteString("/* ")
		b.WriteString(key)
		b.WriteString(" */\n")
		b.WriteString(s.sheets[key])
		if !strings.HasSuffix(s.sheets[key], "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
