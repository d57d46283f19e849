package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/aliskhannn/image-tracker/internal/model"
)

type entry struct {
	payload     []byte
	contentType string
}

// Store keeps retrieved payloads in process memory and hands out URLs
// under which the control API serves them until they are released.
type Store struct {
	baseURL string

	mu      sync.RWMutex
	entries map[string]entry
}

// NewStore creates a Store whose handle URLs are rooted at baseURL,
// e.g. "http://localhost:8080".
func NewStore(baseURL string) *Store {
	return &Store{
		baseURL: strings.TrimRight(baseURL, "/"),
		entries: make(map[string]entry),
	}
}

// Create registers payload and returns its handle.
func (s *Store) Create(_ context.Context, _ string, _ model.VariantKind, payload []byte, contentType string) (model.DisplayHandle, error) {
	key := uuid.NewString()

	s.mu.Lock()
	s.entries[key] = entry{payload: payload, contentType: contentType}
	s.mu.Unlock()

	return model.DisplayHandle{Key: key, URL: s.baseURL + "/handles/" + key}, nil
}

// Release forgets the handle. Releasing an unknown handle is a no-op.
func (s *Store) Release(_ context.Context, h model.DisplayHandle) error {
	s.mu.Lock()
	delete(s.entries, h.Key)
	s.mu.Unlock()

	return nil
}

// Get returns the payload behind key, if it is still held.
func (s *Store) Get(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[key]
	return e.payload, e.contentType, ok
}

// Len returns the number of live handles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}
