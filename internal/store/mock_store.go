// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session // keyed by session ID
	closed   bool
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		sessions: make(map[string]*Session),
	}
}

// SaveSession stores a copy of the session.
func (m *MockStore) SaveSession(ctx context.Context, sess *Session) error {
	if err := validateSession(sess); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Make a copy to avoid external modification
	cp := copySession(sess)
	if existing, ok := m.sessions[sess.ID]; ok {
		cp.CreatedAt = existing.CreatedAt
	}
	m.sessions[sess.ID] = cp
	return nil
}

// GetSession retrieves a session by ID.
func (m *MockStore) GetSession(ctx context.Context, id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sess, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copySession(sess), nil
}

// ListSessions returns summaries newest first, matching SQLiteStore ordering.
func (m *MockStore) ListSessions(ctx context.Context, opts ListOptions) ([]*SessionSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	search := strings.ToLower(opts.Search)
	var out []*SessionSummary
	for _, sess := range m.sessions {
		if search != "" && !strings.Contains(strings.ToLower(sess.Title), search) {
			continue
		}
		out = append(out, &SessionSummary{
			ID:         sess.ID,
			Title:      sess.Title,
			Effort:     sess.Effort,
			Phase:      sess.Phase,
			EntryCount: len(sess.Entries),
			CreatedAt:  sess.CreatedAt,
			UpdatedAt:  sess.UpdatedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})

	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// DeleteSession removes a session.
func (m *MockStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	delete(m.sessions, id)
	return nil
}

// Close marks the store closed.
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func copySession(sess *Session) *Session {
	cp := *sess
	cp.Entries = append([]Entry(nil), sess.Entries...)
	for i := range cp.Entries {
		cp.Entries[i].Position = i
	}
	return &cp
}

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
