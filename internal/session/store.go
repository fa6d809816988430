package session

import (
	"errors"
	"fmt"
	"sync"
)

// ErrNotFound is returned for missing or expired sessions
var ErrNotFound = errors.New("this receipt's data is no longer available")

// Store defines the interface for session persistence
type Store interface {
	// Put saves a session, replacing any session under the same key
	Put(sess *Session) error

	// Get retrieves a session by key
	Get(key string) (*Session, error)

	// Update applies fn to the stored session atomically. Nothing is
	// written when fn returns an error.
	Update(key string, fn func(*Session) error) error

	// Delete removes a session. Deleting a missing key is not an error.
	Delete(key string) error

	// DeleteWhere removes every session matching the predicate and
	// returns the removed keys
	DeleteWhere(match func(*Session) bool) ([]string, error)

	// Close closes the store
	Close() error
}

// MemoryStore implements Store in process memory
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]*Session)}
}

// Put saves a copy of the session
func (m *MemoryStore) Put(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[sess.Key] = sess.clone()
	return nil
}

// Get returns a copy of the stored session
func (m *MemoryStore) Get(key string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return sess.clone(), nil
}

// Update runs fn on a copy and swaps it in when fn succeeds
func (m *MemoryStore) Update(key string, fn func(*Session) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[key]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	work := sess.clone()
	if err := fn(work); err != nil {
		return err
	}
	m.sessions[key] = work
	return nil
}

// Delete removes a session
func (m *MemoryStore) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, key)
	return nil
}

// DeleteWhere removes matching sessions under one lock
func (m *MemoryStore) DeleteWhere(match func(*Session) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted []string
	for key, sess := range m.sessions {
		if match(sess.clone()) {
			delete(m.sessions, key)
			deleted = append(deleted, key)
		}
	}
	return deleted, nil
}

// Close is a no-op
func (m *MemoryStore) Close() error {
	return nil
}
