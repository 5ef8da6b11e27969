// Package memdbkeystore is an in-memory keystore.DBKeyStore for tests: production
// wiring persists the wrapped DB-key blob as the "db_key" file alongside the CE/DE
// database (§4.5); this double just keeps it in a map.
package memdbkeystore

import "sync"

// Store is a trivial in-memory DBKeyStore.
type Store struct {
	mu   sync.Mutex
	data map[string][]byte
}

// New returns an empty Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Load implements keystore.DBKeyStore.
func (s *Store) Load(id string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Save implements keystore.DBKeyStore.
func (s *Store) Save(id string, wrapped []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = append([]byte(nil), wrapped...)
	return nil
}

// Delete implements keystore.DBKeyStore.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}
