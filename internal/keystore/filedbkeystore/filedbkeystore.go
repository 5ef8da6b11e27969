// Package filedbkeystore persists the wrapped DB-key blob keystore.KeyStore hands
// it as a single file alongside the CE/DE database (§4.5's "db_key file"). This is
// the production counterpart to memdbkeystore, used by tests.
package filedbkeystore

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists one wrapped blob per id under root, one file per id.
type Store struct {
	root string
	mu   sync.Mutex
}

// New returns a Store rooted at dir. The directory is created lazily on first Save.
func New(dir string) *Store {
	return &Store{root: dir}
}

func (s *Store) pathFor(id string) string {
	return filepath.Join(s.root, fmt.Sprintf("%s.dbkey", id))
}

// Load implements keystore.DBKeyStore.
func (s *Store) Load(id string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, err := os.ReadFile(s.pathFor(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return b, true, nil
}

// Save implements keystore.DBKeyStore.
func (s *Store) Save(id string, wrapped []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.pathFor(id), wrapped, 0o600)
}

// Delete implements keystore.DBKeyStore.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.pathFor(id))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
