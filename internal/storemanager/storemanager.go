// Package storemanager wires §4.5's per-user CE/DE file layout into the
// record.StoreResolver and dispatch.StoreLister seams: DE for the system-user space
// (user_id <= 99, no DB-key involved), CE everywhere else with a DB-key wrapped by
// keystore.KeyStore. Grounded on the teacher's pkg/keystore's own lazy-open-and-cache
// pattern over its single master database, generalized here to one store per user.
package storemanager

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/keystore"
)

// Manager lazily opens and caches one dbstore.Store per user, selecting DE or CE
// storage per §4.5.
type Manager struct {
	DERoot string
	CERoot string
	Keys   *keystore.KeyStore
	Owner  func(userID int32) (ownerType assettype.OwnerType, owner []byte)

	mu     sync.Mutex
	stores map[int32]*dbstore.Store
}

// New builds a Manager. owner resolves the (OwnerType, Owner) pair the DB-key wrap
// tuple needs for a given user; production wiring derives this from the device's
// primary account record, which sits outside this package's scope.
func New(deRoot, ceRoot string, keys *keystore.KeyStore, owner func(int32) (assettype.OwnerType, []byte)) *Manager {
	return &Manager{
		DERoot: deRoot,
		CERoot: ceRoot,
		Keys:   keys,
		Owner:  owner,
		stores: make(map[int32]*dbstore.Store),
	}
}

// Store implements record.StoreResolver. The CE/DE choice is keyed on user_id
// alone; accessibility is not consulted (§4.6.1 invariant 3 already rejects
// non-DevicePowerOn records in the system-user range).
func (m *Manager) Store(userID int32, accessibility assettype.Accessibility) (*dbstore.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[userID]; ok {
		return s, nil
	}

	s, err := m.open(userID)
	if err != nil {
		return nil, err
	}
	m.stores[userID] = s
	return s, nil
}

// OpenStores implements dispatch.StoreLister for the maintenance backup job.
func (m *Manager) OpenStores() []*dbstore.Store {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*dbstore.Store, 0, len(m.stores))
	for _, s := range m.stores {
		out = append(out, s)
	}
	return out
}

// CloseAll closes every currently open store, for graceful shutdown.
func (m *Manager) CloseAll() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for id, s := range m.stores {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.stores, id)
	}
	return firstErr
}

func (m *Manager) open(userID int32) (*dbstore.Store, error) {
	ctx := context.Background()

	if userID <= callerinfo.SystemUserMax {
		path := filepath.Join(m.DERoot, fmt.Sprint(userID), "asset.db")
		return dbstore.Open(ctx, dbstore.Options{Path: path})
	}

	ownerType, owner := m.Owner(userID)
	dbKeyID := fmt.Sprintf("%d", userID)
	wrapTuple := keystore.DBKeyTuple(userID, ownerType, owner)
	dbKey, err := m.Keys.GetOrCreateDBKey(dbKeyID, wrapTuple)
	if err != nil {
		return nil, err
	}

	path := filepath.Join(m.CERoot, fmt.Sprint(userID), "asset_service", "enc_user.db")
	return dbstore.Open(ctx, dbstore.Options{Path: path, DBKey: dbKey})
}
