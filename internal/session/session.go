// Package session implements the auth-session cache (§4.7): a bounded, TTL-scoped
// table keyed by (scope, challenge) that bridges pre_query's challenge issuance to
// query's decrypt-gated read. Grounded on the original's crypto_manager
// (CryptoManager, fixed CRYPTO_CAPACITY) generalized from its raw Vec<Session> scan
// to a hashicorp/golang-lru/v2 expirable LRU, and on the teacher's pkg/ttl for the
// Go idiom of a registered/heartbeat/evict lifecycle manager.
package session

import (
	"crypto/rand"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
)

// Capacity is the fixed session table size (§4.7 CRYPTO_CAPACITY).
const Capacity = 16

// DefaultValidityPeriod is the session TTL applied when the caller omits
// AuthValidityPeriod (§4.7).
const DefaultValidityPeriod = 60 * time.Second

// ChallengeSize is the wire length of a pre_query challenge (§4.6.4, §4.3).
const ChallengeSize = 32

// Session is one entry of the auth-session cache: the caller scope that requested
// it, the HSM init handle bound to the row's access tuple, and whether that tuple
// requires DeviceUnlocked (for screen-lock eviction).
type Session struct {
	Scope              callerinfo.Scope
	Challenge          [ChallengeSize]byte
	CryptoHandle       any // opaque HSM init() handle; concrete type is the HSM's
	RequiresDeviceUnlock bool
	CreatedAt          time.Time
}

type key struct {
	scope     string
	challenge [ChallengeSize]byte
}

// Cache is the process-wide, mutex-protected auth-session table (§4.7).
type Cache struct {
	mu    sync.Mutex
	store *lru.LRU[key, Session]
}

// New builds a Cache with the fixed capacity. The underlying LRU has no TTL of its
// own; expiry is checked against each entry's CreatedAt by Insert's sweep and by
// Find, using the validFor those calls receive.
func New() *Cache {
	return &Cache{store: lru.NewLRU[key, Session](Capacity, nil, 0)}
}

// NewChallenge returns ChallengeSize fresh random bytes.
func NewChallenge() ([ChallengeSize]byte, error) {
	var c [ChallengeSize]byte
	if _, err := rand.Read(c[:]); err != nil {
		return c, asseterr.Wrap(asseterr.CryptoError, err, "challenge generation failed")
	}
	return c, nil
}

// Insert adds sess under (scope, challenge), evicting any entries whose own TTL has
// elapsed first. If the cache is still full afterward, returns LimitExceeded (§4.7).
func (c *Cache) Insert(scope callerinfo.Scope, challenge [ChallengeSize]byte, sess Session, validFor time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.evictExpiredLocked(validFor)
	if c.store.Len() >= Capacity {
		if _, ok := c.store.Get(key{scope.Key(), challenge}); !ok {
			return asseterr.New(asseterr.LimitExceeded, "auth-session cache at capacity (%d)", Capacity)
		}
	}
	c.store.Add(key{scope.Key(), challenge}, sess)
	return nil
}

// evictExpiredLocked drops entries older than validFor. Called with mu held.
func (c *Cache) evictExpiredLocked(validFor time.Duration) {
	if validFor <= 0 {
		validFor = DefaultValidityPeriod
	}
	now := time.Now()
	for _, k := range c.store.Keys() {
		if v, ok := c.store.Peek(k); ok {
			if now.Sub(v.CreatedAt) >= validFor {
				c.store.Remove(k)
			}
		}
	}
}

// Find returns the session for (scope, challenge) iff present and not expired for
// validFor. A miss is not an error: callers translate it to AccessDenied themselves.
func (c *Cache) Find(scope callerinfo.Scope, challenge [ChallengeSize]byte, validFor time.Duration) (Session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	sess, ok := c.store.Get(key{scope.Key(), challenge})
	if !ok {
		return Session{}, false
	}
	if validFor <= 0 {
		validFor = DefaultValidityPeriod
	}
	if time.Since(sess.CreatedAt) >= validFor {
		c.store.Remove(key{scope.Key(), challenge})
		return Session{}, false
	}
	return sess, true
}

// Evict removes the exact (scope, challenge) entry. post_query is idempotent, so a
// miss here is not reported as an error (§4.6.5).
func (c *Cache) Evict(scope callerinfo.Scope, challenge [ChallengeSize]byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store.Remove(key{scope.Key(), challenge})
}

// OnScreenLocked evicts every session whose key required DeviceUnlocked (§4.7).
func (c *Cache) OnScreenLocked() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.store.Keys() {
		if v, ok := c.store.Peek(k); ok && v.RequiresDeviceUnlock {
			c.store.Remove(k)
		}
	}
}

// OnOwnerRemoved evicts every session whose scope's owner matches owner (§4.7
// owner-uninstalled event).
func (c *Cache) OnOwnerRemoved(ownerType assettype.OwnerType, owner []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range c.store.Keys() {
		if v, ok := c.store.Peek(k); ok && v.Scope.OwnerType == ownerType && string(v.Scope.Owner) == string(owner) {
			c.store.Remove(k)
		}
	}
}

// Len reports the current entry count (test/diagnostic use).
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Len()
}
