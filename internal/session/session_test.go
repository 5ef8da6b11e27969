package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/session"
)

func testScope() callerinfo.Scope {
	return callerinfo.Scope{UserID: 100, OwnerType: assettype.OwnerHap, Owner: []byte("app_0")}
}

func TestInsertThenFind(t *testing.T) {
	c := session.New()
	scope := testScope()
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	require.NoError(t, c.Insert(scope, challenge, session.Session{Scope: scope, Challenge: challenge, CreatedAt: time.Now()}, session.DefaultValidityPeriod))

	sess, ok := c.Find(scope, challenge, session.DefaultValidityPeriod)
	require.True(t, ok)
	assert.Equal(t, scope.Key(), sess.Scope.Key())
}

func TestFindMissAfterTTLExpires(t *testing.T) {
	c := session.New()
	scope := testScope()
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	require.NoError(t, c.Insert(scope, challenge, session.Session{
		Scope: scope, Challenge: challenge, CreatedAt: time.Now().Add(-2 * time.Second),
	}, time.Second))

	_, ok := c.Find(scope, challenge, time.Second)
	assert.False(t, ok)
}

func TestEvictIsIdempotent(t *testing.T) {
	c := session.New()
	scope := testScope()
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	c.Evict(scope, challenge)
	c.Evict(scope, challenge)
}

func TestCapacityExhaustionReturnsLimitExceeded(t *testing.T) {
	c := session.New()
	scope := testScope()

	for i := 0; i < session.Capacity; i++ {
		ch, err := session.NewChallenge()
		require.NoError(t, err)
		require.NoError(t, c.Insert(scope, ch, session.Session{Scope: scope, Challenge: ch, CreatedAt: time.Now()}, session.DefaultValidityPeriod))
	}

	overflow, err := session.NewChallenge()
	require.NoError(t, err)
	err = c.Insert(scope, overflow, session.Session{Scope: scope, Challenge: overflow, CreatedAt: time.Now()}, session.DefaultValidityPeriod)
	assert.Error(t, err)
}

func TestOnScreenLockedEvictsDeviceUnlockSessions(t *testing.T) {
	c := session.New()
	scope := testScope()
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	require.NoError(t, c.Insert(scope, challenge, session.Session{
		Scope: scope, Challenge: challenge, CreatedAt: time.Now(), RequiresDeviceUnlock: true,
	}, session.DefaultValidityPeriod))

	c.OnScreenLocked()
	_, ok := c.Find(scope, challenge, session.DefaultValidityPeriod)
	assert.False(t, ok)
}

func TestOnOwnerRemovedEvictsMatchingScope(t *testing.T) {
	c := session.New()
	scope := testScope()
	challenge, err := session.NewChallenge()
	require.NoError(t, err)
	require.NoError(t, c.Insert(scope, challenge, session.Session{Scope: scope, Challenge: challenge, CreatedAt: time.Now()}, session.DefaultValidityPeriod))

	c.OnOwnerRemoved(assettype.OwnerHap, []byte("app_0"))

	_, ok := c.Find(scope, challenge, session.DefaultValidityPeriod)
	assert.False(t, ok)
}
