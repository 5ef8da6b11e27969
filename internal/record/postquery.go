package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/session"
)

// PostQuery implements §4.6.5: evict the session opened by the matching PreQuery.
// Idempotent — a miss (already evicted, or the challenge never existed) is not an
// error, matching session.Cache.Evict's own contract.
func (s *Service) PostQuery(ctx context.Context, scope callerinfo.Scope, challenge [session.ChallengeSize]byte) error {
	s.Cache.Evict(scope, challenge)
	return nil
}
