package session

import (
	"encoding/hex"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/armorclaw/assetstore/internal/asseterr"
)

// authTokenClaims is the device-signed token query presents alongside a pre_query
// challenge (§4.6.3 step 3). The device's attestation service mints these; this
// package only verifies them against the challenge it handed out.
type authTokenClaims struct {
	jwt.RegisteredClaims
	Challenge string `json:"chl"` // hex encoding of the 32-byte challenge
}

// TokenVerifier checks a device-signed AuthToken against the challenge the caller
// is presenting. Verify accepts HS256-signed tokens only, so signer and verifier
// share one symmetric key.
type TokenVerifier struct {
	keyFunc jwt.Keyfunc
}

// NewHMACVerifier builds a verifier for HS256-signed tokens; cmd/assetsvc and the
// tests both use it.
func NewHMACVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{
		keyFunc: func(t *jwt.Token) (any, error) { return secret, nil },
	}
}

// Verify parses token, checks its signature and expiry, and confirms it is bound to
// challenge. A mismatch of any kind is AccessDenied (§4.6.3).
func (v *TokenVerifier) Verify(token string, challenge [ChallengeSize]byte) error {
	claims := &authTokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, v.keyFunc, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil || !parsed.Valid {
		return asseterr.Wrap(asseterr.AccessDenied, err, "auth token verification failed")
	}
	if claims.Challenge != hex.EncodeToString(challenge[:]) {
		return asseterr.New(asseterr.AccessDenied, "auth token not bound to the presented challenge")
	}
	return nil
}

// MintForTest builds a token bound to challenge, valid for ttl. Test-only: a real
// device signs these, the core never mints them itself.
func MintForTest(secret []byte, challenge [ChallengeSize]byte, ttl time.Duration) (string, error) {
	claims := authTokenClaims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl))},
		Challenge:        hex.EncodeToString(challenge[:]),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return tok.SignedString(secret)
}
