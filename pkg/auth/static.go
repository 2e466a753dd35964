package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"time"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// staticTokenClientID is the fixed client identifier attached to every
// request authenticated in static-token mode.
const staticTokenClientID = "static-token"

// staticTokenTTL is how long an Info minted by static-token auth claims
// to be valid for (the mode itself has no real expiry; this is a
// nominal value so callers can treat ExpiresAt uniformly).
const staticTokenTTL = 24 * time.Hour

// StaticAuthenticator verifies a bearer token against a fixed set of
// configured tokens using a constant-time comparison that never
// short-circuits on the first mismatch, per the specification's
// "constant-time token comparison" invariant.
type StaticAuthenticator struct {
	hmacKey []byte
	digests [][32]byte
	scopes  []string
}

// NewStaticAuthenticator stores each configured token as a keyed HMAC
// digest under hmacKey, so the in-memory token set never holds raw
// tokens at rest either.
func NewStaticAuthenticator(hmacKey []byte, tokens []string, scopes []string) *StaticAuthenticator {
	a := &StaticAuthenticator{hmacKey: hmacKey, scopes: scopes}
	for _, t := range tokens {
		a.digests = append(a.digests, a.digest(t))
	}
	return a
}

func (a *StaticAuthenticator) digest(token string) [32]byte {
	mac := hmac.New(sha256.New, a.hmacKey)
	mac.Write([]byte(token))
	var out [32]byte
	copy(out[:], mac.Sum(nil))
	return out
}

// Authenticate verifies token against every configured digest,
// accumulating match bits across the whole candidate set instead of
// returning as soon as a match (or mismatch) is found, so that timing
// cannot reveal which candidate token, if any, matched.
func (a *StaticAuthenticator) Authenticate(_ context.Context, token string) (*Info, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "missing bearer token")
	}

	presented := a.digest(token)

	matched := 0
	for _, d := range a.digests {
		if hmac.Equal(presented[:], d[:]) {
			matched++
		}
	}

	if matched == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "token not recognized")
	}

	expiresAt := time.Now().Add(staticTokenTTL).Unix()
	return &Info{
		Token:     token,
		ClientID:  staticTokenClientID,
		Scopes:    append([]string(nil), a.scopes...),
		ExpiresAt: &expiresAt,
	}, nil
}
