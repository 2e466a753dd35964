package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// Mode selects which Authenticator implementation a Service wraps.
type Mode string

// Supported authentication modes.
const (
	ModeStatic Mode = "static"
	ModeOAuth  Mode = "oauth"
)

// Authenticator verifies a presented bearer token and returns the
// resulting Info, or a CodeInvalidToken error.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Info, error)
}

// Service is the Auth Service façade used by the HTTP pipeline: it
// extracts a token from the request and delegates to the configured
// Authenticator.
type Service struct {
	mode          Mode
	authenticator Authenticator
}

// NewService wraps an Authenticator for the given mode. mode determines
// whether X-API-Key is accepted as a token source (static mode only,
// per the specification).
func NewService(mode Mode, authenticator Authenticator) *Service {
	return &Service{mode: mode, authenticator: authenticator}
}

// Mode reports which mode this Service was constructed for.
func (s *Service) Mode() Mode { return s.mode }

// Authenticate extracts a bearer token (or, in static mode, an
// X-API-Key header) from r and verifies it.
func (s *Service) Authenticate(ctx context.Context, r *http.Request) (*Info, error) {
	token := bearerToken(r)
	if token == "" && s.mode == ModeStatic {
		token = r.Header.Get("X-API-Key")
	}
	if token == "" {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "missing Authorization header")
	}
	return s.authenticator.Authenticate(ctx, token)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(h) > len(prefix) && strings.EqualFold(h[:len(prefix)], prefix) {
		return h[len(prefix):]
	}
	return ""
}
