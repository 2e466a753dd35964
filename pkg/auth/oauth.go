package auth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// maxIntrospectionResponseBytes bounds the introspection response body
// so a misbehaving or compromised authorization server cannot exhaust
// memory.
const maxIntrospectionResponseBytes = 64 * 1024

// OAuthAuthenticatorConfig configures OAuthAuthenticator.
type OAuthAuthenticatorConfig struct {
	// IntrospectionURL is the RFC 7662 token introspection endpoint.
	IntrospectionURL string
	// ClientID and ClientSecret, when both set, are sent as HTTP Basic
	// auth on the introspection request.
	ClientID     string
	ClientSecret string
	// ResourceURL is sent as the `resource` form parameter (RFC 8707),
	// with any fragment stripped.
	ResourceURL string
	// Timeout bounds the introspection round trip. Defaults to 5s.
	Timeout time.Duration
	// HTTPClient is the client used for introspection calls. Defaults
	// to a client with Timeout set from the field above.
	HTTPClient *http.Client
}

// OAuthAuthenticator verifies opaque access tokens by calling an RFC
// 7662 token introspection endpoint. The request inherits the caller's
// context, so it is canceled whenever the inbound request's
// cancellation signal fires.
type OAuthAuthenticator struct {
	cfg    OAuthAuthenticatorConfig
	client *http.Client
}

// NewOAuthAuthenticator builds an OAuthAuthenticator from cfg.
func NewOAuthAuthenticator(cfg OAuthAuthenticatorConfig) *OAuthAuthenticator {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &OAuthAuthenticator{cfg: cfg, client: client}
}

// introspectionResponse is the subset of RFC 7662's response body
// superFetch cares about.
type introspectionResponse struct {
	Active    bool     `json:"active"`
	ClientID  string   `json:"client_id,omitempty"`
	Sub       string   `json:"sub,omitempty"`
	Scope     string   `json:"scope,omitempty"`
	Exp       *float64 `json:"exp,omitempty"`
	TokenType string   `json:"token_type,omitempty"`
}

// Authenticate introspects token and returns its Info on success.
func (a *OAuthAuthenticator) Authenticate(ctx context.Context, token string) (*Info, error) {
	if token == "" {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "missing bearer token")
	}

	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")
	if a.cfg.ResourceURL != "" {
		form.Set("resource", stripFragment(a.cfg.ResourceURL))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.IntrospectionURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInternal, "failed to build introspection request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	if a.cfg.ClientID != "" && a.cfg.ClientSecret != "" {
		req.SetBasicAuth(a.cfg.ClientID, a.cfg.ClientSecret)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "introspection request failed").WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxIntrospectionResponseBytes))
	if err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "failed to read introspection response").WithCause(err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.Newf(apperrors.CodeInvalidToken, "introspection failed with status %d", resp.StatusCode)
	}

	var ir introspectionResponse
	if err := json.Unmarshal(body, &ir); err != nil {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "malformed introspection response").WithCause(err)
	}

	if !ir.Active {
		return nil, apperrors.New(apperrors.CodeInvalidToken, "token is not active")
	}

	clientID := ir.ClientID
	if clientID == "" {
		clientID = ir.Sub
	}

	var scopes []string
	if ir.Scope != "" {
		scopes = strings.Fields(ir.Scope)
	}

	var expiresAt *int64
	if ir.Exp != nil {
		v := int64(*ir.Exp)
		expiresAt = &v
	} else if exp := jwtExpiry(token); exp != nil {
		// Some authorization servers omit `exp` from the introspection
		// body for JWT-formatted access tokens, trusting the caller to
		// read it off the token itself. Active:true already vouches for
		// the token, so reading the claim back out unverified only
		// recovers an expiry hint, not trust.
		expiresAt = exp
	}

	return &Info{
		Token:       token,
		ClientID:    clientID,
		Scopes:      scopes,
		ExpiresAt:   expiresAt,
		ResourceURL: a.cfg.ResourceURL,
	}, nil
}

// jwtExpiry extracts the "exp" claim from token without verifying its
// signature, returning nil if token is not a parseable JWT or carries
// no expiry claim.
func jwtExpiry(token string) *int64 {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	v := exp.Unix()
	return &v
}

func stripFragment(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.Fragment = ""
	return u.String()
}
