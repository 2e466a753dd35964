package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// Info is the Auth Info record described by the data model: the
// verified credential for a single inbound request. It lives only for
// that request's lifetime and is never persisted.
type Info struct {
	// Token is the opaque bearer token or access token presented by the
	// client. It is redacted by String and MarshalJSON.
	Token string

	// ClientID identifies the authenticated principal. For static-token
	// auth this is always "static-token"; for OAuth it is the
	// introspection response's client_id (or subject, if absent).
	ClientID string

	// Scopes are the granted scopes, if any.
	Scopes []string

	// ExpiresAt is the credential's expiry, as a Unix epoch second. Nil
	// means the credential does not expire (or the expiry is unknown).
	ExpiresAt *int64

	// ResourceURL is the RFC 8707 resource indicator associated with the
	// request, when known.
	ResourceURL string
}

// String returns a redacted representation safe for logging.
func (i *Info) String() string {
	if i == nil {
		return "<nil>"
	}
	return "Info{ClientID:" + i.ClientID + "}"
}

// MarshalJSON redacts Token so Info is safe to embed in structured logs
// or diagnostic responses.
func (i *Info) MarshalJSON() ([]byte, error) {
	if i == nil {
		return []byte("null"), nil
	}
	type safeInfo struct {
		Token       string   `json:"token"`
		ClientID    string   `json:"clientId"`
		Scopes      []string `json:"scopes"`
		ExpiresAt   *int64   `json:"expiresAt,omitempty"`
		ResourceURL string   `json:"resourceUrl,omitempty"`
	}
	token := ""
	if i.Token != "" {
		token = "REDACTED"
	}
	return json.Marshal(&safeInfo{
		Token:       token,
		ClientID:    i.ClientID,
		Scopes:      i.Scopes,
		ExpiresAt:   i.ExpiresAt,
		ResourceURL: i.ResourceURL,
	})
}

// Fingerprint computes the session auth fingerprint: a keyed HMAC-SHA256
// of "clientId:token", hex-encoded. Two requests bind to the same MCP
// session only when their fingerprints match; the raw token is never
// stored on the session record.
func Fingerprint(key []byte, clientID, token string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(clientID))
	mac.Write([]byte{':'})
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
