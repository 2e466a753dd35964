// Package auth implements the superFetch Auth Service: static bearer
// tokens verified with a constant-time HMAC comparison, or OAuth 2.0
// token introspection (RFC 7662) against a configured authorization
// server. Exactly one mode is active per process, selected at boot.
package auth
