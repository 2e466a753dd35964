// Package mcpgateway routes the /mcp endpoint: it creates and resumes
// MCP sessions over go-sdk's Streamable HTTP transport, enforcing
// capacity admission, protocol-version negotiation, and auth
// fingerprint binding that go-sdk itself does not provide.
package mcpgateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/auth"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/logger"
	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/session"
)

// SupportedProtocolVersions is the set of MCP-Protocol-Version values
// this gateway accepts. A missing header is treated as the
// backward-compatible default.
var SupportedProtocolVersions = map[string]bool{
	"2025-11-25": true,
	"2025-03-26": true,
}

// DefaultInitTimeout bounds how long a reserved-but-uninitialized
// session slot is held before it is reclaimed.
const DefaultInitTimeout = 10 * time.Second

// maxInitializeBodyBytes bounds the peek used to detect an
// "initialize" JSON-RPC request before handing the body to go-sdk.
const maxInitializeBodyBytes = 1 << 20

// pendingServer tracks a session's MCP server between reservation and
// either successful initialization or timeout/failure.
type pendingServer struct {
	server  *mcp.Server
	release func()
}

// NewServerFunc builds a fresh, per-session MCP server. onInitialized
// is invoked exactly once, from go-sdk's InitializedHandler, when the
// client completes the initialize handshake.
type NewServerFunc func(onInitialized func()) *mcp.Server

// Gateway implements the MCP Session Gateway described by the
// specification, fronting a go-sdk StreamableHTTPHandler run in
// stateless mode (the gateway, not the SDK, owns session identity).
type Gateway struct {
	store       *session.Store
	newServer   NewServerFunc
	hmacKey     []byte
	initTimeout time.Duration

	mu      sync.Mutex
	pending map[string]*pendingServer

	transport http.Handler
}

// New builds a Gateway. hmacKey is used to recompute a request's auth
// fingerprint for comparison against a session's bound fingerprint.
func New(store *session.Store, newServer NewServerFunc, hmacKey []byte, initTimeout time.Duration) *Gateway {
	if initTimeout <= 0 {
		initTimeout = DefaultInitTimeout
	}
	g := &Gateway{
		store:       store,
		newServer:   newServer,
		hmacKey:     hmacKey,
		initTimeout: initTimeout,
		pending:     make(map[string]*pendingServer),
	}
	g.transport = mcp.NewStreamableHTTPHandler(g.serverForRequest, &mcp.StreamableHTTPOptions{Stateless: true})
	return g
}

func (g *Gateway) serverForRequest(r *http.Request) *mcp.Server {
	id := r.Header.Get("Mcp-Session-Id")
	g.mu.Lock()
	defer g.mu.Unlock()
	if p, ok := g.pending[id]; ok {
		return p.server
	}
	return g.newServer(func() {})
}

// ServeHTTP dispatches POST/GET/DELETE on /mcp per the specification's
// §4.11 endpoint table.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if pv := r.Header.Get("MCP-Protocol-Version"); pv != "" && !SupportedProtocolVersions[pv] {
		writeRPCError(w, apperrors.CodeProtocolVersionUnsupported, "unsupported protocol version")
		return
	}

	switch r.Method {
	case http.MethodPost:
		g.handlePost(w, r)
	case http.MethodGet:
		g.handleGet(w, r)
	case http.MethodDelete:
		g.handleDelete(w, r)
	default:
		w.Header().Set("Allow", "GET, POST, DELETE, OPTIONS")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (g *Gateway) handlePost(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id != "" {
		rec, ok := g.store.Get(id)
		if !ok || rec.AuthFingerprint != g.requestFingerprint(r) {
			writeSessionNotFound(w)
			return
		}
		g.store.Touch(id)
		g.transport.ServeHTTP(w, r)
		return
	}

	isInit, body, err := peekInitialize(r)
	if err != nil {
		writeParseError(w)
		return
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !isInit {
		writeRPCError(w, apperrors.CodeProtocolVersionUnsupported, "Missing session ID")
		return
	}
	g.createSession(w, r)
}

func (g *Gateway) handleGet(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id == "" || r.Header.Get("MCP-Protocol-Version") == "" {
		http.Error(w, "missing required headers", http.StatusBadRequest)
		return
	}
	if !acceptsEventStream(r) {
		http.Error(w, "Accept must include text/event-stream", http.StatusNotAcceptable)
		return
	}
	rec, ok := g.store.Get(id)
	if !ok || rec.AuthFingerprint != g.requestFingerprint(r) {
		writeSessionNotFound(w)
		return
	}
	g.store.Touch(id)
	g.transport.ServeHTTP(w, r)
}

func (g *Gateway) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r)
	if id != "" {
		g.closeSession(id)
	}
	w.WriteHeader(http.StatusOK)
}

// createSession runs the admission flow: ensureCapacity, reserveSlot,
// connect a fresh server+transport, and start the initialization
// timeout. The slot is released exactly once regardless of outcome.
func (g *Gateway) createSession(w http.ResponseWriter, r *http.Request) {
	id, release, ok := g.store.ReserveSlot()
	if !ok {
		writeServerBusy(w)
		return
	}

	fingerprint := g.requestFingerprint(r)

	var once sync.Once
	releaseOnce := func() { once.Do(release) }

	initialized := make(chan struct{})
	server := g.newServer(func() { close(initialized) })

	g.mu.Lock()
	g.pending[id] = &pendingServer{server: server, release: releaseOnce}
	g.mu.Unlock()

	r.Header.Set("Mcp-Session-Id", id)
	w.Header().Set("Mcp-Session-Id", id)

	timer := time.AfterFunc(g.initTimeout, func() {
		g.mu.Lock()
		_, stillPending := g.pending[id]
		delete(g.pending, id)
		g.mu.Unlock()
		if stillPending {
			logger.Warnw("session initialization timed out", "sessionId", id)
			releaseOnce()
		}
	})

	g.transport.ServeHTTP(w, r)

	select {
	case <-initialized:
		timer.Stop()
		g.store.Set(&session.Record{
			ID:                  id,
			AuthFingerprint:     fingerprint,
			CreatedAt:           time.Now(),
			LastSeen:            time.Now(),
			ProtocolInitialized: true,
		})
		releaseOnce()
	default:
		// Not yet initialized when the HTTP handler returned; the
		// session remains pending until InitializedHandler fires or
		// the timer above reclaims the slot.
	}
}

func (g *Gateway) closeSession(id string) {
	g.mu.Lock()
	p, wasPending := g.pending[id]
	delete(g.pending, id)
	g.mu.Unlock()
	if wasPending && p.release != nil {
		p.release()
	}
	g.store.Remove(id)
}

func (g *Gateway) requestFingerprint(r *http.Request) string {
	info, ok := auth.InfoFromContext(r.Context())
	if !ok || info == nil {
		return ""
	}
	return auth.Fingerprint(g.hmacKey, info.ClientID, info.Token)
}

func sessionID(r *http.Request) string {
	if id := r.Header.Get("Mcp-Session-Id"); id != "" {
		return id
	}
	return r.Header.Get("X-Mcp-Session-Id")
}

func acceptsEventStream(r *http.Request) bool {
	for _, v := range r.Header.Values("Accept") {
		if strings.Contains(v, "text/event-stream") {
			return true
		}
	}
	return false
}

type rpcEnvelope struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
}

// peekInitialize reads (and fully buffers) the request body to
// determine whether it is a single, well-formed "initialize" JSON-RPC
// request, returning the buffered bytes so the caller can replay them
// onto a fresh reader.
func peekInitialize(r *http.Request) (isInit bool, body []byte, err error) {
	limited := io.LimitReader(r.Body, maxInitializeBodyBytes+1)
	body, err = io.ReadAll(limited)
	if err != nil {
		return false, nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		return false, body, nil
	}

	var env rpcEnvelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return false, body, err
	}
	return env.Method == "initialize", body, nil
}

func writeRPCError(w http.ResponseWriter, code apperrors.Code, message string) {
	ae := apperrors.New(code, message)
	writeJSONRPCEnvelope(w, ae.HTTPStatus, ae.JSONRPCCode, message)
}

func writeSessionNotFound(w http.ResponseWriter) {
	ae := apperrors.New(apperrors.CodeSessionNotFound, "Session not found")
	writeJSONRPCEnvelope(w, ae.HTTPStatus, apperrors.JSONRPCInvalidRequest, "Session not found")
}

func writeParseError(w http.ResponseWriter) {
	writeJSONRPCEnvelope(w, http.StatusBadRequest, apperrors.JSONRPCParseError, "Parse error")
}

func writeServerBusy(w http.ResponseWriter) {
	ae := apperrors.New(apperrors.CodeServerBusy, "server at capacity")
	writeJSONRPCEnvelope(w, ae.HTTPStatus, apperrors.JSONRPCServerBusy, ae.Message)
}

func writeJSONRPCEnvelope(w http.ResponseWriter, status, jsonrpcCode int, message string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(struct {
		JSONRPC string `json:"jsonrpc"`
		Error   struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}{
		JSONRPC: "2.0",
		Error: struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		}{Code: jsonrpcCode, Message: message},
	})
}
