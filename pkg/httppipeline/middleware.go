package httppipeline

import (
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// maxJSONBodyBytes is the specification's 1 MiB inbound body cap.
const maxJSONBodyBytes = 1 << 20

// rejectDuplicateHeaders implements pipeline step 2: any of the
// single-value headers repeated more than once is a 400.
func rejectDuplicateHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, h := range singleValueHeaders {
			if len(r.Header.Values(h)) > 1 {
				http.Error(w, "duplicate header: "+h, http.StatusBadRequest)
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// hostOriginPolicy implements pipeline step 3: Host must be present
// and allowed; Origin, when present, must parse and its host must
// also be allowed.
func hostOriginPolicy(allowed map[string]bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			host := hostOnly(r.Host)
			if host == "" || !isAllowedHost(host, allowed) {
				http.Error(w, "host not allowed", http.StatusForbidden)
				return
			}

			if origin := r.Header.Get("Origin"); origin != "" {
				u, err := url.Parse(origin)
				if err != nil || !isAllowedHost(u.Hostname(), allowed) {
					http.Error(w, "origin not allowed", http.StatusForbidden)
					return
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

func isAllowedHost(host string, allowed map[string]bool) bool {
	if host == "localhost" || host == "127.0.0.1" || host == "::1" {
		return true
	}
	return allowed[host]
}

func hostOnly(hostport string) string {
	host, _, err := net.SplitHostPort(hostport)
	if err != nil {
		return strings.TrimSpace(hostport)
	}
	return host
}

// jsonBodyLimit caps the inbound request body at maxJSONBodyBytes when
// the request carries a JSON content type, per pipeline step 6. An
// oversized /mcp POST is reported as a JSON-RPC -32700 Parse error in
// the same envelope the gateway uses for a streamed-body overflow;
// every other route gets a plain 400.
func jsonBodyLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.Contains(r.Header.Get("Content-Type"), "application/json") {
			if r.ContentLength > maxJSONBodyBytes {
				if r.URL.Path == "/mcp" && r.Method == http.MethodPost {
					writeParseErrorEnvelope(w)
					return
				}
				http.Error(w, "request body too large", http.StatusBadRequest)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// writeParseErrorEnvelope mirrors pkg/mcpgateway's writeParseError so a
// body rejected before it ever reaches the gateway still looks like
// every other /mcp JSON-RPC error response.
func writeParseErrorEnvelope(w http.ResponseWriter) {
	ae := apperrors.New(apperrors.CodeParseError, "Parse error")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(ae.HTTPStatus)
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
		}{Code: ae.JSONRPCCode, Message: ae.Message},
	})
}
