package auth

import (
	"encoding/json"
	"net/http"

	"github.com/j0hanz/super-fetch-mcp-server-sub000/pkg/apperrors"
)

// Middleware authenticates every request through Service, attaching
// the resulting Info to the request context. A missing or invalid
// credential is rejected before the wrapped handler ever runs.
func (s *Service) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		info, err := s.Authenticate(r.Context(), r)
		if err != nil {
			writeAuthError(w, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithInfo(r.Context(), info)))
	})
}

func writeAuthError(w http.ResponseWriter, err error) {
	ae := apperrors.New(apperrors.CodeOf(err), err.Error())
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(ae.HTTPStatus)
	_ = json.NewEncoder(w).Encode(struct {
		Error string `json:"error"`
	}{Error: string(ae.Code)})
}
