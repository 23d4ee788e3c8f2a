// SPDX-License-Identifier: MIT

package api

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/inkframe/inkframe/internal/log"
)

// requireAPIKey guards mutating endpoints. The key is accepted in either the
// X-API-Key header or an Authorization bearer token. With no key configured
// the guard is disabled, which is the expected single-user LAN deployment.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		presented := r.Header.Get("X-API-Key")
		if presented == "" {
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		if subtle.ConstantTimeCompare([]byte(presented), []byte(s.cfg.APIKey)) != 1 {
			logger := log.WithComponentFromContext(r.Context(), "api")
			logger.Warn().
				Str("path", r.URL.Path).
				Msg("rejected request with missing or invalid api key")
			writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{Error: "missing or invalid api key"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
