package api

import (
	"net/http"

	"github.com/nidvy/host/internal/auth"
)

// authMiddleware requires the configured bearer token.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presented, err := auth.ExtractBearerToken(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		if !auth.Matches(presented, s.config.Token) {
			s.logger.Warn("rejected API request", "path", r.URL.Path, "remote", r.RemoteAddr)
			s.writeError(w, http.StatusUnauthorized, "invalid API token")
			return
		}
		next.ServeHTTP(w, r)
	})
}
