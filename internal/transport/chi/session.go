package chi

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/mlcatalog/mlsearch/internal/session"
)

// SessionCookie names the cookie carrying the session id.
const SessionCookie = "mlsearch_session"

type sessionKey struct{}

// SessionMiddleware attaches a session to every request, issuing a cookie when the
// request has none or an invalid one. A nil store disables sessions.
func SessionMiddleware(store session.Store, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var id string
			if c, err := r.Cookie(SessionCookie); err == nil && session.ValidID(c.Value) {
				id = c.Value
			} else {
				id = session.NewID()
				http.SetCookie(w, &http.Cookie{
					Name:     SessionCookie,
					Value:    id,
					Path:     "/",
					HttpOnly: true,
					SameSite: http.SameSiteLaxMode,
				})
				logger.Debug("Session issued", zap.String("session", id))
			}
			ctx := context.WithValue(r.Context(), sessionKey{}, session.New(id, store))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionFromContext(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

// RecentSearches handles GET /api/v1/session/recent.
func (s *Server) RecentSearches(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "sessions are disabled")
		return
	}
	recent, err := sess.Recent(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	out := make(map[string]string, len(recent))
	for entity, q := range recent {
		out[string(entity)] = q
	}
	writeJSON(w, http.StatusOK, RecentResponse{SessionID: sess.ID(), Recent: out})
}

// ClearSession handles DELETE /api/v1/session.
func (s *Server) ClearSession(w http.ResponseWriter, r *http.Request) {
	sess := sessionFromContext(r.Context())
	if sess == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if err := sess.Clear(r.Context()); err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
