// internal/acl/middleware.go
//
// Chi middleware helpers that enforce model permissions.

package acl

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/yanizio/ajaxviews/internal/auth"
)

// RequirePermission verifies that the current user's roles allow
// action on model.  Anonymous users get 401.
func (s *Store) RequirePermission(model, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := auth.FromContext(r.Context())
			if !u.IsAuthenticated() {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			allowed, err := s.HasModelPerm(r.Context(), u, model, action)
			if err != nil {
				zap.L().Error("acl model perm", zap.String("model", model), zap.Error(err))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !allowed {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
