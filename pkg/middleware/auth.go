package middleware

import (
	"errors"
	"net/http"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/contextkeys"
	"github.com/hubgate/hubgate/pkg/httputil"
	"github.com/hubgate/hubgate/pkg/session"
)

// RequireRole gates a handler behind the authorization guard. The
// resolved principal is attached to the request context for handlers
// downstream.
func RequireRole(guard *auth.Guard, min auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := guard.Require(r.Context(), min, auth.NewRequestContext(r))
			if err != nil {
				RespondAuthError(w, err)
				return
			}

			ctx := contextkeys.WithPrincipal(r.Context(), principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetPrincipal extracts the resolved principal from the request. The
// zero principal is returned outside RequireRole-wrapped handlers.
func GetPrincipal(r *http.Request) auth.Principal {
	if principal, ok := r.Context().Value(contextkeys.PrincipalKey).(auth.Principal); ok {
		return principal
	}
	return auth.Principal{}
}

// RespondAuthError maps an authentication or authorization failure onto
// the wire. All token verification failures collapse into one 401 so
// the response does not reveal whether a credential was expired, forged,
// or malformed.
func RespondAuthError(w http.ResponseWriter, err error) {
	switch {
	case session.IsVerificationError(err):
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "reauthenticate", "session is expired or invalid")
	case errors.Is(err, auth.ErrUnauthenticated):
		httputil.WriteErrorCode(w, http.StatusUnauthorized, "authentication_required", "authentication required")
	case errors.Is(err, auth.ErrForbiddenIdentity):
		httputil.WriteErrorCode(w, http.StatusForbidden, "identity_not_allowed", err.Error())
	case errors.Is(err, auth.ErrAccountDeactivated):
		httputil.WriteErrorCode(w, http.StatusForbidden, "account_deactivated", err.Error())
	case errors.Is(err, auth.ErrForbidden):
		httputil.WriteErrorCode(w, http.StatusForbidden, "insufficient_role", err.Error())
	default:
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}
