package api

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/config"
	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/httputil"
	"github.com/hubgate/hubgate/pkg/middleware"
	"github.com/hubgate/hubgate/pkg/observability"
)

// stateCookieName carries the OAuth anti-forgery state between the
// authorize redirect and the callback.
const stateCookieName = "hubgate_oauth_state"

// stateTTL bounds how long a pending login may sit between redirect and
// callback.
const stateTTL = 10 * time.Minute

// AuthHandlers serves the authentication surface: mode discovery, the
// OAuth login flow, and session introspection.
type AuthHandlers struct {
	cfg   *config.Config
	guard *auth.Guard
	log   *observability.Logger
}

// NewAuthHandlers creates the authentication handler group.
func NewAuthHandlers(cfg *config.Config, guard *auth.Guard, log *observability.Logger) *AuthHandlers {
	return &AuthHandlers{cfg: cfg, guard: guard, log: log}
}

// RegisterRoutes registers the auth routes on the router.
func (h *AuthHandlers) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/auth/status", h.status).Methods("GET")
	router.HandleFunc("/auth/login", h.login).Methods("GET")
	router.HandleFunc("/auth/github/callback", h.callback).Methods("GET")
	router.HandleFunc("/auth/logout", h.logout).Methods("POST")
	router.Handle("/auth/me",
		middleware.RequireRole(h.guard, auth.RoleUser)(http.HandlerFunc(h.me))).Methods("GET")
}

// StatusResponse describes the deployment's auth posture and, when a
// valid credential accompanies the request, the caller's identity.
type StatusResponse struct {
	Mode          auth.Mode       `json:"mode"`
	Strategy      string          `json:"strategy"`
	AuthRequired  bool            `json:"auth_required"`
	Authenticated bool            `json:"authenticated"`
	Principal     *auth.Principal `json:"principal,omitempty"`
}

// status reports the active mode and strategy. A presented credential
// is resolved if possible but never required; a bad one simply reads as
// unauthenticated.
func (h *AuthHandlers) status(w http.ResponseWriter, r *http.Request) {
	strategy := h.guard.Strategy()
	resp := StatusResponse{
		Mode:         h.cfg.Auth.Mode,
		Strategy:     strategy.Name(),
		AuthRequired: strategy.RequiresAuth(),
	}

	principal, err := h.guard.Require(r.Context(), auth.RoleAnonymous, auth.NewRequestContext(r))
	if err == nil && principal.Role != auth.RoleAnonymous {
		resp.Authenticated = true
		resp.Principal = &principal
	}

	httputil.WriteSuccess(w, resp)
}

// login starts the OAuth flow: mint a state value, pin it in a cookie,
// and send the browser to the provider.
func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	strategy := h.guard.Strategy()
	if !strategy.RequiresAuth() {
		httputil.WriteNotFound(w, "login is not available in this deployment")
		return
	}

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		httputil.WriteInternalError(w, errors.New("failed to generate state"))
		return
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   int(stateTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, strategy.LoginURL(state), http.StatusFound)
}

// LoginResponse is the successful callback payload. The session token
// is also set as a cookie for browser clients.
type LoginResponse struct {
	Token     string         `json:"token"`
	ExpiresIn int64          `json:"expires_in"`
	Principal auth.Principal `json:"principal"`
}

// callback finishes the OAuth flow. State verification happens before
// the code is spent; a mismatch aborts with no provider calls made.
func (h *AuthHandlers) callback(w http.ResponseWriter, r *http.Request) {
	strategy, ok := h.guard.Strategy().(auth.CallbackHandler)
	if !ok {
		httputil.WriteNotFound(w, "login is not available in this deployment")
		return
	}

	if providerErr := r.URL.Query().Get("error"); providerErr != "" {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "provider_denied", "authorization was denied at the provider")
		return
	}

	stateCookie, err := r.Cookie(stateCookieName)
	if err != nil || stateCookie.Value == "" || r.URL.Query().Get("state") != stateCookie.Value {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "state_mismatch", auth.ErrOAuthStateMismatch.Error())
		return
	}
	h.clearCookie(w, stateCookieName)

	code := r.URL.Query().Get("code")
	if code == "" {
		httputil.WriteBadRequest(w, "missing authorization code")
		return
	}

	result, err := strategy.CompleteLogin(r.Context(), code)
	if err != nil {
		h.respondLoginError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.SessionCookieName,
		Value:    result.SessionToken,
		Path:     "/",
		MaxAge:   int(result.TTL.Seconds()),
		HttpOnly: true,
		Secure:   h.cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})

	httputil.WriteSuccess(w, LoginResponse{
		Token:     result.SessionToken,
		ExpiresIn: int64(result.TTL.Seconds()),
		Principal: result.Principal,
	})
}

func (h *AuthHandlers) respondLoginError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrForbiddenIdentity), errors.Is(err, auth.ErrAccountDeactivated):
		middleware.RespondAuthError(w, err)
	case errors.Is(err, github.ErrExchangeFailed), errors.Is(err, github.ErrIdentityFetchFailed):
		// The code is spent either way; the client must restart from the
		// authorize step.
		h.log.WithError(err).Warn("oauth login failed")
		httputil.WriteErrorCode(w, http.StatusBadGateway, "provider_error", "login failed, please retry from the start")
	default:
		h.log.WithError(err).Error("login processing failed")
		httputil.WriteInternalError(w, errors.New("internal server error"))
	}
}

// logout discards the browser session cookie. Tokens are stateless, so
// a copied credential stays valid until expiry; deactivation is the
// server-side revocation path.
func (h *AuthHandlers) logout(w http.ResponseWriter, r *http.Request) {
	h.clearCookie(w, auth.SessionCookieName)
	httputil.WriteNoContent(w)
}

// me returns the caller's resolved principal.
func (h *AuthHandlers) me(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetPrincipal(r))
}

func (h *AuthHandlers) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.Server.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	})
}
