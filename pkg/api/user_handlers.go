package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/httputil"
	"github.com/hubgate/hubgate/pkg/middleware"
	"github.com/hubgate/hubgate/pkg/observability"
)

// UserHandlers serves account management in multi-user mode. Everything
// here is admin-gated except reading one's own account.
type UserHandlers struct {
	users auth.UserStore
	guard *auth.Guard
	audit *auth.AuditLogger
	log   *observability.Logger
}

// NewUserHandlers creates the user management handler group.
func NewUserHandlers(users auth.UserStore, guard *auth.Guard, audit *auth.AuditLogger, log *observability.Logger) *UserHandlers {
	return &UserHandlers{users: users, guard: guard, audit: audit, log: log}
}

// RegisterRoutes registers the user management routes on the router.
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	admin := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireRole(h.guard, auth.RoleAdmin)(fn)
	}
	member := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireRole(h.guard, auth.RoleUser)(fn)
	}

	router.Handle("/users", admin(h.list)).Methods("GET")
	router.Handle("/users/stats", admin(h.stats)).Methods("GET")
	router.Handle("/users/{id:[0-9]+}", member(h.get)).Methods("GET")
	router.Handle("/users/{id:[0-9]+}/role", admin(h.updateRole)).Methods("PUT")
	router.Handle("/users/{id:[0-9]+}/activate", admin(h.activate)).Methods("POST")
	router.Handle("/users/{id:[0-9]+}/deactivate", admin(h.deactivate)).Methods("POST")
}

func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	activeOnly, err := httputil.ParseQueryBool(r, "active_only", false)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	limit, err := httputil.ParseQueryInt(r, "limit", 50)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}
	offset, err := httputil.ParseQueryInt(r, "offset", 0)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	users, err := h.users.List(r.Context(), activeOnly, limit, offset)
	if err != nil {
		h.log.WithError(err).Error("list users failed")
		httputil.WriteInternalError(w, errors.New("failed to list users"))
		return
	}
	if users == nil {
		users = []*auth.User{}
	}
	httputil.WriteSuccess(w, users)
}

func (h *UserHandlers) stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.users.Stats(r.Context())
	if err != nil {
		h.log.WithError(err).Error("user stats failed")
		httputil.WriteInternalError(w, errors.New("failed to compute user stats"))
		return
	}
	httputil.WriteSuccess(w, stats)
}

// get returns one account. Admins may read anyone; everyone else only
// their own record.
func (h *UserHandlers) get(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, _ := h.findUser(w, r, id)
	if user == nil {
		return
	}

	principal := middleware.GetPrincipal(r)
	if !principal.Role.AtLeast(auth.RoleAdmin) && user.ProviderIdentity != principal.ProviderIdentity {
		httputil.WriteForbidden(w, "insufficient role")
		return
	}
	httputil.WriteSuccess(w, user)
}

// UpdateRoleRequest sets a user's stored role.
type UpdateRoleRequest struct {
	Role string `json:"role"`
}

func (h *UserHandlers) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	var req UpdateRoleRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	role, err := auth.ParseRole(req.Role)
	if err != nil || role == auth.RoleAnonymous {
		httputil.WriteBadRequest(w, "role must be user or admin")
		return
	}

	user, _ := h.findUser(w, r, id)
	if user == nil {
		return
	}

	// An admin demoting themselves could strand a deployment with no
	// admin at all.
	principal := middleware.GetPrincipal(r)
	if user.ProviderIdentity == principal.ProviderIdentity && role != auth.RoleAdmin {
		httputil.WriteConflict(w, "cannot change your own role")
		return
	}

	if err := h.users.UpdateRole(r.Context(), id, role); err != nil {
		h.respondStoreError(w, err, "update role")
		return
	}

	h.audit.AccountChanged(principal.ProviderIdentity, user.ProviderIdentity, "role:"+string(role))
	user.Role = role
	httputil.WriteSuccess(w, user)
}

func (h *UserHandlers) activate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *UserHandlers) deactivate(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *UserHandlers) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id, ok := httputil.ParsePathInt64OrError(w, r, "id")
	if !ok {
		return
	}

	user, _ := h.findUser(w, r, id)
	if user == nil {
		return
	}

	principal := middleware.GetPrincipal(r)
	if !active && user.ProviderIdentity == principal.ProviderIdentity {
		httputil.WriteConflict(w, "cannot deactivate your own account")
		return
	}

	if err := h.users.SetActive(r.Context(), id, active); err != nil {
		h.respondStoreError(w, err, "set active")
		return
	}

	action := "deactivate"
	if active {
		action = "activate"
	}
	h.audit.AccountChanged(principal.ProviderIdentity, user.ProviderIdentity, action)
	user.Active = active
	httputil.WriteSuccess(w, user)
}

// findUser loads the target account, writing the error response itself
// when the lookup fails.
func (h *UserHandlers) findUser(w http.ResponseWriter, r *http.Request, id int64) (*auth.User, error) {
	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, err, "get user")
		return nil, err
	}
	return user, nil
}

func (h *UserHandlers) respondStoreError(w http.ResponseWriter, err error, operation string) {
	if errors.Is(err, auth.ErrUserNotFound) {
		httputil.WriteNotFound(w, "user not found")
		return
	}
	h.log.WithError(err).Errorf("%s failed", operation)
	httputil.WriteInternalError(w, errors.New("storage operation failed"))
}
