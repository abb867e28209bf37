package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/httputil"
	"github.com/hubgate/hubgate/pkg/middleware"
	"github.com/hubgate/hubgate/pkg/observability"
)

// RepoHandlers proxies repository browsing through the provider API on
// behalf of the request's resolved provider token.
type RepoHandlers struct {
	guard    *auth.Guard
	provider *github.Client
	log      *observability.Logger
}

// NewRepoHandlers creates the repository handler group.
func NewRepoHandlers(guard *auth.Guard, provider *github.Client, log *observability.Logger) *RepoHandlers {
	return &RepoHandlers{guard: guard, provider: provider, log: log}
}

// RegisterRoutes registers the repository routes on the router.
func (h *RepoHandlers) RegisterRoutes(router *mux.Router) {
	member := func(fn http.HandlerFunc) http.Handler {
		return middleware.RequireRole(h.guard, auth.RoleUser)(fn)
	}

	router.Handle("/repos", member(h.list)).Methods("GET")
	router.Handle("/repos/{owner}/{repo}", member(h.get)).Methods("GET")
	router.Handle("/repos/{owner}/{repo}/branches", member(h.branches)).Methods("GET")
	router.Handle("/repos/{owner}/{repo}/contents/{path:.*}", member(h.contents)).Methods("GET")
	router.Handle("/repos/{owner}/{repo}/contents", member(h.contents)).Methods("GET")
}

// token resolves the provider token for this request through the active
// strategy, writing the error response when none is available.
func (h *RepoHandlers) token(w http.ResponseWriter, r *http.Request) (string, bool) {
	token, err := h.guard.Strategy().ProviderToken(r.Context(), auth.NewRequestContext(r), middleware.GetPrincipal(r))
	if err != nil {
		h.log.WithError(err).Error("provider token resolution failed")
		httputil.WriteInternalError(w, errors.New("failed to resolve provider credentials"))
		return "", false
	}
	if token == "" {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "token_required", github.ErrTokenRequired.Error())
		return "", false
	}
	return token, true
}

func (h *RepoHandlers) list(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	perPage, err := httputil.ParseQueryInt(r, "per_page", 30)
	if err != nil {
		httputil.WriteBadRequest(w, err.Error())
		return
	}

	repos, err := h.provider.ListRepos(r.Context(), token, perPage)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}
	httputil.WriteSuccess(w, repos)
}

func (h *RepoHandlers) get(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	repo, err := h.provider.GetRepo(r.Context(), token, vars["owner"], vars["repo"])
	if err != nil {
		h.respondProviderError(w, err)
		return
	}
	httputil.WriteSuccess(w, repo)
}

func (h *RepoHandlers) branches(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)

	branches, err := h.provider.ListBranches(r.Context(), token, vars["owner"], vars["repo"])
	if err != nil {
		h.respondProviderError(w, err)
		return
	}
	httputil.WriteSuccess(w, branches)
}

func (h *RepoHandlers) contents(w http.ResponseWriter, r *http.Request) {
	token, ok := h.token(w, r)
	if !ok {
		return
	}
	vars := mux.Vars(r)
	ref := httputil.ParseQueryString(r, "ref", "")

	contents, err := h.provider.GetContents(r.Context(), token, vars["owner"], vars["repo"], vars["path"], ref)
	if err != nil {
		h.respondProviderError(w, err)
		return
	}
	httputil.WriteSuccess(w, contents)
}

// respondProviderError maps provider API failures. Upstream status
// codes are not forwarded verbatim; anything the provider rejects reads
// as a bad gateway with the detail kept in the server log.
func (h *RepoHandlers) respondProviderError(w http.ResponseWriter, err error) {
	if errors.Is(err, github.ErrTokenRequired) {
		httputil.WriteErrorCode(w, http.StatusBadRequest, "token_required", err.Error())
		return
	}
	h.log.WithError(err).Warn("provider request failed")
	httputil.WriteErrorCode(w, http.StatusBadGateway, "provider_error", "provider request failed")
}
