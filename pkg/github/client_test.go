package github

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProvider serves the token and API endpoints for client tests.
type fakeProvider struct {
	server *httptest.Server

	exchangeStatus int
	accessToken    string
	user           map[string]interface{}
	userStatus     int

	lastTokenRequest *http.Request
	lastAPIRequest   *http.Request
}

func newFakeProvider(t *testing.T) *fakeProvider {
	t.Helper()
	p := &fakeProvider{
		exchangeStatus: http.StatusOK,
		accessToken:    "gho_test",
		userStatus:     http.StatusOK,
		user: map[string]interface{}{
			"id":    int64(42),
			"login": "alice",
			"name":  "Alice A.",
			"email": "alice@example.com",
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		p.lastTokenRequest = r
		if p.exchangeStatus != http.StatusOK {
			w.WriteHeader(p.exchangeStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": p.accessToken,
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		p.lastAPIRequest = r
		if p.userStatus != http.StatusOK {
			w.WriteHeader(p.userStatus)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(p.user)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		p.lastAPIRequest = r
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"id": 1, "name": "infra", "full_name": "alice/infra"},
		})
	})
	mux.HandleFunc("/repos/alice/infra/contents/", func(w http.ResponseWriter, r *http.Request) {
		p.lastAPIRequest = r
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode([]map[string]interface{}{
			{"name": "main.go", "path": "cmd/main.go", "type": "file"},
			{"name": "internal", "path": "internal", "type": "dir"},
		})
	})
	mux.HandleFunc("/repos/alice/infra/contents/README.md", func(w http.ResponseWriter, r *http.Request) {
		p.lastAPIRequest = r
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":     "README.md",
			"path":     "README.md",
			"type":     "file",
			"content":  "aGVsbG8=",
			"encoding": "base64",
		})
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *fakeProvider) client() *Client {
	return NewClient(Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      p.server.URL + "/authorize",
		TokenURL:     p.server.URL + "/token",
		APIBase:      p.server.URL,
	}, nil)
}

func TestAuthorizeURL(t *testing.T) {
	p := newFakeProvider(t)
	u := p.client().AuthorizeURL("state-123")

	assert.Contains(t, u, p.server.URL+"/authorize")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "client_id=client-id")
}

func TestExchangeCode(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := newFakeProvider(t)
		token, err := p.client().ExchangeCode(ctx, "good-code")
		require.NoError(t, err)
		assert.Equal(t, "gho_test", token)
	})

	t.Run("empty code", func(t *testing.T) {
		p := newFakeProvider(t)
		_, err := p.client().ExchangeCode(ctx, "")
		assert.ErrorIs(t, err, ErrExchangeFailed)
		assert.Nil(t, p.lastTokenRequest, "no network call for an empty code")
	})

	t.Run("provider rejects code", func(t *testing.T) {
		p := newFakeProvider(t)
		p.exchangeStatus = http.StatusBadRequest
		_, err := p.client().ExchangeCode(ctx, "bad-code")
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})

	t.Run("empty token in response", func(t *testing.T) {
		p := newFakeProvider(t)
		p.accessToken = ""
		_, err := p.client().ExchangeCode(ctx, "good-code")
		assert.ErrorIs(t, err, ErrExchangeFailed)
	})
}

func TestFetchIdentity(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := newFakeProvider(t)
		identity, err := p.client().FetchIdentity(ctx, "gho_test")
		require.NoError(t, err)
		assert.Equal(t, int64(42), identity.ID)
		assert.Equal(t, "alice", identity.Login)
		assert.Equal(t, "Alice A.", identity.Name)

		require.NotNil(t, p.lastAPIRequest)
		assert.Equal(t, "Bearer gho_test", p.lastAPIRequest.Header.Get("Authorization"))
		assert.Equal(t, "application/vnd.github.v3+json", p.lastAPIRequest.Header.Get("Accept"))
	})

	t.Run("unauthorized", func(t *testing.T) {
		p := newFakeProvider(t)
		p.userStatus = http.StatusUnauthorized
		_, err := p.client().FetchIdentity(ctx, "gho_revoked")
		assert.ErrorIs(t, err, ErrIdentityFetchFailed)
	})

	t.Run("missing login", func(t *testing.T) {
		p := newFakeProvider(t)
		p.user = map[string]interface{}{"id": 1}
		_, err := p.client().FetchIdentity(ctx, "gho_test")
		assert.ErrorIs(t, err, ErrIdentityFetchFailed)
	})
}

func TestListRepos(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		p := newFakeProvider(t)
		repos, err := p.client().ListRepos(ctx, "gho_test", 10)
		require.NoError(t, err)
		require.Len(t, repos, 1)
		assert.Equal(t, "alice/infra", repos[0].FullName)
		assert.Equal(t, "10", p.lastAPIRequest.URL.Query().Get("per_page"))
	})

	t.Run("per page clamped", func(t *testing.T) {
		p := newFakeProvider(t)
		_, err := p.client().ListRepos(ctx, "gho_test", 500)
		require.NoError(t, err)
		assert.Equal(t, "30", p.lastAPIRequest.URL.Query().Get("per_page"))
	})

	t.Run("token required", func(t *testing.T) {
		p := newFakeProvider(t)
		_, err := p.client().ListRepos(ctx, "", 10)
		assert.ErrorIs(t, err, ErrTokenRequired)
	})
}

func TestGetContents(t *testing.T) {
	ctx := context.Background()

	t.Run("directory listing", func(t *testing.T) {
		p := newFakeProvider(t)
		contents, err := p.client().GetContents(ctx, "gho_test", "alice", "infra", "cmd", "")
		require.NoError(t, err)
		require.Len(t, contents, 2)
		assert.Equal(t, "file", contents[0].Type)
		assert.Equal(t, "dir", contents[1].Type)
	})

	t.Run("single file", func(t *testing.T) {
		p := newFakeProvider(t)
		contents, err := p.client().GetContents(ctx, "gho_test", "alice", "infra", "README.md", "main")
		require.NoError(t, err)
		require.Len(t, contents, 1)
		assert.Equal(t, "aGVsbG8=", contents[0].Content)
		assert.Equal(t, "main", p.lastAPIRequest.URL.Query().Get("ref"))
	})
}
