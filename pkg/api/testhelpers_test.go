package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/config"
	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/observability"
	"github.com/hubgate/hubgate/pkg/session"
	"github.com/hubgate/hubgate/pkg/storage"
	"github.com/hubgate/hubgate/pkg/vault"
)

const (
	testSigningKey    = "0123456789abcdef0123456789abcdef"
	testEncryptionKey = "fedcba9876543210fedcba9876543210"
)

// providerFixture is an in-process stand-in for the OAuth provider and
// its API.
type providerFixture struct {
	server *httptest.Server

	mu       sync.Mutex
	identity github.Identity
	repos    []github.Repo
}

func newProviderFixture(t *testing.T) *providerFixture {
	t.Helper()
	p := &providerFixture{}

	mux := http.NewServeMux()
	mux.HandleFunc("/login/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"access_token": "gho_fixture",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		identity := p.identity
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(identity)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		p.mu.Lock()
		repos := p.repos
		p.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(repos)
	})

	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func (p *providerFixture) setIdentity(identity github.Identity) {
	p.mu.Lock()
	p.identity = identity
	p.mu.Unlock()
}

func (p *providerFixture) setRepos(repos []github.Repo) {
	p.mu.Lock()
	p.repos = repos
	p.mu.Unlock()
}

func (p *providerFixture) githubConfig() config.GitHubConfig {
	return config.GitHubConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://localhost/api/v1/auth/github/callback",
		AuthURL:      p.server.URL + "/login/oauth/authorize",
		TokenURL:     p.server.URL + "/login/oauth/access_token",
		APIBase:      p.server.URL,
	}
}

// memoryUserStore implements auth.UserStore for handler tests.
type memoryUserStore struct {
	mu     sync.Mutex
	nextID int64
	users  map[string]*auth.User
}

func newMemoryUserStore() *memoryUserStore {
	return &memoryUserStore{nextID: 1, users: make(map[string]*auth.User)}
}

func (s *memoryUserStore) FindByIdentity(ctx context.Context, providerIdentity string) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user, ok := s.users[providerIdentity]; ok {
		copied := *user
		return &copied, nil
	}
	return nil, auth.ErrUserNotFound
}

func (s *memoryUserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			copied := *user
			return &copied, nil
		}
	}
	return nil, auth.ErrUserNotFound
}

func (s *memoryUserStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.users[user.ProviderIdentity]; ok {
		copied := *existing
		return &copied, nil
	}
	copied := *user
	copied.ID = s.nextID
	copied.CreatedAt = time.Now().UTC()
	copied.UpdatedAt = copied.CreatedAt
	s.nextID++
	s.users[copied.ProviderIdentity] = &copied
	out := copied
	return &out, nil
}

func (s *memoryUserStore) RecordLogin(ctx context.Context, id int64, update auth.LoginUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			now := time.Now().UTC()
			user.DisplayName = update.DisplayName
			user.Email = update.Email
			user.AvatarURL = update.AvatarURL
			user.EncryptedProviderToken = update.EncryptedProviderToken
			user.UpdatedAt = now
			user.LastLoginAt = &now
			return nil
		}
	}
	return auth.ErrUserNotFound
}

func (s *memoryUserStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*auth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*auth.User
	for _, user := range s.users {
		if activeOnly && !user.Active {
			continue
		}
		copied := *user
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryUserStore) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			user.Role = role
			return nil
		}
	}
	return auth.ErrUserNotFound
}

func (s *memoryUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			user.Active = active
			return nil
		}
	}
	return auth.ErrUserNotFound
}

func (s *memoryUserStore) Stats(ctx context.Context) (auth.UserStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var stats auth.UserStats
	for _, user := range s.users {
		stats.Total++
		if user.Active {
			stats.Active++
		} else {
			stats.Inactive++
		}
		if user.Role == auth.RoleAdmin {
			stats.Admins++
		}
	}
	return stats, nil
}

// testEnv bundles a fully wired server for one mode.
type testEnv struct {
	server   *Server
	provider *providerFixture
	users    *memoryUserStore
	strategy auth.Strategy
	tokens   *session.Service
	cfg      *config.Config
}

func newTestEnv(t *testing.T, mutate func(cfg *config.Config)) *testEnv {
	t.Helper()

	provider := newProviderFixture(t)
	cfg := &config.Config{
		Server: config.ServerConfig{Port: "8080", SecureCookies: false},
		Auth: config.AuthConfig{
			Mode:          auth.ModeMultiUser,
			AdminIdentity: "root",
			SigningKey:    testSigningKey,
			EncryptionKey: testEncryptionKey,
			TokenTTL:      30 * time.Minute,
		},
		GitHub:        provider.githubConfig(),
		Storage:       config.StorageConfig{Driver: storage.DriverSQLite, SQLitePath: "test.db"},
		Observability: config.ObservabilityConfig{LogLevel: observability.ErrorLevel},
	}
	if mutate != nil {
		mutate(cfg)
	}

	tokens, err := session.NewService([]byte(cfg.Auth.SigningKey))
	require.NoError(t, err)

	var sealer *vault.Vault
	if cfg.Auth.EncryptionKey != "" {
		sealer, err = vault.New([]byte(cfg.Auth.EncryptionKey))
		require.NoError(t, err)
	}

	users := newMemoryUserStore()
	params := auth.StrategyParams{
		Mode:                  cfg.Auth.Mode,
		SingleUserAuthEnabled: cfg.Auth.SingleUserAuthEnabled,
		AllowedIdentity:       cfg.Auth.AllowedIdentity,
		AdminIdentity:         cfg.Auth.AdminIdentity,
		DefaultProviderToken:  cfg.Auth.DefaultProviderToken,
		TokenTTL:              cfg.Auth.TokenTTL,
		Provider:              github.NewClient(githubClientConfig(cfg), nil),
		Tokens:                tokens,
		Vault:                 sealer,
		Users:                 users,
	}
	if cfg.Auth.Mode != auth.ModeMultiUser {
		params.Users = nil
	}

	strategy, err := auth.SelectStrategy(params)
	require.NoError(t, err)

	var guardUsers auth.UserStore
	if cfg.Auth.Mode == auth.ModeMultiUser {
		guardUsers = users
	}
	guard := auth.NewGuard(strategy, guardUsers)

	log := observability.NewLogger(observability.ErrorLevel, io.Discard)

	server := NewServer(Params{
		Config:   cfg,
		Logger:   log,
		Guard:    guard,
		Users:    guardUsers,
		Audit:    auth.NewAuditLogger(log),
		Provider: github.NewClient(githubClientConfig(cfg), nil),
	})

	return &testEnv{
		server:   server,
		provider: provider,
		users:    users,
		strategy: strategy,
		tokens:   tokens,
		cfg:      cfg,
	}
}

func githubClientConfig(cfg *config.Config) github.Config {
	return github.Config{
		ClientID:     cfg.GitHub.ClientID,
		ClientSecret: cfg.GitHub.ClientSecret,
		RedirectURL:  cfg.GitHub.RedirectURL,
		Scopes:       cfg.GitHub.Scopes,
		AuthURL:      cfg.GitHub.AuthURL,
		TokenURL:     cfg.GitHub.TokenURL,
		APIBase:      cfg.GitHub.APIBase,
	}
}

// login drives the OAuth flow for the given identity and returns the
// session token.
func (e *testEnv) login(t *testing.T, identity github.Identity) string {
	t.Helper()
	e.provider.setIdentity(identity)

	handler, ok := e.strategy.(auth.CallbackHandler)
	require.True(t, ok)
	result, err := handler.CompleteLogin(context.Background(), "test-code")
	require.NoError(t, err)
	return result.SessionToken
}

func (e *testEnv) do(t *testing.T, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, r)
	return w
}

func (e *testEnv) doWithHeader(t *testing.T, method, path, header, value string) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, nil)
	r.Header.Set(header, value)
	w := httptest.NewRecorder()
	e.server.ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}
