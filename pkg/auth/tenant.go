package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/observability"
	"github.com/hubgate/hubgate/pkg/session"
	"github.com/hubgate/hubgate/pkg/vault"
)

// TenantOAuthStrategy serves multi-user deployments. Every provider
// account may log in; accounts are created on first login, the configured
// admin identity is granted the admin role on its first login, and stored
// roles survive re-login. Provider tokens are encrypted through the vault
// before they reach storage.
type TenantOAuthStrategy struct {
	adminIdentity string
	provider      *github.Client
	tokens        *session.Service
	vault         *vault.Vault
	users         UserStore
	ttl           time.Duration
	audit         *AuditLogger
	metrics       *observability.Metrics
}

// NewTenantOAuthStrategy creates the multi-user OAuth strategy.
func NewTenantOAuthStrategy(p StrategyParams) (*TenantOAuthStrategy, error) {
	if p.Provider == nil || p.Tokens == nil || p.Vault == nil || p.Users == nil {
		return nil, fmt.Errorf("%w: provider client, token service, vault, and user store", errMissingDependency)
	}
	return &TenantOAuthStrategy{
		adminIdentity: p.AdminIdentity,
		provider:      p.Provider,
		tokens:        p.Tokens,
		vault:         p.Vault,
		users:         p.Users,
		ttl:           p.TokenTTL,
		audit:         p.Audit,
		metrics:       p.Metrics,
	}, nil
}

func (s *TenantOAuthStrategy) Name() string { return "tenant_oauth" }

func (s *TenantOAuthStrategy) RequiresAuth() bool { return true }

func (s *TenantOAuthStrategy) LoginURL(state string) string {
	return s.provider.AuthorizeURL(state)
}

// Authenticate verifies the presented session credential. The activation
// re-check against storage happens in the guard, not here.
func (s *TenantOAuthStrategy) Authenticate(ctx context.Context, rc RequestContext) (Principal, error) {
	return verifySession(s.tokens, s.metrics, rc)
}

// CompleteLogin finishes the authorization-code flow with find-or-create
// semantics keyed on the provider identity.
func (s *TenantOAuthStrategy) CompleteLogin(ctx context.Context, code string) (LoginResult, error) {
	providerToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, err
	}

	identity, err := s.provider.FetchIdentity(ctx, providerToken)
	if err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, err
	}

	user, err := s.findOrCreate(ctx, identity)
	if err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, err
	}

	// Deactivated accounts are rejected before any credential is issued.
	if !user.Active {
		s.audit.LoginDenied(s.Name(), identity.Login, "account deactivated")
		recordAuthAttempt(s.metrics, s.Name(), "denied")
		return LoginResult{}, ErrAccountDeactivated
	}

	encrypted, err := s.vault.Encrypt([]byte(providerToken))
	if err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, fmt.Errorf("encrypt provider token: %w", err)
	}
	if err := s.users.RecordLogin(ctx, user.ID, LoginUpdate{
		DisplayName:            displayName(identity),
		Email:                  identity.Email,
		AvatarURL:              identity.AvatarURL,
		EncryptedProviderToken: encrypted,
	}); err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, fmt.Errorf("record login: %w", err)
	}

	principal := user.Principal()
	principal.DisplayName = displayName(identity)

	token, err := s.tokens.Issue(session.Subject{
		ID:               principal.SubjectID,
		DisplayName:      principal.DisplayName,
		Role:             string(principal.Role),
		ProviderIdentity: principal.ProviderIdentity,
	}, s.ttl)
	if err != nil {
		recordAuthAttempt(s.metrics, s.Name(), "error")
		return LoginResult{}, fmt.Errorf("issue session credential: %w", err)
	}

	s.audit.LoginSucceeded(s.Name(), identity.Login)
	recordAuthAttempt(s.metrics, s.Name(), "success")

	return LoginResult{Principal: principal, SessionToken: token, TTL: s.ttl}, nil
}

// findOrCreate resolves the persisted user for a provider identity. The
// store guarantees at most one row per identity under concurrent first
// logins; a lost race surfaces as Create returning the surviving row.
func (s *TenantOAuthStrategy) findOrCreate(ctx context.Context, identity github.Identity) (*User, error) {
	user, err := s.users.FindByIdentity(ctx, identity.Login)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, fmt.Errorf("find user: %w", err)
	}

	role := RoleUser
	if s.adminIdentity != "" && identity.Login == s.adminIdentity {
		role = RoleAdmin
	}

	created, err := s.users.Create(ctx, &User{
		ProviderIdentity: identity.Login,
		DisplayName:      displayName(identity),
		Email:            identity.Email,
		AvatarURL:        identity.AvatarURL,
		Role:             role,
		Active:           true,
	})
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

// ProviderToken decrypts the stored token for the principal's account. A
// corrupt record is treated as an absent credential, never surfaced.
func (s *TenantOAuthStrategy) ProviderToken(ctx context.Context, rc RequestContext, principal Principal) (string, error) {
	if principal.ProviderIdentity == "" {
		return "", nil
	}

	user, err := s.users.FindByIdentity(ctx, principal.ProviderIdentity)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	if len(user.EncryptedProviderToken) == 0 {
		return "", nil
	}

	plaintext, err := s.vault.Decrypt(user.EncryptedProviderToken)
	if err != nil {
		if errors.Is(err, vault.ErrIntegrity) {
			s.audit.CredentialDiscarded(principal.ProviderIdentity)
			return "", nil
		}
		return "", fmt.Errorf("decrypt provider token: %w", err)
	}
	return string(plaintext), nil
}
