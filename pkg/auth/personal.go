package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hubgate/hubgate/pkg/github"
	"github.com/hubgate/hubgate/pkg/observability"
	"github.com/hubgate/hubgate/pkg/session"
)

// PersonalOAuthStrategy locks a single-user deployment to exactly one
// provider account. The allow-list holds one identity; any other login
// completing the OAuth flow is rejected with ErrForbiddenIdentity.
//
// The provider token obtained at login is held in memory only; nothing is
// persisted in this mode.
type PersonalOAuthStrategy struct {
	allowedIdentity string
	provider        *github.Client
	tokens          *session.Service
	ttl             time.Duration
	audit           *AuditLogger
	metrics         *observability.Metrics

	mu            sync.Mutex
	providerToken string
}

// NewPersonalOAuthStrategy creates the single-user OAuth strategy.
func NewPersonalOAuthStrategy(p StrategyParams) (*PersonalOAuthStrategy, error) {
	if p.AllowedIdentity == "" {
		return nil, fmt.Errorf("%w: allowed identity", errMissingDependency)
	}
	if p.Provider == nil || p.Tokens == nil {
		return nil, fmt.Errorf("%w: provider client and token service", errMissingDependency)
	}
	return &PersonalOAuthStrategy{
		allowedIdentity: p.AllowedIdentity,
		provider:        p.Provider,
		tokens:          p.Tokens,
		ttl:             p.TokenTTL,
		audit:           p.Audit,
		metrics:         p.Metrics,
	}, nil
}

func (s *PersonalOAuthStrategy) Name() string { return "personal_oauth" }

func (s *PersonalOAuthStrategy) RequiresAuth() bool { return true }

func (s *PersonalOAuthStrategy) LoginURL(state string) string {
	return s.provider.AuthorizeURL(state)
}

// Authenticate verifies the presented session credential. The subject
// must match the configured identity; a credential minted under a
// different configuration is rejected.
func (s *PersonalOAuthStrategy) Authenticate(ctx context.Context, rc RequestContext) (Principal, error) {
	principal, err := verifySession(s.tokens, s.metrics, rc)
	if err != nil {
		return Principal{}, err
	}
	if principal.Role == RoleAnonymous {
		return principal, nil
	}
	if principal.SubjectID != s.allowedIdentity {
		return Principal{}, ErrForbiddenIdentity
	}
	return principal, nil
}

// CompleteLogin finishes the authorization-code flow and enforces the
// one-identity allow-list with a case-sensitive comparison.
func (s *PersonalOAuthStrategy) CompleteLogin(ctx context.Context, code string) (LoginResult, error) {
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

	if identity.Login != s.allowedIdentity {
		s.audit.LoginDenied(s.Name(), identity.Login, "identity not on allow-list")
		recordAuthAttempt(s.metrics, s.Name(), "denied")
		return LoginResult{}, ErrForbiddenIdentity
	}

	principal := Principal{
		SubjectID:        identity.Login,
		DisplayName:      displayName(identity),
		Role:             RoleUser,
		Active:           true,
		ProviderIdentity: identity.Login,
	}

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

	s.mu.Lock()
	s.providerToken = providerToken
	s.mu.Unlock()

	s.audit.LoginSucceeded(s.Name(), identity.Login)
	recordAuthAttempt(s.metrics, s.Name(), "success")

	return LoginResult{Principal: principal, SessionToken: token, TTL: s.ttl}, nil
}

// ProviderToken returns the in-memory token from the last completed
// login, falling back to the raw header.
func (s *PersonalOAuthStrategy) ProviderToken(ctx context.Context, rc RequestContext, principal Principal) (string, error) {
	s.mu.Lock()
	token := s.providerToken
	s.mu.Unlock()

	if token != "" {
		return token, nil
	}
	return rc.RawProviderToken, nil
}

func displayName(identity github.Identity) string {
	if identity.Name != "" {
		return identity.Name
	}
	return identity.Login
}
