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

// Strategy is one mode-specific implementation of the authentication
// contract. Exactly one strategy is selected at startup and held for the
// process lifetime; strategies are never mixed within a running instance.
type Strategy interface {
	// Name identifies the strategy in logs and metrics.
	Name() string

	// RequiresAuth reports whether this strategy demands a credential.
	RequiresAuth() bool

	// LoginURL returns the provider authorize URL for the given
	// anti-forgery state, or "" when no login flow exists.
	LoginURL(state string) string

	// Authenticate resolves the request's principal. A missing credential
	// yields an anonymous principal, not an error; verification failures
	// of a presented credential are returned as session errors.
	Authenticate(ctx context.Context, rc RequestContext) (Principal, error)

	// ProviderToken resolves the provider token to use for repository
	// operations on behalf of this request, or "" when none is available.
	ProviderToken(ctx context.Context, rc RequestContext, principal Principal) (string, error)
}

// LoginResult is the outcome of a completed OAuth callback.
type LoginResult struct {
	Principal    Principal
	SessionToken string
	TTL          time.Duration
}

// CallbackHandler is implemented by strategies that drive the OAuth
// authorization-code flow.
type CallbackHandler interface {
	// CompleteLogin exchanges the authorization code, establishes the
	// account, and issues a session credential. State verification is the
	// caller's responsibility; the code is single-use and never retried.
	CompleteLogin(ctx context.Context, code string) (LoginResult, error)
}

// StrategyParams carries everything the mode selector needs. The fields
// mirror the process configuration, resolved once at startup.
type StrategyParams struct {
	Mode                  Mode
	SingleUserAuthEnabled bool

	// AllowedIdentity is the one provider login permitted in single-user
	// mode with auth enabled.
	AllowedIdentity string
	// AdminIdentity is granted the admin role on first login in
	// multi-user mode.
	AdminIdentity string
	// DefaultProviderToken backs repository operations in single-user
	// mode without auth. May be empty.
	DefaultProviderToken string

	TokenTTL time.Duration

	Provider *github.Client
	Tokens   *session.Service
	Vault    *vault.Vault
	Users    UserStore
	Audit    *AuditLogger
	Metrics  *observability.Metrics
}

// SelectStrategy picks the single strategy for the configured mode.
func SelectStrategy(p StrategyParams) (Strategy, error) {
	switch p.Mode {
	case ModeSingleUser:
		if !p.SingleUserAuthEnabled {
			return NewNoAuthStrategy(p.DefaultProviderToken), nil
		}
		return NewPersonalOAuthStrategy(p)
	case ModeMultiUser:
		return NewTenantOAuthStrategy(p)
	default:
		return nil, fmt.Errorf("unknown mode %q", p.Mode)
	}
}

// verifySession is the shared token-verification path of the OAuth
// strategies. A missing token resolves to the anonymous principal and is
// not counted as a verification.
func verifySession(tokens *session.Service, metrics *observability.Metrics, rc RequestContext) (Principal, error) {
	if rc.SessionToken == "" {
		return Principal{Role: RoleAnonymous}, nil
	}

	claims, err := tokens.Verify(rc.SessionToken)
	recordTokenVerification(metrics, err)
	if err != nil {
		return Principal{}, err
	}

	role, err := ParseRole(claims.Role)
	if err != nil {
		return Principal{}, session.ErrTokenMalformed
	}

	return Principal{
		SubjectID:        claims.Subject,
		DisplayName:      claims.DisplayName,
		Role:             role,
		Active:           true,
		ProviderIdentity: claims.ProviderIdentity,
	}, nil
}

// recordAuthAttempt counts a completed login attempt. metrics may be nil.
func recordAuthAttempt(metrics *observability.Metrics, strategy, outcome string) {
	if metrics != nil {
		metrics.RecordAuthAttempt(strategy, outcome)
	}
}

// recordTokenVerification counts one session token verification by
// result. metrics may be nil.
func recordTokenVerification(metrics *observability.Metrics, err error) {
	if metrics == nil {
		return
	}
	result := "valid"
	switch {
	case errors.Is(err, session.ErrTokenExpired):
		result = "expired"
	case errors.Is(err, session.ErrTokenInvalidSignature):
		result = "invalid_signature"
	case err != nil:
		result = "malformed"
	}
	metrics.RecordTokenVerification(result)
}

var errMissingDependency = errors.New("strategy dependency missing")
