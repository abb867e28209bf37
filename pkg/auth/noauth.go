package auth

import "context"

// ownerPrincipal is the fixed principal returned for every request in
// single-user mode without auth. It is identical regardless of request
// contents.
var ownerPrincipal = Principal{
	SubjectID:   "owner",
	DisplayName: "Owner",
	Role:        RoleUser,
	Active:      true,
}

// NoAuthStrategy serves single-user deployments with authentication
// disabled. Every request acts as the owner; a raw provider token header
// is passed through unauthenticated for repository operations but never
// affects identity or role.
type NoAuthStrategy struct {
	defaultToken string
}

// NewNoAuthStrategy creates the strategy with an optional default
// provider token from configuration.
func NewNoAuthStrategy(defaultToken string) *NoAuthStrategy {
	return &NoAuthStrategy{defaultToken: defaultToken}
}

func (s *NoAuthStrategy) Name() string { return "none" }

func (s *NoAuthStrategy) RequiresAuth() bool { return false }

func (s *NoAuthStrategy) LoginURL(state string) string { return "" }

// Authenticate always returns the fixed owner principal.
func (s *NoAuthStrategy) Authenticate(ctx context.Context, rc RequestContext) (Principal, error) {
	return ownerPrincipal, nil
}

// ProviderToken prefers the raw header, then the configured default. An
// empty result is not an error here; operations needing provider access
// fail downstream.
func (s *NoAuthStrategy) ProviderToken(ctx context.Context, rc RequestContext, principal Principal) (string, error) {
	if rc.RawProviderToken != "" {
		return rc.RawProviderToken, nil
	}
	return s.defaultToken, nil
}
