package auth

import (
	"context"
	"errors"
	"fmt"
)

// Guard enforces role and activation policy at request time. Session
// credentials are stateless, so a deactivated account could otherwise
// keep using an unexpired token; the guard closes that gap by re-reading
// the active flag from storage on every protected request.
type Guard struct {
	strategy Strategy
	// users is nil outside multi-user mode; only multi-user principals
	// map to persisted accounts.
	users UserStore
}

// NewGuard creates the authorization guard for the selected strategy.
func NewGuard(strategy Strategy, users UserStore) *Guard {
	return &Guard{strategy: strategy, users: users}
}

// Strategy returns the active strategy.
func (g *Guard) Strategy() Strategy { return g.strategy }

// Require resolves the request principal and enforces that it grants at
// least min. Token verification failures pass through as session errors;
// everything else maps onto the authorization taxonomy.
func (g *Guard) Require(ctx context.Context, min Role, rc RequestContext) (Principal, error) {
	principal, err := g.strategy.Authenticate(ctx, rc)
	if err != nil {
		return Principal{}, err
	}

	if principal.Role == RoleAnonymous {
		if min == RoleAnonymous {
			return principal, nil
		}
		return Principal{}, ErrUnauthenticated
	}

	if g.users != nil && principal.ProviderIdentity != "" {
		user, err := g.users.FindByIdentity(ctx, principal.ProviderIdentity)
		if err != nil {
			if errors.Is(err, ErrUserNotFound) {
				// A verified token for an account that no longer exists;
				// treat as unauthenticated rather than leaking state.
				return Principal{}, ErrUnauthenticated
			}
			return Principal{}, fmt.Errorf("activation check: %w", err)
		}
		if !user.Active {
			return Principal{}, ErrAccountDeactivated
		}
		principal.Active = true
	}

	if !principal.Role.AtLeast(min) {
		return Principal{}, ErrForbidden
	}
	return principal, nil
}
