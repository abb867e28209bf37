package auth

import (
	"context"
	"errors"
)

// ErrUserNotFound indicates no persisted user matches the lookup.
var ErrUserNotFound = errors.New("user not found")

// UserStats summarizes the persisted user population.
type UserStats struct {
	Total    int64 `json:"total_users"`
	Active   int64 `json:"active_users"`
	Inactive int64 `json:"inactive_users"`
	Admins   int64 `json:"admin_users"`
}

// LoginUpdate carries the fields refreshed on every successful login.
// The role is deliberately absent: re-login never changes a stored role.
type LoginUpdate struct {
	DisplayName            string
	Email                  string
	AvatarURL              string
	EncryptedProviderToken []byte
}

// UserStore is the persistence surface this package needs. Implementations
// must guarantee at most one row per provider identity even when two
// first-logins race; Create returns the surviving row in that case.
type UserStore interface {
	// FindByIdentity returns the user with the given provider identity or
	// ErrUserNotFound.
	FindByIdentity(ctx context.Context, providerIdentity string) (*User, error)

	// GetByID returns the user with the given id or ErrUserNotFound.
	GetByID(ctx context.Context, id int64) (*User, error)

	// Create persists a new user. On a provider-identity conflict the
	// existing row is returned instead of an error.
	Create(ctx context.Context, user *User) (*User, error)

	// RecordLogin refreshes profile fields, the encrypted provider token,
	// and the last-login timestamp. It never touches the role.
	RecordLogin(ctx context.Context, id int64, update LoginUpdate) error

	// List returns users ordered by creation time.
	List(ctx context.Context, activeOnly bool, limit, offset int) ([]*User, error)

	// UpdateRole sets the stored role for a user.
	UpdateRole(ctx context.Context, id int64, role Role) error

	// SetActive flips the soft activation flag.
	SetActive(ctx context.Context, id int64, active bool) error

	// Stats returns aggregate counts over the user table.
	Stats(ctx context.Context) (UserStats, error)
}
