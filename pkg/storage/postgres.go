package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hubgate/hubgate/pkg/auth"
	"github.com/hubgate/hubgate/pkg/observability"
)

const userColumns = `id, provider_identity, display_name, email, avatar_url, role, active, encrypted_provider_token, created_at, updated_at, last_login_at`

// PostgresUserStore implements auth.UserStore on PostgreSQL.
type PostgresUserStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewPostgresUserStore creates the store. metrics may be nil.
func NewPostgresUserStore(db *sql.DB, metrics *observability.Metrics) *PostgresUserStore {
	return &PostgresUserStore{db: db, metrics: metrics}
}

func scanUser(row rowScanner) (*auth.User, error) {
	var user auth.User
	var role string
	var lastLogin sql.NullTime
	err := row.Scan(
		&user.ID,
		&user.ProviderIdentity,
		&user.DisplayName,
		&user.Email,
		&user.AvatarURL,
		&role,
		&user.Active,
		&user.EncryptedProviderToken,
		&user.CreatedAt,
		&user.UpdatedAt,
		&lastLogin,
	)
	if err != nil {
		return nil, err
	}
	user.Role = auth.Role(role)
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}
	return &user, nil
}

func (s *PostgresUserStore) FindByIdentity(ctx context.Context, providerIdentity string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_identity = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, providerIdentity))
	observe(s.metrics, "find_user", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find user by identity: %w", err)
	}
	return user, nil
}

func (s *PostgresUserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := scanUser(s.db.QueryRowContext(ctx, query, id))
	observe(s.metrics, "get_user", err)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Create inserts a new user. Two concurrent first-logins for the same
// identity both succeed: the unique constraint makes the second insert a
// no-op and the surviving row is fetched back.
func (s *PostgresUserStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	query := `
		INSERT INTO users (provider_identity, display_name, email, avatar_url, role, active, encrypted_provider_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		ON CONFLICT (provider_identity) DO NOTHING
		RETURNING ` + userColumns

	now := time.Now().UTC()
	created, err := scanUser(s.db.QueryRowContext(ctx, query,
		user.ProviderIdentity,
		user.DisplayName,
		user.Email,
		user.AvatarURL,
		string(user.Role),
		user.Active,
		user.EncryptedProviderToken,
		now,
	))
	if errors.Is(err, sql.ErrNoRows) {
		// Lost the race; return the row that won.
		observe(s.metrics, "create_user", nil)
		return s.FindByIdentity(ctx, user.ProviderIdentity)
	}
	observe(s.metrics, "create_user", err)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (s *PostgresUserStore) RecordLogin(ctx context.Context, id int64, update auth.LoginUpdate) error {
	query := `
		UPDATE users
		SET display_name = $2, email = $3, avatar_url = $4, encrypted_provider_token = $5, updated_at = $6, last_login_at = $6
		WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query,
		id,
		update.DisplayName,
		update.Email,
		update.AvatarURL,
		update.EncryptedProviderToken,
		time.Now().UTC(),
	)
	observe(s.metrics, "record_login", err)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresUserStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY created_at, id LIMIT $1 OFFSET $2`

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, query, limit, offset)
	observe(s.metrics, "list_users", err)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []*auth.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

func (s *PostgresUserStore) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	query := `UPDATE users SET role = $2, updated_at = $3 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, string(role), time.Now().UTC())
	observe(s.metrics, "update_role", err)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET active = $2, updated_at = $3 WHERE id = $1`

	result, err := s.db.ExecContext(ctx, query, id, active, time.Now().UTC())
	observe(s.metrics, "set_active", err)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(result)
}

func (s *PostgresUserStore) Stats(ctx context.Context) (auth.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE NOT active),
			COUNT(*) FILTER (WHERE role = 'admin')
		FROM users`

	var stats auth.UserStats
	err := s.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Active, &stats.Inactive, &stats.Admins)
	observe(s.metrics, "user_stats", err)
	if err != nil {
		return auth.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}

// requireRow converts a zero-row update into ErrUserNotFound.
func requireRow(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return auth.ErrUserNotFound
	}
	return nil
}
