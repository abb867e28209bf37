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

// SQLiteUserStore implements auth.UserStore on SQLite for self-contained
// deployments. Semantics match the PostgreSQL store; only the conflict
// handling differs because SQLite lacks RETURNING on ignored inserts in
// the versions we support.
type SQLiteUserStore struct {
	db      *sql.DB
	metrics *observability.Metrics
}

// NewSQLiteUserStore creates the store. metrics may be nil.
func NewSQLiteUserStore(db *sql.DB, metrics *observability.Metrics) *SQLiteUserStore {
	return &SQLiteUserStore{db: db, metrics: metrics}
}

func (s *SQLiteUserStore) FindByIdentity(ctx context.Context, providerIdentity string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE provider_identity = ?`

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

func (s *SQLiteUserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`

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

// Create inserts a new user, returning the existing row when the
// identity is already taken.
func (s *SQLiteUserStore) Create(ctx context.Context, user *auth.User) (*auth.User, error) {
	query := `
		INSERT OR IGNORE INTO users (provider_identity, display_name, email, avatar_url, role, active, encrypted_provider_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		user.ProviderIdentity,
		user.DisplayName,
		user.Email,
		user.AvatarURL,
		string(user.Role),
		user.Active,
		user.EncryptedProviderToken,
		now,
		now,
	)
	observe(s.metrics, "create_user", err)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	if _, err := result.RowsAffected(); err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	// Whether this insert won or was ignored, the surviving row is the
	// answer.
	return s.FindByIdentity(ctx, user.ProviderIdentity)
}

func (s *SQLiteUserStore) RecordLogin(ctx context.Context, id int64, update auth.LoginUpdate) error {
	query := `
		UPDATE users
		SET display_name = ?, email = ?, avatar_url = ?, encrypted_provider_token = ?, updated_at = ?, last_login_at = ?
		WHERE id = ?`

	now := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query,
		update.DisplayName,
		update.Email,
		update.AvatarURL,
		update.EncryptedProviderToken,
		now,
		now,
		id,
	)
	observe(s.metrics, "record_login", err)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteUserStore) List(ctx context.Context, activeOnly bool, limit, offset int) ([]*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`

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

func (s *SQLiteUserStore) UpdateRole(ctx context.Context, id int64, role auth.Role) error {
	query := `UPDATE users SET role = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, string(role), time.Now().UTC(), id)
	observe(s.metrics, "update_role", err)
	if err != nil {
		return fmt.Errorf("update role: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteUserStore) SetActive(ctx context.Context, id int64, active bool) error {
	query := `UPDATE users SET active = ?, updated_at = ? WHERE id = ?`

	result, err := s.db.ExecContext(ctx, query, active, time.Now().UTC(), id)
	observe(s.metrics, "set_active", err)
	if err != nil {
		return fmt.Errorf("set active: %w", err)
	}
	return requireRow(result)
}

func (s *SQLiteUserStore) Stats(ctx context.Context) (auth.UserStats, error) {
	query := `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN active THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN active THEN 0 ELSE 1 END), 0),
			COALESCE(SUM(CASE WHEN role = 'admin' THEN 1 ELSE 0 END), 0)
		FROM users`

	var stats auth.UserStats
	err := s.db.QueryRowContext(ctx, query).Scan(&stats.Total, &stats.Active, &stats.Inactive, &stats.Admins)
	observe(s.metrics, "user_stats", err)
	if err != nil {
		return auth.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return stats, nil
}
