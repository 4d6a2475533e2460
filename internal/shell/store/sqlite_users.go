package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lamdp/shiptrack/internal/core/domain"
)

// =============================================================================
// User Operations
// =============================================================================

// userRow represents a user row in the database.
type userRow struct {
	Username     string `db:"username"`
	PasswordHash string `db:"password_hash"`
	IsAdmin      bool   `db:"is_admin"`
	IsStore      bool   `db:"is_store"`
	StoreName    string `db:"store_name"`
}

func createUser(ctx context.Context, exec executor, user *domain.User) error {
	query := `
		INSERT INTO users (username, password_hash, is_admin, is_store, store_name)
		VALUES (:username, :password_hash, :is_admin, :is_store, :store_name)`

	row := map[string]any{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"is_admin":      user.IsAdmin,
		"is_store":      user.IsStore,
		"store_name":    user.StoreName,
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed: users.username") {
			return NewStoreError("CreateUser", "user", user.Username, "user with this username already exists", ErrDuplicateUsername)
		}
		return NewStoreError("CreateUser", "user", user.Username, err.Error(), err)
	}

	return nil
}

func getUser(ctx context.Context, exec executor, username string) (*domain.User, error) {
	query := `SELECT * FROM users WHERE username = ?`

	var row userRow
	err := exec.GetContext(ctx, &row, query, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetUser", "user", username, "user not found", ErrNotFound)
		}
		return nil, NewStoreError("GetUser", "user", username, err.Error(), err)
	}

	return rowToUser(&row), nil
}

func updateUser(ctx context.Context, exec executor, user *domain.User) error {
	query := `
		UPDATE users SET
			password_hash = :password_hash,
			is_admin = :is_admin,
			is_store = :is_store,
			store_name = :store_name
		WHERE username = :username`

	row := map[string]any{
		"username":      user.Username,
		"password_hash": user.PasswordHash,
		"is_admin":      user.IsAdmin,
		"is_store":      user.IsStore,
		"store_name":    user.StoreName,
	}

	result, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		return NewStoreError("UpdateUser", "user", user.Username, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("UpdateUser", "user", user.Username, "user not found", ErrNotFound)
	}

	return nil
}

func deleteUser(ctx context.Context, exec executor, username string) error {
	query := `DELETE FROM users WHERE username = ?`

	result, err := exec.ExecContext(ctx, query, username)
	if err != nil {
		return NewStoreError("DeleteUser", "user", username, err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteUser", "user", username, "user not found", ErrNotFound)
	}

	return nil
}

func listUsers(ctx context.Context, exec executor) ([]domain.User, error) {
	query := `SELECT * FROM users ORDER BY username`

	var rows []userRow
	err := exec.SelectContext(ctx, &rows, query)
	if err != nil {
		return nil, NewStoreError("ListUsers", "user", "", err.Error(), err)
	}

	users := make([]domain.User, 0, len(rows))
	for _, row := range rows {
		users = append(users, *rowToUser(&row))
	}

	return users, nil
}

func rowToUser(row *userRow) *domain.User {
	return &domain.User{
		Username:     row.Username,
		PasswordHash: row.PasswordHash,
		IsAdmin:      row.IsAdmin,
		IsStore:      row.IsStore,
		StoreName:    row.StoreName,
	}
}

// =============================================================================
// Session Operations
// =============================================================================

// sessionRow represents a session row in the database.
type sessionRow struct {
	Token     string `db:"token"`
	Username  string `db:"username"`
	CreatedAt string `db:"created_at"`
	ExpiresAt string `db:"expires_at"`
}

func createSession(ctx context.Context, exec executor, session *domain.Session) error {
	query := `
		INSERT INTO sessions (token, username, created_at, expires_at)
		VALUES (:token, :username, :created_at, :expires_at)`

	row := map[string]any{
		"token":      session.Token,
		"username":   session.Username,
		"created_at": fmtTime(session.CreatedAt),
		"expires_at": fmtTime(session.ExpiresAt),
	}

	_, err := exec.NamedExecContext(ctx, query, row)
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return NewStoreError("CreateSession", "session", session.Token, "user not found", ErrForeignKey)
		}
		return NewStoreError("CreateSession", "session", session.Token, err.Error(), err)
	}

	return nil
}

func getSession(ctx context.Context, exec executor, token string) (*domain.Session, error) {
	query := `SELECT * FROM sessions WHERE token = ?`

	var row sessionRow
	err := exec.GetContext(ctx, &row, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetSession", "session", "", "session not found", ErrNotFound)
		}
		return nil, NewStoreError("GetSession", "session", "", err.Error(), err)
	}

	return &domain.Session{
		Token:     row.Token,
		Username:  row.Username,
		CreatedAt: parseTime(row.CreatedAt),
		ExpiresAt: parseTime(row.ExpiresAt),
	}, nil
}

func deleteSession(ctx context.Context, exec executor, token string) error {
	query := `DELETE FROM sessions WHERE token = ?`

	result, err := exec.ExecContext(ctx, query, token)
	if err != nil {
		return NewStoreError("DeleteSession", "session", "", err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return NewStoreError("DeleteSession", "session", "", "session not found", ErrNotFound)
	}

	return nil
}

func deleteExpiredSessions(ctx context.Context, exec executor, now time.Time) (int64, error) {
	query := `DELETE FROM sessions WHERE expires_at < ?`

	result, err := exec.ExecContext(ctx, query, fmtTime(now))
	if err != nil {
		return 0, NewStoreError("DeleteExpiredSessions", "session", "", err.Error(), err)
	}

	rowsAffected, _ := result.RowsAffected()
	return rowsAffected, nil
}
