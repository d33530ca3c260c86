// Package auth provides user accounts, password hashing and JWT sessions.
package auth

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pkoukos/stockfolio/internal/domain"
)

// UserRepository handles user database operations
type UserRepository struct {
	db  *sql.DB // portfolio.db - users table
	log zerolog.Logger
}

const usersColumns = `id, username, email, password_hash, is_admin, created_at, updated_at`

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB, log zerolog.Logger) *UserRepository {
	return &UserRepository{
		db:  db,
		log: log.With().Str("repo", "user").Logger(),
	}
}

// Create inserts a new user. Username and email must be unique.
func (r *UserRepository) Create(user *domain.User) error {
	user.Username = strings.TrimSpace(user.Username)
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))

	now := time.Now()
	res, err := r.db.Exec(
		"INSERT INTO users (username, email, password_hash, is_admin, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		user.Username, user.Email, user.PasswordHash, boolToInt(user.IsAdmin), now.Unix(), now.Unix(),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return fmt.Errorf("username or email already taken")
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get user id: %w", err)
	}

	user.ID = id
	user.CreatedAt = now
	user.UpdatedAt = now

	r.log.Info().Str("username", user.Username).Int64("id", id).Msg("User created")
	return nil
}

// GetByID returns a user by id, or nil when not found.
func (r *UserRepository) GetByID(id int64) (*domain.User, error) {
	return r.queryOne("SELECT "+usersColumns+" FROM users WHERE id = ?", id)
}

// GetByUsername returns a user by username, or nil when not found.
func (r *UserRepository) GetByUsername(username string) (*domain.User, error) {
	return r.queryOne("SELECT "+usersColumns+" FROM users WHERE username = ?", strings.TrimSpace(username))
}

// GetByEmail returns a user by email, or nil when not found.
func (r *UserRepository) GetByEmail(email string) (*domain.User, error) {
	return r.queryOne("SELECT "+usersColumns+" FROM users WHERE email = ?", strings.ToLower(strings.TrimSpace(email)))
}

// UpdatePassword replaces a user's password hash.
func (r *UserRepository) UpdatePassword(userID int64, passwordHash string) error {
	res, err := r.db.Exec(
		"UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?",
		passwordHash, time.Now().Unix(), userID,
	)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user %d not found", userID)
	}

	return nil
}

// Delete removes a user. Transactions cascade via the foreign key.
func (r *UserRepository) Delete(userID int64) error {
	res, err := r.db.Exec("DELETE FROM users WHERE id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}

	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("user %d not found", userID)
	}

	r.log.Info().Int64("id", userID).Msg("User deleted")
	return nil
}

// List returns all users ordered by id. Admin use only.
func (r *UserRepository) List() ([]domain.User, error) {
	rows, err := r.db.Query("SELECT " + usersColumns + " FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	var users []domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}

func (r *UserRepository) queryOne(query string, args ...interface{}) (*domain.User, error) {
	row := r.db.QueryRow(query, args...)
	user, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user: %w", err)
	}
	return &user, nil
}

// rowScanner covers *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var u domain.User
	var isAdmin int
	var createdAt, updatedAt int64

	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &isAdmin, &createdAt, &updatedAt)
	if err != nil {
		return domain.User{}, err
	}

	u.IsAdmin = isAdmin != 0
	u.CreatedAt = time.Unix(createdAt, 0)
	u.UpdatedAt = time.Unix(updatedAt, 0)

	return u, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
