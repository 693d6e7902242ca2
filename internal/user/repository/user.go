package repository

import (
	"context"
	"encoding/json"
	"errors"

	"agentbench/internal/common/db"
	"agentbench/internal/user/model"
)

var (
	ErrUserNotFound        = errors.New("user not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
)

// UserRepository defines user persistence interfaces.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	Count(ctx context.Context) (int64, error)

	// DeductCredit atomically takes one credit from the user, failing with
	// ErrInsufficientCredits when none remain.
	DeductCredit(ctx context.Context, tx db.Transaction, userID int64) error

	GetBadges(ctx context.Context, userID int64) ([]string, error)
	SetBadges(ctx context.Context, userID int64, badges []string) error
}

// MySQLUserRepository implements UserRepository with MySQL.
type MySQLUserRepository struct {
	db db.Database
}

// NewUserRepository creates a user repository.
func NewUserRepository(database db.Database) UserRepository {
	return &MySQLUserRepository{db: database}
}

const userColumns = "id, name, email, password_hash, role, credits, badges, created_at"

// Create inserts a user record and assigns its id.
func (r *MySQLUserRepository) Create(ctx context.Context, user *model.User) error {
	if user == nil {
		return errors.New("user is nil")
	}
	if user.Email == "" {
		return errors.New("email is required")
	}
	if user.PasswordHash == "" {
		return errors.New("password hash is required")
	}
	if user.Role == "" {
		user.Role = model.RoleUser
	}
	badges, err := marshalBadges(user.Badges)
	if err != nil {
		return err
	}

	result, err := r.db.Exec(ctx,
		"INSERT INTO users (name, email, password_hash, role, credits, badges) VALUES (?, ?, ?, ?, ?, ?)",
		user.Name, user.Email, user.PasswordHash, user.Role, user.Credits, badges,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by id.
func (r *MySQLUserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE id = ? LIMIT 1", id)
	return scanUser(row.Scan)
}

// GetByEmail retrieves a user by email.
func (r *MySQLUserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRow(ctx, "SELECT "+userColumns+" FROM users WHERE email = ? LIMIT 1", email)
	return scanUser(row.Scan)
}

// Count returns the total user count.
func (r *MySQLUserRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	row := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM users")
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// DeductCredit takes one credit from the user. The conditional update keeps
// the balance non-negative under concurrent submissions.
func (r *MySQLUserRepository) DeductCredit(ctx context.Context, tx db.Transaction, userID int64) error {
	result, err := db.GetQuerier(r.db, tx).Exec(ctx,
		"UPDATE users SET credits = credits - 1 WHERE id = ? AND credits > 0", userID,
	)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrInsufficientCredits
	}
	return nil
}

// GetBadges returns the user's badge names in insertion order.
func (r *MySQLUserRepository) GetBadges(ctx context.Context, userID int64) ([]string, error) {
	var raw string
	row := r.db.QueryRow(ctx, "SELECT badges FROM users WHERE id = ? LIMIT 1", userID)
	if err := row.Scan(&raw); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return unmarshalBadges(raw)
}

// SetBadges replaces the user's badge set.
func (r *MySQLUserRepository) SetBadges(ctx context.Context, userID int64, badges []string) error {
	raw, err := marshalBadges(badges)
	if err != nil {
		return err
	}
	_, err = r.db.Exec(ctx, "UPDATE users SET badges = ? WHERE id = ?", raw, userID)
	return err
}

func scanUser(scan func(dest ...interface{}) error) (*model.User, error) {
	user := &model.User{}
	var badges string
	if err := scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&user.Role,
		&user.Credits,
		&badges,
		&user.CreatedAt,
	); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	parsed, err := unmarshalBadges(badges)
	if err != nil {
		return nil, err
	}
	user.Badges = parsed
	return user, nil
}

func marshalBadges(badges []string) (string, error) {
	if badges == nil {
		badges = []string{}
	}
	data, err := json.Marshal(badges)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalBadges(raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var badges []string
	if err := json.Unmarshal([]byte(raw), &badges); err != nil {
		return nil, err
	}
	return badges, nil
}
