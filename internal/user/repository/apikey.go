package repository

import (
	"context"
	"errors"

	"agentbench/internal/common/db"
	"agentbench/internal/user/model"
)

var ErrAPIKeyNotFound = errors.New("api key not found")

// APIKeyRepository defines API key persistence interfaces.
type APIKeyRepository interface {
	Create(ctx context.Context, key *model.APIKey) error
	GetByHash(ctx context.Context, keyHash string) (*model.APIKey, error)
	ListByUser(ctx context.Context, userID int64) ([]*model.APIKey, error)
	Delete(ctx context.Context, userID, id int64) error
}

// MySQLAPIKeyRepository implements APIKeyRepository with MySQL.
type MySQLAPIKeyRepository struct {
	db db.Database
}

// NewAPIKeyRepository creates an API key repository.
func NewAPIKeyRepository(database db.Database) APIKeyRepository {
	return &MySQLAPIKeyRepository{db: database}
}

const apiKeyColumns = "id, user_id, key_hash, name, created_at"

// Create inserts an API key record and assigns its id.
func (r *MySQLAPIKeyRepository) Create(ctx context.Context, key *model.APIKey) error {
	if key == nil {
		return errors.New("key is nil")
	}
	if key.UserID <= 0 {
		return errors.New("userID is required")
	}
	if key.KeyHash == "" {
		return errors.New("keyHash is required")
	}

	result, err := r.db.Exec(ctx,
		"INSERT INTO api_keys (user_id, key_hash, name) VALUES (?, ?, ?)",
		key.UserID, key.KeyHash, key.Name,
	)
	if err != nil {
		return err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	key.ID = id
	return nil
}

// GetByHash retrieves an API key by its hash.
func (r *MySQLAPIKeyRepository) GetByHash(ctx context.Context, keyHash string) (*model.APIKey, error) {
	row := r.db.QueryRow(ctx, "SELECT "+apiKeyColumns+" FROM api_keys WHERE key_hash = ? LIMIT 1", keyHash)
	key := &model.APIKey{}
	if err := row.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt); err != nil {
		if db.IsNoRows(err) {
			return nil, ErrAPIKeyNotFound
		}
		return nil, err
	}
	return key, nil
}

// ListByUser returns the user's API keys, newest first.
func (r *MySQLAPIKeyRepository) ListByUser(ctx context.Context, userID int64) ([]*model.APIKey, error) {
	rows, err := r.db.Query(ctx, "SELECT "+apiKeyColumns+" FROM api_keys WHERE user_id = ? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*model.APIKey
	for rows.Next() {
		key := &model.APIKey{}
		if err := rows.Scan(&key.ID, &key.UserID, &key.KeyHash, &key.Name, &key.CreatedAt); err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}

// Delete removes one of the user's API keys.
func (r *MySQLAPIKeyRepository) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.db.Exec(ctx, "DELETE FROM api_keys WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrAPIKeyNotFound
	}
	return nil
}
