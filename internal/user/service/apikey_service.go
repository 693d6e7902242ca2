package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"

	"go.uber.org/zap"

	"agentbench/internal/user/model"
	"agentbench/internal/user/repository"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

const apiKeyPrefix = "ab_"

// APIKeyService manages long-lived API credentials. The raw key is returned
// exactly once at creation; only its digest is kept.
type APIKeyService struct {
	apiKeys repository.APIKeyRepository
}

// NewAPIKeyService creates the API key service.
func NewAPIKeyService(apiKeys repository.APIKeyRepository) (*APIKeyService, error) {
	if apiKeys == nil {
		return nil, errors.New("apiKeys repository is required")
	}
	return &APIKeyService{apiKeys: apiKeys}, nil
}

// Create mints a new key for the user and returns the key record together
// with the raw key material.
func (s *APIKeyService) Create(ctx context.Context, userID int64, name string) (*model.APIKey, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", appErr.ValidationError("name", "must not be empty")
	}

	raw, err := generateAPIKey()
	if err != nil {
		return nil, "", appErr.Wrap(err, appErr.APIKeyCreateFailed)
	}

	key := &model.APIKey{
		UserID:  userID,
		KeyHash: HashAPIKey(raw),
		Name:    name,
	}
	if err := s.apiKeys.Create(ctx, key); err != nil {
		return nil, "", appErr.Wrap(err, appErr.APIKeyCreateFailed)
	}

	logger.Info(ctx, "api key created",
		zap.Int64("user_id", userID),
		zap.Int64("key_id", key.ID))
	return key, raw, nil
}

// List returns the user's keys without key material.
func (s *APIKeyService) List(ctx context.Context, userID int64) ([]*model.APIKey, error) {
	keys, err := s.apiKeys.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return keys, nil
}

// Delete revokes one of the user's keys.
func (s *APIKeyService) Delete(ctx context.Context, userID, keyID int64) error {
	if err := s.apiKeys.Delete(ctx, userID, keyID); err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return appErr.New(appErr.APIKeyNotFound)
		}
		return appErr.Wrap(err, appErr.DatabaseError)
	}
	logger.Info(ctx, "api key revoked",
		zap.Int64("user_id", userID),
		zap.Int64("key_id", keyID))
	return nil
}

func generateAPIKey() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return apiKeyPrefix + hex.EncodeToString(buf), nil
}
