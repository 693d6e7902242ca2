package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"agentbench/internal/common/db"
	"agentbench/internal/user/model"
	"agentbench/internal/user/repository"
	appErr "agentbench/pkg/errors"
	"agentbench/pkg/utils/logger"
)

const (
	defaultTokenTTL    = 24 * time.Hour
	minPasswordLength  = 8
	registrationGrants = 10
)

// AuthInfo identifies an authenticated caller.
type AuthInfo struct {
	UserID int64
	Role   string
}

// Claims is the JWT payload issued at login.
type Claims struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

// AuthService handles registration, login and credential verification. It
// accepts either a JWT issued by Login or a raw API key as the bearer
// credential.
type AuthService struct {
	users    repository.UserRepository
	apiKeys  repository.APIKeyRepository
	secret   []byte
	tokenTTL time.Duration
}

// AuthServiceConfig holds the auth service dependencies.
type AuthServiceConfig struct {
	Users     repository.UserRepository
	APIKeys   repository.APIKeyRepository
	JWTSecret string
	TokenTTL  time.Duration
}

// NewAuthService creates the auth service.
func NewAuthService(cfg AuthServiceConfig) (*AuthService, error) {
	if cfg.Users == nil {
		return nil, errors.New("users repository is required")
	}
	if cfg.APIKeys == nil {
		return nil, errors.New("apiKeys repository is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("jwtSecret is required")
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = defaultTokenTTL
	}
	return &AuthService{
		users:    cfg.Users,
		apiKeys:  cfg.APIKeys,
		secret:   []byte(cfg.JWTSecret),
		tokenTTL: cfg.TokenTTL,
	}, nil
}

// Register creates an account with the starting credit grant and returns it
// together with a fresh token.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (*model.User, string, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" {
		return nil, "", appErr.ValidationError("name", "must not be empty")
	}
	if !strings.Contains(email, "@") {
		return nil, "", appErr.ValidationError("email", "must be a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, "", appErr.ValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, "", appErr.Wrap(err, appErr.InternalServerError)
	}

	user := &model.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hash),
		Role:         model.RoleUser,
		Credits:      registrationGrants,
		Badges:       []string{},
	}
	if err := s.users.Create(ctx, user); err != nil {
		if _, ok := db.UniqueViolation(err); ok {
			return nil, "", appErr.New(appErr.EmailAlreadyExists)
		}
		return nil, "", appErr.Wrap(err, appErr.DatabaseError)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}

	logger.Info(ctx, "user registered",
		zap.Int64("user_id", user.ID),
		zap.String("email", user.Email))
	return user, token, nil
}

// Login verifies the password and issues a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, "", appErr.New(appErr.InvalidCredentials)
		}
		return nil, "", appErr.Wrap(err, appErr.DatabaseError)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, "", appErr.New(appErr.InvalidCredentials)
	}

	token, err := s.issueToken(user)
	if err != nil {
		return nil, "", err
	}
	logger.Info(ctx, "user logged in", zap.Int64("user_id", user.ID))
	return user, token, nil
}

// Authenticate resolves a bearer credential to an identity. JWTs are tried
// first; anything that does not parse as a token is treated as an API key.
func (s *AuthService) Authenticate(ctx context.Context, credential string) (AuthInfo, error) {
	if credential == "" {
		return AuthInfo{}, appErr.New(appErr.TokenInvalid)
	}
	if info, err := s.verifyToken(credential); err == nil {
		return info, nil
	}
	return s.verifyAPIKey(ctx, credential)
}

// Profile returns the account for the given user id.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, appErr.New(appErr.UserNotFound)
		}
		return nil, appErr.Wrap(err, appErr.DatabaseError)
	}
	return user, nil
}

func (s *AuthService) issueToken(user *model.User) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: user.ID,
		Role:   user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			Subject:   fmt.Sprintf("%d", user.ID),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", appErr.Wrap(err, appErr.InternalServerError)
	}
	return signed, nil
}

func (s *AuthService) verifyToken(credential string) (AuthInfo, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return AuthInfo{}, appErr.New(appErr.TokenInvalid)
	}
	return AuthInfo{UserID: claims.UserID, Role: claims.Role}, nil
}

func (s *AuthService) verifyAPIKey(ctx context.Context, credential string) (AuthInfo, error) {
	key, err := s.apiKeys.GetByHash(ctx, HashAPIKey(credential))
	if err != nil {
		if errors.Is(err, repository.ErrAPIKeyNotFound) {
			return AuthInfo{}, appErr.New(appErr.APIKeyInvalid)
		}
		return AuthInfo{}, appErr.Wrap(err, appErr.DatabaseError)
	}
	user, err := s.users.GetByID(ctx, key.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthInfo{}, appErr.New(appErr.APIKeyInvalid)
		}
		return AuthInfo{}, appErr.Wrap(err, appErr.DatabaseError)
	}
	return AuthInfo{UserID: user.ID, Role: user.Role}, nil
}

// HashAPIKey derives the stored digest for raw API key material.
func HashAPIKey(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
