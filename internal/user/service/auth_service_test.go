package service

import (
	"context"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"

	"agentbench/internal/common/db"
	"agentbench/internal/user/model"
	"agentbench/internal/user/repository"
	appErr "agentbench/pkg/errors"
)

type stubUserRepo struct {
	byID      map[int64]*model.User
	byEmail   map[string]*model.User
	nextID    int64
	createErr error
}

func newStubUserRepo() *stubUserRepo {
	return &stubUserRepo{
		byID:    map[int64]*model.User{},
		byEmail: map[string]*model.User{},
		nextID:  1,
	}
}

func (s *stubUserRepo) Create(_ context.Context, user *model.User) error {
	if s.createErr != nil {
		return s.createErr
	}
	if _, exists := s.byEmail[user.Email]; exists {
		return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
	}
	user.ID = s.nextID
	s.nextID++
	s.byID[user.ID] = user
	s.byEmail[user.Email] = user
	return nil
}

func (s *stubUserRepo) GetByID(_ context.Context, id int64) (*model.User, error) {
	user, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserRepo) GetByEmail(_ context.Context, email string) (*model.User, error) {
	user, ok := s.byEmail[email]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user, nil
}

func (s *stubUserRepo) Count(context.Context) (int64, error) {
	return int64(len(s.byID)), nil
}

func (s *stubUserRepo) DeductCredit(_ context.Context, _ db.Transaction, userID int64) error {
	user, ok := s.byID[userID]
	if !ok || user.Credits <= 0 {
		return repository.ErrInsufficientCredits
	}
	user.Credits--
	return nil
}

func (s *stubUserRepo) GetBadges(_ context.Context, userID int64) ([]string, error) {
	user, ok := s.byID[userID]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return user.Badges, nil
}

func (s *stubUserRepo) SetBadges(_ context.Context, userID int64, badges []string) error {
	user, ok := s.byID[userID]
	if !ok {
		return repository.ErrUserNotFound
	}
	user.Badges = badges
	return nil
}

type stubAPIKeyRepo struct {
	byHash map[string]*model.APIKey
	nextID int64
}

func newStubAPIKeyRepo() *stubAPIKeyRepo {
	return &stubAPIKeyRepo{byHash: map[string]*model.APIKey{}, nextID: 1}
}

func (s *stubAPIKeyRepo) Create(_ context.Context, key *model.APIKey) error {
	key.ID = s.nextID
	s.nextID++
	s.byHash[key.KeyHash] = key
	return nil
}

func (s *stubAPIKeyRepo) GetByHash(_ context.Context, keyHash string) (*model.APIKey, error) {
	key, ok := s.byHash[keyHash]
	if !ok {
		return nil, repository.ErrAPIKeyNotFound
	}
	return key, nil
}

func (s *stubAPIKeyRepo) ListByUser(_ context.Context, userID int64) ([]*model.APIKey, error) {
	var keys []*model.APIKey
	for _, key := range s.byHash {
		if key.UserID == userID {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

func (s *stubAPIKeyRepo) Delete(_ context.Context, userID, id int64) error {
	for hash, key := range s.byHash {
		if key.ID == id && key.UserID == userID {
			delete(s.byHash, hash)
			return nil
		}
	}
	return repository.ErrAPIKeyNotFound
}

func newTestAuthService(t *testing.T, users *stubUserRepo, keys *stubAPIKeyRepo) *AuthService {
	t.Helper()
	svc, err := NewAuthService(AuthServiceConfig{
		Users:     users,
		APIKeys:   keys,
		JWTSecret: "test-secret",
		TokenTTL:  time.Hour,
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	return svc
}

func TestRegisterAndLogin(t *testing.T) {
	t.Parallel()

	users := newStubUserRepo()
	svc := newTestAuthService(t, users, newStubAPIKeyRepo())
	ctx := context.Background()

	user, token, err := svc.Register(ctx, "Demo", "Demo@Example.com", "secret-password")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if user.ID == 0 {
		t.Fatal("expected assigned user id")
	}
	if user.Email != "demo@example.com" {
		t.Fatalf("expected lowercased email, got %q", user.Email)
	}
	if user.Credits != 10 {
		t.Fatalf("expected 10 starting credits, got %d", user.Credits)
	}
	if token == "" {
		t.Fatal("expected a token from registration")
	}

	_, loginToken, err := svc.Login(ctx, "demo@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if loginToken == "" {
		t.Fatal("expected a token from login")
	}

	info, err := svc.Authenticate(ctx, loginToken)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if info.UserID != user.ID || info.Role != model.RoleUser {
		t.Fatalf("unexpected identity: %+v", info)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, newStubUserRepo(), newStubAPIKeyRepo())
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "A", "dup@example.com", "secret-password"); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	_, _, err := svc.Register(ctx, "B", "dup@example.com", "other-password")
	if !appErr.Is(err, appErr.EmailAlreadyExists) {
		t.Fatalf("expected EmailAlreadyExists, got %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, newStubUserRepo(), newStubAPIKeyRepo())
	ctx := context.Background()

	cases := []struct {
		name     string
		userName string
		email    string
		password string
	}{
		{"empty name", "", "a@b.com", "secret-password"},
		{"bad email", "A", "not-an-email", "secret-password"},
		{"short password", "A", "a@b.com", "short"},
	}
	for _, tc := range cases {
		if _, _, err := svc.Register(ctx, tc.userName, tc.email, tc.password); !appErr.Is(err, appErr.ValidationFailed) {
			t.Errorf("%s: expected ValidationFailed, got %v", tc.name, err)
		}
	}
}

func TestLoginWrongPassword(t *testing.T) {
	t.Parallel()

	svc := newTestAuthService(t, newStubUserRepo(), newStubAPIKeyRepo())
	ctx := context.Background()

	if _, _, err := svc.Register(ctx, "Demo", "demo@example.com", "secret-password"); err != nil {
		t.Fatalf("Register: %v", err)
	}

	if _, _, err := svc.Login(ctx, "demo@example.com", "wrong-password"); !appErr.Is(err, appErr.InvalidCredentials) {
		t.Fatalf("expected InvalidCredentials, got %v", err)
	}
	if _, _, err := svc.Login(ctx, "nobody@example.com", "secret-password"); !appErr.Is(err, appErr.InvalidCredentials) {
		t.Fatalf("expected InvalidCredentials for unknown email, got %v", err)
	}
}

func TestAuthenticateAPIKeyFallback(t *testing.T) {
	t.Parallel()

	users := newStubUserRepo()
	keys := newStubAPIKeyRepo()
	authSvc := newTestAuthService(t, users, keys)
	keySvc, err := NewAPIKeyService(keys)
	if err != nil {
		t.Fatalf("NewAPIKeyService: %v", err)
	}
	ctx := context.Background()

	user, _, err := authSvc.Register(ctx, "Demo", "demo@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	key, raw, err := keySvc.Create(ctx, user.ID, "ci")
	if err != nil {
		t.Fatalf("Create key: %v", err)
	}
	if key.KeyHash == raw {
		t.Fatal("raw key must not be stored as its own hash")
	}

	info, err := authSvc.Authenticate(ctx, raw)
	if err != nil {
		t.Fatalf("Authenticate with api key: %v", err)
	}
	if info.UserID != user.ID {
		t.Fatalf("expected user %d, got %d", user.ID, info.UserID)
	}

	if _, err := authSvc.Authenticate(ctx, "ab_not_a_real_key"); !appErr.Is(err, appErr.APIKeyInvalid) {
		t.Fatalf("expected APIKeyInvalid, got %v", err)
	}
}

func TestAuthenticateRejectsForgedToken(t *testing.T) {
	t.Parallel()

	users := newStubUserRepo()
	svcA := newTestAuthService(t, users, newStubAPIKeyRepo())
	ctx := context.Background()

	user, _, err := svcA.Register(ctx, "Demo", "demo@example.com", "secret-password")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	token, err := svcA.issueToken(user)
	if err != nil {
		t.Fatalf("issueToken: %v", err)
	}

	svcB, err := NewAuthService(AuthServiceConfig{
		Users:     users,
		APIKeys:   newStubAPIKeyRepo(),
		JWTSecret: "different-secret",
	})
	if err != nil {
		t.Fatalf("NewAuthService: %v", err)
	}
	if _, err := svcB.verifyToken(token); err == nil {
		t.Fatal("expected token signed with another secret to be rejected")
	}
}
