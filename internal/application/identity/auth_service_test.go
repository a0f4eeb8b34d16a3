package identity

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/pingboard/backend/internal/domain/identity"
	"github.com/pingboard/backend/internal/domain/shared"
	"github.com/pingboard/backend/internal/infrastructure/auth"
	"github.com/pingboard/backend/internal/infrastructure/config"
)

type fakeUserRepo struct {
	users map[uuid.UUID]*identity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[uuid.UUID]*identity.User)}
}

func (r *fakeUserRepo) FindByID(_ context.Context, id uuid.UUID) (*identity.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, shared.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) FindByEmail(_ context.Context, email string) (*identity.User, error) {
	for _, u := range r.users {
		if u.Email == strings.ToLower(email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (r *fakeUserRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *fakeUserRepo) Save(_ context.Context, user *identity.User) error {
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(r.users, id)
	return nil
}

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret-at-least-32-characters!!",
		RefreshSecret:          "test-refresh-secret-32-characters!!!",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 24 * time.Hour,
		Issuer:                 "pingboard-test",
	})
}

func newAuthService() (*AuthService, *fakeUserRepo, *auth.InMemoryTokenBlacklist) {
	repo := newFakeUserRepo()
	blacklist := auth.NewInMemoryTokenBlacklist()
	svc := NewAuthService(repo, testJWTService(), blacklist, zap.NewNop())
	return svc, repo, blacklist
}

func registerInput() RegisterInput {
	return RegisterInput{
		Email:       "Ada.Lovelace@example.edu",
		Password:    "correct-horse-battery",
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Institution: "Analytical Engines Lab",
	}
}

func TestAuthService_Register(t *testing.T) {
	svc, repo, _ := newAuthService()
	ctx := context.Background()

	info, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	assert.Equal(t, "ada.lovelace@example.edu", info.Email)
	assert.Equal(t, "Ada", info.FirstName)

	saved, err := repo.FindByID(ctx, info.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "correct-horse-battery", saved.PasswordHash)
}

func TestAuthService_Register_EmailTaken(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerInput())
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "EMAIL_TAKEN", derr.Code)
}

func TestAuthService_Login(t *testing.T) {
	svc, repo, _ := newAuthService()
	ctx := context.Background()

	info, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	result, err := svc.Login(ctx, LoginInput{
		Email:    "ada.lovelace@example.edu",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, info.ID, result.User.ID)

	saved, err := repo.FindByID(ctx, info.ID)
	require.NoError(t, err)
	assert.NotNil(t, saved.LastLoginAt)
}

func TestAuthService_Login_InvalidCredentials(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	var derr *shared.DomainError

	_, err = svc.Login(ctx, LoginInput{Email: "ada.lovelace@example.edu", Password: "wrong"})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_CREDENTIALS", derr.Code)

	// unknown email reports the same code as a wrong password
	_, err = svc.Login(ctx, LoginInput{Email: "nobody@example.edu", Password: "whatever"})
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "INVALID_CREDENTIALS", derr.Code)
}

func TestAuthService_RefreshToken(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	_, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	login, err := svc.Login(ctx, LoginInput{
		Email:    "ada.lovelace@example.edu",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(ctx, RefreshTokenInput{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEmpty(t, refreshed.AccessToken)
	assert.NotEmpty(t, refreshed.RefreshToken)
}

func TestAuthService_RefreshToken_Invalid(t *testing.T) {
	svc, _, _ := newAuthService()

	_, err := svc.RefreshToken(context.Background(), RefreshTokenInput{RefreshToken: "not-a-token"})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "TOKEN_INVALID", derr.Code)
}

func TestAuthService_RefreshToken_DeletedUser(t *testing.T) {
	svc, repo, _ := newAuthService()
	ctx := context.Background()

	info, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)
	login, err := svc.Login(ctx, LoginInput{
		Email:    "ada.lovelace@example.edu",
		Password: "correct-horse-battery",
	})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, info.ID))

	_, err = svc.RefreshToken(ctx, RefreshTokenInput{RefreshToken: login.RefreshToken})
	var derr *shared.DomainError
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, "USER_NOT_FOUND", derr.Code)
}

func TestAuthService_Logout_BlacklistsToken(t *testing.T) {
	svc, _, blacklist := newAuthService()
	ctx := context.Background()

	err := svc.Logout(ctx, LogoutInput{
		UserID:   uuid.New(),
		TokenJTI: "jti-123",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)

	blocked, err := blacklist.IsBlacklisted(ctx, "jti-123")
	require.NoError(t, err)
	assert.True(t, blocked)
}

func TestAuthService_ChangePassword(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	info, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:      info.ID,
		OldPassword: "wrong-old",
		NewPassword: "brand-new-password",
	})
	assert.Error(t, err)

	err = svc.ChangePassword(ctx, ChangePasswordInput{
		UserID:      info.ID,
		OldPassword: "correct-horse-battery",
		NewPassword: "brand-new-password",
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, LoginInput{Email: "ada.lovelace@example.edu", Password: "brand-new-password"})
	assert.NoError(t, err)
}

func TestAuthService_UpdateProfile(t *testing.T) {
	svc, _, _ := newAuthService()
	ctx := context.Background()

	info, err := svc.Register(ctx, registerInput())
	require.NoError(t, err)

	updated, err := svc.UpdateProfile(ctx, UpdateProfileInput{
		UserID:      info.ID,
		FirstName:   "Augusta",
		LastName:    "King",
		Institution: "Difference Engines Inc",
	})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", updated.FirstName)
	assert.Equal(t, "King", updated.LastName)

	_, err = svc.GetCurrentUser(ctx, uuid.New())
	assert.Error(t, err)
}
