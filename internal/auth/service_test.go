package auth

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	pkgauth "github.com/freshmartsg/freshmart-backend/pkg/auth"
	"github.com/freshmartsg/freshmart-backend/pkg/config"
	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[string]*models.User
}

func newFakeUserStore() *fakeUserStore {
	return &fakeUserStore{users: make(map[string]*models.User)}
}

func (f *fakeUserStore) Create(ctx context.Context, user *models.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.users[user.Email]; exists {
		return fmt.Errorf("duplicate key value violates unique constraint")
	}
	f.users[user.Email] = user
	return nil
}

func (f *fakeUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if user, ok := f.users[email]; ok {
		return user, nil
	}
	return nil, nil
}

func (f *fakeUserStore) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, nil
}

type fakeCartMerger struct {
	merged    []string
	persisted []string
	fail      bool
}

func (f *fakeCartMerger) MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if f.fail {
		return fmt.Errorf("redis unavailable")
	}
	f.merged = append(f.merged, sessionID)
	return nil
}

func (f *fakeCartMerger) PersistOnLogout(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if f.fail {
		return fmt.Errorf("redis unavailable")
	}
	f.persisted = append(f.persisted, sessionID)
	return nil
}

type fakeOrderClaimer struct {
	calls int
	fail  bool
}

func (f *fakeOrderClaimer) ClaimGuestOrders(ctx context.Context, userID uuid.UUID, email, phone string) (int64, error) {
	f.calls++
	if f.fail {
		return 0, fmt.Errorf("db unavailable")
	}
	return 1, nil
}

type fakeSessions struct {
	mu       sync.Mutex
	tokens   map[string]string
	revoked  []string
	rotateAt int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{tokens: make(map[string]string)}
}

func (f *fakeSessions) Generate(ctx context.Context, accessID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	token := "refresh-" + accessID
	f.tokens[accessID] = token
	return token, nil
}

func (f *fakeSessions) Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	current, ok := f.tokens[oldAccessID]
	if !ok || current != provided {
		return "", "", fmt.Errorf("refresh token mismatch")
	}
	delete(f.tokens, oldAccessID)
	f.rotateAt++
	next := fmt.Sprintf("rotated-%d", f.rotateAt)
	f.tokens[next] = "refresh-" + next
	return next, "refresh-" + next, nil
}

func (f *fakeSessions) Revoke(ctx context.Context, accessID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tokens, accessID)
	f.revoked = append(f.revoked, accessID)
	return nil
}

func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret",
		Issuer:                 "freshmart-test",
		ExpirationMinutes:      15,
		RefreshTokenTTLMinutes: 1440,
	}
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "auth-test", Output: io.Discard})
}

type authFixture struct {
	users    *fakeUserStore
	carts    *fakeCartMerger
	orders   *fakeOrderClaimer
	sessions *fakeSessions
	service  Service
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	fixture := &authFixture{
		users:    newFakeUserStore(),
		carts:    &fakeCartMerger{},
		orders:   &fakeOrderClaimer{},
		sessions: newFakeSessions(),
	}

	svc, err := NewService(
		fixture.users,
		fixture.carts,
		fixture.orders,
		fixture.sessions,
		testJWTConfig(),
		config.PasswordConfig{},
		testLogger(),
	)
	require.NoError(t, err)
	fixture.service = svc
	return fixture
}

func (f *authFixture) mustRegister(t *testing.T, email, password string) *models.User {
	t.Helper()

	user, err := f.service.Register(context.Background(), RegisterInput{
		Email:    email,
		Password: password,
		FullName: "Chan Mei Ling",
		Phone:    "+65 9876 5432",
	})
	require.NoError(t, err)
	return user
}

func requireAuthCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()

	require.Error(t, err)
	coded := pkgerrors.As(err)
	require.NotNil(t, coded, "expected a coded error, got %v", err)
	require.Equal(t, code, coded.Code())
}

func TestRegisterNormalizesAndForcesShopperRole(t *testing.T) {
	fixture := newAuthFixture(t)

	user, err := fixture.service.Register(context.Background(), RegisterInput{
		Email:    "  Mei.Ling@Example.SG ",
		Password: "correct horse battery",
		FullName: "  Chan Mei Ling ",
		Phone:    "+65 9876-5432",
	})
	require.NoError(t, err)
	require.Equal(t, "mei.ling@example.sg", user.Email)
	require.Equal(t, "Chan Mei Ling", user.FullName)
	require.Equal(t, "98765432", user.Phone)
	require.Equal(t, enums.UserRoleShopper, user.Role)
	require.NotEqual(t, "correct horse battery", user.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	fixture := newAuthFixture(t)
	ctx := context.Background()

	_, err := fixture.service.Register(ctx, RegisterInput{
		Email:    "not-an-email",
		Password: "long enough pass",
		FullName: "Someone",
	})
	requireAuthCode(t, err, pkgerrors.CodeValidation)

	_, err = fixture.service.Register(ctx, RegisterInput{
		Email:    "short@example.sg",
		Password: "2short",
		FullName: "Someone",
	})
	requireAuthCode(t, err, pkgerrors.CodeValidation)

	_, err = fixture.service.Register(ctx, RegisterInput{
		Email:    "phone@example.sg",
		Password: "long enough pass",
		FullName: "Someone",
		Phone:    "12345",
	})
	requireAuthCode(t, err, pkgerrors.CodeValidation)
}

func TestRegisterDuplicateEmailConflicts(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.mustRegister(t, "taken@example.sg", "first password!")

	_, err := fixture.service.Register(context.Background(), RegisterInput{
		Email:    "Taken@Example.SG",
		Password: "second password!",
		FullName: "Impostor",
	})
	requireAuthCode(t, err, pkgerrors.CodeConflict)
}

func TestLoginHappyPathRunsSideEffects(t *testing.T) {
	fixture := newAuthFixture(t)
	registered := fixture.mustRegister(t, "shopper@example.sg", "super secret pass")

	result, err := fixture.service.Login(context.Background(), LoginInput{
		Email:    "Shopper@Example.SG",
		Password: "super secret pass",
	}, "guest-session-1")
	require.NoError(t, err)
	require.Equal(t, registered.ID, result.User.ID)
	require.NotEmpty(t, result.AccessToken)
	require.NotEmpty(t, result.RefreshToken)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	require.NoError(t, err)
	require.Equal(t, registered.ID, claims.UserID)
	require.Equal(t, enums.UserRoleShopper, claims.Role)
	require.NotEmpty(t, claims.ID)

	require.Equal(t, []string{"guest-session-1"}, fixture.carts.merged)
	require.Equal(t, 1, fixture.orders.calls)
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.mustRegister(t, "shopper@example.sg", "super secret pass")
	ctx := context.Background()

	_, err := fixture.service.Login(ctx, LoginInput{
		Email:    "shopper@example.sg",
		Password: "wrong password",
	}, "")
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)

	_, err = fixture.service.Login(ctx, LoginInput{
		Email:    "unknown@example.sg",
		Password: "whatever passes",
	}, "")
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)

	require.Empty(t, fixture.carts.merged, "side effects must not run on failed login")
	require.Zero(t, fixture.orders.calls)
}

func TestLoginSurvivesSideEffectFailures(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.mustRegister(t, "shopper@example.sg", "super secret pass")
	fixture.carts.fail = true
	fixture.orders.fail = true

	result, err := fixture.service.Login(context.Background(), LoginInput{
		Email:    "shopper@example.sg",
		Password: "super secret pass",
	}, "guest-session-1")
	require.NoError(t, err, "cart and claim failures must not fail the login")
	require.NotEmpty(t, result.AccessToken)
}

func TestLogoutPersistsCartThenRevokes(t *testing.T) {
	fixture := newAuthFixture(t)
	registered := fixture.mustRegister(t, "shopper@example.sg", "super secret pass")

	result, err := fixture.service.Login(context.Background(), LoginInput{
		Email:    "shopper@example.sg",
		Password: "super secret pass",
	}, "")
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), result.AccessToken)
	require.NoError(t, err)

	err = fixture.service.Logout(context.Background(), registered.ID, claims.ID, "guest-session-1")
	require.NoError(t, err)
	require.Equal(t, []string{"guest-session-1"}, fixture.carts.persisted)
	require.Equal(t, []string{claims.ID}, fixture.sessions.revoked)
}

func TestRefreshRotatesSessionAndReissuesToken(t *testing.T) {
	fixture := newAuthFixture(t)
	fixture.mustRegister(t, "shopper@example.sg", "super secret pass")

	login, err := fixture.service.Login(context.Background(), LoginInput{
		Email:    "shopper@example.sg",
		Password: "super secret pass",
	}, "")
	require.NoError(t, err)

	claims, err := pkgauth.ParseAccessToken(testJWTConfig(), login.AccessToken)
	require.NoError(t, err)

	refreshed, err := fixture.service.Refresh(context.Background(), claims, login.RefreshToken)
	require.NoError(t, err)
	require.NotEmpty(t, refreshed.AccessToken)
	require.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	newClaims, err := pkgauth.ParseAccessToken(testJWTConfig(), refreshed.AccessToken)
	require.NoError(t, err)
	require.NotEqual(t, claims.ID, newClaims.ID, "rotation must issue a fresh session id")

	// the consumed refresh token is dead
	_, err = fixture.service.Refresh(context.Background(), claims, login.RefreshToken)
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestRefreshRejectsUnknownUser(t *testing.T) {
	fixture := newAuthFixture(t)

	claims := &pkgauth.AccessTokenClaims{UserID: uuid.New()}
	claims.ID = "some-session"

	_, err := fixture.service.Refresh(context.Background(), claims, "refresh-whatever")
	requireAuthCode(t, err, pkgerrors.CodeUnauthorized)
}
