package auth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgauth "github.com/freshmartsg/freshmart-backend/pkg/auth"
	"github.com/freshmartsg/freshmart-backend/pkg/auth/session"
	"github.com/freshmartsg/freshmart-backend/pkg/config"
	"github.com/freshmartsg/freshmart-backend/pkg/db"
	"github.com/freshmartsg/freshmart-backend/pkg/db/models"
	"github.com/freshmartsg/freshmart-backend/pkg/enums"
	pkgerrors "github.com/freshmartsg/freshmart-backend/pkg/errors"
	"github.com/freshmartsg/freshmart-backend/pkg/logger"
	"github.com/freshmartsg/freshmart-backend/pkg/security"
)

const contactPhoneDigits = 8

var validate = validator.New()

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type cartMerger interface {
	MergeOnLogin(ctx context.Context, userID uuid.UUID, sessionID string) error
	PersistOnLogout(ctx context.Context, userID uuid.UUID, sessionID string) error
}

type orderClaimer interface {
	ClaimGuestOrders(ctx context.Context, userID uuid.UUID, email, phone string) (int64, error)
}

type refreshSessions interface {
	Generate(ctx context.Context, accessID string) (string, error)
	Rotate(ctx context.Context, oldAccessID, provided string) (string, string, error)
	Revoke(ctx context.Context, accessID string) error
}

// RegisterInput is the payload for account creation.
type RegisterInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=128"`
	FullName string `validate:"required,min=2,max=120"`
	Phone    string `validate:"omitempty"`
}

// LoginInput is the payload for credential verification.
type LoginInput struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

// LoginResult carries the account plus the freshly minted token pair.
type LoginResult struct {
	User         *models.User
	AccessToken  string
	RefreshToken string
}

// Service is the account lifecycle surface.
type Service interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput, cartSessionID string) (*LoginResult, error)
	Logout(ctx context.Context, userID uuid.UUID, accessID, cartSessionID string) error
	Refresh(ctx context.Context, claims *pkgauth.AccessTokenClaims, refreshToken string) (*LoginResult, error)
}

type service struct {
	users    userStore
	carts    cartMerger
	orders   orderClaimer
	sessions refreshSessions
	jwtCfg   config.JWTConfig
	pwCfg    config.PasswordConfig
	logg     *logger.Logger
}

// NewService builds the auth service.
func NewService(
	users userStore,
	carts cartMerger,
	orders orderClaimer,
	sessions refreshSessions,
	jwtCfg config.JWTConfig,
	pwCfg config.PasswordConfig,
	logg *logger.Logger,
) (Service, error) {
	if users == nil {
		return nil, fmt.Errorf("user store is required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart merger is required")
	}
	if orders == nil {
		return nil, fmt.Errorf("order claimer is required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("refresh sessions are required")
	}
	if jwtCfg.Secret == "" {
		return nil, fmt.Errorf("jwt config is required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &service{
		users:    users,
		carts:    carts,
		orders:   orders,
		sessions: sessions,
		jwtCfg:   jwtCfg,
		pwCfg:    pwCfg,
		logg:     logg,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// normalizePhone strips formatting and keeps the trailing local digits.
func normalizePhone(raw string) (string, bool) {
	var digits strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			digits.WriteRune(r)
		}
	}
	normalized := digits.String()
	if len(normalized) < contactPhoneDigits {
		return "", false
	}
	return normalized[len(normalized)-contactPhoneDigits:], true
}

// Register creates a shopper account. The role is never caller-controlled.
func (s *service) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = normalizeEmail(input.Email)
	input.FullName = strings.TrimSpace(input.FullName)

	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid registration payload").WithDetails(err.Error())
	}

	var phone string
	if strings.TrimSpace(input.Phone) != "" {
		normalized, ok := normalizePhone(input.Phone)
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("contact phone must contain %d digits", contactPhoneDigits))
		}
		phone = normalized
	}

	hash, err := security.HashPassword(input.Password, s.pwCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hashing password")
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        input.Email,
		PasswordHash: hash,
		FullName:     input.FullName,
		Phone:        phone,
		Role:         enums.UserRoleShopper,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "email already registered")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating user")
	}

	s.logg.Info(s.logg.WithUserID(ctx, user.ID.String()), "user registered")
	return user, nil
}

// Login verifies credentials and mints a token pair. On success the guest
// session cart is merged into the account and recent guest orders are
// claimed; both are best effort and never fail the login.
func (s *service) Login(ctx context.Context, input LoginInput, cartSessionID string) (*LoginResult, error) {
	input.Email = normalizeEmail(input.Email)
	if err := validate.Struct(input); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid login payload").WithDetails(err.Error())
	}

	user, err := s.users.FindByEmail(ctx, input.Email)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verifying password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
	}

	result, err := s.mintTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	s.runLoginSideEffects(ctx, user, cartSessionID)
	return result, nil
}

// runLoginSideEffects merges the session cart first so claimed orders never
// race a cart rewrite. Failures are logged, not returned.
func (s *service) runLoginSideEffects(ctx context.Context, user *models.User, cartSessionID string) {
	ctx = s.logg.WithUserID(ctx, user.ID.String())

	if cartSessionID != "" {
		if err := s.carts.MergeOnLogin(ctx, user.ID, cartSessionID); err != nil {
			s.logg.Error(ctx, "merging session cart on login failed", err)
		}
	}
	if _, err := s.orders.ClaimGuestOrders(ctx, user.ID, user.Email, user.Phone); err != nil {
		s.logg.Error(ctx, "claiming guest orders on login failed", err)
	}
}

// Logout persists the session cart into the account, then revokes the
// refresh session. A cart persistence failure does not block the logout.
func (s *service) Logout(ctx context.Context, userID uuid.UUID, accessID, cartSessionID string) error {
	ctx = s.logg.WithUserID(ctx, userID.String())

	if cartSessionID != "" {
		if err := s.carts.PersistOnLogout(ctx, userID, cartSessionID); err != nil {
			s.logg.Error(ctx, "persisting cart on logout failed", err)
		}
	}
	if err := s.sessions.Revoke(ctx, accessID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "revoking session")
	}
	return nil
}

// Refresh rotates the refresh session and mints a new token pair. The
// expired access token's claims identify which session to rotate.
func (s *service) Refresh(ctx context.Context, claims *pkgauth.AccessTokenClaims, refreshToken string) (*LoginResult, error) {
	if claims == nil || claims.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}

	user, err := s.users.FindByID(ctx, claims.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "looking up user")
	}
	if user == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session")
	}

	newAccessID, newRefresh, err := s.sessions.Rotate(ctx, claims.ID, refreshToken)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "rotating session")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    newAccessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &LoginResult{User: user, AccessToken: token, RefreshToken: newRefresh}, nil
}

func (s *service) mintTokenPair(ctx context.Context, user *models.User) (*LoginResult, error) {
	accessID := session.NewAccessID()

	refreshToken, err := s.sessions.Generate(ctx, accessID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "creating refresh session")
	}

	token, err := pkgauth.MintAccessToken(s.jwtCfg, time.Now().UTC(), pkgauth.AccessTokenPayload{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		JTI:    accessID,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "minting access token")
	}

	return &LoginResult{User: user, AccessToken: token, RefreshToken: refreshToken}, nil
}
