package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/foodcourt/storefront-api/internal/testutil"
	"github.com/foodcourt/storefront-api/internal/tokens"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func newTestIssuer() *tokens.Issuer {
	return tokens.NewIssuer("access-secret-for-tests", "refresh-secret-for-tests", 15*time.Minute, 7*24*time.Hour)
}

func newSessionService(t *testing.T) (*SessionService, *repository.GormTokenLedger, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	ledger := repository.NewTokenLedger(db)
	svc := NewSessionService(repository.NewUserRepository(db), ledger, newTestIssuer(), bcrypt.MinCost)
	return svc, ledger, db
}

func registerRequest(phone, email string) *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Name:        "Asha Rao",
		Email:       email,
		Phone:       phone,
		Password:    "correct-horse",
		AddressLine: "12 MG Road",
		City:        "Bengaluru",
		State:       "Karnataka",
		Pincode:     "560001",
	}
}

func registerAndLogin(t *testing.T, svc *SessionService) *Session {
	t.Helper()
	ctx := context.Background()
	_, err := svc.Register(ctx, registerRequest("9876543210", "asha@example.com"))
	require.NoError(t, err)
	session, err := svc.Login(ctx, &dto.LoginRequest{Phone: "9876543210", Password: "correct-horse"})
	require.NoError(t, err)
	return session
}

func TestRegister(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()

	user, err := svc.Register(ctx, registerRequest("9876543210", " Asha@Example.com "))
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.Equal(t, models.RoleUser, user.Role)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("correct-horse")))
}

func TestRegisterUniqueness(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest("9876543210", "asha@example.com"))
	require.NoError(t, err)

	_, err = svc.Register(ctx, registerRequest("9876543210", "other@example.com"))
	assert.ErrorIs(t, err, ErrPhoneTaken)
	assert.Equal(t, apperrors.KindConflict, apperrors.KindOf(err))

	_, err = svc.Register(ctx, registerRequest("9000000000", "asha@example.com"))
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestRegisterValidation(t *testing.T) {
	svc, _, _ := newSessionService(t)

	req := registerRequest("9876543210", "not-an-email")
	_, err := svc.Register(context.Background(), req)
	require.Error(t, err)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	req = registerRequest("9876543210", "asha@example.com")
	req.Password = "short"
	_, err = svc.Register(context.Background(), req)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestRegisterRejectsPasswordOverBcryptLimit(t *testing.T) {
	svc, _, db := newSessionService(t)
	ctx := context.Background()

	// 30 characters, 90 bytes.
	req := registerRequest("9876543210", "asha@example.com")
	req.Password = strings.Repeat("€", 30)
	_, err := svc.Register(ctx, req)
	assert.ErrorIs(t, err, ErrPasswordTooLong)
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Zero(t, count)

	// 24 characters, 72 bytes.
	req = registerRequest("9876543210", "asha@example.com")
	req.Password = strings.Repeat("€", 24)
	_, err = svc.Register(ctx, req)
	require.NoError(t, err)
	_, err = svc.Login(ctx, &dto.LoginRequest{Phone: "9876543210", Password: strings.Repeat("€", 24)})
	assert.NoError(t, err)
}

func TestLoginIssuesVerifiableTokens(t *testing.T) {
	svc, ledger, _ := newSessionService(t)
	session := registerAndLogin(t, svc)

	identity, err := svc.VerifyAccess(session.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, session.User.ID, identity.UserID)
	assert.Equal(t, "9876543210", identity.Phone)

	_, err = svc.VerifyAccess(session.RefreshToken.Token)
	assert.ErrorIs(t, err, ErrInvalidAccessToken)

	active, err := ledger.CountActive(context.Background(), session.User.ID, time.Now())
	require.NoError(t, err)
	assert.EqualValues(t, 1, active)
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	svc, _, _ := newSessionService(t)
	registerAndLogin(t, svc)
	ctx := context.Background()

	_, wrongPassword := svc.Login(ctx, &dto.LoginRequest{Phone: "9876543210", Password: "wrong-password"})
	_, unknownPhone := svc.Login(ctx, &dto.LoginRequest{Phone: "9000000000", Password: "correct-horse"})

	require.Error(t, wrongPassword)
	require.Error(t, unknownPhone)
	assert.Equal(t, wrongPassword.Error(), unknownPhone.Error())
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(wrongPassword))
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(unknownPhone))
}

func TestRefreshRotatesAndInvalidatesPresentedToken(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()
	first := registerAndLogin(t, svc)

	second, err := svc.Refresh(ctx, first.RefreshToken.Token)
	require.NoError(t, err)
	assert.NotEqual(t, first.RefreshToken.Token, second.RefreshToken.Token)

	identity, err := svc.VerifyAccess(second.AccessToken.Token)
	require.NoError(t, err)
	assert.Equal(t, first.User.ID, identity.UserID)

	_, err = svc.Refresh(ctx, first.RefreshToken.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
	assert.Equal(t, apperrors.KindForbidden, apperrors.KindOf(err))
}

func TestRefreshLeavesSingleActiveLineage(t *testing.T) {
	svc, ledger, _ := newSessionService(t)
	ctx := context.Background()
	session := registerAndLogin(t, svc)

	// A second device logs in; rotation on either collapses both.
	_, err := svc.Login(ctx, &dto.LoginRequest{Phone: "9876543210", Password: "correct-horse"})
	require.NoError(t, err)

	current := session
	for i := 0; i < 5; i++ {
		current, err = svc.Refresh(ctx, current.RefreshToken.Token)
		require.NoError(t, err)

		active, err := ledger.CountActive(ctx, session.User.ID, time.Now())
		require.NoError(t, err)
		assert.EqualValues(t, 1, active)
	}
}

func TestRefreshRejectsMissingAndGarbage(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()

	_, err := svc.Refresh(ctx, "")
	assert.ErrorIs(t, err, ErrMissingRefreshToken)
	assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))

	_, err = svc.Refresh(ctx, "not.a.token")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	svc, _, _ := newSessionService(t)
	session := registerAndLogin(t, svc)

	_, err := svc.Refresh(context.Background(), session.AccessToken.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestLogoutIsIdempotent(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()
	session := registerAndLogin(t, svc)

	require.NoError(t, svc.Logout(ctx, session.RefreshToken.Token))
	require.NoError(t, svc.Logout(ctx, session.RefreshToken.Token))
	require.NoError(t, svc.Logout(ctx, ""))
	require.NoError(t, svc.Logout(ctx, "never-issued"))

	_, err := svc.Refresh(ctx, session.RefreshToken.Token)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)

	// Access tokens stay valid until they expire.
	_, err = svc.VerifyAccess(session.AccessToken.Token)
	assert.NoError(t, err)
}

type failingLedger struct{}

var errLedgerDown = errors.New("ledger unavailable")

func (failingLedger) Create(context.Context, *models.RefreshToken) error { return errLedgerDown }
func (failingLedger) FindActive(context.Context, string) (*models.RefreshToken, error) {
	return nil, errLedgerDown
}
func (failingLedger) RevokeAllForUser(context.Context, uuid.UUID) (int64, error) {
	return 0, errLedgerDown
}
func (failingLedger) RevokeByHash(context.Context, string) (int64, error) { return 0, errLedgerDown }
func (failingLedger) DeleteRevokedOrExpired(context.Context, time.Time) (int64, error) {
	return 0, errLedgerDown
}
func (failingLedger) CountActive(context.Context, uuid.UUID, time.Time) (int64, error) {
	return 0, errLedgerDown
}

func TestVerifyAccessDoesNotTouchLedger(t *testing.T) {
	issuer := newTestIssuer()
	svc := NewSessionService(repository.NewUserRepository(testutil.NewDB(t)), failingLedger{}, issuer, bcrypt.MinCost)

	access, err := issuer.IssueAccess(tokens.Identity{UserID: uuid.New(), Phone: "9876543210"})
	require.NoError(t, err)

	identity, err := svc.VerifyAccess(access.Token)
	require.NoError(t, err)
	assert.Equal(t, "9876543210", identity.Phone)
}

func TestLedgerFailureSurfacesAsDependencyError(t *testing.T) {
	db := testutil.NewDB(t)
	users := repository.NewUserRepository(db)
	svc := NewSessionService(users, failingLedger{}, newTestIssuer(), bcrypt.MinCost)
	ctx := context.Background()

	_, err := svc.Register(ctx, registerRequest("9876543210", "asha@example.com"))
	require.NoError(t, err)

	_, err = svc.Login(ctx, &dto.LoginRequest{Phone: "9876543210", Password: "correct-horse"})
	require.Error(t, err)
	assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))

	_, err = svc.Refresh(ctx, "some-token")
	assert.Equal(t, apperrors.KindDependency, apperrors.KindOf(err))

	err = svc.Logout(ctx, "some-token")
	assert.ErrorIs(t, err, errLedgerDown)
}

func TestCurrentUserAndUpdateAddress(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()
	session := registerAndLogin(t, svc)

	user, err := svc.CurrentUser(ctx, session.User.ID)
	require.NoError(t, err)
	assert.Equal(t, "Asha Rao", user.Name)

	updated, err := svc.UpdateAddress(ctx, session.User.ID, &dto.UpdateAddressRequest{
		AddressLine: "4 Park Street",
		City:        "Kolkata",
		State:       "West Bengal",
		Pincode:     "700016",
	})
	require.NoError(t, err)
	assert.Equal(t, "Kolkata", updated.City)

	_, err = svc.CurrentUser(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrUserNotFound)
}
