package services

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/foodcourt/storefront-api/internal/apperrors"
	"github.com/foodcourt/storefront-api/internal/dto"
	"github.com/foodcourt/storefront-api/internal/models"
	"github.com/foodcourt/storefront-api/internal/repository"
	"github.com/foodcourt/storefront-api/internal/tokens"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrPhoneTaken          = apperrors.Conflict("phone already registered")
	ErrEmailTaken          = apperrors.Conflict("email already registered")
	ErrInvalidCredentials  = apperrors.Unauthenticated("invalid credentials")
	ErrMissingRefreshToken = apperrors.Unauthenticated("refresh token missing")
	ErrInvalidRefreshToken = apperrors.Forbidden("invalid or expired refresh token")
	ErrInvalidAccessToken  = apperrors.Forbidden("invalid or expired access token")
	ErrUserNotFound        = apperrors.NotFound("user not found")
	ErrPasswordTooLong     = apperrors.Validation("password must be at most 72 bytes")
)

// bcrypt rejects longer inputs; the validator's max counts characters.
const maxPasswordBytes = 72

// Session is the outcome of a login or a rotation.
type Session struct {
	AccessToken  tokens.Issued
	RefreshToken tokens.Issued
	User         *models.User
}

// SessionService issues, rotates and revokes sessions.
//
// Every rotation revokes all of the user's active refresh tokens, not only the
// presented one. If a stolen token and the legitimate one are both in use, the
// next refresh by either party kills the other's session.
type SessionService struct {
	users      repository.UserRepository
	ledger     repository.TokenLedger
	issuer     *tokens.Issuer
	bcryptCost int
	dummyHash  []byte
}

func NewSessionService(users repository.UserRepository, ledger repository.TokenLedger, issuer *tokens.Issuer, bcryptCost int) *SessionService {
	if bcryptCost < bcrypt.MinCost || bcryptCost > bcrypt.MaxCost {
		bcryptCost = bcrypt.DefaultCost
	}
	// Compared against for unknown phones so both login failure paths cost one
	// bcrypt comparison.
	dummy, _ := bcrypt.GenerateFromPassword([]byte("storefront-dummy-password"), bcryptCost)
	return &SessionService{
		users:      users,
		ledger:     ledger,
		issuer:     issuer,
		bcryptCost: bcryptCost,
		dummyHash:  dummy,
	}
}

func (s *SessionService) RefreshTTL() time.Duration {
	return s.issuer.RefreshTTL()
}

// Register creates a user. It does not log the user in.
func (s *SessionService) Register(ctx context.Context, req *dto.RegisterRequest) (*models.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Phone = strings.TrimSpace(req.Phone)
	req.Name = strings.TrimSpace(req.Name)
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, ErrPasswordTooLong
	}

	if err := s.ensureUnique(ctx, req.Phone, req.Email); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, ErrPasswordTooLong
		}
		return nil, apperrors.Dependency("failed to hash password", err)
	}

	user := &models.User{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		PasswordHash: string(hash),
		Role:         models.RoleUser,
		AddressLine:  req.AddressLine,
		City:         req.City,
		State:        req.State,
		Pincode:      req.Pincode,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// Lost a race with a concurrent registration; report which key collided.
			if uerr := s.ensureUnique(ctx, req.Phone, req.Email); uerr != nil {
				return nil, uerr
			}
			return nil, ErrPhoneTaken
		}
		return nil, apperrors.Dependency("failed to create user", err)
	}

	slog.Info("user registered", "user_id", user.ID.String())
	return user, nil
}

func (s *SessionService) ensureUnique(ctx context.Context, phone, email string) error {
	if _, err := s.users.FindByPhone(ctx, phone); err == nil {
		return ErrPhoneTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Dependency("failed to check phone", err)
	}
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return apperrors.Dependency("failed to check email", err)
	}
	return nil
}

// Login checks the phone/password pair and starts a new lineage. Unknown
// phones and wrong passwords yield the same error.
func (s *SessionService) Login(ctx context.Context, req *dto.LoginRequest) (*Session, error) {
	req.Phone = strings.TrimSpace(req.Phone)
	if err := dto.Validate(req); err != nil {
		return nil, err
	}

	user, err := s.users.FindByPhone(ctx, req.Phone)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(req.Password))
			return nil, ErrInvalidCredentials
		}
		return nil, apperrors.Dependency("failed to load user", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	session, err := s.mint(ctx, tokens.Identity{UserID: user.ID, Phone: user.Phone})
	if err != nil {
		return nil, err
	}
	session.User = user
	slog.Info("user logged in", "user_id", user.ID.String())
	return session, nil
}

// Refresh rotates refreshToken: it must be an active ledger record and a valid
// signed token. All of the user's active tokens are revoked before the new
// pair is minted.
//
// Two concurrent refreshes presenting different active tokens of one user can
// both pass the lookup and mint two lineages.
func (s *SessionService) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrMissingRefreshToken
	}

	record, err := s.ledger.FindActive(ctx, tokens.Fingerprint(refreshToken))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			slog.Warn("refresh with unknown or revoked token")
			return nil, ErrInvalidRefreshToken
		}
		return nil, apperrors.Dependency("failed to look up refresh token", err)
	}

	identity, err := s.issuer.ParseRefresh(refreshToken)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	if identity.UserID != record.UserID {
		slog.Warn("refresh token owner mismatch", "user_id", record.UserID.String())
		return nil, ErrInvalidRefreshToken
	}

	revoked, err := s.ledger.RevokeAllForUser(ctx, identity.UserID)
	if err != nil {
		return nil, apperrors.Dependency("failed to revoke refresh tokens", err)
	}
	if revoked > 1 {
		slog.Warn("rotation collapsed sibling sessions", "user_id", identity.UserID.String(), "revoked", revoked)
	}

	return s.mint(ctx, identity)
}

// VerifyAccess checks an access token's signature and expiry only.
func (s *SessionService) VerifyAccess(accessToken string) (tokens.Identity, error) {
	identity, err := s.issuer.ParseAccess(accessToken)
	if err != nil {
		return tokens.Identity{}, ErrInvalidAccessToken
	}
	return identity, nil
}

// Logout revokes the ledger record for refreshToken, if there is one.
func (s *SessionService) Logout(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if _, err := s.ledger.RevokeByHash(ctx, tokens.Fingerprint(refreshToken)); err != nil {
		return apperrors.Dependency("failed to revoke refresh token", err)
	}
	return nil
}

func (s *SessionService) CurrentUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.Dependency("failed to load user", err)
	}
	return user, nil
}

// UpdateAddress changes the delivery address, the only mutable part of a user.
func (s *SessionService) UpdateAddress(ctx context.Context, userID uuid.UUID, req *dto.UpdateAddressRequest) (*models.User, error) {
	if err := dto.Validate(req); err != nil {
		return nil, err
	}
	err := s.users.UpdateByID(ctx, userID, map[string]interface{}{
		"address_line": strings.TrimSpace(req.AddressLine),
		"city":         strings.TrimSpace(req.City),
		"state":        strings.TrimSpace(req.State),
		"pincode":      strings.TrimSpace(req.Pincode),
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, apperrors.Dependency("failed to update address", err)
	}
	return s.CurrentUser(ctx, userID)
}

func (s *SessionService) mint(ctx context.Context, identity tokens.Identity) (*Session, error) {
	access, err := s.issuer.IssueAccess(identity)
	if err != nil {
		return nil, apperrors.Dependency("failed to issue access token", err)
	}
	refresh, err := s.issuer.IssueRefresh(identity)
	if err != nil {
		return nil, apperrors.Dependency("failed to issue refresh token", err)
	}

	record := &models.RefreshToken{
		UserID:    identity.UserID,
		TokenHash: tokens.Fingerprint(refresh.Token),
		ExpiresAt: refresh.ExpiresAt.UTC(),
	}
	if err := s.ledger.Create(ctx, record); err != nil {
		return nil, apperrors.Dependency("failed to store refresh token", err)
	}

	return &Session{AccessToken: access, RefreshToken: refresh}, nil
}
