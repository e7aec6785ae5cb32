// Package tokens issues and verifies the signed access and refresh credentials.
//
// Access and refresh tokens are HS256 JWTs signed with different secrets, so a
// token of one kind never verifies as the other. Both embed the user id and
// phone. Refresh tokens also carry a random jti, which keeps two tokens minted
// for the same user within the same second distinct.
package tokens

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Kind string

const (
	Access  Kind = "access"
	Refresh Kind = "refresh"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the JWT payload of both token kinds.
type Claims struct {
	UserID string `json:"uid"`
	Phone  string `json:"phone"`
	Kind   Kind   `json:"typ"`
	jwt.RegisteredClaims
}

// Identity is what a verified token proves about its bearer.
type Identity struct {
	UserID uuid.UUID
	Phone  string
}

// Issued is a freshly signed token and the instant it stops being valid.
type Issued struct {
	Token     string
	ExpiresAt time.Time
}

type Issuer struct {
	accessSecret  []byte
	refreshSecret []byte
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

func NewIssuer(accessSecret, refreshSecret string, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		accessSecret:  []byte(accessSecret),
		refreshSecret: []byte(refreshSecret),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}
}

func (i *Issuer) AccessTTL() time.Duration  { return i.accessTTL }
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

func (i *Issuer) IssueAccess(id Identity) (Issued, error) {
	return i.issue(id, Access, i.accessSecret, i.accessTTL)
}

func (i *Issuer) IssueRefresh(id Identity) (Issued, error) {
	return i.issue(id, Refresh, i.refreshSecret, i.refreshTTL)
}

func (i *Issuer) issue(id Identity, kind Kind, secret []byte, ttl time.Duration) (Issued, error) {
	now := i.now().UTC()
	expiresAt := now.Add(ttl)
	claims := Claims{
		UserID: id.UserID.String(),
		Phone:  id.Phone,
		Kind:   kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.UserID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	if kind == Refresh {
		claims.ID = uuid.NewString()
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return Issued{}, fmt.Errorf("failed to sign %s token: %w", kind, err)
	}
	// NumericDate has second precision; report what the token actually says.
	return Issued{Token: signed, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// ParseAccess verifies signature and expiry of an access token. It never
// touches storage.
func (i *Issuer) ParseAccess(token string) (Identity, error) {
	return i.parse(token, Access)
}

func (i *Issuer) ParseRefresh(token string) (Identity, error) {
	return i.parse(token, Refresh)
}

func (i *Issuer) parse(token string, kind Kind) (Identity, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, i.keyfunc(kind),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil || !parsed.Valid {
		return Identity{}, ErrInvalidToken
	}
	return claims.Identity(kind)
}

// AccessKeyfunc resolves the verification key for access tokens; it is shared
// with the HTTP auth middleware.
func (i *Issuer) AccessKeyfunc() jwt.Keyfunc {
	return i.keyfunc(Access)
}

func (i *Issuer) keyfunc(kind Kind) jwt.Keyfunc {
	secret := i.accessSecret
	if kind == Refresh {
		secret = i.refreshSecret
	}
	return func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return secret, nil
	}
}

// Identity validates the custom claims and converts them.
func (c *Claims) Identity(kind Kind) (Identity, error) {
	if c.Kind != kind {
		return Identity{}, ErrInvalidToken
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil || c.Phone == "" {
		return Identity{}, ErrInvalidToken
	}
	return Identity{UserID: userID, Phone: c.Phone}, nil
}

// Fingerprint is the ledger key for a refresh token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
