package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/schoollib/library/internal/entities"
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the signed payload of a bearer token.
type Claims struct {
	UserType string        `json:"user_type"`
	Role     entities.Role `json:"role"`
	Name     string        `json:"name"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 bearer tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for ident and stamps ident with the token's
// id and expiry.
func (t *TokenIssuer) Issue(ident *Identity) (string, error) {
	now := t.now()
	ident.TokenID = uuid.NewString()
	ident.ExpiresAt = now.Add(t.ttl).Truncate(time.Second)

	claims := Claims{
		UserType: ident.UserType,
		Role:     ident.Role,
		Name:     ident.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        ident.TokenID,
			Subject:   strconv.FormatUint(uint64(ident.ID), 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(ident.ExpiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Parse verifies a token and returns the identity it carries.
func (t *TokenIssuer) Parse(token string) (*Identity, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	id, err := strconv.ParseUint(claims.Subject, 10, 64)
	if err != nil || id == 0 || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return &Identity{
		ID:        uint(id),
		UserType:  claims.UserType,
		Role:      claims.Role,
		Name:      claims.Name,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
		Via:       AuthTypeBearer,
	}, nil
}
