package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/tasktracker/domain"
)

// Claims is the access token payload. RegisteredClaims.ID carries the session id.
type Claims struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 access tokens.
type TokenManager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewTokenManager(secret, issuer string, ttl time.Duration) *TokenManager {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &TokenManager{secret: []byte(secret), issuer: issuer, ttl: ttl}
}

func (m *TokenManager) TTL() time.Duration {
	return m.ttl
}

// Issue signs a token for identity bound to sessionID, expiring at expiresAt.
func (m *TokenManager) Issue(identity domain.Identity, sessionID string, issuedAt, expiresAt time.Time) (string, error) {
	claims := Claims{
		FirstName: identity.FirstName,
		LastName:  identity.LastName,
		Email:     identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID.String(),
			Issuer:    m.issuer,
			ID:        sessionID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Parse verifies the signature, expiry and issuer of raw and returns the caller it names.
func (m *TokenManager) Parse(raw string) (*domain.Identity, error) {
	token, err := jwt.ParseWithClaims(raw, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}))
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, domain.WrapError(domain.ErrCodeUnauthorized, "token expired", err)
		}
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, domain.ErrUnauthorized
	}
	if m.issuer != "" && !claims.VerifyIssuer(m.issuer, true) {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "unexpected token issuer")
	}
	if claims.ID == "" {
		return nil, domain.NewError(domain.ErrCodeUnauthorized, "token has no session")
	}
	userID, err := domain.ParseID(claims.Subject)
	if err != nil {
		return nil, domain.WrapError(domain.ErrCodeUnauthorized, "invalid token subject", err)
	}

	return &domain.Identity{
		UserID:    userID,
		FirstName: claims.FirstName,
		LastName:  claims.LastName,
		Email:     claims.Email,
		SessionID: claims.ID,
	}, nil
}
