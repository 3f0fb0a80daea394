package service

import (
	"fmt"
	"time"

	"github.com/kitchenunity/cabinet-bfa-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthClaims are the claims of a Supabase-style HS256 access token. The
// subject is the profile id.
type AuthClaims struct {
	Email string `json:"email,omitempty"`
	// StoreID is an optional tenant claim; the profile overrides it.
	StoreID string `json:"store_id,omitempty"`
	jwt.RegisteredClaims
}

// AuthService validates and issues bearer tokens.
type AuthService struct {
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewAuthService creates a new auth service.
func NewAuthService(jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// ValidateAccessToken parses and verifies tokenString.
func (s *AuthService) ValidateAccessToken(tokenString string) (*AuthClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AuthClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil {
		s.logger.Debug("token rejected", zap.Error(err))
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*AuthClaims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims, nil
}

// SignAccessToken issues a token for subject. Used by the operator CLI
// and tests; production tokens come from the identity provider.
func (s *AuthService) SignAccessToken(subject, email, storeID string) (string, error) {
	now := time.Now()
	claims := AuthClaims{
		Email:   email,
		StoreID: storeID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
			Issuer:    "kitchenunity",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}
