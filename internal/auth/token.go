package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type promptguardClaims struct {
	jwt.RegisteredClaims
	UserID      string   `json:"uid"`
	Email       string   `json:"email,omitempty"`
	DisplayName string   `json:"name,omitempty"`
	Department  string   `json:"dept,omitempty"`
	Roles       []string `json:"roles,omitempty"`
	TokenType   string   `json:"type"`
}

// TokenService handles JWT creation and validation.
type TokenService struct {
	signingKey  []byte
	issuer      string
	expiryHours int
}

func NewTokenService(signingKey, issuer string, expiryHours int) *TokenService {
	return &TokenService{
		signingKey:  []byte(signingKey),
		issuer:      issuer,
		expiryHours: expiryHours,
	}
}

// CreateAccessToken signs an HS256 access token for identity.
func (s *TokenService) CreateAccessToken(identity *Identity) (string, error) {
	return s.createToken(identity, "access", time.Duration(s.expiryHours)*time.Hour)
}

// CreateTokenWithTTL signs an access token with an explicit lifetime.
func (s *TokenService) CreateTokenWithTTL(identity *Identity, ttl time.Duration) (string, error) {
	return s.createToken(identity, "access", ttl)
}

func (s *TokenService) createToken(identity *Identity, tokenType string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := promptguardClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   identity.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		UserID:      identity.UserID,
		Email:       identity.Email,
		DisplayName: identity.DisplayName,
		Department:  identity.Department,
		Roles:       identity.Roles,
		TokenType:   tokenType,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.signingKey)
}

func (s *TokenService) ValidateToken(tokenString string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(tokenString, &promptguardClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	}, jwt.WithIssuer(s.issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %v", ErrTokenExpired, err)
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	claims, ok := token.Claims.(*promptguardClaims)
	if !ok || !token.Valid {
		return nil, ErrTokenInvalid
	}

	return &Identity{
		UserID:      claims.UserID,
		Email:       claims.Email,
		DisplayName: claims.DisplayName,
		Department:  claims.Department,
		Roles:       claims.Roles,
		TokenType:   claims.TokenType,
	}, nil
}
