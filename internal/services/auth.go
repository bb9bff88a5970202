// Package services contains the core business logic for BandSync.
package services

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role represents a user's permission level.
type Role string

const (
	RoleAdmin  Role = "admin"  // Creates sessions, selects songs, controls scroll
	RolePlayer Role = "player" // Joins sessions and follows along
)

// Instruments supported for player profiles.
var Instruments = []string{"Drums", "Guitar", "Bass", "Saxophone", "Keyboards", "Vocals"}

// ValidInstrument reports whether the instrument is one of the known set.
func ValidInstrument(instrument string) bool {
	for _, i := range Instruments {
		if i == instrument {
			return true
		}
	}
	return false
}

// Claims represents the JWT payload for authenticated requests. It carries
// the user's identity snapshot so handlers never need a profile lookup.
type Claims struct {
	UserID     string `json:"uid"`
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	Instrument string `json:"instrument,omitempty"`
	jwt.RegisteredClaims
}

// AuthService handles JWT token generation and validation.
type AuthService struct {
	secret        []byte
	tokenDuration time.Duration
}

// NewAuthService creates an AuthService with the given signing secret and
// token lifetime.
func NewAuthService(secret string, tokenDuration time.Duration) *AuthService {
	return &AuthService{
		secret:        []byte(secret),
		tokenDuration: tokenDuration,
	}
}

// GenerateToken creates a signed JWT for the given user identity.
func (s *AuthService) GenerateToken(userID, name string, role Role, instrument string) (string, error) {
	claims := Claims{
		UserID:     userID,
		Name:       name,
		Role:       role,
		Instrument: instrument,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "bandsync",
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(s.tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken verifies the JWT signature and expiry, returning the claims if valid.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})

	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}
