package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types.
const (
	TokenTypeDevice = "device"
	TokenTypeUser   = "user"
)

// ErrInvalidToken covers every verification failure; callers only need one
// signal to return 401.
var ErrInvalidToken = errors.New("invalid token")

// Claims carries the identity of the bearer alongside the registered set.
type Claims struct {
	jwt.RegisteredClaims
	TokenType string `json:"tokenType"`
	DeviceID  string `json:"deviceId,omitempty"`
	RoomID    string `json:"roomId,omitempty"`
	HotelID   string `json:"hotelId,omitempty"`
	UserID    string `json:"userId,omitempty"`
	Role      string `json:"role,omitempty"`
}

// Service issues and verifies HS256 tokens.
type Service struct {
	secret   []byte
	lifetime time.Duration
}

func NewService(secret string, lifetime time.Duration) *Service {
	return &Service{
		secret:   []byte(secret),
		lifetime: lifetime,
	}
}

// DeviceToken issues a long-lived token for a registered tablet.
func (s *Service) DeviceToken(deviceID, roomID, hotelID string) (string, error) {
	claims := &Claims{
		RegisteredClaims: s.registered(deviceID),
		TokenType:        TokenTypeDevice,
		DeviceID:         deviceID,
		RoomID:           roomID,
		HotelID:          hotelID,
	}
	return s.sign(claims)
}

// UserToken issues a token for a dashboard user.
func (s *Service) UserToken(userID, role string) (string, error) {
	claims := &Claims{
		RegisteredClaims: s.registered(userID),
		TokenType:        TokenTypeUser,
		UserID:           userID,
		Role:             role,
	}
	return s.sign(claims)
}

// Verify parses and validates a token string.
func (s *Service) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func (s *Service) registered(subject string) jwt.RegisteredClaims {
	now := time.Now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.lifetime)),
	}
}

func (s *Service) sign(claims *Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
