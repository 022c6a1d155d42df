package auth

import (
	"errors"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
	ErrUnauthorized = errors.New("unauthorized")
)

const DefaultTokenTTL = 7 * 24 * time.Hour

// TokenService issues and verifies HS256 bearer tokens carrying a user id.
type TokenService struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenService(secret string, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *TokenService) Issue(userID uint) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"userId": userID,
		"iat":    now.Unix(),
		"exp":    now.Add(s.ttl).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify returns the user id carried by a valid token.
func (s *TokenService) Verify(tokenString string) (uint, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	raw, ok := claims["userId"].(float64)
	if !ok || math.IsNaN(raw) || math.IsInf(raw, 0) || raw < 1 || raw != math.Trunc(raw) || raw > math.MaxUint32 {
		return 0, ErrInvalidToken
	}
	return uint(raw), nil
}

// UserIDFromHeader expects exactly "Bearer <token>".
func (s *TokenService) UserIDFromHeader(header string) (uint, error) {
	if header == "" {
		return 0, ErrUnauthorized
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return 0, ErrUnauthorized
	}
	id, err := s.Verify(parts[1])
	if err != nil {
		return 0, ErrUnauthorized
	}
	return id, nil
}
