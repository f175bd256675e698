package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"supermock/internal/core/domain"
	"supermock/internal/core/ports"
	"supermock/pkg/utils"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

type Claims struct {
	UserID domain.UserID `json:"user_id"`
	Name   string        `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	jwtSecret []byte
	issuer    string
	tokenTTL  time.Duration
	now       func() time.Time
}

func NewAuthService(jwtSecret, issuer string, tokenTTL time.Duration) ports.AuthService {
	return &authService{
		jwtSecret: []byte(jwtSecret),
		issuer:    issuer,
		tokenTTL:  tokenTTL,
		now:       utils.Now,
	}
}

func (s *authService) IssueToken(userID domain.UserID, name string) (string, error) {
	now := s.now()
	claims := &Claims{
		UserID: userID,
		Name:   name,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   string(userID),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// VerifyIdentity accepts a bare token or an "Bearer <token>" header value.
func (s *authService) VerifyIdentity(_ context.Context, credential string) (domain.UserID, error) {
	credential = strings.TrimSpace(credential)
	if after, ok := strings.CutPrefix(credential, "Bearer "); ok {
		credential = strings.TrimSpace(after)
	}
	if credential == "" {
		return "", ErrInvalidToken
	}

	claims, err := s.validateToken(credential)
	if err != nil {
		return "", err
	}
	if claims.UserID == "" || claims.UserID == domain.SystemUserID {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}

func (s *authService) validateToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithTimeFunc(s.now)}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.jwtSecret, nil
	}, opts...)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, ErrInvalidToken
}
