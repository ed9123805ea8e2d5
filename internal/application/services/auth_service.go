package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fasttrack/core/internal/domain/entities"
	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

// Claims represents the JWT claims for a signed-in user.
type Claims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// AuthService wraps the identity provider with token issuance. It works
// over either provider: in local mode every login yields a token for the
// fixed local user.
type AuthService struct {
	provider ports.IdentityProvider
	cfg      config.JWTConfig
	logger   *logger.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(provider ports.IdentityProvider, cfg config.JWTConfig, log *logger.Logger) *AuthService {
	return &AuthService{provider: provider, cfg: cfg, logger: log}
}

// Register creates an account, signs it in and issues a token.
func (s *AuthService) Register(ctx context.Context, req ports.RegisterRequest) (*ports.AuthResponse, error) {
	identity, err := s.provider.SignUp(ctx, req.Email, req.Password, req.DisplayName)
	if err != nil {
		return nil, err
	}
	return s.respond(identity)
}

// Login signs an account in and issues a token.
func (s *AuthService) Login(ctx context.Context, req ports.LoginRequest) (*ports.AuthResponse, error) {
	identity, err := s.provider.SignIn(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return s.respond(identity)
}

// Logout signs the current session out.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.provider.SignOut(ctx)
}

// Current returns the signed-in identity, or nil.
func (s *AuthService) Current() *ports.Identity {
	return s.provider.Current()
}

// ValidateToken parses and verifies a bearer token.
func (s *AuthService) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}
	return claims, nil
}

func (s *AuthService) respond(identity *ports.Identity) (*ports.AuthResponse, error) {
	token, err := s.generateToken(identity)
	if err != nil {
		return nil, err
	}
	return &ports.AuthResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.cfg.ExpiresIn.Seconds()),
		User:        identity,
	}, nil
}

func (s *AuthService) generateToken(identity *ports.Identity) (string, error) {
	if identity == nil {
		return "", entities.ErrNotAuthenticated
	}

	now := time.Now()
	claims := Claims{
		UserID: identity.UID,
		Email:  identity.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UID,
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.ExpiresIn)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}
