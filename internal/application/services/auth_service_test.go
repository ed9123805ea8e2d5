package services

import (
	"context"
	"testing"
	"time"

	"github.com/fasttrack/core/internal/adapters/identity"
	"github.com/fasttrack/core/internal/infrastructure/config"
	"github.com/fasttrack/core/internal/infrastructure/logger"
	"github.com/fasttrack/core/internal/ports"
)

func newAuthService() *AuthService {
	cfg := config.JWTConfig{Secret: "test-secret", ExpiresIn: time.Hour, Issuer: "fasttrack"}
	return NewAuthService(identity.NewLocalProvider(), cfg, logger.NewNop())
}

func TestLoginIssuesValidToken(t *testing.T) {
	t.Parallel()
	svc := newAuthService()

	response, err := svc.Login(context.Background(), ports.LoginRequest{})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if response.TokenType != "Bearer" {
		t.Errorf("token type = %q, want Bearer", response.TokenType)
	}
	if response.ExpiresIn != 3600 {
		t.Errorf("expiresIn = %d, want 3600", response.ExpiresIn)
	}
	if response.User == nil || response.User.UID != "local-user" {
		t.Fatalf("local login should yield the mock identity: %+v", response.User)
	}

	claims, err := svc.ValidateToken(response.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != "local-user" || claims.Email != "local@demo.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Issuer != "fasttrack" {
		t.Errorf("issuer = %q", claims.Issuer)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	t.Parallel()
	svc := newAuthService()

	if _, err := svc.ValidateToken("not.a.token"); err == nil {
		t.Fatal("garbage token should fail validation")
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	t.Parallel()

	issuer := NewAuthService(identity.NewLocalProvider(),
		config.JWTConfig{Secret: "secret-a", ExpiresIn: time.Hour, Issuer: "fasttrack"}, logger.NewNop())
	verifier := NewAuthService(identity.NewLocalProvider(),
		config.JWTConfig{Secret: "secret-b", ExpiresIn: time.Hour, Issuer: "fasttrack"}, logger.NewNop())

	response, err := issuer.Login(context.Background(), ports.LoginRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := verifier.ValidateToken(response.AccessToken); err == nil {
		t.Fatal("token signed with another secret should fail validation")
	}
}

func TestLogoutClearsIdentity(t *testing.T) {
	t.Parallel()
	svc := newAuthService()
	ctx := context.Background()

	if _, err := svc.Login(ctx, ports.LoginRequest{}); err != nil {
		t.Fatal(err)
	}
	if svc.Current() == nil {
		t.Fatal("should be signed in after login")
	}

	if err := svc.Logout(ctx); err != nil {
		t.Fatal(err)
	}
	if svc.Current() != nil {
		t.Error("should be signed out after logout")
	}
}
