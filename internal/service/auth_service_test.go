package service

import (
	"context"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"github.com/ticketflow/ticketflow/internal/config"
	"github.com/ticketflow/ticketflow/internal/domain"
)

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 15,
		BcryptCost:            bcrypt.MinCost,
	}
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	authService := NewAuthService(testAuthConfig(), users)

	user, token, _, err := authService.Register(ctx, "alice", "alice@example.com", "s3cret", "Alice")
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if user.Role != domain.RoleUser {
		t.Errorf("registered role = %s, want USER", user.Role)
	}
	if token == "" {
		t.Error("register returned empty token")
	}

	loggedIn, token, _, err := authService.Login(ctx, "alice", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if loggedIn.ID != user.ID {
		t.Errorf("login returned user %s, want %s", loggedIn.ID, user.ID)
	}

	claims, err := authService.TokenManager().ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}
	if claims.UserID != user.ID || claims.Role != domain.RoleUser {
		t.Errorf("claims = %+v, want user %s role USER", claims, user.ID)
	}
}

func TestLoginFailures(t *testing.T) {
	ctx := context.Background()
	users := newFakeUserRepo()
	authService := NewAuthService(testAuthConfig(), users)

	if _, _, _, err := authService.Register(ctx, "bob", "bob@example.com", "hunter2", "Bob"); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, _, _, err := authService.Login(ctx, "bob", "wrong"); errCode(t, err) != "UNAUTHORIZED" {
		t.Errorf("wrong password = %v, want UNAUTHORIZED", err)
	}
	if _, _, _, err := authService.Login(ctx, "nobody", "hunter2"); errCode(t, err) != "UNAUTHORIZED" {
		t.Errorf("unknown user = %v, want UNAUTHORIZED", err)
	}

	disabled, err := users.GetByUsername(ctx, "bob")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	disabled.Enabled = false
	if err := users.Update(ctx, disabled); err != nil {
		t.Fatalf("disable: %v", err)
	}
	if _, _, _, err := authService.Login(ctx, "bob", "hunter2"); errCode(t, err) != "FORBIDDEN" {
		t.Errorf("disabled login = %v, want FORBIDDEN", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	ctx := context.Background()
	authService := NewAuthService(testAuthConfig(), newFakeUserRepo())

	if _, _, _, err := authService.Register(ctx, "", "a@example.com", "pw", ""); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("blank username = %v, want VALIDATION_FAILED", err)
	}
	if _, _, _, err := authService.Register(ctx, "carol", "carol@example.com", "", ""); errCode(t, err) != "VALIDATION_FAILED" {
		t.Errorf("blank password = %v, want VALIDATION_FAILED", err)
	}
}
