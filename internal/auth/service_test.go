package auth

import (
	"testing"
	"time"

	"github.com/SCPrime/ai-Trader-sub001/config"
)

func testService(t *testing.T) *Service {
	t.Helper()
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	return NewService(config.AuthConfig{
		Enabled:              true,
		JWTSecret:            "test-secret-at-least-32-characters",
		AccessTokenDuration:  15 * time.Minute,
		RefreshTokenDuration: 24 * time.Hour,
		Operators: []config.Operator{
			{ID: "ops1", Name: "Ops One", Role: "admin", PasswordHash: hash},
		},
	})
}

func TestLoginIssuesValidToken(t *testing.T) {
	svc := testService(t)

	resp, err := svc.Login(LoginRequest{OperatorID: "ops1", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if resp.Operator.Role != "admin" {
		t.Errorf("Role = %q, want admin", resp.Operator.Role)
	}
	if resp.Tokens.TokenType != "Bearer" || resp.Tokens.AccessToken == "" {
		t.Errorf("unexpected token pair: %+v", resp.Tokens)
	}

	claims, err := svc.JWT().ValidateAccessToken(resp.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}
	if claims.OperatorID != "ops1" || !claims.IsAdmin() {
		t.Errorf("claims = %+v", claims)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	svc := testService(t)

	if _, err := svc.Login(LoginRequest{OperatorID: "ops1", Password: "wrong"}); err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestLoginRejectsUnknownOperator(t *testing.T) {
	svc := testService(t)

	if _, err := svc.Login(LoginRequest{OperatorID: "ghost", Password: "hunter2"}); err != ErrInvalidCredentials {
		t.Errorf("err = %v, want ErrInvalidCredentials", err)
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	mgr := NewJWTManager("test-secret-at-least-32-characters", -time.Minute, time.Hour)

	token, err := mgr.GenerateAccessToken(OperatorClaims{OperatorID: "ops1", Role: "admin"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := mgr.ValidateAccessToken(token); err != ErrTokenExpired {
		t.Errorf("err = %v, want ErrTokenExpired", err)
	}
}

func TestValidateRejectsForeignSignature(t *testing.T) {
	issuer := NewJWTManager("issuer-secret-0000000000000000000", time.Minute, time.Hour)
	verifier := NewJWTManager("different-secret-0000000000000000", time.Minute, time.Hour)

	token, err := issuer.GenerateAccessToken(OperatorClaims{OperatorID: "ops1"})
	if err != nil {
		t.Fatalf("GenerateAccessToken: %v", err)
	}
	if _, err := verifier.ValidateAccessToken(token); err != ErrInvalidToken {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}
