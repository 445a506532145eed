// README: Tests for the JWT token verifier.
package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signToken(t *testing.T, secret, sub, role string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": sub,
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if role != "" {
		claims["role"] = role
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestVerify_ValidToken(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	tok, err := v.Verify(context.Background(), signToken(t, "s3cret", "user42", "livreur"))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.UID != "user42" || tok.Role != "livreur" {
		t.Fatalf("unexpected token data: %+v", tok)
	}
}

func TestVerify_MissingRole(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	tok, err := v.Verify(context.Background(), signToken(t, "s3cret", "user42", ""))
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if tok.Role != "" {
		t.Fatalf("expected empty role, got %q", tok.Role)
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	if _, err := v.Verify(context.Background(), signToken(t, "other", "user42", "client")); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	if _, err := v.Verify(context.Background(), "not-a-jwt"); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestVerify_MissingSubject(t *testing.T) {
	v := NewJWTVerifier("s3cret")
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"role": "client"}).SignedString([]byte("s3cret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	if _, err := v.Verify(context.Background(), raw); err != ErrUnauthenticated {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}
