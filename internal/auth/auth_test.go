package auth

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

func TestJWTResolver(t *testing.T) {
	res, err := NewJWTResolver("s3cret", "fintrack")
	if err != nil {
		t.Fatalf("NewJWTResolver: %v", err)
	}
	other, _ := NewJWTResolver("other", "fintrack")
	wrongIssuer, _ := NewJWTResolver("s3cret", "someone-else")

	valid, err := res.Sign(core.Owner{ID: "user_1", Email: "a@example.com", Name: "Ann"}, time.Hour)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	badKey, _ := other.Sign(core.Owner{ID: "user_1"}, time.Hour)
	expired, _ := res.Sign(core.Owner{ID: "user_1"}, -time.Hour)
	noSubject, _ := res.Sign(core.Owner{}, time.Hour)
	issuer, _ := wrongIssuer.Sign(core.Owner{ID: "user_1"}, time.Hour)
	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "user_1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name   string
		header string
		wantID string
	}{
		{"valid token", "Bearer " + valid, "user_1"},
		{"lowercase scheme", "bearer " + valid, "user_1"},
		{"missing header", "", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"wrong key", "Bearer " + badKey, ""},
		{"expired", "Bearer " + expired, ""},
		{"no subject", "Bearer " + noSubject, ""},
		{"wrong issuer", "Bearer " + issuer, ""},
		{"alg none", "Bearer " + none, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/transactions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			owner, err := res.Resolve(req)
			if tt.wantID == "" {
				if !errors.Is(err, core.ErrUnauthorized) {
					t.Fatalf("expected ErrUnauthorized, got owner=%+v err=%v", owner, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if owner.ID != tt.wantID || owner.Email != "a@example.com" || owner.Name != "Ann" {
				t.Fatalf("unexpected owner %+v", owner)
			}
		})
	}
}

func TestNewJWTResolverRequiresSecret(t *testing.T) {
	if _, err := NewJWTResolver("", ""); err == nil {
		t.Fatal("expected error for empty secret")
	}
}

func TestHeaderResolver(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	if _, err := (HeaderResolver{}).Resolve(req); !errors.Is(err, core.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	req.Header.Set(HeaderUserID, " user_9 ")
	req.Header.Set(HeaderUserEmail, "nine@example.com")
	owner, err := (HeaderResolver{}).Resolve(req)
	if err != nil || owner.ID != "user_9" || owner.Email != "nine@example.com" {
		t.Fatalf("owner=%+v err=%v", owner, err)
	}
}

func TestOwnerContext(t *testing.T) {
	if _, ok := OwnerFromContext(context.Background()); ok {
		t.Fatal("empty context must not carry an owner")
	}
	ctx := WithOwner(context.Background(), core.Owner{ID: "user_1"})
	if owner, ok := OwnerFromContext(ctx); !ok || owner.ID != "user_1" {
		t.Fatalf("owner=%+v ok=%v", owner, ok)
	}
}
