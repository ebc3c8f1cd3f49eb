// Package auth turns an incoming request into the owner it acts for.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

// Resolver identifies the owner behind a request. It returns an error
// wrapping core.ErrUnauthorized when no owner can be established.
type Resolver interface {
	Resolve(r *http.Request) (core.Owner, error)
}

// JWTResolver accepts HS256 bearer tokens. The owner id is the "sub" claim;
// "email" and "name" are optional profile claims.
type JWTResolver struct {
	secret []byte
	issuer string
	leeway time.Duration
}

func NewJWTResolver(secret, issuer string) (*JWTResolver, error) {
	if secret == "" {
		return nil, errors.New("jwt secret is required")
	}
	return &JWTResolver{secret: []byte(secret), issuer: issuer, leeway: 30 * time.Second}, nil
}

type ownerClaims struct {
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (j *JWTResolver) Resolve(r *http.Request) (core.Owner, error) {
	raw, ok := bearerToken(r)
	if !ok {
		return core.Owner{}, fmt.Errorf("%w: missing bearer token", core.ErrUnauthorized)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(j.leeway),
		jwt.WithExpirationRequired(),
	}
	if j.issuer != "" {
		opts = append(opts, jwt.WithIssuer(j.issuer))
	}

	var claims ownerClaims
	token, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
		return j.secret, nil
	}, opts...)
	if err != nil || !token.Valid {
		return core.Owner{}, fmt.Errorf("%w: invalid token: %w", core.ErrUnauthorized, err)
	}

	owner := core.Owner{
		ID:    strings.TrimSpace(claims.Subject),
		Email: strings.TrimSpace(claims.Email),
		Name:  strings.TrimSpace(claims.Name),
	}
	if !owner.Resolved() {
		return core.Owner{}, fmt.Errorf("%w: token has no subject", core.ErrUnauthorized)
	}
	return owner, nil
}

// Sign issues a token for owner. It is used by fintrackctl and tests.
func (j *JWTResolver) Sign(owner core.Owner, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := ownerClaims{
		Email: owner.Email,
		Name:  owner.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.ID,
			Issuer:    j.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(j.secret)
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// Identity headers set by a trusted proxy in front of the API.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserEmail = "X-User-Email"
	HeaderUserName  = "X-User-Name"
)

// HeaderResolver trusts identity headers. Only use it behind a proxy that
// strips these headers from client requests.
type HeaderResolver struct{}

func (HeaderResolver) Resolve(r *http.Request) (core.Owner, error) {
	owner := core.Owner{
		ID:    strings.TrimSpace(r.Header.Get(HeaderUserID)),
		Email: strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
		Name:  strings.TrimSpace(r.Header.Get(HeaderUserName)),
	}
	if !owner.Resolved() {
		return core.Owner{}, fmt.Errorf("%w: missing %s header", core.ErrUnauthorized, HeaderUserID)
	}
	return owner, nil
}

type ownerKey struct{}

// WithOwner stores the resolved owner in ctx.
func WithOwner(ctx context.Context, owner core.Owner) context.Context {
	return context.WithValue(ctx, ownerKey{}, owner)
}

// OwnerFromContext returns the owner stored by WithOwner.
func OwnerFromContext(ctx context.Context) (core.Owner, bool) {
	owner, ok := ctx.Value(ownerKey{}).(core.Owner)
	return owner, ok && owner.Resolved()
}
