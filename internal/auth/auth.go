// Package auth resolves the caller identity from an Authorization header.
//
// Two credentials are accepted: the shared API secret itself, which maps to
// a configured default user, and HS256 tokens signed with that secret whose
// subject is the user id. Anything else is rejected.
package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidCredential is returned for a header that is present but not
	// an accepted bearer credential.
	ErrInvalidCredential = errors.New("invalid bearer credential")
)

const issuer = "tabletop"

// Method records how an identity was established.
type Method string

const (
	MethodNone         Method = ""
	MethodSharedSecret Method = "shared-secret"
	MethodToken        Method = "token"
)

// Identity is the resolved caller. The zero value is the anonymous caller.
type Identity struct {
	UserID string
	Method Method
}

// Anonymous reports whether no credential was presented.
func (id Identity) Anonymous() bool { return id.UserID == "" }

type ctxKey struct{}

// WithIdentity attaches id to ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// FromContext returns the identity attached by WithIdentity, or the
// anonymous identity.
func FromContext(ctx context.Context) Identity {
	id, _ := ctx.Value(ctxKey{}).(Identity)
	return id
}

type claims struct {
	jwt.RegisteredClaims
}

type Resolver struct {
	secret        []byte
	defaultUserID string
}

func NewResolver(secret, defaultUserID string) *Resolver {
	return &Resolver{secret: []byte(secret), defaultUserID: defaultUserID}
}

// Resolve parses an Authorization header value. An empty header yields the
// anonymous identity and no error.
func (r *Resolver) Resolve(header string) (Identity, error) {
	if header == "" {
		return Identity{}, nil
	}
	scheme, token, _ := strings.Cut(header, " ")
	token = strings.TrimSpace(token)
	if !strings.EqualFold(scheme, "Bearer") || token == "" {
		return Identity{}, ErrInvalidCredential
	}

	if subtle.ConstantTimeCompare([]byte(token), r.secret) == 1 {
		return Identity{UserID: r.defaultUserID, Method: MethodSharedSecret}, nil
	}

	var c claims
	tok, err := jwt.ParseWithClaims(token, &c, func(t *jwt.Token) (any, error) {
		return r.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !tok.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: missing subject", ErrInvalidCredential)
	}
	return Identity{UserID: c.Subject, Method: MethodToken}, nil
}

// IssueToken signs a token for userID valid for ttl.
func (r *Resolver) IssueToken(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   userID,
		Issuer:    issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(r.secret)
}
