package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoCredential is returned when no usable bearer token is stored.
var ErrNoCredential = errors.New("no credential")

const tokenKey = "auth_token"

// KV is the device key-value storage the token is kept in.
type KV interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// TokenStore holds the bearer credential for the remote service. Tokens are
// opaque to the device, except that a JWT whose exp has passed is treated
// as absent.
type TokenStore struct {
	kv  KV
	now func() time.Time
}

func NewTokenStore(kv KV) *TokenStore {
	return &TokenStore{kv: kv, now: time.Now}
}

// Token returns the stored credential or ErrNoCredential.
func (s *TokenStore) Token(ctx context.Context) (string, error) {
	token, found, err := s.kv.Get(ctx, tokenKey)
	if err != nil {
		return "", fmt.Errorf("read credential: %w", err)
	}
	if !found || token == "" || s.expired(token) {
		return "", ErrNoCredential
	}
	return token, nil
}

func (s *TokenStore) SetToken(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}
	if err := s.kv.Set(ctx, tokenKey, token); err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

func (s *TokenStore) Clear(ctx context.Context) error {
	if err := s.kv.Delete(ctx, tokenKey); err != nil {
		return fmt.Errorf("clear credential: %w", err)
	}
	return nil
}

// HasCredential reports whether a usable token is stored. Storage errors
// count as no credential.
func (s *TokenStore) HasCredential(ctx context.Context) bool {
	_, err := s.Token(ctx)
	return err == nil
}

func (s *TokenStore) expired(token string) bool {
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return false
	}
	return claims.ExpiresAt != nil && !claims.ExpiresAt.After(s.now())
}
