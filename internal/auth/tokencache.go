package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/obstaclehub/records-api/internal/rediskey"
)

// TokenKind selects which of the two issued tokens a key refers to: the
// gamemode token held by the game, or the website token held by the browser.
type TokenKind int

// Token kinds
const (
	TokenKindMP TokenKind = iota
	TokenKindWeb
)

// DefaultTokenTTL is how long issued tokens stay valid. Past this, the player
// has to run the authentication flow again.
const DefaultTokenTTL = 180 * 24 * time.Hour

// TokenCache stores hashes of issued tokens in Redis, keyed per player login.
// Only hashes are persisted; the cleartext token lives with its holder.
type TokenCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenCache creates a token cache with the given TTL. A zero TTL means
// DefaultTokenTTL.
func NewTokenCache(client *redis.Client, ttl time.Duration) *TokenCache {
	if ttl == 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenCache{client: client, ttl: ttl}
}

func tokenKey(login string, kind TokenKind) string {
	if kind == TokenKindWeb {
		return rediskey.WebToken(login)
	}
	return rediskey.MPToken(login)
}

func hashToken(token Token) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Store records the hash of an issued token for the player.
func (tc *TokenCache) Store(ctx context.Context, login string, kind TokenKind, token Token) error {
	return tc.client.Set(ctx, tokenKey(login, kind), hashToken(token), tc.ttl).Err()
}

// Check reports whether the presented token matches the one issued to the
// player. An absent key means no token was issued or it expired.
func (tc *TokenCache) Check(ctx context.Context, login string, kind TokenKind, token Token) (bool, error) {
	stored, err := tc.client.Get(ctx, tokenKey(login, kind)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	candidate := hashToken(token)
	return subtle.ConstantTimeCompare([]byte(stored), []byte(candidate)) == 1, nil
}

// Invalidate drops both tokens of the player.
func (tc *TokenCache) Invalidate(ctx context.Context, login string) error {
	return tc.client.Del(ctx, rediskey.MPToken(login), rediskey.WebToken(login)).Err()
}
