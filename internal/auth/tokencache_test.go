package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type TokenCacheSuite struct {
	suite.Suite
	mini  *miniredis.Miniredis
	cache *TokenCache
	ctx   context.Context
}

func TestTokenCacheSuite(t *testing.T) {
	suite.Run(t, new(TokenCacheSuite))
}

func (s *TokenCacheSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())
	client := redis.NewClient(&redis.Options{Addr: s.mini.Addr()})
	s.cache = NewTokenCache(client, time.Hour)
	s.ctx = context.Background()
}

func (s *TokenCacheSuite) TestStoreAndCheck() {
	err := s.cache.Store(s.ctx, "alice", TokenKindMP, "token-a")
	s.Require().NoError(err)

	ok, err := s.cache.Check(s.ctx, "alice", TokenKindMP, "token-a")
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.cache.Check(s.ctx, "alice", TokenKindMP, "token-b")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *TokenCacheSuite) TestKindsAreIndependent() {
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindMP, "game-token"))
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindWeb, "web-token"))

	ok, err := s.cache.Check(s.ctx, "alice", TokenKindWeb, "game-token")
	s.Require().NoError(err)
	s.False(ok)

	ok, err = s.cache.Check(s.ctx, "alice", TokenKindWeb, "web-token")
	s.Require().NoError(err)
	s.True(ok)
}

func (s *TokenCacheSuite) TestMissingToken() {
	ok, err := s.cache.Check(s.ctx, "nobody", TokenKindMP, "whatever")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *TokenCacheSuite) TestOnlyHashesAreStored() {
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindMP, "token-a"))

	stored, err := s.mini.Get("v3:token:mp:alice")
	s.Require().NoError(err)
	s.NotEqual("token-a", stored)
	s.Len(stored, 64)
}

func (s *TokenCacheSuite) TestExpiry() {
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindMP, "token-a"))

	s.mini.FastForward(2 * time.Hour)

	ok, err := s.cache.Check(s.ctx, "alice", TokenKindMP, "token-a")
	s.Require().NoError(err)
	s.False(ok)
}

func (s *TokenCacheSuite) TestInvalidate() {
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindMP, "game-token"))
	s.Require().NoError(s.cache.Store(s.ctx, "alice", TokenKindWeb, "web-token"))

	s.Require().NoError(s.cache.Invalidate(s.ctx, "alice"))

	ok, err := s.cache.Check(s.ctx, "alice", TokenKindMP, "game-token")
	s.Require().NoError(err)
	s.False(ok)
	ok, err = s.cache.Check(s.ctx, "alice", TokenKindWeb, "web-token")
	s.Require().NoError(err)
	s.False(ok)
}
