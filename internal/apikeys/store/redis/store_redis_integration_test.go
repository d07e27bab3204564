//go:build integration

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"deeptrack/internal/apikeys/models"
	"deeptrack/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	cache *RedisCache
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.NewRedisContainer(s.T())
	s.cache = New(s.redis.Client)
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))
}

func (s *RedisCacheSuite) TestRoundTripKeepsSecret() {
	ctx := context.Background()
	keys := []models.APIKey{{ID: "k1", Status: models.StatusActive, Key: "dt_live_1"}}
	s.Require().NoError(s.cache.Set(ctx, "co-1", keys, time.Minute))

	got, ok, err := s.cache.Get(ctx, "co-1")
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("dt_live_1", got[0].Key)

	ttl, err := s.redis.Client.TTL(ctx, keyPrefix+"co-1").Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
}

func (s *RedisCacheSuite) TestInvalidate() {
	ctx := context.Background()
	s.Require().NoError(s.cache.Set(ctx, "co-2", []models.APIKey{{ID: "k2"}}, time.Minute))
	s.Require().NoError(s.cache.Invalidate(ctx, "co-2"))

	_, ok, err := s.cache.Get(ctx, "co-2")
	require.NoError(s.T(), err)
	assert.False(s.T(), ok)
}

func (s *RedisCacheSuite) TestCorruptEntryIsAMiss() {
	ctx := context.Background()
	s.Require().NoError(s.redis.Client.Set(ctx, keyPrefix+"co-3", "{broken", time.Minute).Err())

	_, ok, err := s.cache.Get(ctx, "co-3")
	s.Require().NoError(err)
	s.False(ok)
	s.Equal(int64(0), s.redis.Client.Exists(ctx, keyPrefix+"co-3").Val())
}
