//go:build integration

package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"regform/pkg/platform/sentinel"
	"regform/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	contractSuite
	redis *containers.RedisContainer
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	ctx := context.Background()
	for _, prefix := range []string{DefaultRedisPrefix, "a:", "b:"} {
		s.Require().NoError(s.redis.DeletePrefix(ctx, prefix))
	}
}

func (s *RedisStoreSuite) TestPrefixesIsolateStores() {
	ctx := context.Background()
	a := NewRedis(s.redis.Client, WithPrefix("a:"))
	b := NewRedis(s.redis.Client, WithPrefix("b:"))

	s.Require().NoError(a.Create(ctx, newRegistration("Jean", "jean@example.com", 0)))
	s.Require().NoError(b.Create(ctx, newRegistration("Jean", "jean@example.com", 0)))

	listA, err := a.List(ctx)
	s.Require().NoError(err)
	s.Len(listA, 1)
}

func (s *RedisStoreSuite) TestCorruptEntryIsMalformed() {
	ctx := context.Background()
	st := NewRedis(s.redis.Client)
	s.Require().NoError(s.redis.Client.RPush(ctx, DefaultRedisPrefix+"users", "{not json").Err())

	_, err := st.List(ctx)
	s.ErrorIs(err, sentinel.ErrMalformed)
}
