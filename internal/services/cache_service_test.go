package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/stretchr/testify/suite"
)

type RedisCacheTestSuite struct {
	suite.Suite
	redis    *miniredis.Miniredis
	client   *redis.Client
	contract common.Address
	cache    *redisDeploymentCache
}

func (s *RedisCacheTestSuite) SetupTest() {
	s.redis = miniredis.RunT(s.T())
	s.client = redis.NewClient(&redis.Options{Addr: s.redis.Addr()})
	s.contract = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	s.cache = newRedisDeploymentCache(s.client, s.contract, time.Hour)
}

func (s *RedisCacheTestSuite) TearDownTest() {
	s.Require().NoError(s.client.Close())
}

func cachedDeployment() models.Deployment {
	return models.Deployment{
		ID:          7,
		Owner:       common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8"),
		ContentHash: "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		ProjectName: "portfolio",
		Description: "personal site",
		Version:     3,
		Timestamp:   1_700_000_123,
	}
}

func (s *RedisCacheTestSuite) TestMissThenSetThenGet() {
	ctx := context.Background()
	deployment := cachedDeployment()

	_, ok := s.cache.Get(ctx, deployment.ID)
	s.False(ok)

	s.cache.Set(ctx, deployment)

	key := "webhost:deployment:" + s.contract.Hex() + ":7"
	s.True(s.redis.Exists(key))
	s.Equal(time.Hour, s.redis.TTL(key))

	got, ok := s.cache.Get(ctx, deployment.ID)
	s.Require().True(ok)
	s.Equal(deployment, got)
}

func (s *RedisCacheTestSuite) TestKeysAreScopedToContract() {
	ctx := context.Background()
	s.cache.Set(ctx, cachedDeployment())

	other := newRedisDeploymentCache(s.client, common.HexToAddress("0x1"), time.Hour)
	_, ok := other.Get(ctx, 7)
	s.False(ok)
}

func (s *RedisCacheTestSuite) TestCorruptEntryIsAMiss() {
	s.Require().NoError(s.redis.Set(s.cache.key(7), "{not json"))

	_, ok := s.cache.Get(context.Background(), 7)
	s.False(ok)
}

func (s *RedisCacheTestSuite) TestStoredAsJSON() {
	deployment := cachedDeployment()
	s.cache.Set(context.Background(), deployment)

	raw, err := s.redis.Get(s.cache.key(deployment.ID))
	s.Require().NoError(err)

	var fields map[string]interface{}
	s.Require().NoError(json.Unmarshal([]byte(raw), &fields))
	s.Equal(deployment.Owner, common.HexToAddress(fields["owner"].(string)))
	s.Equal(float64(deployment.Timestamp), fields["timestamp"])
}

func (s *RedisCacheTestSuite) TestServerErrorIsAMiss() {
	s.cache.Set(context.Background(), cachedDeployment())
	s.redis.SetError("LOADING Redis is loading the dataset in memory")
	defer s.redis.SetError("")

	_, ok := s.cache.Get(context.Background(), 7)
	s.False(ok)
	s.cache.Set(context.Background(), cachedDeployment())
}

func TestRedisCacheTestSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheTestSuite))
}
