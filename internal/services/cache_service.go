package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

// DeploymentCache stores deployments read from the ledger. Deployments never
// change once recorded, so entries never need invalidation. Cache failures are
// logged and treated as misses.
type DeploymentCache interface {
	Get(ctx context.Context, id uint64) (models.Deployment, bool)
	Set(ctx context.Context, deployment models.Deployment)
}

type redisDeploymentCache struct {
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	timeout time.Duration
}

// NewRedisDeploymentCache connects to Redis and verifies the connection.
// Keys are scoped to the contract address.
func NewRedisDeploymentCache(addr, password string, contract common.Address, ttl time.Duration) (DeploymentCache, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return newRedisDeploymentCache(client, contract, ttl), nil
}

func newRedisDeploymentCache(client *redis.Client, contract common.Address, ttl time.Duration) *redisDeploymentCache {
	return &redisDeploymentCache{
		client:  client,
		prefix:  fmt.Sprintf("webhost:deployment:%s:", contract.Hex()),
		ttl:     ttl,
		timeout: 250 * time.Millisecond,
	}
}

func (c *redisDeploymentCache) key(id uint64) string {
	return fmt.Sprintf("%s%d", c.prefix, id)
}

func (c *redisDeploymentCache) Get(ctx context.Context, id uint64) (models.Deployment, bool) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.Printf("Redis cache get failed for deployment %d: %v", id, err)
		}
		return models.Deployment{}, false
	}

	var deployment models.Deployment
	if err := json.Unmarshal(data, &deployment); err != nil {
		log.Printf("Discarding corrupt cache entry for deployment %d: %v", id, err)
		return models.Deployment{}, false
	}
	return deployment, true
}

func (c *redisDeploymentCache) Set(ctx context.Context, deployment models.Deployment) {
	data, err := json.Marshal(deployment)
	if err != nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	if err := c.client.Set(ctx, c.key(deployment.ID), data, c.ttl).Err(); err != nil {
		log.Printf("Redis cache set failed for deployment %d: %v", deployment.ID, err)
	}
}

type memoryDeploymentCache struct {
	mu         sync.RWMutex
	items      map[uint64]models.Deployment
	maxEntries int
}

// NewMemoryDeploymentCache creates a process-local cache holding at most maxEntries
// deployments. Once full, new entries are not stored.
func NewMemoryDeploymentCache(maxEntries int) DeploymentCache {
	return &memoryDeploymentCache{items: map[uint64]models.Deployment{}, maxEntries: maxEntries}
}

func (c *memoryDeploymentCache) Get(_ context.Context, id uint64) (models.Deployment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.items[id]
	return d, ok
}

func (c *memoryDeploymentCache) Set(_ context.Context, deployment models.Deployment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.items[deployment.ID]; !exists && len(c.items) >= c.maxEntries {
		return
	}
	c.items[deployment.ID] = deployment
}

type noopDeploymentCache struct{}

func (noopDeploymentCache) Get(context.Context, uint64) (models.Deployment, bool) {
	return models.Deployment{}, false
}

func (noopDeploymentCache) Set(context.Context, models.Deployment) {}
