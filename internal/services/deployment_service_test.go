package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOwner = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

func setupRepository(t *testing.T, cache DeploymentCache) (*testutils.SimulatedLedger, DeploymentService) {
	t.Helper()
	backend := testutils.NewSimulatedLedger()
	ledger, err := NewLedgerService(backend, LedgerConfig{ContractAddress: backend.Address}, nil)
	require.NoError(t, err)
	return backend, NewDeploymentService(ledger, cache, 8)
}

func TestSortDeployments(t *testing.T) {
	deployments := func() []models.Deployment {
		return []models.Deployment{
			{ID: 1, Timestamp: 100, Version: 1},
			{ID: 2, Timestamp: 300, Version: 3},
			{ID: 3, Timestamp: 200, Version: 2},
		}
	}
	ids := func(ds []models.Deployment) []uint64 {
		out := make([]uint64, 0, len(ds))
		for _, d := range ds {
			out = append(out, d.ID)
		}
		return out
	}

	tests := []struct {
		order    models.SortOrder
		expected []uint64
	}{
		{order: models.SortNewest, expected: []uint64{2, 3, 1}},
		{order: models.SortOldest, expected: []uint64{1, 3, 2}},
		{order: models.SortVersion, expected: []uint64{2, 3, 1}},
	}
	for _, tt := range tests {
		t.Run(string(tt.order), func(t *testing.T) {
			ds := deployments()
			SortDeployments(ds, tt.order)
			assert.Equal(t, tt.expected, ids(ds))
		})
	}

	t.Run("ties break by ascending id", func(t *testing.T) {
		ds := []models.Deployment{
			{ID: 9, Timestamp: 500, Version: 1},
			{ID: 4, Timestamp: 500, Version: 1},
			{ID: 6, Timestamp: 500, Version: 1},
		}
		for _, order := range []models.SortOrder{models.SortNewest, models.SortOldest, models.SortVersion} {
			SortDeployments(ds, order)
			assert.Equal(t, []uint64{4, 6, 9}, ids(ds), "order %s", order)
		}
	})
}

func TestDeploymentService_ListForOwner(t *testing.T) {
	backend, service := setupRepository(t, nil)
	other := common.HexToAddress("0x1234")

	backend.Seed(testOwner, "QmOne", "blog", "", 100)
	backend.Seed(other, "QmOther", "other", "", 150)
	backend.Seed(testOwner, "QmTwo", "Shop", "", 300)
	backend.Seed(testOwner, "QmThree", "blog", "", 200)

	deployments, err := service.ListForOwner(context.Background(), testOwner, ListOptions{})
	require.NoError(t, err)
	require.Len(t, deployments, 3)
	assert.Equal(t, []uint64{3, 4, 1}, []uint64{deployments[0].ID, deployments[1].ID, deployments[2].ID})

	filtered, err := service.ListForOwner(context.Background(), testOwner, ListOptions{Sort: models.SortOldest, ProjectName: "BLOG"})
	require.NoError(t, err)
	require.Len(t, filtered, 2)
	assert.Equal(t, uint64(1), filtered[0].ID)
	assert.Equal(t, uint64(4), filtered[1].ID)

	_, err = service.ListForOwner(context.Background(), testOwner, ListOptions{Sort: "alphabetical"})
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestDeploymentService_ListForOwnerFailsFast(t *testing.T) {
	backend, service := setupRepository(t, nil)
	for _, hash := range []string{"QmA", "QmB", "QmC"} {
		backend.Seed(testOwner, hash, "site", "", 100)
	}
	backend.FailRead(2, errors.New("connection reset"))

	deployments, err := service.ListForOwner(context.Background(), testOwner, ListOptions{})
	require.Error(t, err)
	assert.Nil(t, deployments)

	var readErr *LedgerReadError
	assert.ErrorAs(t, err, &readErr)
}

func TestDeploymentService_EmptyOwner(t *testing.T) {
	_, service := setupRepository(t, nil)

	deployments, err := service.ListForOwner(context.Background(), testOwner, ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, deployments)
}

// concurrencyLedger records the peak number of concurrent GetDeployment calls.
type concurrencyLedger struct {
	LedgerService
	ids      []uint64
	inFlight atomic.Int32
	mu       sync.Mutex
	peak     int32
}

func (l *concurrencyLedger) GetDeploymentIDsForOwner(context.Context, common.Address) ([]uint64, error) {
	return l.ids, nil
}

func (l *concurrencyLedger) GetDeployment(ctx context.Context, id uint64) (models.Deployment, error) {
	n := l.inFlight.Add(1)
	defer l.inFlight.Add(-1)

	l.mu.Lock()
	l.peak = max(l.peak, n)
	l.mu.Unlock()

	time.Sleep(5 * time.Millisecond)
	return models.Deployment{ID: id, Timestamp: int64(id)}, nil
}

func TestDeploymentService_BoundedConcurrency(t *testing.T) {
	ids := make([]uint64, 40)
	for i := range ids {
		ids[i] = uint64(i + 1)
	}
	ledger := &concurrencyLedger{ids: ids}
	service := NewDeploymentService(ledger, nil, 4)

	deployments, err := service.ListForOwner(context.Background(), testOwner, ListOptions{Sort: models.SortOldest})
	require.NoError(t, err)
	require.Len(t, deployments, 40)
	for i, d := range deployments {
		assert.Equal(t, uint64(i+1), d.ID)
	}
	assert.LessOrEqual(t, ledger.peak, int32(4))
	assert.Greater(t, ledger.peak, int32(0))
}

func TestDeploymentService_GetDeploymentUsesCache(t *testing.T) {
	backend, service := setupRepository(t, NewMemoryDeploymentCache(16))
	backend.Seed(testOwner, "QmCached", "site", "", 100)

	first, err := service.GetDeployment(context.Background(), 1)
	require.NoError(t, err)
	second, err := service.GetDeployment(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, backend.CallCount("getDeployment"))

	_, err = service.GetDeployment(context.Background(), 99)
	assert.True(t, IsNotFound(err))
}

func TestDeploymentService_FindByContentHash(t *testing.T) {
	backend, service := setupRepository(t, nil)
	backend.Seed(testOwner, "QmSame", "site", "", 100)
	backend.Seed(testOwner, "QmDifferent", "site", "", 200)
	backend.Seed(testOwner, "QmSame", "site", "", 300)

	matches, err := service.FindByContentHash(context.Background(), testOwner, "QmSame")
	require.NoError(t, err)
	require.Len(t, matches, 2)
	assert.Equal(t, uint64(1), matches[0].ID)
	assert.Equal(t, uint64(3), matches[1].ID)

	none, err := service.FindByContentHash(context.Background(), testOwner, "QmNever")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestDeploymentService_Stats(t *testing.T) {
	backend, service := setupRepository(t, nil)
	backend.Seed(testOwner, "QmA", "site", "", 100)
	backend.Seed(common.HexToAddress("0x99"), "QmB", "site", "", 100)
	backend.Seed(testOwner, "QmC", "site", "", 200)

	stats := service.Stats(context.Background(), testOwner)
	assert.Equal(t, uint64(3), stats.Total)
	assert.Equal(t, uint64(2), stats.OwnerCount)
	assert.Equal(t, uint64(2), stats.LatestVersion)
	assert.False(t, stats.Degraded)

	backend.FailAllReads(errors.New("rpc unavailable"))
	degraded := service.Stats(context.Background(), testOwner)
	assert.True(t, degraded.Degraded)
	assert.Zero(t, degraded.Total)
	assert.Zero(t, degraded.OwnerCount)
}
