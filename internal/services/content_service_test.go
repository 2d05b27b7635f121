package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetryPolicy = UploadRetryPolicy{
	MaxAttempts: 3,
	Base:        time.Millisecond,
	Cap:         5 * time.Millisecond,
}

func testFiles() []ipfs.File {
	return []ipfs.File{
		{Name: "index.html", Data: []byte("<html><body>site</body></html>")},
		{Name: "app.js", Data: []byte("console.log('hi')")},
		{Name: "img/logo.svg", Data: []byte("<svg></svg>")},
	}
}

func TestUploadRetryPolicy_BackoffDelay(t *testing.T) {
	policy := DefaultUploadRetryPolicy

	var delays []time.Duration
	for k := 1; k <= 5; k++ {
		delays = append(delays, policy.BackoffDelay(k))
	}

	assert.Equal(t, []time.Duration{
		1000 * time.Millisecond,
		2000 * time.Millisecond,
		4000 * time.Millisecond,
		5000 * time.Millisecond,
		5000 * time.Millisecond,
	}, delays)
}

func TestUploadRetryPolicy_BackoffStopsAfterMaxAttempts(t *testing.T) {
	backoff := DefaultUploadRetryPolicy.Backoff()

	first, stop := backoff.Next()
	assert.False(t, stop)
	assert.Equal(t, time.Second, first)

	second, stop := backoff.Next()
	assert.False(t, stop)
	assert.Equal(t, 2*time.Second, second)

	_, stop = backoff.Next()
	assert.True(t, stop)
}

func TestContentService_PublishIsDeterministic(t *testing.T) {
	service := NewContentService(ipfs.NewMemoryStore(), fastRetryPolicy, nil)

	first, err := service.Publish(context.Background(), testFiles(), nil)
	require.NoError(t, err)
	second, err := service.Publish(context.Background(), testFiles(), nil)
	require.NoError(t, err)

	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, 1, first.Attempts)
	assert.Equal(t, 3, first.Files)
	assert.Equal(t, ipfs.TotalSize(testFiles()), first.BytesTotal)
}

func TestContentService_RetryCeiling(t *testing.T) {
	uploadErr := errors.New("connection reset by peer")
	store := testutils.NewScriptedStore()
	store.FailAlways(uploadErr)
	service := NewContentService(store, fastRetryPolicy, nil)

	result, err := service.Publish(context.Background(), testFiles(), nil)
	require.Error(t, err)
	assert.Empty(t, result.ContentHash)

	var storeErr *ContentStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, 3, storeErr.Attempts)
	assert.ErrorIs(t, err, uploadErr)
	assert.Equal(t, 3, store.Calls())
}

func TestContentService_SucceedsOnSecondAttempt(t *testing.T) {
	store := testutils.NewScriptedStore(errors.New("gateway timeout"))
	service := NewContentService(store, fastRetryPolicy, nil)

	result, err := service.Publish(context.Background(), testFiles(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 2, store.Calls())
	assert.NotEmpty(t, result.ContentHash)
}

func TestContentService_ProgressIsMonotonic(t *testing.T) {
	store := testutils.NewScriptedStore(errors.New("broken pipe"))
	store.SetChunkSize(8)
	service := NewContentService(store, fastRetryPolicy, nil)

	var updates []models.UploadProgress
	_, err := service.Publish(context.Background(), testFiles(), func(p models.UploadProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)

	require.NotEmpty(t, updates)
	total := ipfs.TotalSize(testFiles())
	for i, update := range updates {
		assert.Equal(t, total, update.Total)
		if i > 0 {
			assert.GreaterOrEqual(t, update.Transferred, updates[i-1].Transferred)
		}
	}
	last := updates[len(updates)-1]
	assert.Equal(t, 100, last.Percent())
	assert.Equal(t, 2, last.Attempt)
}

func TestContentService_Validation(t *testing.T) {
	store := testutils.NewScriptedStore()
	service := NewContentService(store, fastRetryPolicy, nil)

	tests := []struct {
		name  string
		files []ipfs.File
	}{
		{name: "empty set", files: nil},
		{name: "empty name", files: []ipfs.File{{Name: "", Data: []byte("x")}}},
		{name: "duplicate names", files: []ipfs.File{
			{Name: "index.html", Data: []byte("a")},
			{Name: "index.html", Data: []byte("b")},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.Publish(context.Background(), tt.files, nil)
			var validationErr *ValidationError
			assert.ErrorAs(t, err, &validationErr)
		})
	}
	assert.Equal(t, 0, store.Calls(), "validation must happen before any upload")
}

func TestContentService_CancelledBeforeFirstAttempt(t *testing.T) {
	store := testutils.NewScriptedStore()
	service := NewContentService(store, fastRetryPolicy, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := service.Publish(ctx, testFiles(), nil)
	var storeErr *ContentStoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, 0, storeErr.Attempts)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, store.Calls())
}

func TestContentService_ReadPinAndNodeInfo(t *testing.T) {
	store := testutils.NewScriptedStore()
	service := NewContentService(store, fastRetryPolicy, nil)
	ctx := context.Background()

	result, err := service.Publish(ctx, testFiles(), nil)
	require.NoError(t, err)

	data, err := service.Read(ctx, result.ContentHash+"/app.js")
	require.NoError(t, err)
	assert.Equal(t, "console.log('hi')", string(data))

	_, err = service.Read(ctx, "")
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)

	require.NoError(t, service.Pin(ctx, result.ContentHash))
	assert.Equal(t, []string{result.ContentHash}, store.PinnedHashes())

	store.FailPin(errors.New("pinning service unavailable"))
	assert.Error(t, service.Pin(ctx, result.ContentHash))

	info, err := service.NodeInfo(ctx)
	require.NoError(t, err)
	assert.Equal(t, "memory", info.ID)
}

func TestNewContentService_FillsPolicyDefaults(t *testing.T) {
	service := NewContentService(ipfs.NewMemoryStore(), UploadRetryPolicy{}, nil)
	assert.Equal(t, DefaultUploadRetryPolicy, service.Policy())
}
