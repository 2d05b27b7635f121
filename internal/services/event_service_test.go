package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForEvent(t *testing.T, events <-chan models.DeploymentEvent) models.DeploymentEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for deployment event")
		return models.DeploymentEvent{}
	}
}

func TestEventService_DeliversRecordedDeployments(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	first, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)
	second, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)

	got := waitForEvent(t, received)
	assert.Equal(t, first.DeploymentID, got.ID)
	assert.Equal(t, first.TxHash, got.TxHash)
	assert.Equal(t, signer.From, got.Owner)
	assert.Equal(t, "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG", got.ContentHash)

	got = waitForEvent(t, received)
	assert.Equal(t, second.DeploymentID, got.ID)
}

func TestEventService_UnsubscribeIsIdempotent(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)

	unsubscribe()
	unsubscribe()

	_, err = ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)

	select {
	case event := <-received:
		t.Fatalf("received event %d after unsubscribe", event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventService_SkipsRemovedLogs(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	_, err = ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)
	waitForEvent(t, received)

	backend.EmitRemoved()

	select {
	case event := <-received:
		t.Fatalf("removed log delivered as event %d", event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventService_PollsWhenPushUnsupported(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	backend.Seed(signer.From, "QmBeforeSubscribe", "old", "", testutils.SimulatedGenesisTime)
	backend.DisablePush()

	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	result, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)

	got := waitForEvent(t, received)
	assert.Equal(t, result.DeploymentID, got.ID)
	assert.Equal(t, uint64(2), got.ID)
}

func TestEventService_RequiresHandler(t *testing.T) {
	backend := testutils.NewSimulatedLedger()
	events, err := NewEventService(backend, backend.Address, 0, nil)
	require.NoError(t, err)

	_, err = events.Subscribe(context.Background(), nil)
	var validationErr *ValidationError
	assert.ErrorAs(t, err, &validationErr)
}

func TestEventService_KeepsDeliveringAfterSubscriptionDrops(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	first, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)
	assert.Equal(t, first.DeploymentID, waitForEvent(t, received).ID)

	backend.DropSubscriptions(errors.New("websocket: close 1006 (abnormal closure)"))
	require.Eventually(t, func() bool { return backend.SubscriptionCount() == 0 }, time.Second, 5*time.Millisecond)

	second, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)
	assert.Equal(t, second.DeploymentID, waitForEvent(t, received).ID)

	select {
	case event := <-received:
		t.Fatalf("event %d delivered twice", event.ID)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEventService_DropBeforeFirstEvent(t *testing.T) {
	backend, ledger, signer := setupLedger(t)
	backend.Seed(signer.From, "QmBeforeSubscribe", "old", "", testutils.SimulatedGenesisTime)
	events, err := NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	require.NoError(t, err)

	received := make(chan models.DeploymentEvent, 8)
	unsubscribe, err := events.Subscribe(context.Background(), func(event models.DeploymentEvent) {
		received <- event
	})
	require.NoError(t, err)
	defer unsubscribe()

	backend.DropSubscriptions(errors.New("websocket: close 1006 (abnormal closure)"))
	require.Eventually(t, func() bool { return backend.SubscriptionCount() == 0 }, time.Second, 5*time.Millisecond)

	result, err := ledger.RecordDeployment(context.Background(), recordArgs(signer, nil))
	require.NoError(t, err)
	assert.Equal(t, result.DeploymentID, waitForEvent(t, received).ID)
}
