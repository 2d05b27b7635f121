package services_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/suite"
)

// mockHook implements the Hook interface for testing
type mockHook struct {
	mu           sync.Mutex
	name         string
	owner        *common.Address
	callCount    int
	lastEvent    *models.DeploymentEvent
	shouldError  bool
	errorMessage string
}

func newMockHook(name string, owner *common.Address) *mockHook {
	return &mockHook{name: name, owner: owner}
}

func (m *mockHook) CanHandle(event models.DeploymentEvent) bool {
	return m.owner == nil || *m.owner == event.Owner
}

func (m *mockHook) OnDeploymentRecorded(event models.DeploymentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	m.lastEvent = &event

	if m.shouldError {
		return fmt.Errorf("%s", m.errorMessage)
	}
	return nil
}

func (m *mockHook) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

func (m *mockHook) setError(shouldError bool, message string) {
	m.shouldError = shouldError
	m.errorMessage = message
}

type HookServiceTestSuite struct {
	suite.Suite
	hookService services.HookService
}

func (suite *HookServiceTestSuite) SetupTest() {
	// Create a fresh service for each test to avoid state leakage
	suite.hookService = services.NewHookService()
}

func event(id uint64, owner common.Address) models.DeploymentEvent {
	return models.DeploymentEvent{
		ID:          id,
		Owner:       owner,
		ContentHash: "QmHook",
		Timestamp:   1700000000,
		TxHash:      common.HexToHash(fmt.Sprintf("0x%x", id)),
	}
}

func (suite *HookServiceTestSuite) TestDispatchByOwner() {
	alice := common.HexToAddress("0xa11ce")
	bob := common.HexToAddress("0xb0b")

	all := newMockHook("all", nil)
	aliceOnly := newMockHook("alice", &alice)
	suite.NoError(suite.hookService.AddHook(all))
	suite.NoError(suite.hookService.AddHook(aliceOnly))

	suite.NoError(suite.hookService.OnDeploymentRecorded(event(1, alice)))
	suite.NoError(suite.hookService.OnDeploymentRecorded(event(2, bob)))

	suite.Equal(2, all.calls())
	suite.Equal(1, aliceOnly.calls())
	suite.Require().NotNil(aliceOnly.lastEvent)
	suite.Equal(uint64(1), aliceOnly.lastEvent.ID)
	suite.Equal(uint64(2), all.lastEvent.ID)
}

func (suite *HookServiceTestSuite) TestErrorStopsDispatch() {
	failing := newMockHook("failing", nil)
	failing.setError(true, "index unavailable")
	after := newMockHook("after", nil)
	suite.NoError(suite.hookService.AddHook(failing))
	suite.NoError(suite.hookService.AddHook(after))

	err := suite.hookService.OnDeploymentRecorded(event(1, common.HexToAddress("0x1")))
	suite.Error(err)
	suite.Contains(err.Error(), "index unavailable")
	suite.Equal(1, failing.calls())
	suite.Equal(0, after.calls())
}

func (suite *HookServiceTestSuite) TestNoHooks() {
	suite.NoError(suite.hookService.OnDeploymentRecorded(event(1, common.HexToAddress("0x1"))))
}

func (suite *HookServiceTestSuite) TestListen() {
	backend := testutils.NewSimulatedLedger()
	events, err := services.NewEventService(backend, backend.Address, 10*time.Millisecond, nil)
	suite.Require().NoError(err)
	ledger, err := services.NewLedgerService(backend, services.LedgerConfig{ContractAddress: backend.Address}, nil)
	suite.Require().NoError(err)
	signer, _, err := testutils.NewSigner()
	suite.Require().NoError(err)

	hook := newMockHook("listener", nil)
	suite.NoError(suite.hookService.AddHook(hook))

	stop, err := suite.hookService.Listen(context.Background(), events)
	suite.Require().NoError(err)
	defer stop()

	result, err := ledger.RecordDeployment(context.Background(), services.RecordDeploymentArgs{
		Signer:      signer,
		ContentHash: "QmListen",
		ProjectName: "listen",
	})
	suite.Require().NoError(err)

	suite.Eventually(func() bool { return hook.calls() == 1 }, 2*time.Second, 10*time.Millisecond)
	hook.mu.Lock()
	defer hook.mu.Unlock()
	suite.Equal(result.DeploymentID, hook.lastEvent.ID)
}

func TestHookServiceTestSuite(t *testing.T) {
	suite.Run(t, new(HookServiceTestSuite))
}
