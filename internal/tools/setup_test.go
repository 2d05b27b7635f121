package tools

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/require"
)

const (
	TEST_PRIVATE_KEY = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
	TEST_SERVER_PORT = 9999
)

func setupTestServices(t *testing.T, privateKey string) (*server.Services, *testutils.SimulatedLedger) {
	t.Helper()
	db, err := services.NewSqliteDBService(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cfg := &config.Config{
		ChainID:           testutils.SimulatedChainID.Int64(),
		ContractAddress:   testutils.SimulatedContractAddress.Hex(),
		PrivateKey:        privateKey,
		UploadMaxAttempts: 2,
		UploadBackoffBase: time.Millisecond,
		UploadBackoffCap:  time.Millisecond,
		ConfirmTimeout:    time.Second,
		ReadConcurrency:   4,
		EventPollInterval: 10 * time.Millisecond,
	}
	backend := testutils.NewSimulatedLedger()
	svcs, err := server.InitializeServices(cfg, db.GetDB(), backend, ipfs.NewMemoryStore(), nil)
	require.NoError(t, err)
	return svcs, backend
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Arguments: args,
		},
	}
}

// decodeResult parses the JSON part of a successful tool result.
func decodeResult(t *testing.T, result *mcp.CallToolResult, label string) map[string]interface{} {
	t.Helper()
	require.NotNil(t, result)
	require.False(t, result.IsError, resultText(result))
	require.Len(t, result.Content, 2)
	require.Equal(t, label+": ", result.Content[0].(mcp.TextContent).Text)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[1].(mcp.TextContent).Text), &response))
	return response
}

func resultText(result *mcp.CallToolResult) string {
	var text string
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			text += tc.Text
		}
	}
	return text
}
