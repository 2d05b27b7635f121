package tools

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/testutils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testOwner = common.HexToAddress("0x00000000000000000000000000000000000a11ce")

func TestListDeploymentsHandler(t *testing.T) {
	svcs, backend := setupTestServices(t, "")
	backend.Seed(testOwner, "QmOne", "Blog", "first", testutils.SimulatedGenesisTime+10)
	backend.Seed(testOwner, "QmTwo", "shop", "second", testutils.SimulatedGenesisTime+20)
	backend.Seed(testOwner, "QmThree", "blog", "third", testutils.SimulatedGenesisTime+30)
	backend.Seed(common.HexToAddress("0xb0b"), "QmOther", "blog", "", testutils.SimulatedGenesisTime+40)

	_, handler := NewListDeploymentsTool(svcs.Deployments, svcs.Gateways)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"owner": testOwner.Hex(),
	}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Deployments list")
	assert.Equal(t, float64(3), response["count"])
	deployments := response["deployments"].([]interface{})
	assert.Equal(t, "QmThree", deployments[0].(map[string]interface{})["content_hash"])
	assert.Equal(t, "https://ipfs.io/ipfs/QmThree", deployments[0].(map[string]interface{})["url"])

	result, err = handler(context.Background(), callRequest(map[string]interface{}{
		"owner":   testOwner.Hex(),
		"project": "BLOG",
		"sort":    "oldest",
	}))
	require.NoError(t, err)
	response = decodeResult(t, result, "Deployments list")
	assert.Equal(t, float64(2), response["count"])
	deployments = response["deployments"].([]interface{})
	assert.Equal(t, "QmOne", deployments[0].(map[string]interface{})["content_hash"])
}

func TestListDeploymentsHandler_InvalidInput(t *testing.T) {
	svcs, _ := setupTestServices(t, "")
	_, handler := NewListDeploymentsTool(svcs.Deployments, svcs.Gateways)

	for _, args := range []map[string]interface{}{
		{},
		{"owner": "not-an-address"},
		{"owner": testOwner.Hex(), "sort": "random"},
	} {
		result, err := handler(context.Background(), callRequest(args))
		require.NoError(t, err)
		assert.True(t, result.IsError, args)
	}
}

func TestListDeploymentsHandler_LedgerDown(t *testing.T) {
	svcs, backend := setupTestServices(t, "")
	backend.FailAllReads(errors.New("connection refused"))
	_, handler := NewListDeploymentsTool(svcs.Deployments, svcs.Gateways)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{"owner": testOwner.Hex()}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "connection refused")
}

func TestGetDeploymentHandler(t *testing.T) {
	svcs, backend := setupTestServices(t, "")
	backend.Seed(testOwner, "QmOne", "Blog", "first", testutils.SimulatedGenesisTime)
	_, handler := NewGetDeploymentTool(svcs.Deployments, svcs.Gateways)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{"id": float64(1)}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Deployment")
	assert.Equal(t, "Blog", response["project_name"])
	assert.Equal(t, testOwner.Hex(), response["owner"])
	assert.Len(t, response["gateways"], 4)

	result, err = handler(context.Background(), callRequest(map[string]interface{}{"id": float64(5)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, resultText(result), "does not exist")

	result, err = handler(context.Background(), callRequest(map[string]interface{}{"id": float64(0)}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestGetGatewayURLsHandler(t *testing.T) {
	gatewayServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer gatewayServer.Close()

	gateways := services.NewGatewayService([]string{gatewayServer.URL + "/ipfs/"}, gatewayServer.Client())
	_, handler := NewGetGatewayURLsTool(gateways)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"content_hash": "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"check":        true,
	}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Gateway URLs")
	assert.Equal(t, true, response["valid"])
	assert.Equal(t, true, response["available"])
	assert.Equal(t, []interface{}{gatewayServer.URL + "/ipfs/QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"}, response["gateways"])

	result, err = handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestDeploymentStatsHandler(t *testing.T) {
	svcs, backend := setupTestServices(t, "")
	backend.Seed(testOwner, "QmOne", "Blog", "", testutils.SimulatedGenesisTime)
	backend.Seed(common.HexToAddress("0xb0b"), "QmTwo", "Shop", "", testutils.SimulatedGenesisTime)
	_, handler := NewDeploymentStatsTool(svcs.Deployments)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{"owner": testOwner.Hex()}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Deployment stats")
	assert.Equal(t, float64(2), response["total"])
	assert.Equal(t, float64(1), response["owner_count"])
	assert.Equal(t, false, response["degraded"])

	result, err = handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	response = decodeResult(t, result, "Deployment stats")
	assert.Equal(t, float64(2), response["total"])
}

func TestEstimateGasHandler(t *testing.T) {
	svcs, _ := setupTestServices(t, TEST_PRIVATE_KEY)
	_, handler := NewEstimateGasTool(svcs.Ledger, svcs.Signer)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{
		"content_hash": "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG",
		"project_name": "estimate",
	}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Gas estimate")
	assert.Greater(t, response["gas"].(float64), float64(0))
	assert.Equal(t, svcs.Signer.From.Hex(), response["from"])

	readOnly, _ := setupTestServices(t, "")
	_, handler = NewEstimateGasTool(readOnly.Ledger, readOnly.Signer)
	result, err = handler(context.Background(), callRequest(map[string]interface{}{
		"content_hash": "Qm",
		"project_name": "estimate",
	}))
	require.NoError(t, err)
	assert.True(t, result.IsError)
}

func TestListSubmissionsHandler(t *testing.T) {
	svcs, _ := setupTestServices(t, TEST_PRIVATE_KEY)
	_, err := svcs.Launcher.Launch(context.Background(), services.LaunchArgs{
		Signer:      svcs.Signer,
		Files:       []ipfs.File{{Name: "index.html", Data: []byte("<html></html>")}},
		ProjectName: "journaled",
	})
	require.NoError(t, err)

	_, handler := NewListSubmissionsTool(svcs.Submissions)

	result, err := handler(context.Background(), callRequest(map[string]interface{}{"owner": svcs.Signer.From.Hex()}))
	require.NoError(t, err)
	response := decodeResult(t, result, "Submissions")
	assert.Equal(t, float64(1), response["count"])

	result, err = handler(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	response = decodeResult(t, result, "Submissions")
	assert.Equal(t, float64(0), response["count"])
}
