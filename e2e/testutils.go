// Package e2e runs the full pipeline against a local Anvil node and Kubo daemon.
// Tests skip unless E2E_CONTRACT_ADDRESS names a deployed DecentralizedWebHost
// contract on TESTNET_RPC.
package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/api"
	"github.com/rxtech-lab/webhost-mcp/internal/config"
	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/stretchr/testify/require"
)

const (
	// Ethereum testnet configuration
	TESTNET_RPC      = "http://localhost:8545"
	TESTNET_CHAIN_ID = 31337 // Anvil default
	TESTING_PK_1     = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
)

// TestSetup holds all test infrastructure
type TestSetup struct {
	Config     *config.Config
	Services   *server.Services
	APIServer  *api.APIServer
	ServerPort int
	t          *testing.T
}

// NewTestSetup connects to the local node and IPFS daemon and starts the API.
func NewTestSetup(t *testing.T) *TestSetup {
	contract := os.Getenv("E2E_CONTRACT_ADDRESS")
	if contract == "" {
		t.Skip("E2E_CONTRACT_ADDRESS is not set")
	}

	ipfsAPI := os.Getenv("IPFS_API_URL")
	if ipfsAPI == "" {
		ipfsAPI = config.DefaultIPFSAPIURL
	}

	cfg := &config.Config{
		RPCURL:            TESTNET_RPC,
		ChainID:           TESTNET_CHAIN_ID,
		ContractAddress:   contract,
		PrivateKey:        TESTING_PK_1,
		IPFSAPIURL:        ipfsAPI,
		UploadMaxAttempts: 3,
		UploadBackoffBase: 500 * time.Millisecond,
		UploadBackoffCap:  5 * time.Second,
		ConfirmTimeout:    30 * time.Second,
		ReadConcurrency:   8,
		EventPollInterval: time.Second,
		MaxUploadSize:     config.DefaultMaxUploadSize,
		DatabasePath:      filepath.Join(t.TempDir(), "e2e.db"),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	svcs, closeFn, err := server.Open(ctx, cfg)
	if err != nil {
		t.Skipf("local node unavailable: %v", err)
	}
	t.Cleanup(closeFn)

	apiServer := api.NewAPIServer(svcs, cfg)
	port, err := apiServer.Start(nil)
	require.NoError(t, err)
	t.Cleanup(func() { apiServer.Shutdown() })

	// Wait for server to be ready
	time.Sleep(100 * time.Millisecond)

	return &TestSetup{
		Config:     cfg,
		Services:   svcs,
		APIServer:  apiServer,
		ServerPort: port,
		t:          t,
	}
}

// MakeAPIRequest makes a GET request to the test API server and decodes the JSON body.
func (s *TestSetup) MakeAPIRequest(path string) (int, map[string]interface{}) {
	resp, err := http.Get(fmt.Sprintf("http://localhost:%d%s", s.ServerPort, path))
	require.NoError(s.t, err)
	return decodeResponse(s.t, resp)
}

// UploadSite posts files to /api/deployments.
func (s *TestSetup) UploadSite(projectName string, files map[string]string) (int, map[string]interface{}) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for name, content := range files {
		part, err := writer.CreateFormFile("files", filepath.Base(name))
		require.NoError(s.t, err)
		_, err = part.Write([]byte(content))
		require.NoError(s.t, err)
		require.NoError(s.t, writer.WriteField("paths", name))
	}
	require.NoError(s.t, writer.WriteField("project_name", projectName))
	require.NoError(s.t, writer.Close())

	client := &http.Client{Timeout: time.Minute}
	resp, err := client.Post(fmt.Sprintf("http://localhost:%d/api/deployments", s.ServerPort), writer.FormDataContentType(), &body)
	require.NoError(s.t, err)
	return decodeResponse(s.t, resp)
}

func decodeResponse(t *testing.T, resp *http.Response) (int, map[string]interface{}) {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded), string(raw))
	return resp.StatusCode, decoded
}
