package e2e

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeploymentPipeline(t *testing.T) {
	setup := NewTestSetup(t)
	owner := setup.Services.Signer.From.Hex()

	_, before := setup.MakeAPIRequest("/api/stats?owner=" + owner)

	project := fmt.Sprintf("e2e-%d", time.Now().UnixNano())
	status, result := setup.UploadSite(project, map[string]string{
		"index.html":     "<html><body>e2e</body></html>",
		"assets/app.css": "body { color: red; }",
	})
	require.Equal(t, http.StatusCreated, status, result)

	contentHash := result["content_hash"].(string)
	id := uint64(result["deployment_id"].(float64))
	assert.NotZero(t, id)

	// Content is readable back from the node
	css, err := setup.Services.Content.Read(context.Background(), contentHash+"/assets/app.css")
	require.NoError(t, err)
	assert.Equal(t, "body { color: red; }", string(css))

	// The ledger returns the recorded metadata
	status, deployment := setup.MakeAPIRequest(fmt.Sprintf("/api/deployments/%d", id))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, project, deployment["project_name"])
	assert.Equal(t, contentHash, deployment["content_hash"])

	status, list := setup.MakeAPIRequest(fmt.Sprintf("/api/deployments?owner=%s&project=%s", owner, project))
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, float64(1), list["count"])

	_, after := setup.MakeAPIRequest("/api/stats?owner=" + owner)
	assert.Equal(t, before["owner_count"].(float64)+1, after["owner_count"])
}

func TestEventsReachIndex(t *testing.T) {
	setup := NewTestSetup(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stop, err := server.StartHooks(ctx, setup.Services)
	require.NoError(t, err)
	defer stop()

	before, err := setup.Services.Index.Count()
	require.NoError(t, err)

	status, result := setup.UploadSite(fmt.Sprintf("e2e-events-%d", time.Now().UnixNano()), map[string]string{
		"index.html": "<html>events</html>",
	})
	require.Equal(t, http.StatusCreated, status, result)

	assert.Eventually(t, func() bool {
		count, err := setup.Services.Index.Count()
		return err == nil && count > before
	}, 30*time.Second, 500*time.Millisecond)
}
