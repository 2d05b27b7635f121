package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

func NewGetDeploymentTool(deployments services.DeploymentService, gateways services.GatewayService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_deployment",
		mcp.WithDescription("Get a single website deployment by its ledger id, including all gateway URLs."),
		mcp.WithNumber("id",
			mcp.Required(),
			mcp.Description("Deployment id (starts at 1)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id := request.GetInt("id", 0)
		if id < 1 {
			return mcp.NewToolResultError("id must be a positive integer"), nil
		}

		deployment, err := deployments.GetDeployment(ctx, uint64(id))
		if err != nil {
			if services.IsNotFound(err) {
				return mcp.NewToolResultError(fmt.Sprintf("Deployment %d does not exist", id)), nil
			}
			return errorResult(err), nil
		}

		data := deploymentData(deployment, gateways)
		data["gateways"] = gateways.AllURLs(deployment.ContentHash)
		return jsonResult("Deployment", data)
	}

	return tool, handler
}
