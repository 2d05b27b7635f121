package tools

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

func NewDeploymentStatsTool(deployments services.DeploymentService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("deployment_stats",
		mcp.WithDescription("Show deployment counters: the total number of deployments and, for an owner, their count and latest version."),
		mcp.WithString("owner",
			mcp.Description("Owner wallet address (0x...). Leave empty for the global total only"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var owner common.Address
		if ownerStr := request.GetString("owner", ""); ownerStr != "" {
			parsed, err := utils.ParseAddress(ownerStr)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			owner = parsed
		}
		return jsonResult("Deployment stats", deployments.Stats(ctx, owner))
	}

	return tool, handler
}
