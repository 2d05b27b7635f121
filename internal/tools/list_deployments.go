package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

func NewListDeploymentsTool(deployments services.DeploymentService, gateways services.GatewayService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_deployments",
		mcp.WithDescription("List the website deployments recorded on the ledger for an owner address, with optional project filtering and sorting."),
		mcp.WithString("owner",
			mcp.Required(),
			mcp.Description("Owner wallet address (0x...)"),
		),
		mcp.WithString("sort",
			mcp.Description("Sort order: newest (default), oldest or version"),
		),
		mcp.WithString("project",
			mcp.Description("Only return deployments whose project name matches, ignoring case"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ownerStr, err := request.RequireString("owner")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		owner, err := utils.ParseAddress(ownerStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		order, err := models.ParseSortOrder(request.GetString("sort", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		project := request.GetString("project", "")

		list, err := deployments.ListForOwner(ctx, owner, services.ListOptions{Sort: order, ProjectName: project})
		if err != nil {
			return errorResult(err), nil
		}

		items := make([]map[string]interface{}, 0, len(list))
		for _, d := range list {
			items = append(items, deploymentData(d, gateways))
		}
		return jsonResult("Deployments list", map[string]interface{}{
			"owner":       owner.Hex(),
			"count":       len(items),
			"deployments": items,
			"filters": map[string]interface{}{
				"sort":    order,
				"project": project,
			},
		})
	}

	return tool, handler
}

func deploymentData(d models.Deployment, gateways services.GatewayService) map[string]interface{} {
	return map[string]interface{}{
		"id":           d.ID,
		"owner":        d.Owner.Hex(),
		"content_hash": d.ContentHash,
		"project_name": d.ProjectName,
		"description":  d.Description,
		"version":      d.Version,
		"timestamp":    d.Timestamp,
		"deployed_at":  utils.FormatTimestamp(d.Timestamp),
		"url":          gateways.URLFor(d.ContentHash, 0),
	}
}
