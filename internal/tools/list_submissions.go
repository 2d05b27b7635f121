package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

func NewListSubmissionsTool(submissions services.SubmissionService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("list_submissions",
		mcp.WithDescription("List locally journaled deploy runs. Without an owner, lists the runs that are still building or waiting for confirmation."),
		mcp.WithString("owner",
			mcp.Description("Owner wallet address (0x...)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var (
			list []models.Submission
			err  error
		)
		if ownerStr := request.GetString("owner", ""); ownerStr != "" {
			owner, parseErr := utils.ParseAddress(ownerStr)
			if parseErr != nil {
				return mcp.NewToolResultError(parseErr.Error()), nil
			}
			list, err = submissions.ListByOwner(owner)
		} else {
			list, err = submissions.ListUnresolved()
		}
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult("Submissions", map[string]interface{}{
			"count":       len(list),
			"submissions": list,
		})
	}

	return tool, handler
}
