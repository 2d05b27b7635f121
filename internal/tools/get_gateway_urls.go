package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

func NewGetGatewayURLsTool(gateways services.GatewayService) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("get_gateway_urls",
		mcp.WithDescription("List the public gateway URLs for a content hash, optionally checking that the preferred gateway serves it."),
		mcp.WithString("content_hash",
			mcp.Required(),
			mcp.Description("IPFS content hash (CID)"),
		),
		mcp.WithBoolean("check",
			mcp.Description("Probe the preferred gateway for availability (default: false)"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		hash, err := request.RequireString("content_hash")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		data := map[string]interface{}{
			"content_hash": hash,
			"valid":        utils.IsValidCID(hash),
			"gateways":     gateways.AllURLs(hash),
		}
		if request.GetBool("check", false) {
			data["available"] = gateways.CheckAvailability(ctx, hash)
		}
		return jsonResult("Gateway URLs", data)
	}

	return tool, handler
}
