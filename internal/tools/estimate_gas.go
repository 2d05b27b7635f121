package tools

import (
	"context"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

func NewEstimateGasTool(ledger services.LedgerService, signer *bind.TransactOpts) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("estimate_gas",
		mcp.WithDescription("Estimate the gas needed to record a deployment for an already published content hash."),
		mcp.WithString("content_hash",
			mcp.Required(),
			mcp.Description("IPFS content hash (CID) to record"),
		),
		mcp.WithString("project_name",
			mcp.Required(),
			mcp.Description("Project name to record"),
		),
		mcp.WithString("description",
			mcp.Description("Description to record"),
		),
	)

	handler := func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if signer == nil {
			return mcp.NewToolResultError("Server is read-only: set PRIVATE_KEY to estimate gas for a sender"), nil
		}
		hash, err := request.RequireString("content_hash")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		projectName, err := request.RequireString("project_name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		description := request.GetString("description", "")
		if description == "" {
			description = services.DefaultDescription
		}

		gas, err := ledger.EstimateRecordGas(ctx, services.RecordDeploymentArgs{
			Signer:      signer,
			ContentHash: hash,
			ProjectName: projectName,
			Description: description,
		})
		if err != nil {
			return errorResult(err), nil
		}
		return jsonResult("Gas estimate", map[string]interface{}{
			"gas":    gas,
			"from":   signer.From.Hex(),
			"to":     ledger.ContractAddress().Hex(),
			"method": "deployWebsite",
		})
	}

	return tool, handler
}
