package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	appserver "github.com/rxtech-lab/webhost-mcp/internal/server"
	"github.com/rxtech-lab/webhost-mcp/internal/tools"
)

type MCPServer struct {
	server   *server.MCPServer
	services *appserver.Services
}

func NewMCPServer(svcs *appserver.Services, serverPort int) *MCPServer {
	mcpServer := &MCPServer{
		services: svcs,
	}
	mcpServer.InitializeTools(svcs, serverPort)
	return mcpServer
}

func (s *MCPServer) InitializeTools(svcs *appserver.Services, serverPort int) {
	srv := server.NewMCPServer(
		"Website Hosting MCP Server",
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	srv.AddPrompt(mcp.NewPrompt("webhost-mcp-usage",
		mcp.WithPromptDescription("Instructions and guidance for using the website hosting tools"),
		mcp.WithArgument("tool_category",
			mcp.ArgumentDescription("Category of tools to get instructions for (deploy, query, or all)"),
			mcp.RequiredArgument(),
		),
	), func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		category := request.Params.Arguments["tool_category"]
		if category == "" {
			return nil, fmt.Errorf("tool_category is required")
		}

		return mcp.NewGetPromptResult(
			fmt.Sprintf("Website Hosting Tools - %s", category),
			[]mcp.PromptMessage{
				mcp.NewPromptMessage(
					mcp.RoleUser,
					mcp.NewTextContent(getToolInstructions(category)),
				),
			},
		), nil
	})

	// Deploy Tools
	deployTool, deployHandler := tools.NewDeployWebsiteTool(svcs.Launcher, svcs.Signer, serverPort)
	srv.AddTool(deployTool, deployHandler)

	estimateGasTool, estimateGasHandler := tools.NewEstimateGasTool(svcs.Ledger, svcs.Signer)
	srv.AddTool(estimateGasTool, estimateGasHandler)

	// Query Tools
	listDeploymentsTool, listDeploymentsHandler := tools.NewListDeploymentsTool(svcs.Deployments, svcs.Gateways)
	srv.AddTool(listDeploymentsTool, listDeploymentsHandler)

	getDeploymentTool, getDeploymentHandler := tools.NewGetDeploymentTool(svcs.Deployments, svcs.Gateways)
	srv.AddTool(getDeploymentTool, getDeploymentHandler)

	gatewayTool, gatewayHandler := tools.NewGetGatewayURLsTool(svcs.Gateways)
	srv.AddTool(gatewayTool, gatewayHandler)

	statsTool, statsHandler := tools.NewDeploymentStatsTool(svcs.Deployments)
	srv.AddTool(statsTool, statsHandler)

	submissionsTool, submissionsHandler := tools.NewListSubmissionsTool(svcs.Submissions)
	srv.AddTool(submissionsTool, submissionsHandler)

	s.server = srv
}

func getToolInstructions(category string) string {
	switch category {
	case "deploy":
		return `Deploy Tools:

1. deploy_website - Publish a static site to IPFS and record it on the ledger
   Usage: Pass a local path (directory, HTML file or .zip) or inline files plus a project_name.
   The call returns once the transaction confirms. If it fails after the transaction was sent,
   check list_deployments for the returned content hash before deploying again.

2. estimate_gas - Estimate gas for recording an already published content hash
   Usage: Check the cost of a deployment before sending it`

	case "query":
		return `Query Tools:

1. list_deployments - List deployments for an owner address
   Usage: Filter by project name and sort by newest, oldest or version

2. get_deployment - Get one deployment by id with all gateway URLs

3. get_gateway_urls - Build gateway URLs for a content hash, optionally probing availability

4. deployment_stats - Total deployments and per-owner counters

5. list_submissions - Locally journaled deploy runs and their ledger state`

	case "all":
		return `Website Hosting MCP Tools Overview:

This MCP server publishes static websites to IPFS and records each deployment on an
Ethereum ledger contract.

` + getToolInstructions("deploy") + "\n\n" + getToolInstructions("query")

	default:
		return fmt.Sprintf("Unknown tool category: %s. Available categories: deploy, query, all", category)
	}
}

// Server returns the underlying mcp-go server
func (s *MCPServer) Server() *server.MCPServer {
	return s.server
}

// StartStdioServer serves MCP over stdin/stdout until the input closes.
func (s *MCPServer) StartStdioServer() error {
	return server.ServeStdio(s.server)
}

// GetServices returns the services used by the MCP tools
func (s *MCPServer) GetServices() *appserver.Services {
	return s.services
}
