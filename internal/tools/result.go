package tools

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

// jsonResult renders data after a short label, the way every tool reports success.
func jsonResult(label string, data interface{}) (*mcp.CallToolResult, error) {
	resultJSON, err := json.Marshal(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.NewTextContent(label + ": "),
			mcp.NewTextContent(string(resultJSON)),
		},
	}, nil
}

// errorResult turns a service error into a tool error with recovery hints.
func errorResult(err error) *mcp.CallToolResult {
	message := err.Error()

	var launchErr *services.LaunchError
	if errors.As(err, &launchErr) {
		if launchErr.LedgerStateUnknown() {
			message += fmt.Sprintf(". The deployment may still be recorded: list deployments and look for content hash %s before deploying again", launchErr.ContentHash)
		} else if launchErr.ContentPublished() {
			message += fmt.Sprintf(". The files are already published as %s", launchErr.ContentHash)
		}
	}
	return mcp.NewToolResultError(message)
}
