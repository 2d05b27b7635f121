package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

type deployWebsiteTool struct {
	launcher   services.LaunchService
	signer     *bind.TransactOpts
	serverPort int
}

// NewDeployWebsiteTool publishes a site and records it on the ledger. A nil
// signer makes the tool report that the server is read-only.
func NewDeployWebsiteTool(launcher services.LaunchService, signer *bind.TransactOpts, serverPort int) (mcp.Tool, server.ToolHandlerFunc) {
	tool := mcp.NewTool("deploy_website",
		mcp.WithDescription("Publish a static website to IPFS and record the deployment on the ledger. Provide either a local path (a site directory, an HTML file or a .zip archive) or the files inline. Waits for the transaction to confirm and returns the deployment id and gateway URLs."),
		mcp.WithString("project_name",
			mcp.Required(),
			mcp.Description("Project name recorded with the deployment (max 256 characters)"),
		),
		mcp.WithString("description",
			mcp.Description("Optional description recorded with the deployment"),
		),
		mcp.WithString("path",
			mcp.Description("Local path of the site directory, HTML file or .zip archive to publish"),
		),
		mcp.WithString("files",
			mcp.Description(`Inline files as a JSON object mapping relative paths to text content, e.g. {"index.html": "<html>...</html>"}`),
		),
	)

	t := &deployWebsiteTool{launcher: launcher, signer: signer, serverPort: serverPort}
	return tool, t.handle
}

func (t *deployWebsiteTool) handle(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if t.signer == nil {
		return mcp.NewToolResultError("Server is read-only: set PRIVATE_KEY to deploy websites"), nil
	}

	projectName, err := request.RequireString("project_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	files, err := collectFiles(request.GetString("path", ""), request.GetString("files", ""))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if validation := utils.ValidateFiles(files); !validation.Valid {
		return mcp.NewToolResultError(validation.Err().Error()), nil
	}

	result, err := t.launcher.Launch(ctx, services.LaunchArgs{
		Signer:      t.signer,
		Files:       files,
		ProjectName: projectName,
		Description: request.GetString("description", ""),
		OnProgress:  progressNotifier(ctx, request),
	})
	if err != nil {
		return errorResult(err), nil
	}

	data := map[string]interface{}{
		"deployment_id": result.DeploymentID,
		"content_hash":  result.ContentHash,
		"tx_hash":       result.TxHash,
		"block_number":  result.BlockNumber,
		"urls":          result.URLs,
		"submission_id": result.SubmissionID,
		"files":         result.Upload.Files,
		"size":          utils.FormatFileSize(result.Upload.BytesTotal),
		"attempts":      result.Upload.Attempts,
	}
	if apiURL, err := utils.GetDeploymentUrl(t.serverPort, result.DeploymentID); err == nil {
		data["api_url"] = apiURL
	}
	return jsonResult("Website deployed", data)
}

// collectFiles reads the site from path or from an inline JSON object. Zip
// archives are expanded.
func collectFiles(path, inline string) ([]ipfs.File, error) {
	var files []ipfs.File
	switch {
	case path != "" && inline != "":
		return nil, fmt.Errorf("provide either path or files, not both")
	case path != "":
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("cannot read %s: %w", path, err)
		}
		if info.IsDir() {
			files, err = utils.ReadSiteDirectory(path)
			if err != nil {
				return nil, err
			}
		} else {
			data, err := os.ReadFile(path)
			if err != nil {
				return nil, fmt.Errorf("cannot read %s: %w", path, err)
			}
			files = []ipfs.File{{Name: filepath.Base(path), Data: data}}
		}
	case inline != "":
		var contents map[string]string
		if err := json.Unmarshal([]byte(inline), &contents); err != nil {
			return nil, fmt.Errorf("files must be a JSON object of path to content: %w", err)
		}
		for name, content := range contents {
			files = append(files, ipfs.File{Name: name, Data: []byte(content)})
		}
		sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	default:
		return nil, fmt.Errorf("either path or files is required")
	}
	return utils.ExpandArchives(files)
}

// progressNotifier forwards upload progress to the client when the request
// carries a progress token.
func progressNotifier(ctx context.Context, request mcp.CallToolRequest) services.UploadProgressFunc {
	if request.Params.Meta == nil || request.Params.Meta.ProgressToken == nil {
		return nil
	}
	srv := server.ServerFromContext(ctx)
	if srv == nil {
		return nil
	}
	token := request.Params.Meta.ProgressToken
	return func(progress models.UploadProgress) {
		_ = srv.SendNotificationToClient(ctx, "notifications/progress", map[string]any{
			"progressToken": token,
			"progress":      progress.Transferred,
			"total":         progress.Total,
			"message":       fmt.Sprintf("Uploading %s (%d%%)", progress.File, progress.Percent()),
		})
	}
}
