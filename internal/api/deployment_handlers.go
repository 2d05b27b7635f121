package api

import (
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gofiber/fiber/v2"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
	"github.com/rxtech-lab/webhost-mcp/internal/utils"
)

// deploymentView is a deployment with its gateway URLs.
type deploymentView struct {
	models.Deployment
	URL      string   `json:"url"`
	Gateways []string `json:"gateways"`
	Deployed string   `json:"deployed_at"`
}

func (s *APIServer) view(d models.Deployment) deploymentView {
	return deploymentView{
		Deployment: d,
		URL:        s.services.Gateways.URLFor(d.ContentHash, 0),
		Gateways:   s.services.Gateways.AllURLs(d.ContentHash),
		Deployed:   utils.FormatTimestamp(d.Timestamp),
	}
}

func parseOwner(c *fiber.Ctx, required bool) (common.Address, error) {
	raw := c.Query("owner")
	if raw == "" {
		if required {
			return common.Address{}, &services.ValidationError{Field: "owner", Reason: "is required"}
		}
		return common.Address{}, nil
	}
	owner, err := utils.ParseAddress(raw)
	if err != nil {
		return common.Address{}, &services.ValidationError{Field: "owner", Reason: err.Error()}
	}
	return owner, nil
}

// handleListDeployments serves GET /api/deployments?owner=&sort=&project=
func (s *APIServer) handleListDeployments(c *fiber.Ctx) error {
	owner, err := parseOwner(c, true)
	if err != nil {
		return writeError(c, err)
	}
	order, err := models.ParseSortOrder(c.Query("sort"))
	if err != nil {
		return writeError(c, &services.ValidationError{Field: "sort", Reason: err.Error()})
	}

	deployments, err := s.services.Deployments.ListForOwner(c.UserContext(), owner, services.ListOptions{
		Sort:        order,
		ProjectName: c.Query("project"),
	})
	if err != nil {
		return writeError(c, err)
	}

	views := make([]deploymentView, 0, len(deployments))
	for _, d := range deployments {
		views = append(views, s.view(d))
	}
	return c.JSON(fiber.Map{
		"owner":       owner.Hex(),
		"sort":        order,
		"count":       len(views),
		"deployments": views,
	})
}

// handleGetDeployment serves GET /api/deployments/:id
func (s *APIServer) handleGetDeployment(c *fiber.Ctx) error {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return writeError(c, &services.ValidationError{Field: "id", Reason: "must be a positive integer"})
	}

	deployment, err := s.services.Deployments.GetDeployment(c.UserContext(), id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(s.view(deployment))
}

// handleStats serves GET /api/stats?owner=
func (s *APIServer) handleStats(c *fiber.Ctx) error {
	owner, err := parseOwner(c, false)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(s.services.Deployments.Stats(c.UserContext(), owner))
}

// handleGateways serves GET /api/gateways/:cid. ?check=true probes the preferred gateway.
func (s *APIServer) handleGateways(c *fiber.Ctx) error {
	cid := c.Params("cid")
	if cid == "" {
		return writeError(c, &services.ValidationError{Field: "cid", Reason: "is required"})
	}

	body := fiber.Map{
		"cid":      cid,
		"valid":    utils.IsValidCID(cid),
		"gateways": s.services.Gateways.AllURLs(cid),
	}
	if c.QueryBool("check") {
		body["available"] = s.services.Gateways.CheckAvailability(c.UserContext(), cid)
	}
	return c.JSON(body)
}

// handleActivity serves GET /api/activity?limit=&owner= from the local event index.
func (s *APIServer) handleActivity(c *fiber.Ctx) error {
	owner, err := parseOwner(c, false)
	if err != nil {
		return writeError(c, err)
	}

	var rows []models.IndexedDeployment
	if owner != (common.Address{}) {
		rows, err = s.services.Index.ListByOwner(owner.Hex())
	} else {
		rows, err = s.services.Index.ListRecent(c.QueryInt("limit", 20))
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"count": len(rows), "deployments": rows})
}

// handleListSubmissions serves GET /api/submissions?owner= from the local journal.
// Without an owner it lists runs whose outcome is not settled yet.
func (s *APIServer) handleListSubmissions(c *fiber.Ctx) error {
	owner, err := parseOwner(c, false)
	if err != nil {
		return writeError(c, err)
	}

	var submissions []models.Submission
	if owner != (common.Address{}) {
		submissions, err = s.services.Submissions.ListByOwner(owner)
	} else {
		submissions, err = s.services.Submissions.ListUnresolved()
	}
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(fiber.Map{"count": len(submissions), "submissions": submissions})
}

func (s *APIServer) handleNodeInfo(c *fiber.Ctx) error {
	info, err := s.services.Content.NodeInfo(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(info)
}

// handleCreateDeployment serves POST /api/deployments. The multipart form
// carries one or more "files" parts, optional "paths" values giving each file's
// path inside the site, "project_name" and "description". Zip archives are
// expanded before upload.
func (s *APIServer) handleCreateDeployment(c *fiber.Ctx) error {
	if s.services.ReadOnly() {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "Server is read-only: no signing key configured",
		})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return writeError(c, &services.ValidationError{Field: "form", Reason: err.Error()})
	}

	files, err := s.readFormFiles(form)
	if err != nil {
		return writeError(c, err)
	}
	files, err = utils.ExpandArchives(files)
	if err != nil {
		return writeError(c, &services.ValidationError{Field: "files", Reason: err.Error()})
	}
	if validation := utils.ValidateFiles(files); !validation.Valid {
		return writeError(c, &services.ValidationError{Field: "files", Reason: validation.Err().Error()})
	}

	result, err := s.services.Launcher.Launch(c.UserContext(), services.LaunchArgs{
		Signer:      s.services.Signer,
		Files:       files,
		ProjectName: formValue(form, "project_name"),
		Description: formValue(form, "description"),
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

func (s *APIServer) readFormFiles(form *multipart.Form) ([]ipfs.File, error) {
	headers := form.File["files"]
	paths := form.Value["paths"]
	if len(paths) > 0 && len(paths) != len(headers) {
		return nil, &services.ValidationError{Field: "paths", Reason: fmt.Sprintf("got %d paths for %d files", len(paths), len(headers))}
	}

	var total int64
	files := make([]ipfs.File, 0, len(headers))
	for i, header := range headers {
		total += header.Size
		if total > s.maxUploadSize {
			return nil, &services.ValidationError{Field: "files", Reason: fmt.Sprintf("upload exceeds %s", utils.FormatFileSize(s.maxUploadSize))}
		}
		data, err := readFormFile(header)
		if err != nil {
			return nil, err
		}
		name := header.Filename
		if len(paths) > 0 {
			name = paths[i]
		}
		files = append(files, ipfs.File{Name: name, Data: data})
	}
	return files, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func formValue(form *multipart.Form, key string) string {
	if values := form.Value[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
