package hooks

import (
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

type IndexHook struct {
	indexService services.IndexService
}

// CanHandle implements Hook.
func (h *IndexHook) CanHandle(event models.DeploymentEvent) bool {
	return true
}

// OnDeploymentRecorded implements Hook.
func (h *IndexHook) OnDeploymentRecorded(event models.DeploymentEvent) error {
	return h.indexService.Record(event)
}

func NewIndexHook(indexService services.IndexService) services.Hook {
	return &IndexHook{
		indexService: indexService,
	}
}
