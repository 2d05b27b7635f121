package hooks

import (
	"log"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"github.com/rxtech-lab/webhost-mcp/internal/services"
)

// SubmissionHook confirms journal entries whose receipt was never observed by
// the pipeline, e.g. after a confirmation timeout.
type SubmissionHook struct {
	submissionService services.SubmissionService
}

// CanHandle implements Hook.
func (h *SubmissionHook) CanHandle(event models.DeploymentEvent) bool {
	return event.TxHash != (common.Hash{})
}

// OnDeploymentRecorded implements Hook.
func (h *SubmissionHook) OnDeploymentRecorded(event models.DeploymentEvent) error {
	matched, err := h.submissionService.ConfirmByTxHash(event.TxHash, event.ID)
	if err != nil {
		return err
	}
	if matched {
		log.Printf("Reconciled submission for tx %s as deployment %d", event.TxHash.Hex(), event.ID)
	}
	return nil
}

func NewSubmissionHook(submissionService services.SubmissionService) services.Hook {
	return &SubmissionHook{
		submissionService: submissionService,
	}
}
