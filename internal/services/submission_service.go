package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"gorm.io/gorm"
)

// ErrInvalidTransition is returned when a journal update would leave a terminal state.
var ErrInvalidTransition = errors.New("invalid submission state transition")

// SubmissionService journals pipeline runs so an interrupted run can be told
// apart from one that never reached the ledger.
type SubmissionService interface {
	Create(owner common.Address, pending models.PendingSubmission) (*models.Submission, error)
	Get(id string) (*models.Submission, error)
	// Apply stores a ledger state transition.
	Apply(id string, update SubmissionUpdate) error
	// RecordError stores err without changing the state.
	RecordError(id string, err error) error
	// ConfirmByTxHash confirms the submission that sent txHash. It reports false
	// when no unresolved submission matches.
	ConfirmByTxHash(txHash common.Hash, deploymentID uint64) (bool, error)
	ListByOwner(owner common.Address) ([]models.Submission, error)
	ListUnresolved() ([]models.Submission, error)
}

type submissionService struct {
	db *gorm.DB
}

func NewSubmissionService(db *gorm.DB) SubmissionService {
	return &submissionService{db: db}
}

func (s *submissionService) Create(owner common.Address, pending models.PendingSubmission) (*models.Submission, error) {
	submission := &models.Submission{
		ID:          uuid.New().String(),
		Owner:       owner.Hex(),
		ContentHash: pending.ContentHash,
		ProjectName: pending.ProjectName,
		Description: pending.Description,
		State:       models.SubmissionStateBuilding,
	}
	if err := s.db.Create(submission).Error; err != nil {
		return nil, fmt.Errorf("failed to create submission: %w", err)
	}
	return submission, nil
}

func (s *submissionService) Get(id string) (*models.Submission, error) {
	var submission models.Submission
	if err := s.db.Where("id = ?", id).First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (s *submissionService) Apply(id string, update SubmissionUpdate) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var submission models.Submission
		if err := tx.Where("id = ?", id).First(&submission).Error; err != nil {
			return err
		}
		if submission.State.Terminal() && submission.State != update.State {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, submission.State, update.State)
		}

		updates := map[string]interface{}{"state": update.State}
		if update.TxHash != (common.Hash{}) {
			updates["tx_hash"] = update.TxHash.Hex()
		}
		if update.State == models.SubmissionStateConfirmed {
			updates["deployment_id"] = update.DeploymentID
			updates["error"] = ""
		}
		if update.Err != nil {
			updates["error"] = update.Err.Error()
		}
		return tx.Model(&models.Submission{}).Where("id = ?", id).Updates(updates).Error
	})
}

func (s *submissionService) RecordError(id string, err error) error {
	if err == nil {
		return nil
	}
	return s.db.Model(&models.Submission{}).Where("id = ?", id).Update("error", err.Error()).Error
}

func (s *submissionService) ConfirmByTxHash(txHash common.Hash, deploymentID uint64) (bool, error) {
	result := s.db.Model(&models.Submission{}).
		Where("LOWER(tx_hash) = ? AND state = ?", strings.ToLower(txHash.Hex()), models.SubmissionStateSubmitted).
		Updates(map[string]interface{}{
			"state":         models.SubmissionStateConfirmed,
			"deployment_id": deploymentID,
			"error":         "",
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *submissionService) ListByOwner(owner common.Address) ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.Where("owner = ?", owner.Hex()).Order("created_at DESC").Find(&submissions).Error
	return submissions, err
}

func (s *submissionService) ListUnresolved() ([]models.Submission, error) {
	var submissions []models.Submission
	err := s.db.Where("state IN ?", []models.SubmissionState{models.SubmissionStateBuilding, models.SubmissionStateSubmitted}).
		Order("created_at ASC").
		Find(&submissions).Error
	return submissions, err
}
