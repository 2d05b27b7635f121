package services

import (
	"context"
	"log"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/go-playground/validator/v10"
	"github.com/rxtech-lab/webhost-mcp/internal/ipfs"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
)

// DefaultDescription is stored when a deployment has no description.
const DefaultDescription = "No description provided"

type LaunchArgs struct {
	Signer      *bind.TransactOpts `validate:"required"`
	Files       []ipfs.File
	ProjectName string `validate:"required,max=256"`
	Description string `validate:"max=4096"`
	OnProgress  UploadProgressFunc
	// OnStateChange receives ledger state transitions after they are journaled.
	OnStateChange SubmissionObserver
}

type LaunchResult struct {
	DeploymentID uint64              `json:"deployment_id"`
	ContentHash  string              `json:"content_hash"`
	TxHash       string              `json:"tx_hash"`
	BlockNumber  uint64              `json:"block_number"`
	URLs         []string            `json:"urls"`
	SubmissionID string              `json:"submission_id,omitempty"`
	Upload       models.UploadResult `json:"upload"`
}

// LaunchService runs the publish-and-commit pipeline: publish the files, then
// record the content address on the ledger. Publishing always happens before
// the ledger write and a failed run is never rolled back.
type LaunchService interface {
	Launch(ctx context.Context, args LaunchArgs) (LaunchResult, error)
}

type launchService struct {
	content     ContentService
	ledger      LedgerService
	gateways    GatewayService
	submissions SubmissionService
	validator   *validator.Validate
	metrics     *Metrics
}

// NewLaunchService creates the pipeline. submissions may be nil, in which case
// runs are not journaled.
func NewLaunchService(content ContentService, ledger LedgerService, gateways GatewayService, submissions SubmissionService, metrics *Metrics) LaunchService {
	return &launchService{
		content:     content,
		ledger:      ledger,
		gateways:    gateways,
		submissions: submissions,
		validator:   validator.New(),
		metrics:     metrics,
	}
}

func (s *launchService) fail(stage LaunchStage, contentHash, submissionID string, err error) (LaunchResult, error) {
	s.metrics.observeLaunch(string(stage))
	return LaunchResult{}, &LaunchError{Stage: stage, ContentHash: contentHash, SubmissionID: submissionID, Err: err}
}

func (s *launchService) Launch(ctx context.Context, args LaunchArgs) (LaunchResult, error) {
	args.ProjectName = strings.TrimSpace(args.ProjectName)
	args.Description = strings.TrimSpace(args.Description)
	if err := s.validator.Struct(args); err != nil {
		return s.fail(StageValidate, "", "", &ValidationError{Reason: err.Error()})
	}
	if err := ValidateFileSet(args.Files); err != nil {
		return s.fail(StageValidate, "", "", err)
	}
	if args.Description == "" {
		args.Description = DefaultDescription
	}

	upload, err := s.content.Publish(ctx, args.Files, args.OnProgress)
	if err != nil {
		return s.fail(StagePublish, "", "", err)
	}
	log.Printf("Published %d file(s) as %s", upload.Files, upload.ContentHash)

	if err := s.content.Pin(ctx, upload.ContentHash); err != nil {
		log.Printf("Failed to pin %s: %v", upload.ContentHash, err)
	}

	var submissionID string
	if s.submissions != nil {
		submission, err := s.submissions.Create(args.Signer.From, models.PendingSubmission{
			ContentHash: upload.ContentHash,
			ProjectName: args.ProjectName,
			Description: args.Description,
		})
		if err != nil {
			return s.fail(StageJournal, upload.ContentHash, "", err)
		}
		submissionID = submission.ID
	}

	record, err := s.ledger.RecordDeployment(ctx, RecordDeploymentArgs{
		Signer:      args.Signer,
		ContentHash: upload.ContentHash,
		ProjectName: args.ProjectName,
		Description: args.Description,
		OnStateChange: func(update SubmissionUpdate) {
			s.journal(submissionID, update)
			if args.OnStateChange != nil {
				args.OnStateChange(update)
			}
		},
	})
	if err != nil {
		// Unknown outcomes stay submitted so the submission hook can settle them.
		if submissionID != "" && record.State == models.SubmissionStateSubmitted {
			if jerr := s.submissions.RecordError(submissionID, err); jerr != nil {
				log.Printf("Failed to journal error for submission %s: %v", submissionID, jerr)
			}
		}
		return s.fail(StageRecord, upload.ContentHash, submissionID, err)
	}

	s.metrics.observeLaunch("confirmed")
	return LaunchResult{
		DeploymentID: record.DeploymentID,
		ContentHash:  upload.ContentHash,
		TxHash:       record.TxHash.Hex(),
		BlockNumber:  record.BlockNumber,
		URLs:         s.gateways.AllURLs(upload.ContentHash),
		SubmissionID: submissionID,
		Upload:       upload,
	}, nil
}

func (s *launchService) journal(submissionID string, update SubmissionUpdate) {
	if submissionID == "" || update.State == models.SubmissionStateBuilding {
		return
	}
	if err := s.submissions.Apply(submissionID, update); err != nil {
		log.Printf("Failed to journal %s for submission %s: %v", update.State, submissionID, err)
	}
}
