package services

import (
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IndexService keeps a local read model of observed WebsiteDeployed events.
// The ledger stays authoritative; the index only serves activity feeds.
type IndexService interface {
	// Record stores event. Replays of the same deployment id are ignored.
	Record(event models.DeploymentEvent) error
	ListRecent(limit int) ([]models.IndexedDeployment, error)
	ListByOwner(owner string) ([]models.IndexedDeployment, error)
	Count() (int64, error)
}

type indexService struct {
	db *gorm.DB
}

func NewIndexService(db *gorm.DB) IndexService {
	return &indexService{db: db}
}

func (s *indexService) Record(event models.DeploymentEvent) error {
	row := models.IndexedDeployment{
		DeploymentID: event.ID,
		Owner:        event.Owner.Hex(),
		ContentHash:  event.ContentHash,
		Timestamp:    event.Timestamp,
		TxHash:       event.TxHash.Hex(),
		BlockNumber:  event.BlockNumber,
	}
	return s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(&row).Error
}

func (s *indexService) ListRecent(limit int) ([]models.IndexedDeployment, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var rows []models.IndexedDeployment
	err := s.db.Order("deployment_id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (s *indexService) ListByOwner(owner string) ([]models.IndexedDeployment, error) {
	var rows []models.IndexedDeployment
	err := s.db.Where("LOWER(owner) = LOWER(?)", owner).Order("deployment_id DESC").Find(&rows).Error
	return rows, err
}

func (s *indexService) Count() (int64, error) {
	var count int64
	err := s.db.Model(&models.IndexedDeployment{}).Count(&count).Error
	return count, err
}
