package services

import (
	"context"
	"log"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/rxtech-lab/webhost-mcp/internal/models"
	"golang.org/x/sync/errgroup"
)

// DefaultReadConcurrency bounds concurrent getDeployment calls of one listing.
const DefaultReadConcurrency = 8

type ListOptions struct {
	Sort models.SortOrder
	// ProjectName keeps only deployments whose project name matches, ignoring case.
	ProjectName string
}

type DeploymentService interface {
	// ListForOwner fetches every deployment of owner. Any failed fetch fails the
	// whole call; no partial list is returned.
	ListForOwner(ctx context.Context, owner common.Address, opts ListOptions) ([]models.Deployment, error)
	GetDeployment(ctx context.Context, id uint64) (models.Deployment, error)
	// FindByContentHash returns owner's deployments of contentHash, oldest first.
	FindByContentHash(ctx context.Context, owner common.Address, contentHash string) ([]models.Deployment, error)
	// Stats reads the dashboard counters. Failed counters read as zero with Degraded set.
	Stats(ctx context.Context, owner common.Address) models.DeploymentStats
}

// deploymentService composes ledger reads into owner-level views.
type deploymentService struct {
	ledger      LedgerService
	cache       DeploymentCache
	concurrency int
}

// NewDeploymentService creates a DeploymentService. A nil cache disables caching.
func NewDeploymentService(ledger LedgerService, cache DeploymentCache, concurrency int) DeploymentService {
	if cache == nil {
		cache = noopDeploymentCache{}
	}
	if concurrency < 1 {
		concurrency = DefaultReadConcurrency
	}
	return &deploymentService{ledger: ledger, cache: cache, concurrency: concurrency}
}

// GetDeployment returns a deployment by its ledger id
func (s *deploymentService) GetDeployment(ctx context.Context, id uint64) (models.Deployment, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		return cached, nil
	}
	deployment, err := s.ledger.GetDeployment(ctx, id)
	if err != nil {
		return models.Deployment{}, err
	}
	s.cache.Set(ctx, deployment)
	return deployment, nil
}

func (s *deploymentService) ListForOwner(ctx context.Context, owner common.Address, opts ListOptions) ([]models.Deployment, error) {
	order := opts.Sort
	if order == "" {
		order = models.SortNewest
	}
	if _, err := models.ParseSortOrder(string(order)); err != nil {
		return nil, &ValidationError{Field: "sort", Reason: err.Error()}
	}

	ids, err := s.ledger.GetDeploymentIDsForOwner(ctx, owner)
	if err != nil {
		return nil, err
	}

	deployments, err := s.fetchAll(ctx, ids)
	if err != nil {
		return nil, err
	}

	if opts.ProjectName != "" {
		filtered := deployments[:0]
		for _, d := range deployments {
			if strings.EqualFold(d.ProjectName, opts.ProjectName) {
				filtered = append(filtered, d)
			}
		}
		deployments = filtered
	}

	SortDeployments(deployments, order)
	return deployments, nil
}

// fetchAll reads ids with at most s.concurrency calls in flight. Results keep
// the order of ids.
func (s *deploymentService) fetchAll(ctx context.Context, ids []uint64) ([]models.Deployment, error) {
	deployments := make([]models.Deployment, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			deployment, err := s.GetDeployment(gctx, id)
			if err != nil {
				return err
			}
			deployments[i] = deployment
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Printf("Failed to fetch %d deployments: %v", len(ids), err)
		return nil, err
	}
	return deployments, nil
}

func (s *deploymentService) FindByContentHash(ctx context.Context, owner common.Address, contentHash string) ([]models.Deployment, error) {
	if contentHash == "" {
		return nil, &ValidationError{Field: "content_hash", Reason: "is required"}
	}
	deployments, err := s.ListForOwner(ctx, owner, ListOptions{Sort: models.SortOldest})
	if err != nil {
		return nil, err
	}
	var matches []models.Deployment
	for _, d := range deployments {
		if d.ContentHash == contentHash {
			matches = append(matches, d)
		}
	}
	return matches, nil
}

func (s *deploymentService) Stats(ctx context.Context, owner common.Address) models.DeploymentStats {
	stats := models.DeploymentStats{Owner: owner}

	total, err := s.ledger.GetTotalDeploymentCount(ctx)
	if err != nil {
		log.Printf("Error getting total deployments: %v", err)
		stats.Degraded = true
	}
	stats.Total = total

	if owner == (common.Address{}) {
		return stats
	}

	count, err := s.ledger.GetOwnerDeploymentCount(ctx, owner)
	if err != nil {
		log.Printf("Error getting owner deployment count: %v", err)
		stats.Degraded = true
	}
	stats.OwnerCount = count

	if count > 0 {
		deployments, err := s.ListForOwner(ctx, owner, ListOptions{Sort: models.SortVersion})
		if err != nil {
			log.Printf("Error getting latest version: %v", err)
			stats.Degraded = true
		} else if len(deployments) > 0 {
			stats.LatestVersion = deployments[0].Version
		}
	}
	return stats
}

// SortDeployments orders deployments in place. Ties are broken by ascending id.
func SortDeployments(deployments []models.Deployment, order models.SortOrder) {
	sort.SliceStable(deployments, func(i, j int) bool {
		a, b := deployments[i], deployments[j]
		switch order {
		case models.SortOldest:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp < b.Timestamp
			}
		case models.SortVersion:
			if a.Version != b.Version {
				return a.Version > b.Version
			}
		default:
			if a.Timestamp != b.Timestamp {
				return a.Timestamp > b.Timestamp
			}
		}
		return a.ID < b.ID
	})
}
