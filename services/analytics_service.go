// backend/services/analytics_service.go
package services

import (
	"fmt"
	"log"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// AnalyticsStore stages and swaps the derived tables.
type AnalyticsStore interface {
	VehicleAggregates(cfg config.ETLConfig) ([]models.VehicleRiskScore, error)
	RebuildDerived(cfg config.ETLConfig, scores []models.VehicleRiskScore) error
}

// AnalyticsService recomputes every derived table from the raw complaint and
// recall tables. The refresh is stateless and idempotent: a full
// drop-and-rebuild, never an incremental update.
type AnalyticsService struct {
	store AnalyticsStore
	cfg   config.ETLConfig
}

func NewAnalyticsService(store AnalyticsStore, cfg config.ETLConfig) *AnalyticsService {
	return &AnalyticsService{store: store, cfg: cfg}
}

func (s *AnalyticsService) Refresh() error {
	scores, err := s.store.VehicleAggregates(s.cfg)
	if err != nil {
		return fmt.Errorf("failed to aggregate vehicle risk: %w", err)
	}

	for i := range scores {
		if ratio, ok := models.RiskRatio(scores[i].TotalComplaints, scores[i].TotalRecalls); ok {
			scores[i].RiskRatio = ratio
		}
		scores[i].Category = models.AssignRiskCategory(scores[i].TotalComplaints, scores[i].TotalRecalls)
	}

	if err := s.store.RebuildDerived(s.cfg, scores); err != nil {
		return fmt.Errorf("failed to rebuild derived tables: %w", err)
	}
	log.Printf("Service: Analytics refresh complete, %d vehicle risk scores", len(scores))
	return nil
}
