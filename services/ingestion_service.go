// backend/services/ingestion_service.go
package services

import (
	"fmt"
	"log"
	"time"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// ComplaintStore is the slice of the database the ingestion stage needs.
type ComplaintStore interface {
	TopRiskVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error)
	InsertComplaints(records []models.ComplaintRecord) ([]string, error)
}

// ComplaintFetcher fetches complaint records for one vehicle.
type ComplaintFetcher interface {
	FetchComplaints(make, model, year string) ([]models.ComplaintRecord, error)
}

// IngestionService brings newly observed complaints into durable storage
// exactly once: a seen-set of ODI numbers filters candidates up front, the
// store's guarded insert catches anything the set missed, and the set is
// rebuilt strictly from what was actually written.
type IngestionService struct {
	store  ComplaintStore
	state  StateStore
	client ComplaintFetcher
	cfg    config.ETLConfig
}

func NewIngestionService(store ComplaintStore, state StateStore, client ComplaintFetcher, cfg config.ETLConfig) *IngestionService {
	return &IngestionService{store: store, state: state, client: client, cfg: cfg}
}

// Run returns the number of complaints durably written. Per-vehicle fetch
// failures are logged and skipped; store failures abort the stage.
func (s *IngestionService) Run() (int, error) {
	seen, err := loadSeenSet(s.state, stateSeenODIs)
	if err != nil {
		return 0, err
	}
	log.Printf("Service: Seen ODI numbers: %d", len(seen))

	vehicles, err := s.store.TopRiskVehicles(s.cfg, s.cfg.MaxVehicles)
	if err != nil {
		return 0, fmt.Errorf("failed to select target vehicles: %w", err)
	}
	if len(vehicles) > s.cfg.MaxVehicles {
		vehicles = vehicles[:s.cfg.MaxVehicles]
	}
	log.Printf("Service: Fetching complaints for %d vehicles", len(vehicles))

	inBatch := make(map[string]bool)
	var pending []models.ComplaintRecord
	for i, v := range vehicles {
		log.Printf("Service: [%d/%d] %s %s %s", i+1, len(vehicles), v.Make, v.Model, v.Year)

		records, err := s.client.FetchComplaints(v.Make, v.Model, v.Year)
		if err != nil {
			log.Printf("WARN Service: Complaint fetch failed for %s %s %s: %v", v.Make, v.Model, v.Year, err)
			continue
		}
		for _, rec := range records {
			if seen[rec.ODINumber] || inBatch[rec.ODINumber] {
				continue
			}
			inBatch[rec.ODINumber] = true
			pending = append(pending, rec)
		}
	}

	if len(pending) == 0 {
		log.Println("Service: No new complaints found")
		return 0, s.state.SetState(stateLastComplaintFetch, time.Now().UTC().Format(time.RFC3339))
	}

	log.Printf("Service: Inserting %d new complaints", len(pending))
	inserted, err := s.store.InsertComplaints(pending)
	if err != nil {
		// Nothing was durably written; the seen-set stays as it was.
		return 0, fmt.Errorf("failed to persist complaints: %w", err)
	}

	// Extend the seen-set with exactly the identifiers the store confirmed,
	// never with what was merely fetched.
	for _, id := range inserted {
		seen[id] = true
	}
	if err := saveSeenSet(s.state, stateSeenODIs, seen); err != nil {
		return len(inserted), err
	}
	if err := s.state.SetState(stateLastComplaintFetch, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return len(inserted), err
	}

	log.Printf("Service: Complaint ingestion complete, %d records written", len(inserted))
	return len(inserted), nil
}
