// backend/services/recall_service.go
package services

import (
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// RecallStore is the slice of the database the recall stage needs.
type RecallStore interface {
	TopComplaintVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error)
	InsertRecalls(records []models.RecallRecord) (inserted, duplicates []string, err error)
}

// RecallFetcher fetches recall campaigns for one vehicle.
type RecallFetcher interface {
	FetchRecalls(make, model, year string) ([]models.RecallRecord, error)
}

// RecallService fetches recall campaigns for the highest-complaint vehicles,
// dedupes them against the seen campaign numbers, and persists the survivors.
type RecallService struct {
	store  RecallStore
	state  StateStore
	client RecallFetcher
	cfg    config.ETLConfig
}

func NewRecallService(store RecallStore, state StateStore, client RecallFetcher, cfg config.ETLConfig) *RecallService {
	return &RecallService{store: store, state: state, client: client, cfg: cfg}
}

// Run returns the number of recalls durably written. A vehicle whose fetch
// exhausts its retries is logged and skipped.
func (s *RecallService) Run() (int, error) {
	seen, err := loadSeenSet(s.state, stateSeenCampaigns)
	if err != nil {
		return 0, err
	}

	vehicles, err := s.store.TopComplaintVehicles(s.cfg, s.cfg.RecallVehicleLimit)
	if err != nil {
		return 0, fmt.Errorf("failed to select recall target vehicles: %w", err)
	}
	log.Printf("Service: Fetching recalls for %d vehicles", len(vehicles))

	inBatch := make(map[string]bool)
	var pending []models.RecallRecord
	for _, v := range vehicles {
		records, err := s.client.FetchRecalls(v.Make, v.Model, v.Year)
		if err != nil {
			log.Printf("WARN Service: Recall fetch failed for %s %s %s: %v", v.Make, v.Model, v.Year, err)
			continue
		}
		for _, rec := range records {
			if seen[rec.CampaignNumber] || inBatch[rec.CampaignNumber] {
				continue
			}
			inBatch[rec.CampaignNumber] = true
			pending = append(pending, rec)
			log.Printf("Service: [NEW] %s (%s %s %s)", rec.CampaignNumber, v.Make, v.Model, v.Year)
		}
	}

	if len(pending) == 0 {
		log.Println("Service: No new recalls found")
		return 0, nil
	}

	inserted, duplicates, err := s.store.InsertRecalls(pending)
	if err != nil {
		return 0, fmt.Errorf("failed to persist recalls: %w", err)
	}

	// Duplicates were durably written by an earlier run; fold them into the
	// seen-set too, or they would be re-fetched and re-attempted forever.
	for _, campaign := range inserted {
		seen[campaign] = true
	}
	for _, campaign := range duplicates {
		seen[campaign] = true
	}
	if len(inserted) == 0 && len(duplicates) == 0 {
		return 0, nil
	}
	if err := saveSeenSet(s.state, stateSeenCampaigns, seen); err != nil {
		return len(inserted), err
	}
	if len(inserted) == 0 {
		return 0, nil
	}
	if err := s.state.SetState(stateLastRecallFetch, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return len(inserted), err
	}
	if err := s.bumpTotalLoaded(len(inserted)); err != nil {
		return len(inserted), err
	}

	log.Printf("Service: Recall ingestion complete, %d campaigns written", len(inserted))
	return len(inserted), nil
}

func (s *RecallService) bumpTotalLoaded(n int) error {
	raw, ok, err := s.state.GetState(stateTotalRecallsLoaded)
	if err != nil {
		return err
	}
	total := 0
	if ok {
		if total, err = strconv.Atoi(raw); err != nil {
			log.Printf("WARN Service: Resetting malformed %s counter %q", stateTotalRecallsLoaded, raw)
			total = 0
		}
	}
	return s.state.SetState(stateTotalRecallsLoaded, strconv.Itoa(total+n))
}
