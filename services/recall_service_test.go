// backend/services/recall_service_test.go
package services

import (
	"errors"
	"testing"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

type fakeRecallStore struct {
	targets []models.TargetVehicle
	stored  map[string]models.RecallRecord
}

func newFakeRecallStore(targets ...models.TargetVehicle) *fakeRecallStore {
	return &fakeRecallStore{targets: targets, stored: make(map[string]models.RecallRecord)}
}

func (f *fakeRecallStore) TopComplaintVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error) {
	return f.targets, nil
}

func (f *fakeRecallStore) InsertRecalls(records []models.RecallRecord) ([]string, []string, error) {
	var inserted, duplicates []string
	for _, rec := range records {
		if _, ok := f.stored[rec.CampaignNumber]; ok {
			duplicates = append(duplicates, rec.CampaignNumber)
			continue
		}
		f.stored[rec.CampaignNumber] = rec
		inserted = append(inserted, rec.CampaignNumber)
	}
	return inserted, duplicates, nil
}

type fakeRecallFetcher struct {
	byVehicle map[string][]models.RecallRecord
	failFor   map[string]bool
}

func (f *fakeRecallFetcher) FetchRecalls(make, model, year string) ([]models.RecallRecord, error) {
	key := vehicleKey(make, model, year)
	if f.failFor[key] {
		return nil, errors.New("retries exhausted")
	}
	return f.byVehicle[key], nil
}

func recall(campaign, make, model, year string) models.RecallRecord {
	return models.RecallRecord{CampaignNumber: campaign, Make: make, Model: model, Year: year}
}

func TestRecallIngestionDedupAndCounters(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	store := newFakeRecallStore(ford)
	state := newFakeState()
	fetcher := &fakeRecallFetcher{byVehicle: map[string][]models.RecallRecord{
		vehicleKey("FORD", "F-150", "2021"): {
			recall("23V001000", "FORD", "F-150", "2021"),
			recall("23V002000", "FORD", "F-150", "2021"),
		},
	}}
	svc := NewRecallService(store, state, fetcher, etlTestConfig())

	n, err := svc.Run()
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if n != 2 {
		t.Fatalf("first Run() = %d inserted, want 2", n)
	}
	if state.m[stateTotalRecallsLoaded] != "2" {
		t.Fatalf("total_recalls_loaded = %q, want %q", state.m[stateTotalRecallsLoaded], "2")
	}
	if _, ok := state.m[stateLastRecallFetch]; !ok {
		t.Fatal("last_recall_fetch not recorded after successful run")
	}

	// Identical payload: nothing new, counter unchanged.
	lastFetch := state.m[stateLastRecallFetch]
	n, err = svc.Run()
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n != 0 || len(store.stored) != 2 {
		t.Fatalf("second Run() = %d inserted, %d stored, want 0 and 2", n, len(store.stored))
	}
	if state.m[stateTotalRecallsLoaded] != "2" {
		t.Fatalf("total_recalls_loaded after no-op run = %q, want unchanged %q", state.m[stateTotalRecallsLoaded], "2")
	}
	if state.m[stateLastRecallFetch] != lastFetch {
		t.Fatal("last_recall_fetch advanced although nothing was loaded")
	}
}

func TestRecallSeenSetAdoptsRowsAlreadyStored(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	store := newFakeRecallStore(ford)
	// The campaign is in the table but the seen-set was lost (fresh state).
	store.stored["23V001000"] = recall("23V001000", "FORD", "F-150", "2021")
	state := newFakeState()
	fetcher := &fakeRecallFetcher{byVehicle: map[string][]models.RecallRecord{
		vehicleKey("FORD", "F-150", "2021"): {recall("23V001000", "FORD", "F-150", "2021")},
	}}
	svc := NewRecallService(store, state, fetcher, etlTestConfig())

	n, err := svc.Run()
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if n != 0 {
		t.Fatalf("Run() = %d inserted, want 0 (row already stored)", n)
	}

	// The duplicate is adopted into the seen-set so it is never re-attempted.
	seen := state.seenIDs(t, stateSeenCampaigns)
	if len(seen) != 1 || seen[0] != "23V001000" {
		t.Fatalf("seen-set = %v, want the already-stored [23V001000]", seen)
	}

	// Nothing was loaded this run, so the counters do not move.
	if _, ok := state.m[stateTotalRecallsLoaded]; ok {
		t.Fatalf("total_recalls_loaded = %q after a duplicate-only run", state.m[stateTotalRecallsLoaded])
	}
	if _, ok := state.m[stateLastRecallFetch]; ok {
		t.Fatal("last_recall_fetch advanced although nothing was loaded")
	}
}

func TestRecallFetchFailureSkipsVehicle(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	honda := models.TargetVehicle{Make: "HONDA", Model: "CR-V", Year: "2022"}
	store := newFakeRecallStore(ford, honda)
	state := newFakeState()
	fetcher := &fakeRecallFetcher{
		byVehicle: map[string][]models.RecallRecord{
			vehicleKey("HONDA", "CR-V", "2022"): {recall("23V003000", "HONDA", "CR-V", "2022")},
		},
		failFor: map[string]bool{vehicleKey("FORD", "F-150", "2021"): true},
	}
	svc := NewRecallService(store, state, fetcher, etlTestConfig())

	n, err := svc.Run()
	if err != nil {
		t.Fatalf("Run() error = %v, want per-vehicle failure absorbed", err)
	}
	if n != 1 {
		t.Fatalf("Run() = %d inserted, want 1", n)
	}
}
