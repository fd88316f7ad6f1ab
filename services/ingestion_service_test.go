// backend/services/ingestion_service_test.go
package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

type fakeState struct {
	m map[string]string
}

func newFakeState() *fakeState { return &fakeState{m: make(map[string]string)} }

func (f *fakeState) GetState(key string) (string, bool, error) {
	v, ok := f.m[key]
	return v, ok, nil
}

func (f *fakeState) SetState(key, value string) error {
	f.m[key] = value
	return nil
}

func (f *fakeState) seenIDs(t *testing.T, key string) []string {
	t.Helper()
	raw, ok := f.m[key]
	if !ok {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		t.Fatalf("seen-set %s is not valid JSON: %v", key, err)
	}
	return ids
}

type fakeComplaintStore struct {
	targets    []models.TargetVehicle
	stored     map[string]models.ComplaintRecord
	rejectIDs  map[string]bool // rows the store refuses to write
	failInsert bool
}

func newFakeComplaintStore(targets ...models.TargetVehicle) *fakeComplaintStore {
	return &fakeComplaintStore{
		targets:   targets,
		stored:    make(map[string]models.ComplaintRecord),
		rejectIDs: make(map[string]bool),
	}
}

func (f *fakeComplaintStore) TopRiskVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error) {
	if limit < len(f.targets) {
		return f.targets[:limit], nil
	}
	return f.targets, nil
}

func (f *fakeComplaintStore) InsertComplaints(records []models.ComplaintRecord) ([]string, error) {
	if f.failInsert {
		return nil, errors.New("connection lost")
	}
	var inserted []string
	for _, rec := range records {
		if f.rejectIDs[rec.ODINumber] {
			continue
		}
		if _, ok := f.stored[rec.ODINumber]; ok {
			continue
		}
		f.stored[rec.ODINumber] = rec
		inserted = append(inserted, rec.ODINumber)
	}
	return inserted, nil
}

type fakeComplaintFetcher struct {
	byVehicle map[string][]models.ComplaintRecord
	failFor   map[string]bool
}

func vehicleKey(make, model, year string) string {
	return fmt.Sprintf("%s|%s|%s", make, model, year)
}

func (f *fakeComplaintFetcher) FetchComplaints(make, model, year string) ([]models.ComplaintRecord, error) {
	key := vehicleKey(make, model, year)
	if f.failFor[key] {
		return nil, errors.New("request timed out")
	}
	return f.byVehicle[key], nil
}

func complaint(odi, make, model, year string) models.ComplaintRecord {
	return models.ComplaintRecord{ODINumber: odi, Make: make, Model: model, Year: year}
}

func etlTestConfig() config.ETLConfig {
	return config.ETLConfig{
		YearStart:     "2020",
		YearEnd:       "2024",
		MinComplaints: 50,
		MaxVehicles:   50,
	}
}

func TestIngestionDedupIdempotence(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	honda := models.TargetVehicle{Make: "HONDA", Model: "CR-V", Year: "2022"}
	store := newFakeComplaintStore(ford, honda)
	state := newFakeState()
	fetcher := &fakeComplaintFetcher{byVehicle: map[string][]models.ComplaintRecord{
		vehicleKey("FORD", "F-150", "2021"):  {complaint("1", "FORD", "F-150", "2021"), complaint("2", "FORD", "F-150", "2021")},
		vehicleKey("HONDA", "CR-V", "2022"): {complaint("3", "HONDA", "CR-V", "2022")},
	}}
	svc := NewIngestionService(store, state, fetcher, etlTestConfig())

	n, err := svc.Run()
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if n != 3 || len(store.stored) != 3 {
		t.Fatalf("first Run() = %d inserted, %d stored, want 3 and 3", n, len(store.stored))
	}

	// Same payload again: the stored record count must not change.
	n, err = svc.Run()
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if n != 0 || len(store.stored) != 3 {
		t.Fatalf("second Run() = %d inserted, %d stored, want 0 and 3", n, len(store.stored))
	}
}

func TestIngestionPartialFetchFailureContained(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	honda := models.TargetVehicle{Make: "HONDA", Model: "CR-V", Year: "2022"}
	store := newFakeComplaintStore(ford, honda)
	state := newFakeState()
	fetcher := &fakeComplaintFetcher{
		byVehicle: map[string][]models.ComplaintRecord{
			vehicleKey("HONDA", "CR-V", "2022"): {complaint("3", "HONDA", "CR-V", "2022")},
		},
		failFor: map[string]bool{vehicleKey("FORD", "F-150", "2021"): true},
	}
	svc := NewIngestionService(store, state, fetcher, etlTestConfig())

	n, err := svc.Run()
	if err != nil {
		t.Fatalf("Run() error = %v, want fetch failure absorbed", err)
	}
	if n != 1 {
		t.Fatalf("Run() = %d inserted, want 1 (other vehicle still ingested)", n)
	}
	if _, ok := store.stored["3"]; !ok {
		t.Fatal("complaint 3 was not stored despite the other vehicle failing")
	}
}

func TestIngestionSeenSetOnlyTracksWrittenRows(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	store := newFakeComplaintStore(ford)
	store.rejectIDs["2"] = true
	state := newFakeState()
	fetcher := &fakeComplaintFetcher{byVehicle: map[string][]models.ComplaintRecord{
		vehicleKey("FORD", "F-150", "2021"): {complaint("1", "FORD", "F-150", "2021"), complaint("2", "FORD", "F-150", "2021")},
	}}
	svc := NewIngestionService(store, state, fetcher, etlTestConfig())

	if _, err := svc.Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	seen := state.seenIDs(t, stateSeenODIs)
	if len(seen) != 1 || seen[0] != "1" {
		t.Fatalf("seen-set = %v, want only the durably written [1]", seen)
	}

	// The unpersisted record is picked up again once the store accepts it.
	store.rejectIDs = map[string]bool{}
	n, err := svc.Run()
	if err != nil {
		t.Fatalf("retry Run() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("retry Run() = %d inserted, want 1", n)
	}
}

func TestIngestionInsertFailureLeavesSeenSetUntouched(t *testing.T) {
	ford := models.TargetVehicle{Make: "FORD", Model: "F-150", Year: "2021"}
	store := newFakeComplaintStore(ford)
	store.failInsert = true
	state := newFakeState()
	fetcher := &fakeComplaintFetcher{byVehicle: map[string][]models.ComplaintRecord{
		vehicleKey("FORD", "F-150", "2021"): {complaint("1", "FORD", "F-150", "2021")},
	}}
	svc := NewIngestionService(store, state, fetcher, etlTestConfig())

	if _, err := svc.Run(); err == nil {
		t.Fatal("Run() error = nil, want persistence failure to surface")
	}
	if _, ok := state.m[stateSeenODIs]; ok {
		t.Fatalf("seen-set written despite failed persist: %s", state.m[stateSeenODIs])
	}
}
