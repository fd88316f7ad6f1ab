// backend/services/pipeline_test.go
package services

import (
	"errors"
	"testing"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

type fakeAnalyticsStore struct {
	aggregates []models.VehicleRiskScore
	rebuilt    []models.VehicleRiskScore
	failOn     string // "aggregates" or "rebuild"
}

func (f *fakeAnalyticsStore) VehicleAggregates(cfg config.ETLConfig) ([]models.VehicleRiskScore, error) {
	if f.failOn == "aggregates" {
		return nil, errors.New("connection lost")
	}
	return f.aggregates, nil
}

func (f *fakeAnalyticsStore) RebuildDerived(cfg config.ETLConfig, scores []models.VehicleRiskScore) error {
	if f.failOn == "rebuild" {
		return errors.New("connection lost")
	}
	f.rebuilt = scores
	return nil
}

func testPipeline(analytics *fakeAnalyticsStore, mailer *fakeMailer) *Pipeline {
	cfg := etlTestConfig()
	state := newFakeState()
	reader := &fakeRiskReader{}
	alertState := &fakeAlertState{hashes: make(map[string]string)}

	return NewPipeline(
		NewIngestionService(newFakeComplaintStore(), state, &fakeComplaintFetcher{}, cfg),
		NewRecallService(newFakeRecallStore(), state, &fakeRecallFetcher{}, cfg),
		NewAnalyticsService(analytics, cfg),
		NewAlertService(reader, alertState, mailer, config.AlertConfig{Name: "critical_vehicle_risk", RatioThreshold: 100}),
	)
}

func TestPipelineRunsAllStages(t *testing.T) {
	analytics := &fakeAnalyticsStore{aggregates: []models.VehicleRiskScore{
		{Make: "FORD", Model: "F-150", Year: "2021", TotalComplaints: 600, TotalRecalls: 0},
	}}
	if err := testPipeline(analytics, &fakeMailer{}).Run(); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(analytics.rebuilt) != 1 {
		t.Fatalf("derived tables rebuilt with %d scores, want 1", len(analytics.rebuilt))
	}
	if analytics.rebuilt[0].Category != models.RiskCritical {
		t.Fatalf("category = %s, want CRITICAL", analytics.rebuilt[0].Category)
	}
}

func TestPipelineAbortsAfterStageFailure(t *testing.T) {
	analytics := &fakeAnalyticsStore{failOn: "rebuild"}
	mailer := &fakeMailer{}
	err := testPipeline(analytics, mailer).Run()
	if err == nil {
		t.Fatal("Run() error = nil, want analytics failure to abort the pipeline")
	}
	if mailer.sent != 0 {
		t.Fatalf("alert stage ran after analytics failure, %d sends", mailer.sent)
	}
}
