// backend/services/pipeline.go
package services

import (
	"fmt"
	"log"
)

// Pipeline sequences the four stages once per invocation:
// ingest complaints, ingest recalls, refresh analytics, evaluate alert.
// Each stage's effects commit independently; an unrecoverable stage failure
// aborts the stages after it, never rolls back the ones before it. Retrying
// belongs to the external scheduler.
type Pipeline struct {
	ingestion *IngestionService
	recalls   *RecallService
	analytics *AnalyticsService
	alerts    *AlertService
}

func NewPipeline(ingestion *IngestionService, recalls *RecallService, analytics *AnalyticsService, alerts *AlertService) *Pipeline {
	return &Pipeline{ingestion: ingestion, recalls: recalls, analytics: analytics, alerts: alerts}
}

func (p *Pipeline) Run() error {
	log.Println("Pipeline: NHTSA ETL started")

	log.Println("Pipeline: [STEP 1] Ingesting complaints")
	complaints, err := p.ingestion.Run()
	if err != nil {
		return fmt.Errorf("complaint ingestion stage failed: %w", err)
	}

	log.Println("Pipeline: [STEP 2] Ingesting recalls")
	recalls, err := p.recalls.Run()
	if err != nil {
		return fmt.Errorf("recall ingestion stage failed: %w", err)
	}

	log.Println("Pipeline: [STEP 3] Refreshing analytical tables")
	if err := p.analytics.Refresh(); err != nil {
		return fmt.Errorf("analytics refresh stage failed: %w", err)
	}

	log.Println("Pipeline: [STEP 4] Evaluating critical vehicle alert")
	outcome, err := p.alerts.Run()
	if err != nil {
		return fmt.Errorf("alert stage failed: %w", err)
	}

	log.Printf("Pipeline: ETL complete: %d new complaints, %d new recalls, alert %s",
		complaints, recalls, outcome)
	return nil
}
