// backend/database/recall_store.go
package database

import (
	"fmt"
	"log"

	"github.com/roadsafety/silent-recall/backend/models"
)

// InsertRecalls persists recall campaigns one row at a time, duplicate
// campaign numbers being a no-op. A single bad row is logged and skipped; the
// batch continues. Returns the campaign numbers written this call and the
// ones that turned out to be already present; a failed row lands in neither.
func (s *Store) InsertRecalls(records []models.RecallRecord) (inserted, duplicates []string, err error) {
	if len(records) == 0 {
		log.Println("Database: No recalls to insert.")
		return nil, nil, nil
	}

	stmt, err := s.db.Prepare(`
		INSERT IGNORE INTO recalls (
			campaign_number, make, model, model_year,
			component, defect_summary, report_received_date, potential_units
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to prepare recall insert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		res, err := stmt.Exec(
			rec.CampaignNumber, rec.Make, rec.Model, rec.Year,
			rec.Component, rec.DefectSummary, rec.ReportReceivedDate, rec.PotentialUnits,
		)
		if err != nil {
			log.Printf("WARN Database: Failed to insert recall %s: %v", rec.CampaignNumber, err)
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, rec.CampaignNumber)
		} else {
			duplicates = append(duplicates, rec.CampaignNumber)
		}
	}

	log.Printf("Database: Inserted %d new recalls (%d already present).", len(inserted), len(duplicates))
	return inserted, duplicates, nil
}
