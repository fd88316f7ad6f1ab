// backend/database/complaint_store.go
package database

import (
	"fmt"
	"log"

	"github.com/roadsafety/silent-recall/backend/models"
)

func yn(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

// InsertComplaints persists new complaint records inside one transaction and
// returns the ODI numbers that were actually written. INSERT IGNORE makes a
// duplicate identity key a no-op, so the in-memory seen-set filtering upstream
// does not have to be complete; callers rebuild the seen-set strictly from the
// returned identifiers.
func (s *Store) InsertComplaints(records []models.ComplaintRecord) ([]string, error) {
	if len(records) == 0 {
		return nil, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction for complaints: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT IGNORE INTO complaints (
			odi_number, make, model, model_year,
			crash, fire, injuries, deaths,
			component, summary, filed_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare complaint insert statement: %w", err)
	}
	defer stmt.Close()

	var inserted []string
	for _, rec := range records {
		res, err := stmt.Exec(
			rec.ODINumber, rec.Make, rec.Model, rec.Year,
			yn(rec.Crash), yn(rec.Fire), rec.Injuries, rec.Deaths,
			rec.Component, rec.Summary, rec.FiledDate,
		)
		if err != nil {
			log.Printf("WARN Database: Failed to insert complaint %s: %v", rec.ODINumber, err)
			continue
		}
		if n, _ := res.RowsAffected(); n > 0 {
			inserted = append(inserted, rec.ODINumber)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit complaint insert transaction: %w", err)
	}

	log.Printf("Database: Inserted %d of %d complaint records.", len(inserted), len(records))
	return inserted, nil
}

// BulkInsertComplaints is the flat-file path: every row goes through INSERT
// IGNORE, independent of the seen-set. Returns the number of rows written.
func (s *Store) BulkInsertComplaints(records []models.ComplaintRecord) (int64, error) {
	inserted, err := s.InsertComplaints(records)
	if err != nil {
		return 0, err
	}
	return int64(len(inserted)), nil
}
