// backend/services/backfill_service.go
package services

import (
	"fmt"
	"log"
	"os"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
	"github.com/roadsafety/silent-recall/backend/nhtsa"
)

// BulkComplaintStore is the whole-file insert path: every row is written with
// duplicate-is-a-no-op semantics, independent of the seen-set.
type BulkComplaintStore interface {
	BulkInsertComplaints(records []models.ComplaintRecord) (int64, error)
}

// BackfillService loads the NHTSA bulk complaint flat file. This is the
// coarse catch-up mode, not part of the periodic pipeline.
type BackfillService struct {
	store    BulkComplaintStore
	nhtsaCfg config.NHTSAConfig
	etlCfg   config.ETLConfig
}

func NewBackfillService(store BulkComplaintStore, nhtsaCfg config.NHTSAConfig, etlCfg config.ETLConfig) *BackfillService {
	return &BackfillService{store: store, nhtsaCfg: nhtsaCfg, etlCfg: etlCfg}
}

func (s *BackfillService) Run() error {
	localPath, err := nhtsa.DownloadComplaintFile(s.nhtsaCfg, s.etlCfg.DataDir)
	if err != nil {
		return fmt.Errorf("flat file download failed: %w", err)
	}

	file, err := os.Open(localPath)
	if err != nil {
		return fmt.Errorf("failed to open downloaded flat file %s: %w", localPath, err)
	}
	defer file.Close()

	records, skipped, err := nhtsa.ParseComplaintFile(file)
	if err != nil {
		return fmt.Errorf("flat file parse failed: %w", err)
	}
	if skipped > 0 {
		log.Printf("WARN Service: Backfill skipped %d malformed flat file rows", skipped)
	}

	written, err := s.store.BulkInsertComplaints(records)
	if err != nil {
		return fmt.Errorf("flat file load failed: %w", err)
	}
	log.Printf("Service: Backfill complete, %d of %d rows written", written, len(records))
	return nil
}
