// backend/database/schema.go
package database

import (
	"fmt"
	"log"
)

// Raw and state tables are created up front; derived tables are also created
// empty so first-run target selection and the staging swap have something to
// read and rename. Derived table contents are owned by the analytics refresh.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS complaints (
		odi_number   VARCHAR(32)  NOT NULL,
		make         VARCHAR(64)  NOT NULL,
		model        VARCHAR(64)  NOT NULL,
		model_year   VARCHAR(8)   NOT NULL,
		crash        CHAR(1)      NOT NULL DEFAULT 'N',
		fire         CHAR(1)      NOT NULL DEFAULT 'N',
		injuries     INT          NOT NULL DEFAULT 0,
		deaths       INT          NOT NULL DEFAULT 0,
		component    TEXT,
		summary      TEXT,
		filed_date   VARCHAR(16),
		created_at   TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (odi_number)
	)`,
	`CREATE TABLE IF NOT EXISTS recalls (
		campaign_number       VARCHAR(32)  NOT NULL,
		make                  VARCHAR(64)  NOT NULL,
		model                 VARCHAR(64)  NOT NULL,
		model_year            VARCHAR(8)   NOT NULL,
		component             TEXT,
		defect_summary        TEXT,
		report_received_date  VARCHAR(32),
		potential_units       BIGINT       NOT NULL DEFAULT 0,
		created_at            TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (campaign_number)
	)`,
	`CREATE TABLE IF NOT EXISTS etl_state (
		` + "`key`" + `     VARCHAR(128) NOT NULL,
		value       MEDIUMTEXT   NOT NULL,
		updated_at  TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (` + "`key`" + `)
	)`,
	`CREATE TABLE IF NOT EXISTS alert_state (
		alert_name        VARCHAR(128) NOT NULL,
		last_payload_hash VARCHAR(64)  NOT NULL,
		updated_at        TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		PRIMARY KEY (alert_name)
	)`,
}

// InitSchema creates every table the pipeline depends on if it does not exist.
// Safe to run on every start.
func (s *Store) InitSchema() error {
	for _, stmt := range schemaStatements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema table: %w", err)
		}
	}
	for _, name := range derivedTables {
		if _, err := s.db.Exec(fmt.Sprintf(derivedTableDDL[name], name)); err != nil {
			return fmt.Errorf("failed to create derived table %s: %w", name, err)
		}
	}
	log.Println("Database: Schema verified.")
	return nil
}
