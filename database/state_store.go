// backend/database/state_store.go
package database

import (
	"database/sql"
	"fmt"
)

// ETL bookkeeping lives in a generic key/value table: seen-identifier sets,
// last-run timestamps, counters. One row per key, last writer wins.

// GetState returns the value for a key and whether the key exists.
func (s *Store) GetState(key string) (string, bool, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM etl_state WHERE `key` = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read etl_state key %s: %w", key, err)
	}
	return value, true, nil
}

// SetState upserts a key: insert if absent, else overwrite value and timestamp.
func (s *Store) SetState(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO etl_state (`+"`key`"+`, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value), updated_at = CURRENT_TIMESTAMP
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to upsert etl_state key %s: %w", key, err)
	}
	return nil
}

// GetAlertHash returns the payload hash of the last successfully delivered
// notification for an alert, and whether any prior state exists.
func (s *Store) GetAlertHash(alertName string) (string, bool, error) {
	var hash string
	err := s.db.QueryRow(
		"SELECT last_payload_hash FROM alert_state WHERE alert_name = ?", alertName,
	).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read alert_state for %s: %w", alertName, err)
	}
	return hash, true, nil
}

// SetAlertHash upserts the delivered-payload hash for an alert. Callers must
// only invoke this after confirmed delivery.
func (s *Store) SetAlertHash(alertName, hash string) error {
	_, err := s.db.Exec(`
		INSERT INTO alert_state (alert_name, last_payload_hash) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE
			last_payload_hash = VALUES(last_payload_hash),
			updated_at = CURRENT_TIMESTAMP
	`, alertName, hash)
	if err != nil {
		return fmt.Errorf("failed to upsert alert_state for %s: %w", alertName, err)
	}
	return nil
}
