// backend/services/state.go
package services

import (
	"encoding/json"
	"fmt"
	"sort"
)

// StateStore is the durable key/value bookkeeping used by the ETL stages:
// seen-identifier sets, last-run timestamps, counters.
type StateStore interface {
	GetState(key string) (string, bool, error)
	SetState(key, value string) error
}

// etl_state keys. One writer per key per run; concurrent runs are serialized
// by the external scheduler.
const (
	stateSeenODIs           = "seen_odi_numbers"
	stateSeenCampaigns      = "seen_campaign_numbers"
	stateLastComplaintFetch = "last_complaint_fetch"
	stateLastRecallFetch    = "last_recall_fetch"
	stateTotalRecallsLoaded = "total_recalls_loaded"
)

// loadSeenSet reads a serialized identifier set; an absent key is an empty set.
func loadSeenSet(state StateStore, key string) (map[string]bool, error) {
	raw, ok, err := state.GetState(key)
	if err != nil {
		return nil, fmt.Errorf("failed to load seen-set %s: %w", key, err)
	}
	seen := make(map[string]bool)
	if !ok || raw == "" {
		return seen, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, fmt.Errorf("failed to decode seen-set %s: %w", key, err)
	}
	for _, id := range ids {
		seen[id] = true
	}
	return seen, nil
}

// saveSeenSet writes the set back as a sorted JSON list so successive runs
// produce identical serializations for identical sets.
func saveSeenSet(state StateStore, key string, seen map[string]bool) error {
	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode seen-set %s: %w", key, err)
	}
	if err := state.SetState(key, string(data)); err != nil {
		return fmt.Errorf("failed to save seen-set %s: %w", key, err)
	}
	return nil
}
