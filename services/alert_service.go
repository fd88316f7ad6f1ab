// backend/services/alert_service.go
package services

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// AlertOutcome is the terminal state of one alert evaluation.
type AlertOutcome int

const (
	NoChange AlertOutcome = iota
	ChangeDetected
	Notified
)

func (o AlertOutcome) String() string {
	switch o {
	case NoChange:
		return "NO_CHANGE"
	case ChangeDetected:
		return "CHANGE_DETECTED"
	case Notified:
		return "NOTIFIED"
	}
	return "UNKNOWN"
}

// RiskReader selects the qualifying critical vehicles from the derived risk
// table. Both queries order deterministically; that ordering is the canonical
// payload ordering and feeds the hash.
type RiskReader interface {
	ZeroRecallVehicles(limit int) ([]models.CriticalVehicle, error)
	RatioRiskVehicles(threshold float64, limit int) ([]models.CriticalVehicle, error)
}

// AlertStateStore persists the payload hash of the last delivered notification.
type AlertStateStore interface {
	GetAlertHash(alertName string) (string, bool, error)
	SetAlertHash(alertName, hash string) error
}

// Mailer delivers one notification; a nil error is the delivery confirmation.
type Mailer interface {
	Send(subject, body string) error
}

const (
	zeroRecallLimit = 5
	ratioRiskLimit  = 10

	alertSubject = "NHTSA Safety Alert: Vehicles Requiring Immediate Review"
)

// AlertService notifies on material change in the critical-vehicle set.
// The stored hash is only advanced after confirmed delivery, so a failed send
// re-alerts on the next run (at-least-once, never at-most-once).
type AlertService struct {
	store  RiskReader
	state  AlertStateStore
	mailer Mailer // nil when credentials are absent; notification is skipped
	cfg    config.AlertConfig
	now    func() time.Time
}

func NewAlertService(store RiskReader, state AlertStateStore, mailer Mailer, cfg config.AlertConfig) *AlertService {
	return &AlertService{store: store, state: state, mailer: mailer, cfg: cfg, now: time.Now}
}

// Run evaluates the alert once. Store failures return an error; delivery
// failures are absorbed and leave the state at CHANGE_DETECTED.
func (s *AlertService) Run() (AlertOutcome, error) {
	zeroRecall, err := s.store.ZeroRecallVehicles(zeroRecallLimit)
	if err != nil {
		return NoChange, fmt.Errorf("failed to select zero-recall vehicles: %w", err)
	}
	ratioRisk, err := s.store.RatioRiskVehicles(s.cfg.RatioThreshold, ratioRiskLimit)
	if err != nil {
		return NoChange, fmt.Errorf("failed to select ratio-risk vehicles: %w", err)
	}

	if len(zeroRecall) == 0 && len(ratioRisk) == 0 {
		log.Println("Service: No critical risks detected")
		return NoChange, nil
	}

	payload := make([]models.CriticalVehicle, 0, len(zeroRecall)+len(ratioRisk))
	payload = append(payload, zeroRecall...)
	payload = append(payload, ratioRisk...)
	digest := hashPayload(payload)

	last, ok, err := s.state.GetAlertHash(s.cfg.Name)
	if err != nil {
		return NoChange, fmt.Errorf("failed to read alert state: %w", err)
	}
	if ok && last == digest {
		log.Println("Service: No change in alert state")
		return NoChange, nil
	}

	if s.mailer == nil {
		log.Println("WARN Service: Alert credentials not set, notification skipped")
		return ChangeDetected, nil
	}

	if err := s.mailer.Send(alertSubject, s.formatBody(zeroRecall, ratioRisk)); err != nil {
		log.Printf("ERROR Service: Alert delivery failed, will re-alert next run: %v", err)
		return ChangeDetected, nil
	}

	if err := s.state.SetAlertHash(s.cfg.Name, digest); err != nil {
		// Delivered but unrecorded: the next run may duplicate the alert.
		return Notified, fmt.Errorf("failed to persist alert hash after delivery: %w", err)
	}
	log.Println("Service: Alert sent and state updated")
	return Notified, nil
}

// canonicalPayload serializes the qualifying vehicles in selection order.
// Ordering is significant: the same tuples in a different order hash
// differently and trigger a re-alert.
func canonicalPayload(rows []models.CriticalVehicle) string {
	parts := make([]string, len(rows))
	for i, r := range rows {
		parts[i] = fmt.Sprintf("%s-%s-%s-%s-%s", r.Make, r.Model, r.Year, r.Value, r.Tag)
	}
	return strings.Join(parts, "|")
}

func hashPayload(rows []models.CriticalVehicle) string {
	sum := sha256.Sum256([]byte(canonicalPayload(rows)))
	return hex.EncodeToString(sum[:])
}

func (s *AlertService) formatBody(zeroRecall, ratioRisk []models.CriticalVehicle) string {
	var b strings.Builder
	b.WriteString("NHTSA VEHICLE SAFETY RISK ALERT\n\n")

	if len(zeroRecall) > 0 {
		b.WriteString("ZERO-RECALL HIGH-RISK VEHICLES (IMMEDIATE ATTENTION)\n")
		for _, v := range zeroRecall {
			fmt.Fprintf(&b, "  * %s %s %s: %s complaints, zero recalls\n", v.Make, v.Model, v.Year, v.Value)
		}
		b.WriteString("\n")
	}

	if len(ratioRisk) > 0 {
		b.WriteString("EXTREME COMPLAINT-TO-RECALL IMBALANCE\n")
		for _, v := range ratioRisk {
			fmt.Fprintf(&b, "  * %s %s %s: %s complaints per recall\n", v.Make, v.Model, v.Year, v.Value)
		}
		b.WriteString("\n")
	}

	if s.cfg.DashboardURL != "" {
		fmt.Fprintf(&b, "Live dashboard: %s\n", s.cfg.DashboardURL)
	}
	fmt.Fprintf(&b, "Generated: %s\n", s.now().UTC().Format("2006-01-02 15:04"))
	b.WriteString("Source: NHTSA Complaints & Recall APIs\n")
	return b.String()
}
