// backend/models/risk.go
package models

// Risk categories assigned to a vehicle-year group, ordered by severity.
const (
	RiskCritical = "CRITICAL"
	RiskHigh     = "HIGH"
	RiskMedium   = "MEDIUM"
	RiskLow      = "LOW"
)

// VehicleRiskScore is one row of the derived vehicle_risk_scores table.
// The table is dropped and rebuilt wholesale on every analytics refresh; rows
// are a pure function of the raw complaints and recalls tables.
type VehicleRiskScore struct {
	Make            string
	Model           string
	Year            string
	TotalComplaints int
	TotalRecalls    int
	RiskRatio       float64 // meaningless when TotalRecalls == 0, stored as NULL
	Category        string
}

// AssignRiskCategory maps a complaint/recall volume pair to a risk category.
// Zero-recall vehicles are classified purely by complaint volume (the
// silent-recall pattern); the 10x ratio branch only applies when at least one
// recall exists.
func AssignRiskCategory(complaints, recalls int) string {
	if recalls == 0 {
		switch {
		case complaints > 500:
			return RiskCritical
		case complaints > 200:
			return RiskHigh
		default:
			return RiskLow
		}
	}
	if complaints > recalls*10 {
		return RiskMedium
	}
	return RiskLow
}

// RiskRatio returns complaints per recall and whether the ratio is defined.
// recalls == 0 is the zero-recall branch, not a division.
func RiskRatio(complaints, recalls int) (float64, bool) {
	if recalls == 0 {
		return 0, false
	}
	return float64(complaints) / float64(recalls), true
}

// CriticalVehicle is one qualifying row of an alert payload. Value is the
// already-formatted metric (complaint count or complaints-per-recall ratio) so
// that the canonical payload is deterministic.
type CriticalVehicle struct {
	Make  string
	Model string
	Year  string
	Value string
	Tag   string
}

// Tags for the two alert selection criteria.
const (
	TagZeroRecall = "ZERO_RECALL"
	TagRatioRisk  = "RATIO_RISK"
)
