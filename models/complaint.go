// backend/models/complaint.go
package models

// ComplaintRecord is one consumer complaint as stored in the complaints table.
// The ODI number is assigned by NHTSA and is the identity key; a record never
// changes once ingested.
type ComplaintRecord struct {
	ODINumber string `db:"odi_number"`
	Make      string `db:"make"`
	Model     string `db:"model"`
	Year      string `db:"model_year"` // NHTSA publishes years as text ("9999" = unknown)
	Crash     bool   `db:"crash"`
	Fire      bool   `db:"fire"`
	Injuries  int    `db:"injuries"`
	Deaths    int    `db:"deaths"`
	Component string `db:"component"`
	Summary   string `db:"summary"`
	FiledDate string `db:"filed_date"` // YYYYMMDD as published
}

// RecallRecord is one recall campaign as stored in the recalls table.
// Identity key is the NHTSA campaign number; immutable once ingested.
type RecallRecord struct {
	CampaignNumber     string `db:"campaign_number"`
	Make               string `db:"make"`
	Model              string `db:"model"`
	Year               string `db:"model_year"`
	Component          string `db:"component"`
	DefectSummary      string `db:"defect_summary"`
	ReportReceivedDate string `db:"report_received_date"`
	PotentialUnits     int    `db:"potential_units"`
}

// TargetVehicle is a (make, model, year) group selected for fetching, with the
// complaint volume that ranked it.
type TargetVehicle struct {
	Make           string
	Model          string
	Year           string
	ComplaintCount int
}
