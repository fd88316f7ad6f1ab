// backend/nhtsa/client.go
package nhtsa

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// ParseError marks a source record that failed validated parsing at the
// ingestion boundary. Such rows are rejected, never propagated downstream.
type ParseError struct {
	Source string
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s record rejected: field %s: %s", e.Source, e.Field, e.Reason)
}

// Client queries the NHTSA complaint and recall APIs for one vehicle at a
// time. Complaint lookups are best-effort single shots; recall lookups retry
// a bounded number of times with a fixed pause.
type Client struct {
	complaintURL string
	recallURL    string
	httpClient   *http.Client
	maxRetries   int
	retryWait    time.Duration
}

func NewClient(cfg config.NHTSAConfig, timeout time.Duration) *Client {
	return &Client{
		complaintURL: cfg.ComplaintAPI,
		recallURL:    cfg.RecallAPI,
		httpClient:   &http.Client{Timeout: timeout},
		maxRetries:   3,
		retryWait:    2 * time.Second,
	}
}

type complaintResult struct {
	ODINumber          json.Number `json:"odiNumber"`
	Crash              bool        `json:"crash"`
	Fire               bool        `json:"fire"`
	NumberOfInjuries   int         `json:"numberOfInjuries"`
	NumberOfDeaths     int         `json:"numberOfDeaths"`
	Components         string      `json:"components"`
	Summary            string      `json:"summary"`
	DateComplaintFiled string      `json:"dateComplaintFiled"`
}

func (r complaintResult) record(vehicleMake, model, year string) (models.ComplaintRecord, error) {
	odi := r.ODINumber.String()
	if odi == "" {
		return models.ComplaintRecord{}, &ParseError{Source: "complaint", Field: "odiNumber", Reason: "missing"}
	}
	return models.ComplaintRecord{
		ODINumber: odi,
		Make:      vehicleMake,
		Model:     model,
		Year:      year,
		Crash:     r.Crash,
		Fire:      r.Fire,
		Injuries:  r.NumberOfInjuries,
		Deaths:    r.NumberOfDeaths,
		Component: r.Components,
		Summary:   r.Summary,
		FiledDate: r.DateComplaintFiled,
	}, nil
}

type recallResult struct {
	CampaignNumber     string      `json:"NHTSACampaignNumber"`
	Make               string      `json:"Make"`
	Model              string      `json:"Model"`
	ModelYear          json.Number `json:"ModelYear"`
	Component          string      `json:"Component"`
	Summary            string      `json:"Summary"`
	ReportReceivedDate string      `json:"ReportReceivedDate"`
	PotentialUnits     json.Number `json:"PotentialUnitsAffected"`
}

func (r recallResult) record() (models.RecallRecord, error) {
	if r.CampaignNumber == "" {
		return models.RecallRecord{}, &ParseError{Source: "recall", Field: "NHTSACampaignNumber", Reason: "missing"}
	}
	year := r.ModelYear.String()
	if year == "" {
		year = "9999"
	}
	units := 0
	if v, err := r.PotentialUnits.Int64(); err == nil {
		units = int(v)
	}
	return models.RecallRecord{
		CampaignNumber:     r.CampaignNumber,
		Make:               r.Make,
		Model:              r.Model,
		Year:               year,
		Component:          r.Component,
		DefectSummary:      r.Summary,
		ReportReceivedDate: r.ReportReceivedDate,
		PotentialUnits:     units,
	}, nil
}

func (c *Client) get(base, vehicleMake, model, year string) (*http.Response, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL %s: %w", base, err)
	}
	q := u.Query()
	q.Set("make", vehicleMake)
	q.Set("model", model)
	q.Set("modelYear", year)
	u.RawQuery = q.Encode()

	resp, err := c.httpClient.Get(u.String())
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", u.Host, err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("request to %s returned status %d", u.Host, resp.StatusCode)
	}
	return resp, nil
}

// FetchComplaints queries complaintsByVehicle for one vehicle. Single
// attempt; any transport or status failure is returned for the caller to log
// and skip. Malformed result rows are rejected individually.
func (c *Client) FetchComplaints(vehicleMake, model, year string) ([]models.ComplaintRecord, error) {
	resp, err := c.get(c.complaintURL, vehicleMake, model, year)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var payload struct {
		Results []complaintResult `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode complaint response for %s %s %s: %w", vehicleMake, model, year, err)
	}

	records := make([]models.ComplaintRecord, 0, len(payload.Results))
	for _, res := range payload.Results {
		rec, err := res.record(vehicleMake, model, year)
		if err != nil {
			log.Printf("WARN NHTSA: %v", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FetchRecalls queries recallsByVehicle for one vehicle, retrying a bounded
// number of times with a fixed pause before giving up on the vehicle.
func (c *Client) FetchRecalls(vehicleMake, model, year string) ([]models.RecallRecord, error) {
	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		resp, err := c.get(c.recallURL, vehicleMake, model, year)
		if err != nil {
			lastErr = err
			log.Printf("WARN NHTSA: Recall fetch for %s %s %s failed (attempt %d/%d): %v",
				vehicleMake, model, year, attempt, c.maxRetries, err)
			time.Sleep(c.retryWait)
			continue
		}

		var payload struct {
			Results []recallResult `json:"results"`
		}
		err = json.NewDecoder(resp.Body).Decode(&payload)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to decode recall response: %w", err)
			log.Printf("WARN NHTSA: %v (attempt %d/%d)", lastErr, attempt, c.maxRetries)
			time.Sleep(c.retryWait)
			continue
		}

		records := make([]models.RecallRecord, 0, len(payload.Results))
		for _, res := range payload.Results {
			rec, err := res.record()
			if err != nil {
				log.Printf("WARN NHTSA: %v", err)
				continue
			}
			records = append(records, rec)
		}
		return records, nil
	}
	return nil, fmt.Errorf("recall fetch for %s %s %s exhausted %d retries: %w",
		vehicleMake, model, year, c.maxRetries, lastErr)
}
