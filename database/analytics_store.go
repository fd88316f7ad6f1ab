// backend/database/analytics_store.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/roadsafety/silent-recall/backend/config"
	"github.com/roadsafety/silent-recall/backend/models"
)

// Derived tables rebuilt wholesale on every refresh. Order matters only for
// log readability; the swap renames all of them in one statement.
var derivedTables = []string{
	"vehicle_risk_scores",
	"component_analysis",
	"yearly_trends",
	"top_recalled_vehicles",
	"repeat_offenders",
	"component_cost_impact",
}

// DDL per derived table. The %s is the table name so the same definition
// serves the live table and its _staging twin.
var derivedTableDDL = map[string]string{
	"vehicle_risk_scores": `CREATE TABLE IF NOT EXISTS %s (
		make             VARCHAR(64)  NOT NULL,
		model            VARCHAR(64)  NOT NULL,
		model_year       VARCHAR(8)   NOT NULL,
		total_complaints INT          NOT NULL,
		total_recalls    INT          NOT NULL,
		risk_ratio       DOUBLE       NULL,
		risk_category    VARCHAR(16)  NOT NULL,
		PRIMARY KEY (make, model, model_year)
	)`,
	"component_analysis": `CREATE TABLE IF NOT EXISTS %s (
		component        TEXT         NOT NULL,
		total_complaints INT          NOT NULL,
		crash_related    INT          NOT NULL,
		fire_related     INT          NOT NULL,
		total_injuries   INT          NOT NULL,
		total_deaths     INT          NOT NULL
	)`,
	"yearly_trends": `CREATE TABLE IF NOT EXISTS %s (
		model_year       VARCHAR(8)   NOT NULL,
		total_complaints INT          NOT NULL,
		crashes          INT          NOT NULL,
		fires            INT          NOT NULL,
		injuries         INT          NOT NULL,
		deaths           INT          NOT NULL,
		PRIMARY KEY (model_year)
	)`,
	"top_recalled_vehicles": `CREATE TABLE IF NOT EXISTS %s (
		make                 VARCHAR(64) NOT NULL,
		model                VARCHAR(64) NOT NULL,
		model_year           VARCHAR(8)  NOT NULL,
		recall_count         INT         NOT NULL,
		total_units_affected BIGINT      NOT NULL,
		PRIMARY KEY (make, model, model_year)
	)`,
	"repeat_offenders": `CREATE TABLE IF NOT EXISTS %s (
		make             VARCHAR(64)  NOT NULL,
		model            VARCHAR(64)  NOT NULL,
		years_in_top10   INT          NOT NULL,
		total_complaints INT          NOT NULL,
		problem_years    VARCHAR(255) NOT NULL,
		PRIMARY KEY (make, model)
	)`,
	"component_cost_impact": `CREATE TABLE IF NOT EXISTS %s (
		component                TEXT         NOT NULL,
		total_complaints         INT          NOT NULL,
		crash_count              INT          NOT NULL,
		total_injuries           INT          NOT NULL,
		estimated_cost           BIGINT       NOT NULL,
		savings_if_reduced_10pct BIGINT       NOT NULL
	)`,
}

// Synthetic cost weights: per complaint, per crash-involved complaint, per injury.
const (
	costPerComplaint = 5000
	costPerCrash     = 50000
	costPerInjury    = 100000
)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

// VehicleAggregates groups raw complaints by (make, model, year) within the
// configured year range and volume floor, joined with recall counts. The
// caller computes ratio and category; this is the only input to the risk
// score table.
func (s *Store) VehicleAggregates(cfg config.ETLConfig) ([]models.VehicleRiskScore, error) {
	rows, err := s.db.Query(`
		SELECT c.make, c.model, c.model_year,
		       COUNT(*) AS total_complaints,
		       COALESCE(r.recall_count, 0) AS total_recalls
		FROM complaints c
		LEFT JOIN (
			SELECT make, model, model_year, COUNT(*) AS recall_count
			FROM recalls
			GROUP BY make, model, model_year
		) r ON r.make = c.make AND r.model = c.model AND r.model_year = c.model_year
		WHERE c.model_year BETWEEN ? AND ?
		GROUP BY c.make, c.model, c.model_year, r.recall_count
		HAVING COUNT(*) > ?
		ORDER BY total_complaints DESC
	`, cfg.YearStart, cfg.YearEnd, cfg.MinComplaints)
	if err != nil {
		return nil, fmt.Errorf("failed to query vehicle aggregates: %w", err)
	}
	defer rows.Close()

	var scores []models.VehicleRiskScore
	for rows.Next() {
		var sc models.VehicleRiskScore
		if err := rows.Scan(&sc.Make, &sc.Model, &sc.Year, &sc.TotalComplaints, &sc.TotalRecalls); err != nil {
			return nil, fmt.Errorf("failed to scan vehicle aggregate row: %w", err)
		}
		scores = append(scores, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating vehicle aggregate rows: %w", err)
	}
	return scores, nil
}

// RebuildDerived stages every derived table into a _staging twin and swaps all
// of them into place with a single RENAME TABLE. MySQL DDL commits implicitly,
// so the staging build itself is not transactional; atomicity against readers
// comes from the one-statement rename.
func (s *Store) RebuildDerived(cfg config.ETLConfig, scores []models.VehicleRiskScore) error {
	for _, name := range derivedTables {
		for _, stmt := range stagingSetup(name) {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to prepare staging for %s: %w", name, err)
			}
		}
	}

	if err := s.loadRiskScoreStaging(scores); err != nil {
		return err
	}
	if err := s.buildAggregateStaging(cfg); err != nil {
		return err
	}

	// Live tables are guaranteed by InitSchema, so the rename never dangles.
	var renames []string
	for _, name := range derivedTables {
		renames = append(renames,
			fmt.Sprintf("%s TO %s_old", name, name),
			fmt.Sprintf("%s_staging TO %s", name, name),
		)
	}
	if _, err := s.db.Exec("RENAME TABLE " + strings.Join(renames, ", ")); err != nil {
		return fmt.Errorf("failed to swap derived tables: %w", err)
	}
	for _, name := range derivedTables {
		if _, err := s.db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s_old", name)); err != nil {
			log.Printf("WARN Database: failed to drop %s_old after swap: %v", name, err)
		}
	}

	log.Printf("Database: Refreshed %d derived tables (%d risk scores).", len(derivedTables), len(scores))
	return nil
}

// stagingSetup returns the statements that reset one derived table's staging
// area. A leftover _old table from a crashed run or a failed post-swap drop is
// cleared here too; otherwise the next RENAME would hit "table already exists"
// and every refresh after an interrupted one would fail.
func stagingSetup(name string) []string {
	return []string{
		fmt.Sprintf("DROP TABLE IF EXISTS %s_old", name),
		fmt.Sprintf("DROP TABLE IF EXISTS %s_staging", name),
		fmt.Sprintf(derivedTableDDL[name], name+"_staging"),
	}
}

func (s *Store) loadRiskScoreStaging(scores []models.VehicleRiskScore) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction for risk scores: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO vehicle_risk_scores_staging (
			make, model, model_year, total_complaints, total_recalls, risk_ratio, risk_category
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare risk score insert statement: %w", err)
	}
	defer stmt.Close()

	for _, sc := range scores {
		var ratio sql.NullFloat64
		if sc.TotalRecalls > 0 {
			ratio = sql.NullFloat64{Float64: sc.RiskRatio, Valid: true}
		}
		if _, err := stmt.Exec(sc.Make, sc.Model, sc.Year,
			sc.TotalComplaints, sc.TotalRecalls, ratio, sc.Category); err != nil {
			return fmt.Errorf("failed to insert risk score for %s %s %s: %w", sc.Make, sc.Model, sc.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit risk score staging load: %w", err)
	}
	return nil
}

func (s *Store) buildAggregateStaging(cfg config.ETLConfig) error {
	excluded := placeholders(len(cfg.ExcludedMakes))
	makeArgs := make([]interface{}, 0, len(cfg.ExcludedMakes))
	for _, m := range cfg.ExcludedMakes {
		makeArgs = append(makeArgs, m)
	}
	yearArgs := []interface{}{cfg.YearStart, cfg.YearEnd}

	type staged struct {
		name  string
		query string
		args  []interface{}
	}
	builds := []staged{
		{
			name: "component_analysis",
			query: fmt.Sprintf(`
				INSERT INTO component_analysis_staging
				SELECT
					component,
					COUNT(*) AS total_complaints,
					SUM(CASE WHEN crash = 'Y' THEN 1 ELSE 0 END) AS crash_related,
					SUM(CASE WHEN fire = 'Y' THEN 1 ELSE 0 END) AS fire_related,
					SUM(injuries) AS total_injuries,
					SUM(deaths) AS total_deaths
				FROM complaints
				WHERE model_year BETWEEN ? AND ?
				  AND make NOT IN (%s)
				GROUP BY component
				ORDER BY total_complaints DESC
				LIMIT 50`, excluded),
			args: append(append([]interface{}{}, yearArgs...), makeArgs...),
		},
		{
			name: "yearly_trends",
			query: `
				INSERT INTO yearly_trends_staging
				SELECT
					model_year,
					COUNT(*) AS total_complaints,
					SUM(CASE WHEN crash = 'Y' THEN 1 ELSE 0 END) AS crashes,
					SUM(CASE WHEN fire = 'Y' THEN 1 ELSE 0 END) AS fires,
					SUM(injuries) AS injuries,
					SUM(deaths) AS deaths
				FROM complaints
				WHERE model_year BETWEEN ? AND ?
				GROUP BY model_year
				ORDER BY model_year`,
			args: yearArgs,
		},
		{
			name: "top_recalled_vehicles",
			query: `
				INSERT INTO top_recalled_vehicles_staging
				SELECT
					make, model, model_year,
					COUNT(*) AS recall_count,
					SUM(potential_units) AS total_units_affected
				FROM recalls
				WHERE model_year BETWEEN ? AND ?
				GROUP BY make, model, model_year
				HAVING COUNT(*) > 1
				ORDER BY recall_count DESC
				LIMIT 100`,
			args: yearArgs,
		},
		{
			name: "repeat_offenders",
			query: `
				INSERT INTO repeat_offenders_staging
				WITH yearly_aggregates AS (
					SELECT make, model, model_year, COUNT(*) AS complaints
					FROM complaints
					WHERE model_year BETWEEN ? AND ?
					GROUP BY make, model, model_year
				),
				yearly_rankings AS (
					SELECT make, model, model_year, complaints,
						ROW_NUMBER() OVER (
							PARTITION BY model_year
							ORDER BY complaints DESC
						) AS rank_in_year
					FROM yearly_aggregates
				)
				SELECT
					make, model,
					COUNT(DISTINCT model_year) AS years_in_top10,
					SUM(complaints) AS total_complaints,
					GROUP_CONCAT(model_year ORDER BY model_year SEPARATOR ',') AS problem_years
				FROM yearly_rankings
				WHERE rank_in_year <= 10
				GROUP BY make, model
				HAVING COUNT(DISTINCT model_year) >= 3
				ORDER BY years_in_top10 DESC, total_complaints DESC`,
			args: yearArgs,
		},
		{
			name: "component_cost_impact",
			query: fmt.Sprintf(`
				INSERT INTO component_cost_impact_staging
				WITH component_costs AS (
					SELECT
						component,
						COUNT(*) AS total_complaints,
						SUM(CASE WHEN crash = 'Y' THEN 1 ELSE 0 END) AS crash_count,
						SUM(injuries) AS total_injuries,
						CAST(
							COUNT(*) * %d
							+ SUM(CASE WHEN crash = 'Y' THEN 1 ELSE 0 END) * %d
							+ SUM(injuries) * %d
						AS SIGNED) AS estimated_cost
					FROM complaints
					WHERE model_year BETWEEN ? AND ?
					  AND make NOT IN (%s)
					GROUP BY component
				)
				SELECT
					component, total_complaints, crash_count, total_injuries,
					estimated_cost,
					CAST(estimated_cost * 0.10 AS SIGNED) AS savings_if_reduced_10pct
				FROM component_costs
				ORDER BY estimated_cost DESC
				LIMIT 50`, costPerComplaint, costPerCrash, costPerInjury, excluded),
			args: append(append([]interface{}{}, yearArgs...), makeArgs...),
		},
	}

	for _, b := range builds {
		if _, err := s.db.Exec(b.query, b.args...); err != nil {
			return fmt.Errorf("failed to build %s staging: %w", b.name, err)
		}
	}
	return nil
}

// TopRiskVehicles selects ingestion targets from the current risk score table:
// the highest-complaint vehicles inside the year range and above the floor.
func (s *Store) TopRiskVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error) {
	rows, err := s.db.Query(`
		SELECT make, model, model_year, total_complaints
		FROM vehicle_risk_scores
		WHERE model_year BETWEEN ? AND ?
		  AND total_complaints > ?
		ORDER BY total_complaints DESC, make, model, model_year
		LIMIT ?
	`, cfg.YearStart, cfg.YearEnd, cfg.MinComplaints, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top risk vehicles: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

// TopComplaintVehicles ranks vehicles straight off the raw complaints table.
// Used for recall targeting so it works even before the first analytics refresh.
func (s *Store) TopComplaintVehicles(cfg config.ETLConfig, limit int) ([]models.TargetVehicle, error) {
	query := fmt.Sprintf(`
		SELECT make, model, model_year, COUNT(*) AS complaint_count
		FROM complaints
		WHERE model_year BETWEEN ? AND ?
		  AND make NOT IN (%s)
		  AND model != 'UNKNOWN'
		GROUP BY make, model, model_year
		HAVING COUNT(*) > ?
		ORDER BY complaint_count DESC, make, model, model_year
		LIMIT ?
	`, placeholders(len(cfg.ExcludedMakes)))

	args := []interface{}{cfg.YearStart, cfg.YearEnd}
	for _, m := range cfg.ExcludedMakes {
		args = append(args, m)
	}
	args = append(args, cfg.MinComplaints, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query top complaint vehicles: %w", err)
	}
	defer rows.Close()
	return scanTargets(rows)
}

func scanTargets(rows *sql.Rows) ([]models.TargetVehicle, error) {
	var targets []models.TargetVehicle
	for rows.Next() {
		var t models.TargetVehicle
		if err := rows.Scan(&t.Make, &t.Model, &t.Year, &t.ComplaintCount); err != nil {
			return nil, fmt.Errorf("failed to scan target vehicle row: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating target vehicle rows: %w", err)
	}
	return targets, nil
}

// ZeroRecallVehicles returns HIGH/CRITICAL vehicles with zero recalls, highest
// complaint volume first. The ORDER BY is the canonical alert ordering; ties
// are broken on the full key so the payload hash is deterministic.
func (s *Store) ZeroRecallVehicles(limit int) ([]models.CriticalVehicle, error) {
	rows, err := s.db.Query(`
		SELECT make, model, model_year, total_complaints
		FROM vehicle_risk_scores
		WHERE total_recalls = 0
		  AND risk_category IN ('HIGH', 'CRITICAL')
		ORDER BY total_complaints DESC, make, model, model_year
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query zero-recall vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.CriticalVehicle
	for rows.Next() {
		var v models.CriticalVehicle
		var complaints int
		if err := rows.Scan(&v.Make, &v.Model, &v.Year, &complaints); err != nil {
			return nil, fmt.Errorf("failed to scan zero-recall row: %w", err)
		}
		v.Value = strconv.Itoa(complaints)
		v.Tag = models.TagZeroRecall
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating zero-recall rows: %w", err)
	}
	return out, nil
}

// RatioRiskVehicles returns vehicles whose complaints-per-recall ratio meets
// the threshold, worst first, ratio rounded to one decimal.
func (s *Store) RatioRiskVehicles(threshold float64, limit int) ([]models.CriticalVehicle, error) {
	rows, err := s.db.Query(`
		SELECT make, model, model_year, ROUND(risk_ratio, 1)
		FROM vehicle_risk_scores
		WHERE total_recalls > 0
		  AND risk_ratio >= ?
		ORDER BY risk_ratio DESC, make, model, model_year
		LIMIT ?
	`, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query ratio-risk vehicles: %w", err)
	}
	defer rows.Close()

	var out []models.CriticalVehicle
	for rows.Next() {
		var v models.CriticalVehicle
		var ratio float64
		if err := rows.Scan(&v.Make, &v.Model, &v.Year, &ratio); err != nil {
			return nil, fmt.Errorf("failed to scan ratio-risk row: %w", err)
		}
		v.Value = strconv.FormatFloat(ratio, 'f', 1, 64)
		v.Tag = models.TagRatioRisk
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ratio-risk rows: %w", err)
	}
	return out, nil
}
