package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"plugmon/internal/models"
)

// TelemetryRepository persists poll samples and serves the rollup queries.
type TelemetryRepository struct {
	db *sql.DB
}

// NewTelemetryRepository returns repository.
func NewTelemetryRepository(db *sql.DB) *TelemetryRepository {
	return &TelemetryRepository{db: db}
}

// HourlyAvg is one (hour bucket, code) average within a day window.
type HourlyAvg struct {
	Hour int
	Code string
	Avg  float64
}

// DailyAvg is one (local calendar date, code) average.
type DailyAvg struct {
	Date string
	Code string
	Avg  float64
}

// ConsumptionRow is one qualifying sample for the energy integral, with the
// previous qualifying timestamp resolved by the store's window function.
type ConsumptionRow struct {
	RecordedAt time.Time
	PrevAt     sql.NullTime
	PowerRaw   float64
}

// Insert appends a sample. Samples are never updated or deleted.
func (r *TelemetryRepository) Insert(ctx context.Context, sample *models.TelemetrySample) error {
	status, err := json.Marshal(sample.Status)
	if err != nil {
		return err
	}

	const query = `
		INSERT INTO telemetry_samples (recorded_at, status)
		VALUES ($1, $2)
		RETURNING id
	`
	return r.db.QueryRowContext(ctx, query, sample.RecordedAt.UTC(), status).Scan(&sample.ID)
}

// HourlyAverages unwinds the status arrays of samples in [from, to) and averages
// each electrical code per whole hour elapsed since the window start.
func (r *TelemetryRepository) HourlyAverages(ctx context.Context, from, to time.Time) ([]HourlyAvg, error) {
	const query = `
		SELECT bucket, code, AVG(val)
		FROM (
			SELECT FLOOR(EXTRACT(EPOCH FROM (s.recorded_at - $1)) / 3600)::int AS bucket,
			       e->>'code' AS code,
			       (e->>'value')::double precision AS val
			FROM telemetry_samples s
			CROSS JOIN LATERAL jsonb_array_elements(s.status) e
			WHERE s.recorded_at >= $1 AND s.recorded_at < $2
			  AND e->>'code' IN ('cur_current', 'cur_voltage', 'cur_power')
		) t
		GROUP BY bucket, code
	`
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []HourlyAvg
	for rows.Next() {
		var avg HourlyAvg
		if err := rows.Scan(&avg.Hour, &avg.Code, &avg.Avg); err != nil {
			return nil, err
		}
		result = append(result, avg)
	}
	return result, rows.Err()
}

// DailyAverages buckets samples in [from, to) by local calendar date, where local
// time is UTC shifted by offsetMinutes. Fixed-offset zones stay exact this way.
func (r *TelemetryRepository) DailyAverages(ctx context.Context, from, to time.Time, offsetMinutes int) ([]DailyAvg, error) {
	const query = `
		SELECT bucket, code, AVG(val)
		FROM (
			SELECT to_char(s.recorded_at + make_interval(mins => $3), 'YYYY-MM-DD') AS bucket,
			       e->>'code' AS code,
			       (e->>'value')::double precision AS val
			FROM telemetry_samples s
			CROSS JOIN LATERAL jsonb_array_elements(s.status) e
			WHERE s.recorded_at >= $1 AND s.recorded_at < $2
			  AND e->>'code' IN ('cur_current', 'cur_voltage', 'cur_power')
		) t
		GROUP BY bucket, code
	`
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC(), offsetMinutes)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []DailyAvg
	for rows.Next() {
		var avg DailyAvg
		if err := rows.Scan(&avg.Date, &avg.Code, &avg.Avg); err != nil {
			return nil, err
		}
		result = append(result, avg)
	}
	return result, rows.Err()
}

// ConsumptionRows returns samples in [from, to) where the switch was on and a
// power reading is present, ordered ascending, each carrying the previous
// qualifying timestamp via LAG.
func (r *TelemetryRepository) ConsumptionRows(ctx context.Context, from, to time.Time) ([]ConsumptionRow, error) {
	const query = `
		WITH readings AS (
			SELECT s.recorded_at,
			       (SELECT (e->>'value')::double precision
			          FROM jsonb_array_elements(s.status) e
			         WHERE e->>'code' = 'cur_power'
			         LIMIT 1) AS power_raw,
			       COALESCE((SELECT (e->>'value')::boolean
			          FROM jsonb_array_elements(s.status) e
			         WHERE e->>'code' = 'switch_1'
			         LIMIT 1), false) AS switched_on
			FROM telemetry_samples s
			WHERE s.recorded_at >= $1 AND s.recorded_at < $2
		)
		SELECT recorded_at,
		       LAG(recorded_at) OVER (ORDER BY recorded_at) AS prev_at,
		       power_raw
		FROM readings
		WHERE switched_on AND power_raw IS NOT NULL
		ORDER BY recorded_at
	`
	rows, err := r.db.QueryContext(ctx, query, from.UTC(), to.UTC())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ConsumptionRow
	for rows.Next() {
		var row ConsumptionRow
		if err := rows.Scan(&row.RecordedAt, &row.PrevAt, &row.PowerRaw); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}
