package store

import (
	"database/sql"
	"fmt"
	"time"

	"kayakcast/internal/models"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) UpsertSite(site models.Site) error {
	_, err := s.db.Exec(`
		INSERT INTO sites (site_id, name, latitude, longitude, discharge_min, discharge_max, gage_min, gage_max, difficulty, active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			name = excluded.name,
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			discharge_min = excluded.discharge_min,
			discharge_max = excluded.discharge_max,
			gage_min = excluded.gage_min,
			gage_max = excluded.gage_max,
			difficulty = excluded.difficulty,
			active = excluded.active
	`, site.SiteID, site.Name, site.Latitude, site.Longitude, site.DischargeMin, site.DischargeMax,
		site.GageMin, site.GageMax, site.Difficulty, site.Active)
	return err
}

func (s *Store) GetActiveSites() ([]models.Site, error) {
	rows, err := s.db.Query(`
		SELECT site_id, name, latitude, longitude, discharge_min, discharge_max, gage_min, gage_max, difficulty, active
		FROM sites WHERE active = TRUE ORDER BY site_id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sites []models.Site
	for rows.Next() {
		var site models.Site
		if err := rows.Scan(&site.SiteID, &site.Name, &site.Latitude, &site.Longitude,
			&site.DischargeMin, &site.DischargeMax, &site.GageMin, &site.GageMax,
			&site.Difficulty, &site.Active); err != nil {
			return nil, err
		}
		sites = append(sites, site)
	}
	return sites, rows.Err()
}

func (s *Store) GetSite(siteID string) (*models.Site, error) {
	row := s.db.QueryRow(`
		SELECT site_id, name, latitude, longitude, discharge_min, discharge_max, gage_min, gage_max, difficulty, active
		FROM sites WHERE site_id = ?
	`, siteID)

	var site models.Site
	err := row.Scan(&site.SiteID, &site.Name, &site.Latitude, &site.Longitude,
		&site.DischargeMin, &site.DischargeMax, &site.GageMin, &site.GageMax,
		&site.Difficulty, &site.Active)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &site, nil
}

// UpsertReading inserts a reading, replacing any existing reading at the same
// (site_id, observed_at). Duplicate timestamps keep the latest values.
func (s *Store) UpsertReading(r models.Reading) error {
	_, err := s.db.Exec(`
		INSERT INTO readings (site_id, observed_at, discharge_cfs, gage_height_ft, qc_flags)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id, observed_at) DO UPDATE SET
			discharge_cfs = excluded.discharge_cfs,
			gage_height_ft = excluded.gage_height_ft,
			qc_flags = excluded.qc_flags
	`, r.SiteID, r.ObservedAt, r.DischargeCFS, r.GageHeightFt, r.QCFlags)
	return err
}

func (s *Store) GetLatestReading(siteID string) (*models.Reading, error) {
	row := s.db.QueryRow(`
		SELECT id, site_id, observed_at, discharge_cfs, gage_height_ft, qc_flags, created_at
		FROM readings
		WHERE site_id = ?
		ORDER BY observed_at DESC
		LIMIT 1
	`, siteID)

	var r models.Reading
	err := row.Scan(&r.ID, &r.SiteID, &r.ObservedAt, &r.DischargeCFS, &r.GageHeightFt, &r.QCFlags, &r.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// GetReadings returns readings for a site in [start, end], ascending by time.
func (s *Store) GetReadings(siteID string, start, end time.Time) ([]models.Reading, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, observed_at, discharge_cfs, gage_height_ft, qc_flags, created_at
		FROM readings
		WHERE site_id = ? AND observed_at >= ? AND observed_at <= ?
		ORDER BY observed_at ASC
	`, siteID, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

// GetRecentReadings returns the most recent readings for a site, ascending by
// time, limited to the trailing window in days.
func (s *Store) GetRecentReadings(siteID string, days int) ([]models.Reading, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -days)
	rows, err := s.db.Query(`
		SELECT id, site_id, observed_at, discharge_cfs, gage_height_ft, qc_flags, created_at
		FROM readings
		WHERE site_id = ? AND observed_at >= ?
		ORDER BY observed_at ASC
	`, siteID, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanReadings(rows)
}

func scanReadings(rows *sql.Rows) ([]models.Reading, error) {
	var readings []models.Reading
	for rows.Next() {
		var r models.Reading
		if err := rows.Scan(&r.ID, &r.SiteID, &r.ObservedAt, &r.DischargeCFS, &r.GageHeightFt, &r.QCFlags, &r.CreatedAt); err != nil {
			return nil, err
		}
		readings = append(readings, r)
	}
	return readings, rows.Err()
}

// ReplaceForecast atomically replaces the stored forecast for a site with a
// fresh run's rows. Models are rebuilt from scratch every run, so stale rows
// from the previous run must not survive.
func (s *Store) ReplaceForecast(siteID string, forecast []models.ForecastRow) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM forecast_rows WHERE site_id = ?", siteID); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete old forecast: %w", err)
	}

	for _, fr := range forecast {
		if _, err := tx.Exec(`
			INSERT INTO forecast_rows (site_id, site_name, forecast_at, discharge_cfs, gage_height_ft, score, forecast_type, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, fr.SiteID, fr.SiteName, fr.ForecastAt, fr.DischargeCFS, fr.GageHeightFt, fr.Score, fr.ForecastType, fr.GeneratedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert forecast row: %w", err)
		}
	}

	return tx.Commit()
}

func (s *Store) GetForecast(siteID string) ([]models.ForecastRow, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, site_name, forecast_at, discharge_cfs, gage_height_ft, score, forecast_type, generated_at
		FROM forecast_rows
		WHERE site_id = ?
		ORDER BY forecast_at ASC
	`, siteID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanForecastRows(rows)
}

func (s *Store) GetAllForecasts() ([]models.ForecastRow, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, site_name, forecast_at, discharge_cfs, gage_height_ft, score, forecast_type, generated_at
		FROM forecast_rows
		ORDER BY site_id, forecast_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanForecastRows(rows)
}

func scanForecastRows(rows *sql.Rows) ([]models.ForecastRow, error) {
	var forecast []models.ForecastRow
	for rows.Next() {
		var fr models.ForecastRow
		if err := rows.Scan(&fr.ID, &fr.SiteID, &fr.SiteName, &fr.ForecastAt, &fr.DischargeCFS,
			&fr.GageHeightFt, &fr.Score, &fr.ForecastType, &fr.GeneratedAt); err != nil {
			return nil, err
		}
		forecast = append(forecast, fr)
	}
	return forecast, rows.Err()
}

// ReplaceWindows replaces all stored windows with the latest run's results.
// Windows are a derived view over the forecast, so a full rewrite is correct.
func (s *Store) ReplaceWindows(windows []models.Window) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM windows"); err != nil {
		tx.Rollback()
		return fmt.Errorf("delete old windows: %w", err)
	}

	for _, w := range windows {
		if _, err := tx.Exec(`
			INSERT INTO windows (site_id, site_name, start_time, end_time, duration_hours, avg_score, min_score, max_score, avg_discharge, avg_gage, generated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, w.SiteID, w.SiteName, w.StartTime, w.EndTime, w.DurationHours, w.AvgScore,
			w.MinScore, w.MaxScore, w.AvgDischarge, w.AvgGage, w.GeneratedAt); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert window: %w", err)
		}
	}

	return tx.Commit()
}

// GetWindows returns stored windows best-first: average score descending,
// ties broken by earlier start time.
func (s *Store) GetWindows() ([]models.Window, error) {
	rows, err := s.db.Query(`
		SELECT id, site_id, site_name, start_time, end_time, duration_hours, avg_score, min_score, max_score, avg_discharge, avg_gage, generated_at
		FROM windows
		ORDER BY avg_score DESC, start_time ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var windows []models.Window
	for rows.Next() {
		var w models.Window
		if err := rows.Scan(&w.ID, &w.SiteID, &w.SiteName, &w.StartTime, &w.EndTime, &w.DurationHours,
			&w.AvgScore, &w.MinScore, &w.MaxScore, &w.AvgDischarge, &w.AvgGage, &w.GeneratedAt); err != nil {
			return nil, err
		}
		windows = append(windows, w)
	}
	return windows, rows.Err()
}

func (s *Store) CountReadings(siteID string) (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM readings WHERE site_id = ?", siteID).Scan(&count)
	return count, err
}
