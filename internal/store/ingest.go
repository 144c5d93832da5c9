package store

import (
	"database/sql"
	"time"
)

// IngestRun represents a single USGS fetch operation for auditing.
type IngestRun struct {
	ID            int64
	StartedAt     time.Time
	FinishedAt    sql.NullTime
	SiteID        sql.NullString
	HTTPStatus    sql.NullInt64
	RecordsParsed sql.NullInt64
	RecordsStored sql.NullInt64
	ParseErrors   sql.NullInt64
	Success       bool
	ErrorMessage  sql.NullString
}

// StartIngestRun creates a new ingest run record and returns it.
func (s *Store) StartIngestRun(siteID string) (*IngestRun, error) {
	run := &IngestRun{
		StartedAt: time.Now().UTC(),
		SiteID:    sql.NullString{String: siteID, Valid: siteID != ""},
	}

	result, err := s.db.Exec(`
		INSERT INTO ingest_runs (started_at, site_id, success)
		VALUES (?, ?, FALSE)
	`, run.StartedAt, run.SiteID)
	if err != nil {
		return nil, err
	}

	run.ID, err = result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return run, nil
}

// CompleteIngestRun updates the ingest run with results.
func (s *Store) CompleteIngestRun(run *IngestRun) error {
	if run == nil {
		return nil
	}

	run.FinishedAt = sql.NullTime{Time: time.Now().UTC(), Valid: true}

	_, err := s.db.Exec(`
		UPDATE ingest_runs SET
			finished_at = ?,
			http_status = ?,
			records_parsed = ?,
			records_stored = ?,
			parse_errors = ?,
			success = ?,
			error_message = ?
		WHERE id = ?
	`, run.FinishedAt, run.HTTPStatus, run.RecordsParsed, run.RecordsStored,
		run.ParseErrors, run.Success, run.ErrorMessage, run.ID)
	return err
}

// RecentIngestRuns returns the most recent ingest runs, newest first.
func (s *Store) RecentIngestRuns(limit int) ([]IngestRun, error) {
	rows, err := s.db.Query(`
		SELECT id, started_at, finished_at, site_id, http_status, records_parsed, records_stored, parse_errors, success, error_message
		FROM ingest_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []IngestRun
	for rows.Next() {
		var run IngestRun
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.SiteID, &run.HTTPStatus,
			&run.RecordsParsed, &run.RecordsStored, &run.ParseErrors, &run.Success, &run.ErrorMessage); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
