// Package export writes the run's tables as flat CSV files plus a
// plain-text recommendation report, for consumption by the dashboard and
// other downstream tooling.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"kayakcast/internal/models"
	"kayakcast/internal/score"
	"kayakcast/internal/store"
)

const (
	HistoricalFile      = "historical_hourly_data.csv"
	ForecastFile        = "forecast_data.csv"
	WindowsFile         = "optimal_windows.csv"
	RecommendationsFile = "recommendations.txt"
)

type Exporter struct {
	store  *store.Store
	scorer score.Scorer
}

func NewExporter(st *store.Store, scorer score.Scorer) *Exporter {
	return &Exporter{store: st, scorer: scorer}
}

// WriteAll writes every export file into dir, creating it if needed. Files
// are written with headers even when empty so downstream consumers always
// see a stable schema.
func (e *Exporter) WriteAll(dir string, historyDays int) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output folder: %w", err)
	}

	if err := e.writeHistorical(filepath.Join(dir, HistoricalFile), historyDays); err != nil {
		return fmt.Errorf("write historical: %w", err)
	}
	if err := e.writeForecast(filepath.Join(dir, ForecastFile)); err != nil {
		return fmt.Errorf("write forecast: %w", err)
	}

	windows, err := e.store.GetWindows()
	if err != nil {
		return fmt.Errorf("get windows: %w", err)
	}
	if err := writeWindowsCSV(filepath.Join(dir, WindowsFile), windows); err != nil {
		return fmt.Errorf("write windows: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RecommendationsFile), []byte(Recommendations(windows)), 0o644); err != nil {
		return fmt.Errorf("write recommendations: %w", err)
	}

	return nil
}

func (e *Exporter) writeHistorical(path string, historyDays int) error {
	sites, err := e.store.GetActiveSites()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"datetime", "discharge_cfs", "gage_height_ft", "site_id", "site_name", "kayakability_score"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, site := range sites {
		readings, err := e.store.GetRecentReadings(site.SiteID, historyDays)
		if err != nil {
			return err
		}
		for _, r := range readings {
			var conditions score.Conditions
			discharge, gage := "", ""
			if r.DischargeCFS.Valid {
				v := r.DischargeCFS.Float64
				conditions.DischargeCFS = &v
				discharge = strconv.FormatFloat(v, 'f', 1, 64)
			}
			if r.GageHeightFt.Valid {
				v := r.GageHeightFt.Float64
				conditions.GageHeightFt = &v
				gage = strconv.FormatFloat(v, 'f', 2, 64)
			}

			record := []string{
				r.ObservedAt.UTC().Format(time.RFC3339),
				discharge,
				gage,
				site.SiteID,
				site.Name,
				strconv.Itoa(e.scorer.Score(conditions, site)),
			}
			if err := writer.Write(record); err != nil {
				return err
			}
		}
	}

	return nil
}

func (e *Exporter) writeForecast(path string) error {
	rows, err := e.store.GetAllForecasts()
	if err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"site_id", "site_name", "datetime", "discharge_cfs", "gage_height_ft", "kayakability_score", "forecast_type"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, fr := range rows {
		record := []string{
			fr.SiteID,
			fr.SiteName,
			fr.ForecastAt.UTC().Format(time.RFC3339),
			strconv.FormatFloat(fr.DischargeCFS, 'f', 1, 64),
			strconv.FormatFloat(fr.GageHeightFt, 'f', 2, 64),
			strconv.Itoa(fr.Score),
			fr.ForecastType,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}

func writeWindowsCSV(path string, windows []models.Window) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"site_id", "site_name", "start_time", "end_time", "duration_hours", "avg_score", "min_score", "max_score", "avg_discharge", "avg_gage"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, w := range windows {
		record := []string{
			w.SiteID,
			w.SiteName,
			w.StartTime.UTC().Format(time.RFC3339),
			w.EndTime.UTC().Format(time.RFC3339),
			strconv.Itoa(w.DurationHours),
			strconv.FormatFloat(w.AvgScore, 'f', 1, 64),
			strconv.Itoa(w.MinScore),
			strconv.Itoa(w.MaxScore),
			strconv.FormatFloat(w.AvgDischarge, 'f', 1, 64),
			strconv.FormatFloat(w.AvgGage, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return nil
}
