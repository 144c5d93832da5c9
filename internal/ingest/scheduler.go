package ingest

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"kayakcast/internal/forecast"
	"kayakcast/internal/metrics"
	"kayakcast/internal/models"
	"kayakcast/internal/score"
	"kayakcast/internal/store"
	"kayakcast/internal/windows"
)

// Scheduler drives the batch pipeline: ingest readings for every active
// site, then retrain, reforecast, rescore, and redetect windows. Stages
// within a site are strictly sequential; sites are independent.
type Scheduler struct {
	store          *store.Store
	usgs           *USGSClient
	scorer         score.Scorer
	horizon        int
	historyDays    int
	windowOpts     windows.Options
	ingestInterval time.Duration
}

func NewScheduler(st *store.Store, usgs *USGSClient, scorer score.Scorer, horizon, historyDays int, windowOpts windows.Options) *Scheduler {
	if historyDays <= 0 {
		historyDays = 7
	}
	return &Scheduler{
		store:          st,
		usgs:           usgs,
		scorer:         scorer,
		horizon:        horizon,
		historyDays:    historyDays,
		windowOpts:     windowOpts,
		ingestInterval: time.Hour,
	}
}

// SetIngestInterval overrides the hourly default, mainly for tests.
func (s *Scheduler) SetIngestInterval(d time.Duration) {
	s.ingestInterval = d
}

// Run ingests immediately, refreshes forecasts, then repeats on the ingest
// interval until the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) {
	if err := s.IngestOnce(); err != nil {
		log.Printf("scheduler: initial ingest: %v", err)
	}
	if err := s.RefreshForecasts(); err != nil {
		log.Printf("scheduler: initial forecast refresh: %v", err)
	}

	ticker := time.NewTicker(s.ingestInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("scheduler: shutting down")
			return
		case <-ticker.C:
			if err := s.IngestOnce(); err != nil {
				log.Printf("scheduler: ingest: %v", err)
			}
			if err := s.RefreshForecasts(); err != nil {
				log.Printf("scheduler: forecast refresh: %v", err)
			}
		}
	}
}

// IngestOnce fetches and stores readings for every active site. A site
// failure is logged and does not stop the remaining sites.
func (s *Scheduler) IngestOnce() error {
	sites, err := s.store.GetActiveSites()
	if err != nil {
		return fmt.Errorf("get active sites: %w", err)
	}

	for _, site := range sites {
		s.ingestSite(site)
	}
	return nil
}

func (s *Scheduler) ingestSite(site models.Site) {
	log.Printf("scheduler: ingesting readings for %s (%s)", site.SiteID, site.Name)

	run, _ := s.store.StartIngestRun(site.SiteID)
	period := fmt.Sprintf("P%dD", s.historyDays)
	readings, fetchResult, err := s.usgs.FetchReadings(site.SiteID, period)

	if run != nil {
		run.Success = err == nil
		if fetchResult != nil {
			run.HTTPStatus = sql.NullInt64{Int64: int64(fetchResult.HTTPStatus), Valid: fetchResult.HTTPStatus > 0}
			run.RecordsParsed = sql.NullInt64{Int64: int64(fetchResult.RecordCount), Valid: true}
			if fetchResult.ParseErrors > 0 {
				run.ParseErrors = sql.NullInt64{Int64: int64(fetchResult.ParseErrors), Valid: true}
				run.ErrorMessage = sql.NullString{String: fetchResult.ParseError, Valid: true}
				log.Printf("scheduler: %s parse errors: %s", site.SiteID, fetchResult.ParseError)
			}
		}
		if err != nil {
			run.ErrorMessage = sql.NullString{String: err.Error(), Valid: true}
		}
	}

	if err != nil {
		log.Printf("scheduler: fetch %s: %v", site.SiteID, err)
	} else {
		stored := 0
		for _, r := range readings {
			flags := ValidateReading(&r)
			if len(flags) > 0 {
				log.Printf("scheduler: rejecting reading %s@%s: %v", r.SiteID, r.ObservedAt.Format(time.RFC3339), flags)
				for _, flag := range flags {
					metrics.ReadingsRejected.WithLabelValues(site.SiteID, flag).Inc()
				}
				continue
			}
			r.QCFlags = QualityFlagsToJSON(AdvisoryFlags(&r))
			if err := s.store.UpsertReading(r); err != nil {
				log.Printf("scheduler: upsert reading: %v", err)
				continue
			}
			stored++
		}
		metrics.ReadingsIngested.WithLabelValues(site.SiteID).Add(float64(stored))
		log.Printf("scheduler: stored %d readings for %s", stored, site.SiteID)
		if run != nil {
			run.RecordsStored = sql.NullInt64{Int64: int64(stored), Valid: true}
		}
	}

	if run != nil {
		s.store.CompleteIngestRun(run)
	}
}

// RefreshForecasts regenerates every active site's forecast from its stored
// history, then recomputes the optimal windows across all sites. Sites with
// insufficient history are skipped; the run continues.
func (s *Scheduler) RefreshForecasts() error {
	sites, err := s.store.GetActiveSites()
	if err != nil {
		return fmt.Errorf("get active sites: %w", err)
	}

	var combined []models.ForecastRow
	for _, site := range sites {
		readings, err := s.store.GetRecentReadings(site.SiteID, s.historyDays)
		if err != nil {
			log.Printf("scheduler: readings for %s: %v", site.SiteID, err)
			continue
		}

		rows := forecast.TrainAndForecast(readings, site, s.scorer, s.horizon)
		if len(rows) == 0 {
			metrics.SitesSkipped.WithLabelValues(site.SiteID).Inc()
			log.Printf("scheduler: insufficient data to forecast %s (%d readings)", site.SiteID, len(readings))
			if err := s.store.ReplaceForecast(site.SiteID, nil); err != nil {
				log.Printf("scheduler: clear forecast for %s: %v", site.SiteID, err)
			}
			continue
		}

		if err := s.store.ReplaceForecast(site.SiteID, rows); err != nil {
			log.Printf("scheduler: store forecast for %s: %v", site.SiteID, err)
			continue
		}
		metrics.ForecastRowsGenerated.WithLabelValues(site.SiteID).Add(float64(len(rows)))
		log.Printf("scheduler: generated %d forecast hours for %s", len(rows), site.SiteID)

		combined = append(combined, rows...)
	}

	found := windows.Detect(combined, s.windowOpts)
	if err := s.store.ReplaceWindows(found); err != nil {
		return fmt.Errorf("store windows: %w", err)
	}
	metrics.WindowsFound.Set(float64(len(found)))
	log.Printf("scheduler: found %d optimal windows", len(found))

	return nil
}
