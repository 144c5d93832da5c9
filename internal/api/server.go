package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kayakcast/internal/models"
	"kayakcast/internal/score"
	"kayakcast/internal/store"
)

// Server exposes the stored readings, forecasts, and windows as JSON. The
// dashboard that renders them lives elsewhere; this surface is data only.
type Server struct {
	store  *store.Store
	scorer score.Scorer
	port   string
}

func NewServer(st *store.Store, scorer score.Scorer, port string) *Server {
	return &Server{store: st, scorer: scorer, port: port}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/sites", s.handleSites)
	mux.HandleFunc("/api/current", s.handleCurrent)
	mux.HandleFunc("/api/history", s.handleHistory)
	mux.HandleFunc("/api/forecast", s.handleForecast)
	mux.HandleFunc("/api/windows", s.handleWindows)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    ":" + s.port,
		Handler: s.Handler(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

type SiteHealth struct {
	SiteID     string    `json:"site_id"`
	LastSeen   time.Time `json:"last_seen"`
	AgeMinutes int       `json:"age_minutes"`
	Stale      bool      `json:"stale"`
}

type HealthStatus struct {
	Status string       `json:"status"`
	Sites  []SiteHealth `json:"sites"`
	Errors []string     `json:"errors,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.GetActiveSites()
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		json.NewEncoder(w).Encode(map[string]string{"status": "error", "error": err.Error()})
		return
	}

	health := HealthStatus{
		Status: "ok",
		Sites:  make([]SiteHealth, 0, len(sites)),
	}

	// Hourly telemetry: anything older than two cycles counts as stale.
	staleThreshold := 2 * time.Hour
	now := time.Now()

	for _, site := range sites {
		reading, err := s.store.GetLatestReading(site.SiteID)
		if err != nil {
			health.Errors = append(health.Errors, site.SiteID+": "+err.Error())
			continue
		}

		sh := SiteHealth{SiteID: site.SiteID}
		if reading != nil {
			sh.LastSeen = reading.ObservedAt
			sh.AgeMinutes = int(now.Sub(reading.ObservedAt).Minutes())
			sh.Stale = now.Sub(reading.ObservedAt) > staleThreshold
		} else {
			sh.Stale = true
			sh.AgeMinutes = -1
		}

		if sh.Stale {
			health.Status = "degraded"
		}
		health.Sites = append(health.Sites, sh)
	}

	if len(health.Errors) > 0 {
		health.Status = "error"
	}

	w.Header().Set("Content-Type", "application/json")
	if health.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(health); err != nil {
		log.Printf("health: write response: %v", err)
	}
}

type SiteInfo struct {
	SiteID            string     `json:"site_id"`
	Name              string     `json:"name"`
	Latitude          float64    `json:"latitude"`
	Longitude         float64    `json:"longitude"`
	IdealDischargeCFS [2]float64 `json:"ideal_discharge_cfs"`
	IdealGageFt       [2]float64 `json:"ideal_gage_ft"`
	Difficulty        string     `json:"difficulty"`
}

func (s *Server) handleSites(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.GetActiveSites()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]SiteInfo, 0, len(sites))
	for _, site := range sites {
		out = append(out, SiteInfo{
			SiteID:            site.SiteID,
			Name:              site.Name,
			Latitude:          site.Latitude,
			Longitude:         site.Longitude,
			IdealDischargeCFS: [2]float64{site.DischargeMin, site.DischargeMax},
			IdealGageFt:       [2]float64{site.GageMin, site.GageMax},
			Difficulty:        site.Difficulty,
		})
	}

	writeJSON(w, out)
}

type CurrentConditions struct {
	SiteID       string    `json:"site_id"`
	SiteName     string    `json:"site_name"`
	ObservedAt   time.Time `json:"observed_at"`
	DischargeCFS *float64  `json:"discharge_cfs"`
	GageHeightFt *float64  `json:"gage_height_ft"`
	Score        int       `json:"kayakability_score"`
}

func (s *Server) handleCurrent(w http.ResponseWriter, r *http.Request) {
	sites, err := s.store.GetActiveSites()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]CurrentConditions, 0, len(sites))
	for _, site := range sites {
		reading, err := s.store.GetLatestReading(site.SiteID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if reading == nil {
			continue
		}

		cc := CurrentConditions{
			SiteID:     site.SiteID,
			SiteName:   site.Name,
			ObservedAt: reading.ObservedAt,
		}
		var conditions score.Conditions
		if reading.DischargeCFS.Valid {
			v := reading.DischargeCFS.Float64
			cc.DischargeCFS = &v
			conditions.DischargeCFS = &v
		}
		if reading.GageHeightFt.Valid {
			v := reading.GageHeightFt.Float64
			cc.GageHeightFt = &v
			conditions.GageHeightFt = &v
		}
		cc.Score = s.scorer.Score(conditions, site)

		out = append(out, cc)
	}

	writeJSON(w, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site")
	if siteID == "" {
		http.Error(w, "site parameter required", http.StatusBadRequest)
		return
	}

	hours := 168
	if h := r.URL.Query().Get("hours"); h != "" {
		parsed, err := strconv.Atoi(h)
		if err != nil || parsed <= 0 {
			http.Error(w, "invalid hours parameter", http.StatusBadRequest)
			return
		}
		hours = parsed
	}

	end := time.Now().UTC()
	start := end.Add(-time.Duration(hours) * time.Hour)
	readings, err := s.store.GetReadings(siteID, start, end)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type historyRow struct {
		ObservedAt   time.Time `json:"observed_at"`
		DischargeCFS *float64  `json:"discharge_cfs"`
		GageHeightFt *float64  `json:"gage_height_ft"`
	}

	out := make([]historyRow, 0, len(readings))
	for _, reading := range readings {
		row := historyRow{ObservedAt: reading.ObservedAt}
		if reading.DischargeCFS.Valid {
			v := reading.DischargeCFS.Float64
			row.DischargeCFS = &v
		}
		if reading.GageHeightFt.Valid {
			v := reading.GageHeightFt.Float64
			row.GageHeightFt = &v
		}
		out = append(out, row)
	}

	writeJSON(w, out)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	siteID := r.URL.Query().Get("site")

	var rows []models.ForecastRow
	var err error
	if siteID != "" {
		rows, err = s.store.GetForecast(siteID)
	} else {
		rows, err = s.store.GetAllForecasts()
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type forecastRow struct {
		SiteID       string    `json:"site_id"`
		SiteName     string    `json:"site_name"`
		ForecastAt   time.Time `json:"forecast_at"`
		DischargeCFS float64   `json:"discharge_cfs"`
		GageHeightFt float64   `json:"gage_height_ft"`
		Score        int       `json:"kayakability_score"`
		ForecastType string    `json:"forecast_type"`
	}

	out := make([]forecastRow, 0, len(rows))
	for _, fr := range rows {
		out = append(out, forecastRow{
			SiteID:       fr.SiteID,
			SiteName:     fr.SiteName,
			ForecastAt:   fr.ForecastAt,
			DischargeCFS: fr.DischargeCFS,
			GageHeightFt: fr.GageHeightFt,
			Score:        fr.Score,
			ForecastType: fr.ForecastType,
		})
	}

	writeJSON(w, out)
}

func (s *Server) handleWindows(w http.ResponseWriter, r *http.Request) {
	found, err := s.store.GetWindows()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	type windowRow struct {
		SiteID        string    `json:"site_id"`
		SiteName      string    `json:"site_name"`
		StartTime     time.Time `json:"start_time"`
		EndTime       time.Time `json:"end_time"`
		DurationHours int       `json:"duration_hours"`
		AvgScore      float64   `json:"avg_score"`
		MinScore      int       `json:"min_score"`
		MaxScore      int       `json:"max_score"`
		AvgDischarge  float64   `json:"avg_discharge"`
		AvgGage       float64   `json:"avg_gage"`
	}

	out := make([]windowRow, 0, len(found))
	for _, win := range found {
		out = append(out, windowRow{
			SiteID:        win.SiteID,
			SiteName:      win.SiteName,
			StartTime:     win.StartTime,
			EndTime:       win.EndTime,
			DurationHours: win.DurationHours,
			AvgScore:      win.AvgScore,
			MinScore:      win.MinScore,
			MaxScore:      win.MaxScore,
			AvgDischarge:  win.AvgDischarge,
			AvgGage:       win.AvgGage,
		})
	}

	writeJSON(w, out)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}
