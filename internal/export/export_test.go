package export

import (
	"database/sql"
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"kayakcast/internal/models"
	"kayakcast/internal/score"
	"kayakcast/internal/store"
)

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	s := store.New(db)
	if err := s.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestWriteAll(t *testing.T) {
	st := setupTestStore(t)

	site := models.Site{
		SiteID:       "01100000",
		Name:         "Merrimack River at Lowell, MA",
		DischargeMin: 1000,
		DischargeMax: 2500,
		GageMin:      1.5,
		GageMax:      5.0,
		Active:       true,
	}
	if err := st.UpsertSite(site); err != nil {
		t.Fatalf("upsert site: %v", err)
	}

	observed := time.Now().UTC().Truncate(time.Hour).Add(-2 * time.Hour)
	reading := models.Reading{
		SiteID:       site.SiteID,
		ObservedAt:   observed,
		DischargeCFS: sql.NullFloat64{Float64: 1750, Valid: true},
		GageHeightFt: sql.NullFloat64{Float64: 3.25, Valid: true},
	}
	if err := st.UpsertReading(reading); err != nil {
		t.Fatalf("upsert reading: %v", err)
	}

	generated := time.Now().UTC().Truncate(time.Hour)
	forecast := []models.ForecastRow{{
		SiteID:       site.SiteID,
		SiteName:     site.Name,
		ForecastAt:   generated.Add(time.Hour),
		DischargeCFS: 1480.3,
		GageHeightFt: 3.01,
		Score:        85,
		ForecastType: "predicted",
		GeneratedAt:  generated,
	}}
	if err := st.ReplaceForecast(site.SiteID, forecast); err != nil {
		t.Fatalf("replace forecast: %v", err)
	}

	window := models.Window{
		SiteID:        site.SiteID,
		SiteName:      site.Name,
		StartTime:     generated.Add(time.Hour),
		EndTime:       generated.Add(4 * time.Hour),
		DurationHours: 4,
		AvgScore:      85.5,
		MinScore:      80,
		MaxScore:      92,
		AvgDischarge:  1480.3,
		AvgGage:       3.01,
		GeneratedAt:   generated,
	}
	if err := st.ReplaceWindows([]models.Window{window}); err != nil {
		t.Fatalf("replace windows: %v", err)
	}

	dir := t.TempDir()
	exporter := NewExporter(st, score.SimpleScorer{})
	if err := exporter.WriteAll(dir, 7); err != nil {
		t.Fatalf("write all: %v", err)
	}

	historical := readCSV(t, filepath.Join(dir, HistoricalFile))
	if len(historical) != 2 {
		t.Fatalf("historical rows = %d, want header + 1", len(historical))
	}
	wantHeader := []string{"datetime", "discharge_cfs", "gage_height_ft", "site_id", "site_name", "kayakability_score"}
	for i, col := range wantHeader {
		if historical[0][i] != col {
			t.Errorf("historical header[%d] = %q, want %q", i, historical[0][i], col)
		}
	}
	row := historical[1]
	if row[1] != "1750.0" || row[2] != "3.25" {
		t.Errorf("historical values = %q, %q", row[1], row[2])
	}
	// Midpoints of both ranges score 100 under the simple formula.
	if row[5] != "100" {
		t.Errorf("historical score = %q, want 100", row[5])
	}

	forecastRows := readCSV(t, filepath.Join(dir, ForecastFile))
	if len(forecastRows) != 2 {
		t.Fatalf("forecast rows = %d, want header + 1", len(forecastRows))
	}
	if forecastRows[1][3] != "1480.3" || forecastRows[1][5] != "85" {
		t.Errorf("forecast row = %v", forecastRows[1])
	}

	windowRows := readCSV(t, filepath.Join(dir, WindowsFile))
	if len(windowRows) != 2 {
		t.Fatalf("window rows = %d, want header + 1", len(windowRows))
	}
	if windowRows[1][4] != "4" || windowRows[1][5] != "85.5" {
		t.Errorf("window row = %v", windowRows[1])
	}

	report, err := os.ReadFile(filepath.Join(dir, RecommendationsFile))
	if err != nil {
		t.Fatalf("read recommendations: %v", err)
	}
	if !strings.Contains(string(report), "KAYAK FORECAST RECOMMENDATIONS") {
		t.Errorf("report missing title:\n%s", report)
	}
	if !strings.Contains(string(report), site.Name) {
		t.Errorf("report missing site name:\n%s", report)
	}
}

func TestWriteAll_EmptyStoreStillWritesHeaders(t *testing.T) {
	st := setupTestStore(t)

	dir := t.TempDir()
	exporter := NewExporter(st, score.SimpleScorer{})
	if err := exporter.WriteAll(dir, 7); err != nil {
		t.Fatalf("write all: %v", err)
	}

	for _, name := range []string{HistoricalFile, ForecastFile, WindowsFile} {
		records := readCSV(t, filepath.Join(dir, name))
		if len(records) != 1 {
			t.Errorf("%s: rows = %d, want header only", name, len(records))
		}
	}

	report, err := os.ReadFile(filepath.Join(dir, RecommendationsFile))
	if err != nil {
		t.Fatalf("read recommendations: %v", err)
	}
	if !strings.Contains(string(report), "No optimal kayaking windows") {
		t.Errorf("empty report text = %q", report)
	}
}

func TestRecommendations_GroupsByDayAndCaps(t *testing.T) {
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	var wins []models.Window
	for i := 0; i < 12; i++ {
		wins = append(wins, models.Window{
			SiteID:        "01100000",
			SiteName:      "Merrimack River at Lowell, MA",
			StartTime:     base.AddDate(0, 0, i/4).Add(time.Duration(i%4) * 3 * time.Hour),
			EndTime:       base.AddDate(0, 0, i/4).Add(time.Duration(i%4)*3*time.Hour + 2*time.Hour),
			DurationHours: 3,
			AvgScore:      95 - float64(i),
			AvgDischarge:  1500,
			AvgGage:       3.0,
		})
	}

	report := Recommendations(wins)

	if !strings.Contains(report, "Monday, June 2") {
		t.Errorf("report missing day heading:\n%s", report)
	}
	// Capped at ten entries.
	if got := strings.Count(report, "Score:"); got != 10 {
		t.Errorf("entries = %d, want 10", got)
	}
	if !strings.Contains(report, "Score: 95.0/100") {
		t.Errorf("report missing top score:\n%s", report)
	}
}
