package windows

import (
	"testing"
	"time"

	"kayakcast/internal/models"
)

var windowStart = time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

func hourlyRows(siteID string, scores []int) []models.ForecastRow {
	rows := make([]models.ForecastRow, len(scores))
	for i, s := range scores {
		rows[i] = models.ForecastRow{
			SiteID:       siteID,
			SiteName:     "Site " + siteID,
			ForecastAt:   windowStart.Add(time.Duration(i) * time.Hour),
			DischargeCFS: 1500,
			GageHeightFt: 3.0,
			Score:        s,
		}
	}
	return rows
}

func TestDetect_SingleRun(t *testing.T) {
	// Hours 5-9 qualify; everything else sits below the threshold.
	scores := []int{60, 60, 60, 60, 60, 85, 85, 85, 85, 85, 60, 60}
	got := Detect(hourlyRows("01100000", scores), DefaultOptions())

	if len(got) != 1 {
		t.Fatalf("len(windows) = %d, want 1", len(got))
	}
	w := got[0]
	if !w.StartTime.Equal(windowStart.Add(5 * time.Hour)) {
		t.Errorf("StartTime = %v, want hour 5", w.StartTime)
	}
	if !w.EndTime.Equal(windowStart.Add(9 * time.Hour)) {
		t.Errorf("EndTime = %v, want hour 9", w.EndTime)
	}
	if w.DurationHours != 5 {
		t.Errorf("DurationHours = %d, want 5", w.DurationHours)
	}
	if w.AvgScore != 85 {
		t.Errorf("AvgScore = %v, want 85", w.AvgScore)
	}
	if w.MinScore != 85 || w.MaxScore != 85 {
		t.Errorf("score bounds = [%d,%d], want [85,85]", w.MinScore, w.MaxScore)
	}
}

func TestDetect_ThresholdInclusive(t *testing.T) {
	scores := []int{70, 70, 70, 69, 69, 69}
	got := Detect(hourlyRows("01100000", scores), DefaultOptions())

	if len(got) != 1 {
		t.Fatalf("len(windows) = %d, want 1", len(got))
	}
	if got[0].DurationHours != 3 {
		t.Errorf("DurationHours = %d, want 3", got[0].DurationHours)
	}
}

func TestDetect_DipSplitsWindow(t *testing.T) {
	// A one-hour dip leaves a 2h gap between qualifying rows, beyond the
	// 90-minute tolerance: two separate windows, not one six-hour run.
	scores := []int{80, 80, 80, 40, 90, 90, 90}
	got := Detect(hourlyRows("01100000", scores), DefaultOptions())

	if len(got) != 2 {
		t.Fatalf("len(windows) = %d, want 2", len(got))
	}
	// Best-first: the 90-average window ranks above the 80-average one.
	if got[0].AvgScore != 90 || got[1].AvgScore != 80 {
		t.Errorf("avg scores = %v, %v; want 90, 80", got[0].AvgScore, got[1].AvgScore)
	}
}

func TestDetect_MissingHourWithinTolerance(t *testing.T) {
	// Drop the row for hour 2 entirely. The surviving neighbors are 2h
	// apart, which exceeds the default tolerance, but a wider tolerance
	// bridges it and the duration counts rows, not elapsed time.
	rows := hourlyRows("01100000", []int{80, 80, 80, 80, 80})
	rows = append(rows[:2], rows[3:]...)

	opts := DefaultOptions()
	got := Detect(rows, opts)
	if len(got) != 0 {
		t.Fatalf("default tolerance: len(windows) = %d, want 0 (both fragments too short)", len(got))
	}

	opts.GapTolerance = 2 * time.Hour
	got = Detect(rows, opts)
	if len(got) != 1 {
		t.Fatalf("2h tolerance: len(windows) = %d, want 1", len(got))
	}
	if got[0].DurationHours != 4 {
		t.Errorf("DurationHours = %d, want 4 (row count, not span)", got[0].DurationHours)
	}
}

func TestDetect_ShortRunDiscarded(t *testing.T) {
	scores := []int{85, 85, 40, 40, 40, 40}
	got := Detect(hourlyRows("01100000", scores), DefaultOptions())
	if len(got) != 0 {
		t.Errorf("len(windows) = %d, want 0 for a 2-hour run", len(got))
	}
}

func TestDetect_TieBrokenByStartTime(t *testing.T) {
	scores := []int{80, 80, 80, 40, 80, 80, 80}
	got := Detect(hourlyRows("01100000", scores), DefaultOptions())

	if len(got) != 2 {
		t.Fatalf("len(windows) = %d, want 2", len(got))
	}
	if !got[0].StartTime.Before(got[1].StartTime) {
		t.Errorf("equal averages must rank the earlier window first: %v vs %v",
			got[0].StartTime, got[1].StartTime)
	}
}

func TestDetect_SitesNeverMerged(t *testing.T) {
	// Two sites qualifying over the same hours stay separate windows.
	rows := append(
		hourlyRows("01100000", []int{90, 90, 90, 90}),
		hourlyRows("01094000", []int{75, 75, 75, 75})...)

	got := Detect(rows, DefaultOptions())
	if len(got) != 2 {
		t.Fatalf("len(windows) = %d, want 2", len(got))
	}
	if got[0].SiteID != "01100000" || got[1].SiteID != "01094000" {
		t.Errorf("site order = %s, %s; want best-first by average", got[0].SiteID, got[1].SiteID)
	}
	for _, w := range got {
		if w.DurationHours != 4 {
			t.Errorf("site %s: DurationHours = %d, want 4", w.SiteID, w.DurationHours)
		}
	}
}

func TestDetect_Averages(t *testing.T) {
	rows := hourlyRows("01100000", []int{70, 80, 90})
	rows[0].DischargeCFS, rows[0].GageHeightFt = 1000, 2.5
	rows[1].DischargeCFS, rows[1].GageHeightFt = 1500, 3.0
	rows[2].DischargeCFS, rows[2].GageHeightFt = 2000, 3.5

	got := Detect(rows, DefaultOptions())
	if len(got) != 1 {
		t.Fatalf("len(windows) = %d, want 1", len(got))
	}
	w := got[0]
	if w.AvgScore != 80 {
		t.Errorf("AvgScore = %v, want 80", w.AvgScore)
	}
	if w.MinScore != 70 || w.MaxScore != 90 {
		t.Errorf("score bounds = [%d,%d], want [70,90]", w.MinScore, w.MaxScore)
	}
	if w.AvgDischarge != 1500 {
		t.Errorf("AvgDischarge = %v, want 1500", w.AvgDischarge)
	}
	if w.AvgGage != 3 {
		t.Errorf("AvgGage = %v, want 3", w.AvgGage)
	}
}

func TestDetect_Empty(t *testing.T) {
	if got := Detect(nil, DefaultOptions()); got != nil {
		t.Errorf("Detect(nil) = %v, want nil", got)
	}
	low := hourlyRows("01100000", []int{10, 20, 30})
	if got := Detect(low, DefaultOptions()); got != nil {
		t.Errorf("no qualifying rows should yield no windows, got %v", got)
	}
}
