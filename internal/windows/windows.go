// Package windows scans a scored forecast for contiguous intervals worth
// recommending: runs of hours at or above a score threshold, long enough to
// actually get on the water.
package windows

import (
	"math"
	"sort"
	"time"

	"kayakcast/internal/models"
)

// Options control window detection.
type Options struct {
	MinScore         int           // qualifying score threshold, inclusive
	MinDurationHours int           // shorter runs are discarded entirely
	GapTolerance     time.Duration // a larger gap between qualifying rows starts a new window
}

// DefaultOptions match the stock recommendation settings: score >= 70 for at
// least 3 hours, with a 90-minute gap tolerance so a single missing hourly
// row never splits a window but a real dip does.
func DefaultOptions() Options {
	return Options{
		MinScore:         70,
		MinDurationHours: 3,
		GapTolerance:     90 * time.Minute,
	}
}

// Detect finds qualifying windows per site and returns them best-first.
// The forecast may span multiple sites; sites are processed independently
// and never merged. Ranking: average score descending, ties broken by
// earlier start time.
func Detect(forecast []models.ForecastRow, opts Options) []models.Window {
	bySite := make(map[string][]models.ForecastRow)
	var siteOrder []string
	for _, row := range forecast {
		if _, seen := bySite[row.SiteID]; !seen {
			siteOrder = append(siteOrder, row.SiteID)
		}
		bySite[row.SiteID] = append(bySite[row.SiteID], row)
	}

	var found []models.Window
	for _, siteID := range siteOrder {
		found = append(found, detectSite(bySite[siteID], opts)...)
	}

	sort.SliceStable(found, func(i, j int) bool {
		if found[i].AvgScore != found[j].AvgScore {
			return found[i].AvgScore > found[j].AvgScore
		}
		return found[i].StartTime.Before(found[j].StartTime)
	})

	return found
}

// detectSite groups one site's qualifying rows: consecutive qualifying rows
// stay in a group while the time gap between them is within tolerance; a
// larger gap (including one created by disqualified rows in between) starts
// a new group.
func detectSite(rows []models.ForecastRow, opts Options) []models.Window {
	var qualifying []models.ForecastRow
	for _, row := range rows {
		if row.Score >= opts.MinScore {
			qualifying = append(qualifying, row)
		}
	}
	if len(qualifying) == 0 {
		return nil
	}

	var windows []models.Window
	groupStart := 0
	for i := 1; i <= len(qualifying); i++ {
		if i < len(qualifying) && qualifying[i].ForecastAt.Sub(qualifying[i-1].ForecastAt) <= opts.GapTolerance {
			continue
		}
		group := qualifying[groupStart:i]
		if len(group) >= opts.MinDurationHours {
			windows = append(windows, summarize(group))
		}
		groupStart = i
	}

	return windows
}

func summarize(group []models.ForecastRow) models.Window {
	first, last := group[0], group[len(group)-1]

	var scoreSum, dischargeSum, gageSum float64
	minScore, maxScore := first.Score, first.Score
	for _, row := range group {
		scoreSum += float64(row.Score)
		dischargeSum += row.DischargeCFS
		gageSum += row.GageHeightFt
		if row.Score < minScore {
			minScore = row.Score
		}
		if row.Score > maxScore {
			maxScore = row.Score
		}
	}

	n := float64(len(group))
	return models.Window{
		SiteID:    first.SiteID,
		SiteName:  first.SiteName,
		StartTime: first.ForecastAt,
		EndTime:   last.ForecastAt,
		// Row count, not a time delta: missing timestamps must not
		// inflate the duration.
		DurationHours: len(group),
		AvgScore:      roundTo(scoreSum/n, 1),
		MinScore:      minScore,
		MaxScore:      maxScore,
		AvgDischarge:  roundTo(dischargeSum/n, 1),
		AvgGage:       roundTo(gageSum/n, 2),
		GeneratedAt:   first.GeneratedAt,
	}
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
