package forecast

import (
	"math"
	"time"

	"kayakcast/internal/models"
	"kayakcast/internal/score"
)

// DefaultHorizonHours is the default forecast length: 10 days.
const DefaultHorizonHours = 240

// TrainAndForecast trains discharge and gage-height models on the given
// history and walks forward one hour at a time for horizon hours, feeding
// each prediction back as the lag input for the next step. Readings must be
// a single site's series in ascending time order.
//
// Returns an empty forecast when either model cannot be trained
// (insufficient data); the site is skipped, not retried.
//
// The lag and rolling feature slots are all filled with the single most
// recent carried value rather than a true 6-deep history. This collapses the
// lag structure at forecast time and compounds errors hour over hour, but it
// is the intended behavior of the scoring pipeline and is preserved as-is.
func TrainAndForecast(readings []models.Reading, site models.Site, scorer score.Scorer, horizon int) []models.ForecastRow {
	if len(readings) == 0 {
		return nil
	}
	if horizon <= 0 {
		horizon = DefaultHorizonHours
	}

	dischargeModel := Train(readings, TargetDischarge)
	gageModel := Train(readings, TargetGageHeight)
	if dischargeModel == nil || gageModel == nil {
		return nil
	}

	latestDischarge, okD := lastValid(readings, func(r models.Reading) (float64, bool) {
		return r.DischargeCFS.Float64, r.DischargeCFS.Valid
	})
	latestGage, okG := lastValid(readings, func(r models.Reading) (float64, bool) {
		return r.GageHeightFt.Float64, r.GageHeightFt.Valid
	})
	if !okD || !okG {
		return nil
	}

	lastTime := readings[len(readings)-1].ObservedAt
	generatedAt := time.Now().UTC()

	forecast := make([]models.ForecastRow, 0, horizon)
	for h := 1; h <= horizon; h++ {
		futureTime := lastTime.Add(time.Duration(h) * time.Hour)
		hourSin, hourCos, daySin, dayCos := TimeFeatures(futureTime)

		features := []float64{
			hourSin, hourCos, daySin, dayCos,
			latestDischarge, latestDischarge,
			latestGage, latestGage,
			latestDischarge, latestGage,
		}

		dischargePred := dischargeModel.Predict(features)
		gagePred := gageModel.Predict(features)

		kayakScore := scorer.Score(score.Conditions{
			DischargeCFS: &dischargePred,
			GageHeightFt: &gagePred,
		}, site)

		forecast = append(forecast, models.ForecastRow{
			SiteID:       site.SiteID,
			SiteName:     site.Name,
			ForecastAt:   futureTime,
			DischargeCFS: roundTo(dischargePred, 1),
			GageHeightFt: roundTo(gagePred, 2),
			Score:        kayakScore,
			ForecastType: "predicted",
			GeneratedAt:  generatedAt,
		})

		latestDischarge = dischargePred
		latestGage = gagePred
	}

	return forecast
}

func lastValid(readings []models.Reading, get func(models.Reading) (float64, bool)) (float64, bool) {
	for i := len(readings) - 1; i >= 0; i-- {
		if v, ok := get(readings[i]); ok {
			return v, true
		}
	}
	return 0, false
}

func roundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
