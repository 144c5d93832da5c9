package forecast

import (
	"database/sql"
	"math"
	"time"

	"kayakcast/internal/models"
)

// Feature vector layout, in training order. The cyclical pairs keep hour 23
// adjacent to hour 0 and Sunday adjacent to Monday.
const (
	featHourSin = iota
	featHourCos
	featDaySin
	featDayCos
	featDischargeLag1
	featDischargeLag6
	featGageLag1
	featGageLag6
	featDischargeMA6
	featGageMA6

	numFeatures
)

// FeatureRow is one reading with its derived temporal features. Lag and
// rolling values are null at the edges of the series where the required
// context does not exist; those rows are excluded from model fitting but
// preserved in the output sequence.
type FeatureRow struct {
	ObservedAt time.Time

	HourSin float64
	HourCos float64
	DaySin  float64
	DayCos  float64

	DischargeLag1 sql.NullFloat64
	DischargeLag6 sql.NullFloat64
	GageLag1      sql.NullFloat64
	GageLag6      sql.NullFloat64
	DischargeMA6  sql.NullFloat64
	GageMA6       sql.NullFloat64

	// Raw values, carried through as regression targets.
	Discharge sql.NullFloat64
	Gage      sql.NullFloat64
}

// Complete reports whether every feature required for model fitting is
// defined.
func (f FeatureRow) Complete() bool {
	return f.DischargeLag1.Valid && f.DischargeLag6.Valid &&
		f.GageLag1.Valid && f.GageLag6.Valid &&
		f.DischargeMA6.Valid && f.GageMA6.Valid
}

// Vector returns the feature values in training order. Only meaningful when
// Complete() is true.
func (f FeatureRow) Vector() []float64 {
	return []float64{
		f.HourSin, f.HourCos, f.DaySin, f.DayCos,
		f.DischargeLag1.Float64, f.DischargeLag6.Float64,
		f.GageLag1.Float64, f.GageLag6.Float64,
		f.DischargeMA6.Float64, f.GageMA6.Float64,
	}
}

// TimeFeatures returns the cyclical encodings for a timestamp.
func TimeFeatures(t time.Time) (hourSin, hourCos, daySin, dayCos float64) {
	hour := float64(t.Hour())
	day := float64(t.Weekday())
	hourSin = math.Sin(2 * math.Pi * hour / 24)
	hourCos = math.Cos(2 * math.Pi * hour / 24)
	daySin = math.Sin(2 * math.Pi * day / 7)
	dayCos = math.Cos(2 * math.Pi * day / 7)
	return
}

// BuildFeatures derives one FeatureRow per reading, preserving count and
// order. The input must be a single site's readings in ascending time order.
//
// Boundary policy: lag-k is undefined for the first k rows. The 6-sample
// centered rolling mean at position i spans offsets [-3,+2], so it is
// undefined for the first 3 and last 2 rows of the series.
func BuildFeatures(readings []models.Reading) []FeatureRow {
	n := len(readings)
	rows := make([]FeatureRow, n)

	for i, r := range readings {
		row := FeatureRow{
			ObservedAt: r.ObservedAt,
			Discharge:  r.DischargeCFS,
			Gage:       r.GageHeightFt,
		}
		row.HourSin, row.HourCos, row.DaySin, row.DayCos = TimeFeatures(r.ObservedAt)

		if i >= 1 {
			row.DischargeLag1 = readings[i-1].DischargeCFS
			row.GageLag1 = readings[i-1].GageHeightFt
		}
		if i >= 6 {
			row.DischargeLag6 = readings[i-6].DischargeCFS
			row.GageLag6 = readings[i-6].GageHeightFt
		}

		row.DischargeMA6 = centeredMean(readings, i, func(r models.Reading) sql.NullFloat64 { return r.DischargeCFS })
		row.GageMA6 = centeredMean(readings, i, func(r models.Reading) sql.NullFloat64 { return r.GageHeightFt })

		rows[i] = row
	}

	return rows
}

// centeredMean averages the 6 values at offsets [-3,+2] around position i.
// Undefined when the window runs off either end of the series or any value
// in the window is missing.
func centeredMean(readings []models.Reading, i int, get func(models.Reading) sql.NullFloat64) sql.NullFloat64 {
	lo, hi := i-3, i+2
	if lo < 0 || hi > len(readings)-1 {
		return sql.NullFloat64{}
	}
	var sum float64
	for j := lo; j <= hi; j++ {
		v := get(readings[j])
		if !v.Valid {
			return sql.NullFloat64{}
		}
		sum += v.Float64
	}
	return sql.NullFloat64{Float64: sum / 6, Valid: true}
}
