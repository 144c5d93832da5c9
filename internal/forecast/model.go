package forecast

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"kayakcast/internal/models"
)

// Target selects which measurement a model predicts.
type Target string

const (
	TargetDischarge  Target = "discharge_cfs"
	TargetGageHeight Target = "gage_height_ft"
)

const (
	minRawRows   = 24
	minCleanRows = 12

	// Singular values below this fraction of the largest are treated as
	// zero when solving, matching what lstsq-style solvers do with a
	// rank-deficient design matrix.
	svdRcond = 1e-10
)

// Scaler standardizes feature vectors to zero mean and unit variance using
// statistics learned from the training rows. The same fitted scaler must be
// reused at prediction time; it is never refit on forecast-time features.
type Scaler struct {
	Mean  [numFeatures]float64
	Scale [numFeatures]float64
}

func fitScaler(columns [numFeatures][]float64) *Scaler {
	var sc Scaler
	for j := 0; j < numFeatures; j++ {
		sc.Mean[j] = stat.Mean(columns[j], nil)
		std := stat.PopStdDev(columns[j], nil)
		if std == 0 {
			std = 1 // constant column, leave values centered only
		}
		sc.Scale[j] = std
	}
	return &sc
}

// Transform standardizes a single feature vector in place-safe fashion.
func (sc *Scaler) Transform(features []float64) []float64 {
	out := make([]float64, numFeatures)
	for j := 0; j < numFeatures; j++ {
		out[j] = (features[j] - sc.Mean[j]) / sc.Scale[j]
	}
	return out
}

// Model is a fitted least-squares regressor for one (site, target) pair,
// bundled with the scaler it was trained against. Models are rebuilt from
// the available history on every run and never persisted.
type Model struct {
	Target  Target
	Coeffs  []float64 // intercept followed by numFeatures weights
	Scaler  *Scaler
	Samples int
}

// Train fits a standardized linear model for the target column. Returns nil
// when the site has fewer than 24 readings or fewer than 12 complete feature
// rows remain after dropping edge rows; callers must treat a nil model as
// "skip this site", not as an error.
func Train(readings []models.Reading, target Target) *Model {
	if len(readings) < minRawRows {
		return nil
	}

	features := BuildFeatures(readings)

	var clean []FeatureRow
	for _, row := range features {
		if !row.Complete() {
			continue
		}
		if y, ok := targetValue(row, target); !ok || !validTarget(y) {
			continue
		}
		clean = append(clean, row)
	}
	if len(clean) < minCleanRows {
		return nil
	}

	n := len(clean)

	var columns [numFeatures][]float64
	for j := 0; j < numFeatures; j++ {
		columns[j] = make([]float64, n)
	}
	y := make([]float64, n)
	for i, row := range clean {
		vec := row.Vector()
		for j := 0; j < numFeatures; j++ {
			columns[j][i] = vec[j]
		}
		y[i], _ = targetValue(row, target)
	}

	scaler := fitScaler(columns)

	// Design matrix: intercept column plus standardized features.
	X := mat.NewDense(n, numFeatures+1, nil)
	for i := 0; i < n; i++ {
		X.Set(i, 0, 1)
		for j := 0; j < numFeatures; j++ {
			X.Set(i, j+1, (columns[j][i]-scaler.Mean[j])/scaler.Scale[j])
		}
	}

	// Minimum-norm least squares via SVD with small singular values
	// truncated. Hourly river series make the lag and rolling columns
	// near-linear combinations of the cyclical features; a plain QR solve
	// on such a matrix produces huge mutually-cancelling coefficients
	// that fit the training rows but blow up once the autoregressive walk
	// leaves them. Truncation keeps the coefficients small and the walk
	// stable.
	var svd mat.SVD
	if ok := svd.Factorize(X, mat.SVDThin); !ok {
		return nil
	}
	rank := svd.Rank(svdRcond)
	if rank < 1 {
		return nil
	}

	coeffVec := mat.NewVecDense(numFeatures+1, nil)
	svd.SolveVecTo(coeffVec, mat.NewVecDense(n, y), rank)

	coeffs := make([]float64, numFeatures+1)
	for i := range coeffs {
		coeffs[i] = coeffVec.AtVec(i)
		if math.IsNaN(coeffs[i]) || math.IsInf(coeffs[i], 0) {
			return nil
		}
	}

	return &Model{
		Target:  target,
		Coeffs:  coeffs,
		Scaler:  scaler,
		Samples: n,
	}
}

// Predict applies the stored scaler and regression weights to a raw feature
// vector.
func (m *Model) Predict(features []float64) float64 {
	z := m.Scaler.Transform(features)
	pred := m.Coeffs[0]
	for j := 0; j < numFeatures; j++ {
		pred += m.Coeffs[j+1] * z[j]
	}
	return pred
}

func targetValue(row FeatureRow, target Target) (float64, bool) {
	switch target {
	case TargetGageHeight:
		return row.Gage.Float64, row.Gage.Valid
	default:
		return row.Discharge.Float64, row.Discharge.Valid
	}
}

func validTarget(v float64) bool {
	return v >= 0
}
