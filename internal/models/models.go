package models

import (
	"database/sql"
	"time"
)

// Site is a USGS gauge site with its kayaking configuration. Loaded once at
// startup and read-only for the lifetime of a run.
type Site struct {
	SiteID       string
	Name         string
	Latitude     float64
	Longitude    float64
	DischargeMin float64 // ideal discharge range, cfs
	DischargeMax float64
	GageMin      float64 // ideal gage height range, ft
	GageMax      float64
	Difficulty   string // "Class I", "Class I-II", etc.
	Active       bool
}

// Reading is one observed row of gauge telemetry. Discharge and gage height
// are nullable because USGS occasionally reports one parameter without the
// other.
type Reading struct {
	ID           int64
	SiteID       string
	ObservedAt   time.Time
	DischargeCFS sql.NullFloat64
	GageHeightFt sql.NullFloat64
	QCFlags      string // JSON array of validation flags, empty when clean
	CreatedAt    time.Time
}

// ForecastRow is one predicted hour for a site, produced by the iterative
// forecaster and scored by the kayakability scorer.
type ForecastRow struct {
	ID           int64
	SiteID       string
	SiteName     string
	ForecastAt   time.Time
	DischargeCFS float64
	GageHeightFt float64
	Score        int
	ForecastType string // always "predicted"
	GeneratedAt  time.Time
}

// Window is a contiguous run of forecast hours meeting the score threshold.
// It is a read-only summary computed once per run, never mutated.
type Window struct {
	ID            int64
	SiteID        string
	SiteName      string
	StartTime     time.Time
	EndTime       time.Time
	DurationHours int // count of qualifying rows, never a time delta
	AvgScore      float64
	MinScore      int
	MaxScore      int
	AvgDischarge  float64
	AvgGage       float64
	GeneratedAt   time.Time
}
