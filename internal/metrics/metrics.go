package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	USGSAPICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kayakcast_usgs_api_calls_total",
			Help: "Total USGS NWIS API calls",
		},
		[]string{"site", "status"},
	)

	USGSAPILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kayakcast_usgs_api_latency_seconds",
			Help:    "USGS NWIS API call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"site"},
	)

	ReadingsIngested = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kayakcast_readings_ingested_total",
			Help: "Total gauge readings successfully ingested",
		},
		[]string{"site"},
	)

	ReadingsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kayakcast_readings_rejected_total",
			Help: "Total gauge readings rejected by validation",
		},
		[]string{"site", "reason"},
	)

	ForecastRowsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kayakcast_forecast_rows_generated_total",
			Help: "Total forecast rows generated",
		},
		[]string{"site"},
	)

	SitesSkipped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kayakcast_sites_skipped_total",
			Help: "Forecast runs skipped for a site due to insufficient data",
		},
		[]string{"site"},
	)

	WindowsFound = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kayakcast_optimal_windows",
			Help: "Optimal kayaking windows found in the latest run",
		},
	)
)
