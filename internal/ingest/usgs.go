package ingest

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"time"

	"github.com/cenkalti/backoff/v4"

	"kayakcast/internal/httputil"
	"kayakcast/internal/metrics"
	"kayakcast/internal/models"
)

const (
	paramDischarge  = "00060" // discharge, cfs
	paramGageHeight = "00065" // gage height, ft

	defaultBaseURL = "https://waterservices.usgs.gov/nwis/iv/"
)

// USGSClient fetches instantaneous values from the USGS NWIS IV service.
type USGSClient struct {
	baseURL string
	client  *http.Client
}

func NewUSGSClient() *USGSClient {
	return &USGSClient{
		baseURL: defaultBaseURL,
		client:  httputil.NewClient(),
	}
}

// NewUSGSClientWithBaseURL is used by tests to point at a local server.
func NewUSGSClientWithBaseURL(baseURL string) *USGSClient {
	c := NewUSGSClient()
	c.baseURL = baseURL
	return c
}

// FetchResult carries fetch bookkeeping for the ingest audit trail.
type FetchResult struct {
	HTTPStatus  int
	RecordCount int
	ParseErrors int
	ParseError  string
}

type ivResponse struct {
	Value struct {
		TimeSeries []ivTimeSeries `json:"timeSeries"`
	} `json:"value"`
}

type ivTimeSeries struct {
	SourceInfo struct {
		SiteName string `json:"siteName"`
		SiteCode []struct {
			Value string `json:"value"`
		} `json:"siteCode"`
	} `json:"sourceInfo"`
	Variable struct {
		VariableCode []struct {
			Value string `json:"value"`
		} `json:"variableCode"`
	} `json:"variable"`
	Values []struct {
		Value []ivPoint `json:"value"`
	} `json:"values"`
}

type ivPoint struct {
	Value    string `json:"value"`
	DateTime string `json:"dateTime"`
}

// FetchReadings fetches the site's discharge and gage height series for the
// trailing period (ISO-8601 duration, e.g. "P7D") and merges them into
// hourly readings. Timestamps are normalized to UTC and truncated to the
// hour; when multiple points land in the same hour the latest wins.
//
// Rows with unparsable timestamps are dropped individually and counted in
// the FetchResult; one bad point never fails the batch.
func (c *USGSClient) FetchReadings(siteID, period string) ([]models.Reading, *FetchResult, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("sites", siteID)
	q.Set("parameterCd", paramDischarge+","+paramGageHeight)
	q.Set("period", period)
	q.Set("siteStatus", "all")
	fetchURL := c.baseURL + "?" + q.Encode()

	result := &FetchResult{}

	var body []byte
	start := time.Now()
	operation := func() error {
		resp, err := c.client.Get(fetchURL)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("fetch iv: %w", err))
		}
		defer resp.Body.Close()

		result.HTTPStatus = resp.StatusCode
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return fmt.Errorf("retryable: status %d", resp.StatusCode)
		}
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("fetch iv: status %d: %s", resp.StatusCode, string(b)))
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("read body: %w", err))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = 2 * time.Minute
	err := backoff.Retry(operation, bo)
	metrics.USGSAPILatency.WithLabelValues(siteID).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.USGSAPICallsTotal.WithLabelValues(siteID, "error").Inc()
		return nil, result, err
	}
	metrics.USGSAPICallsTotal.WithLabelValues(siteID, "ok").Inc()

	var data ivResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, result, fmt.Errorf("unmarshal: %w", err)
	}

	readings, parseErrors := mergeSeries(siteID, data.Value.TimeSeries)
	result.RecordCount = len(readings)
	result.ParseErrors = len(parseErrors)
	if len(parseErrors) > 0 {
		result.ParseError = parseErrors[0]
	}

	return readings, result, nil
}

// mergeSeries joins the per-parameter time series into one reading per hour.
func mergeSeries(siteID string, series []ivTimeSeries) ([]models.Reading, []string) {
	type bucket struct {
		discharge sql.NullFloat64
		gage      sql.NullFloat64
	}
	buckets := make(map[time.Time]*bucket)
	var parseErrors []string

	for _, ts := range series {
		if len(ts.Variable.VariableCode) == 0 {
			continue
		}
		param := ts.Variable.VariableCode[0].Value
		if param != paramDischarge && param != paramGageHeight {
			continue
		}

		for _, vs := range ts.Values {
			for _, point := range vs.Value {
				when, err := parseUSGSTime(point.DateTime)
				if err != nil {
					parseErrors = append(parseErrors, fmt.Sprintf("bad timestamp %q: %v", point.DateTime, err))
					continue
				}
				var value float64
				if _, err := fmt.Sscanf(point.Value, "%f", &value); err != nil {
					parseErrors = append(parseErrors, fmt.Sprintf("bad value %q: %v", point.Value, err))
					continue
				}

				hour := when.UTC().Truncate(time.Hour)
				b := buckets[hour]
				if b == nil {
					b = &bucket{}
					buckets[hour] = b
				}
				// Later points in the same hour overwrite earlier ones.
				if param == paramDischarge {
					b.discharge = sql.NullFloat64{Float64: value, Valid: true}
				} else {
					b.gage = sql.NullFloat64{Float64: value, Valid: true}
				}
			}
		}
	}

	readings := make([]models.Reading, 0, len(buckets))
	for hour, b := range buckets {
		readings = append(readings, models.Reading{
			SiteID:       siteID,
			ObservedAt:   hour,
			DischargeCFS: b.discharge,
			GageHeightFt: b.gage,
		})
	}
	sort.Slice(readings, func(i, j int) bool {
		return readings[i].ObservedAt.Before(readings[j].ObservedAt)
	})

	return readings, parseErrors
}

// parseUSGSTime handles the NWIS timestamp format, which carries fractional
// seconds and a numeric zone offset.
func parseUSGSTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02T15:04:05.000-07:00", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
