// Package httputil holds the shared HTTP client setup for upstream fetches.
package httputil

import (
	"net/http"
	"time"
)

// requestTimeout bounds a single upstream call end to end. NWIS normally
// answers in well under a second; anything slower is worth abandoning and
// retrying at the caller's backoff schedule.
const requestTimeout = 30 * time.Second

// NewClient returns the client used for all upstream HTTP fetches.
func NewClient() *http.Client {
	return &http.Client{
		Timeout: requestTimeout,
	}
}
