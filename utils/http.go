// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// NewHTTPClient returns a client whose timeout leaves room for a long poll
// of pollTimeout on top of normal request latency.
func NewHTTPClient(pollTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: pollTimeout + 15*time.Second,
	}
}
