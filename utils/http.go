// utils/http.go
package utils

import (
	"net/http"
	"time"
)

// NewUpstreamHTTPClient is shared by the social graph and address book clients. Per-call deadlines
// come from the verification race, so the client timeout is only a backstop for abandoned calls.
func NewUpstreamHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 30 * time.Second,
	}
}
