package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

// maxUpstreamBody bounds how much of an upstream response is read into memory.
const maxUpstreamBody = 1 << 20

type upstreamResponse struct {
	Status int
	Body   []byte
}

type upstreamStatusError struct {
	Status int
	Body   string
}

func (e *upstreamStatusError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.Status, e.Body)
}

// upstream is an HTTP client guarded by a circuit breaker. Only transport failures and 5xx
// responses count against the breaker; 4xx responses are answers and are handed back to the caller.
type upstream struct {
	name    string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func newUpstream(name string, client *http.Client, logger *slog.Logger) *upstream {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			// An abandoned lookup cancelled by its caller says nothing about upstream health.
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("upstream breaker state changed",
				"event", "breaker_state_change",
				"upstream", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &upstream{name: name, client: client, breaker: breaker}
}

// do sends req and returns the status and body. Errors wrap ErrUpstream.
func (u *upstream) do(req *http.Request) (upstreamResponse, error) {
	out, err := u.breaker.Execute(func() (interface{}, error) {
		resp, err := u.client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, &upstreamStatusError{Status: resp.StatusCode, Body: truncate(string(body), 256)}
		}
		return upstreamResponse{Status: resp.StatusCode, Body: body}, nil
	})
	if err != nil {
		return upstreamResponse{}, fmt.Errorf("%w: %s %s: %w", ErrUpstream, u.name, req.URL.Path, err)
	}
	return out.(upstreamResponse), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
