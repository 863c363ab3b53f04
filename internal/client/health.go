package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

const DefaultProbeTimeout = 5 * time.Second

type ProbeResult struct {
	URL        string        `json:"url"`
	Reachable  bool          `json:"reachable"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency"`
	Error      string        `json:"error,omitempty"`
}

// Probe sends a single health request to url with its own timeout.
// Any 2xx response counts as reachable.
func Probe(ctx context.Context, httpClient *http.Client, url string, timeout time.Duration) ProbeResult {
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	result := ProbeResult{URL: url}

	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := BuildRequest(reqCtx, url)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	start := time.Now()
	resp, err := httpClient.Do(req)
	result.Latency = time.Since(start)
	if err != nil {
		result.Error = fmt.Sprintf("health check failed: %v", err)
		return result
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	_ = resp.Body.Close()

	result.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		result.Error = fmt.Sprintf("unexpected status code: %d", resp.StatusCode)
		return result
	}
	result.Reachable = true
	return result
}
