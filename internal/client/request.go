package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const UserAgent = "envbench/1.0"

// BuildRequest creates the GET request sent for every dispatch.
func BuildRequest(ctx context.Context, target string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "*/*")
	return req, nil
}

// JoinURL appends path to baseURL, keeping any query string in path.
func JoinURL(baseURL, path string) string {
	base := strings.TrimRight(baseURL, "/")
	if path == "" {
		return base + "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}

// ValidateURL rejects URLs that could never be dispatched.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid url %q: missing host", raw)
	}
	return nil
}
