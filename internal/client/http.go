package client

import (
	"net"
	"net/http"
	"time"
)

// NewHTTPClient creates an HTTP client sized for a pool of concurrent dispatchers.
// Per-request timeouts come from the request context, not from the client.
func NewHTTPClient(workers int) *http.Client {
	return &http.Client{
		Transport: NewHTTPTransport(workers),
	}
}

// NewHTTPTransport creates a transport whose idle pool can hold one
// keep-alive connection per worker with headroom.
func NewHTTPTransport(workers int) *http.Transport {
	workers = max(workers, 1)
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          workers * 2,
		MaxIdleConnsPerHost:   workers * 2,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: 0,
		DisableCompression:    true,
		ForceAttemptHTTP2:     false,
	}
}
