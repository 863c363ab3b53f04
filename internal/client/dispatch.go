package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"
)

const maxBodyBytes = 16 << 20

// Dispatcher issues single GET requests and records their outcome.
type Dispatcher struct {
	httpClient *http.Client
	timeout    time.Duration
}

func NewDispatcher(httpClient *http.Client, timeout time.Duration) (*Dispatcher, error) {
	if httpClient == nil {
		return nil, errors.New("http client is nil")
	}
	if timeout <= 0 {
		return nil, fmt.Errorf("request timeout must be positive, got %s", timeout)
	}
	return &Dispatcher{httpClient: httpClient, timeout: timeout}, nil
}

// Dispatch sends one GET to target. Network failures are reported through
// the sample outcome, never as an error. Latency stops when the response
// headers arrive; the body is drained afterwards to count bytes.
func (d *Dispatcher) Dispatch(ctx context.Context, target string) RequestSample {
	reqCtx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	sample := RequestSample{Start: start}

	req, err := BuildRequest(reqCtx, target)
	if err != nil {
		sample.Outcome = OutcomeConnectionError
		sample.Err = err.Error()
		return sample
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		sample.Latency = time.Since(start)
		sample.Outcome = Classify(err)
		sample.Err = err.Error()
		return sample
	}
	sample.Latency = time.Since(start)
	sample.Completed = true
	sample.StatusCode = resp.StatusCode

	n, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
	_ = resp.Body.Close()
	sample.Bytes = n

	if resp.StatusCode >= 200 && resp.StatusCode < 400 {
		sample.Outcome = OutcomeSuccess
	} else {
		sample.Outcome = OutcomeHTTPError
		sample.Err = resp.Status
	}
	return sample
}

// Classify maps a transport error to Timeout or ConnectionError.
func Classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return OutcomeTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeConnectionError
}
