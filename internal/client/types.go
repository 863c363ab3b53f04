package client

import (
	"fmt"
	"time"
)

// Outcome classifies how a single request ended.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeHTTPError
	OutcomeTimeout
	OutcomeConnectionError
)

var outcomeNames = [...]string{
	OutcomeSuccess:         "success",
	OutcomeHTTPError:       "http_error",
	OutcomeTimeout:         "timeout",
	OutcomeConnectionError: "connection_error",
}

func (o Outcome) String() string {
	if o < 0 || int(o) >= len(outcomeNames) {
		return fmt.Sprintf("outcome(%d)", int(o))
	}
	return outcomeNames[o]
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for i, name := range outcomeNames {
		if name == string(text) {
			*o = Outcome(i)
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// RequestSample is the outcome of one dispatched request.
type RequestSample struct {
	Start      time.Time     `json:"start"`
	Latency    time.Duration `json:"latency,omitempty"`
	Completed  bool          `json:"completed"`
	Outcome    Outcome       `json:"outcome"`
	StatusCode int           `json:"status_code,omitempty"`
	Bytes      int64         `json:"bytes,omitempty"`
	Err        string        `json:"error,omitempty"`
}

// Succeeded reports whether the request returned a 2xx/3xx response.
func (s *RequestSample) Succeeded() bool {
	return s.Outcome == OutcomeSuccess
}

// HasLatency reports whether a response arrived and Latency is meaningful.
func (s *RequestSample) HasLatency() bool {
	return s.Completed
}

// TimeoutSample builds the sample recorded for a request that was not
// resolved before its trial was cancelled.
func TimeoutSample(start time.Time, reason string) RequestSample {
	return RequestSample{
		Start:   start,
		Outcome: OutcomeTimeout,
		Err:     reason,
	}
}
