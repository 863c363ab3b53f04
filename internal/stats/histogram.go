package stats

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// LiveHistogram is a mutex-guarded HDR histogram used for progress display
// while a trial is running. Reported trial percentiles never come from it.
type LiveHistogram struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

// NewLiveHistogram tracks latencies from 1µs to 10min with 3 significant figures.
func NewLiveHistogram() *LiveHistogram {
	return &LiveHistogram{
		hist: hdrhistogram.New(1, int64(10*time.Minute/time.Microsecond), 3),
	}
}

func (h *LiveHistogram) Record(d time.Duration) {
	us := max(d.Microseconds(), 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	// values above the highest trackable value are dropped
	_ = h.hist.RecordValue(us)
}

// Quantile returns the latency at q (0-100).
func (h *LiveHistogram) Quantile(q float64) time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return time.Duration(h.hist.ValueAtQuantile(q)) * time.Microsecond
}

func (h *LiveHistogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.hist.TotalCount()
}

func (h *LiveHistogram) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.hist.Reset()
}
