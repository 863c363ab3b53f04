package cli

import (
	"fmt"
	"sync"
	"time"

	"envbench/internal/stats"
)

var spinnerChars = []rune{'⠋', '⠙', '⠹', '⠸', '⠼', '⠴', '⠦', '⠧', '⠇', '⠏'}

// ProgressSpinner renders the progress of one trial on a single line.
// Record may be called from any goroutine.
type ProgressSpinner struct {
	mu           sync.Mutex
	spinnerIndex int
	startTime    time.Time
	message      string
	done         int
	total        int
	failed       int
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}

	latencies *stats.LiveHistogram
}

func NewProgressSpinner() *ProgressSpinner {
	return &ProgressSpinner{latencies: stats.NewLiveHistogram()}
}

func (p *ProgressSpinner) Start(message string, total int) {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return
	}
	p.startTime = time.Now()
	p.message = message
	p.total = total
	p.done = 0
	p.failed = 0
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.latencies.Reset()
	p.mu.Unlock()

	go p.run()
}

// Record counts one resolved request. Latency is only recorded for successes.
func (p *ProgressSpinner) Record(latency time.Duration, ok bool) {
	if ok {
		p.latencies.Record(latency)
	}
	p.mu.Lock()
	p.done++
	if !ok {
		p.failed++
	}
	p.mu.Unlock()
}

func (p *ProgressSpinner) run() {
	defer close(p.doneCh)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			p.clearLine()
			return
		case <-ticker.C:
			p.render()
		}
	}
}

func (p *ProgressSpinner) render() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}

	spinner := spinnerChars[p.spinnerIndex]
	p.spinnerIndex = (p.spinnerIndex + 1) % len(spinnerChars)

	elapsed := time.Since(p.startTime)
	mins := int(elapsed.Minutes())
	secs := int(elapsed.Seconds()) % 60

	line := fmt.Sprintf("%s  %c %s  [%d/%d]  failed: %d  p50: %s  p99: %s  elapsed: %dm%02ds",
		Indent,
		spinner,
		p.message,
		p.done, p.total,
		p.failed,
		FormatLatency(p.latencies.Quantile(50)),
		FormatLatency(p.latencies.Quantile(99)),
		mins, secs,
	)
	p.mu.Unlock()

	fmt.Printf("\r\033[K%s", line)
}

func (p *ProgressSpinner) clearLine() {
	fmt.Print("\r\033[K")
}

func (p *ProgressSpinner) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh
}
