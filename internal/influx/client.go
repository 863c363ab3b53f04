package influx

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/InfluxCommunity/influxdb3-go/influxdb3"
	"go.uber.org/zap"

	"envbench/internal/orchestrator"
)

const (
	writeBatchSize = 5000
	writeTimeout   = 30 * time.Second
)

type point struct {
	measurement string
	tags        map[string]string
	fields      map[string]any
	ts          time.Time
}

type pointWriter interface {
	write(ctx context.Context, points []point) error
	close() error
}

type influxWriter struct {
	client *influxdb3.Client
}

func (w influxWriter) write(ctx context.Context, points []point) error {
	out := make([]*influxdb3.Point, len(points))
	for i, p := range points {
		out[i] = influxdb3.NewPoint(p.measurement, p.tags, p.fields, p.ts)
	}
	return w.client.WritePoints(ctx, out)
}

func (w influxWriter) close() error {
	return w.client.Close()
}

// Client exports run data to InfluxDB 3 as the run progresses. Writes are
// asynchronous; failures are logged and counted, never returned. A nil
// *Client is valid and does nothing.
type Client struct {
	orchestrator.BaseObserver

	ctx        context.Context
	writer     pointWriter
	sampleRate float64
	logger     *zap.Logger

	mu     sync.Mutex
	runID  string
	wg     sync.WaitGroup
	failed atomic.Int64
}

func NewClient(ctx context.Context, cfg Config, logger *zap.Logger) (*Client, error) {
	client, err := influxdb3.New(influxdb3.ClientConfig{
		Host:     cfg.Url,
		Token:    cfg.Token,
		Database: cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}
	return newClient(ctx, influxWriter{client: client}, cfg.SampleRate, logger), nil
}

func newClient(ctx context.Context, writer pointWriter, sampleRatePct float64, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		ctx:        ctx,
		writer:     writer,
		sampleRate: min(max(sampleRatePct, 0), 100) / 100,
		logger:     logger,
	}
}

// Wait blocks until all pending writes have finished.
func (c *Client) Wait() {
	if c == nil {
		return
	}
	c.wg.Wait()
}

// Close waits for pending writes and releases the client.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.wg.Wait()
	if err := c.writer.close(); err != nil {
		c.logger.Warn("failed to close InfluxDB client", zap.Error(err))
	}
}

// Failed returns the number of failed batch writes.
func (c *Client) Failed() int64 {
	if c == nil {
		return 0
	}
	return c.failed.Load()
}

func (c *Client) currentRunID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runID
}

func (c *Client) sampled() bool {
	switch {
	case c.sampleRate <= 0:
		return false
	case c.sampleRate >= 1:
		return true
	default:
		return rand.Float64() < c.sampleRate //nolint:gosec // statistical sampling, not security
	}
}

func (c *Client) writePointsAsync(points []point) {
	if len(points) == 0 {
		return
	}
	batch := make([]point, len(points))
	copy(batch, points)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.ctx), writeTimeout)
		defer cancel()
		if err := c.writer.write(ctx, batch); err != nil {
			c.failed.Add(1)
			c.logger.Warn("InfluxDB write failed", zap.Int("points", len(batch)), zap.Error(err))
		}
	}()
}
