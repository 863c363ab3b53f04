package resources

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Reading is one raw observation of host metrics.
type Reading struct {
	CPUPercent    float64
	MemoryBytes   uint64
	MemoryPercent float64
	NetBytesSent  uint64
	NetBytesRecv  uint64
}

// Source reads host metrics. Implementations must be safe to call from a
// single goroutine repeatedly.
type Source interface {
	Read(ctx context.Context) (Reading, error)
}

// HostSource reads CPU, memory and network counters of the local host.
// CPU usage is computed against the previous call, so the first reading
// covers the time since process start.
type HostSource struct{}

func NewHostSource() *HostSource {
	return &HostSource{}
}

func (HostSource) Read(ctx context.Context) (Reading, error) {
	var r Reading

	percents, err := cpu.PercentWithContext(ctx, 0, false)
	if err != nil {
		return r, fmt.Errorf("failed to read cpu usage: %w", err)
	}
	if len(percents) > 0 {
		r.CPUPercent = percents[0]
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return r, fmt.Errorf("failed to read memory usage: %w", err)
	}
	r.MemoryBytes = vm.Used
	r.MemoryPercent = vm.UsedPercent

	counters, err := net.IOCountersWithContext(ctx, false)
	if err != nil {
		return r, fmt.Errorf("failed to read network counters: %w", err)
	}
	if len(counters) > 0 {
		r.NetBytesSent = counters[0].BytesSent
		r.NetBytesRecv = counters[0].BytesRecv
	}

	return r, nil
}
