package health

import (
	"os"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"

	"github.com/elastic/go-ingest/pkg/ingest"
)

// ChannelStatsProvider is satisfied by any ingest.Channel[E, R],
// regardless of its type parameters, since Stats is not itself generic.
type ChannelStatsProvider interface {
	Stats() ingest.Stats
}

// ChannelHealth is one channel's counters, named for display.
type ChannelHealth struct {
	Name            string
	InFlightBatches int64
	BulkRequests    int64
	Retries         int64
	Rejections      int64
}

// ProcessHealth is this process's own resource usage.
type ProcessHealth struct {
	Status        string
	Goroutines    int
	UptimeSeconds int64
	CPUPercent    float64
	MemoryMB      float64
	MemoryPercent float32
}

// Report is one point-in-time health snapshot.
type Report struct {
	Timestamp time.Time
	Process   ProcessHealth
	Channels  []ChannelHealth
}

// Collector gathers a Report from registered channels and the current
// process, caching the result for a short TTL to keep a hot /healthz
// endpoint cheap.
type Collector struct {
	channels  map[string]ChannelStatsProvider
	startTime time.Time

	mu            sync.RWMutex
	cached        *Report
	cacheExpiry   time.Time
	cacheDuration time.Duration
}

// NewCollector builds a Collector over the given named channels.
func NewCollector(channels map[string]ChannelStatsProvider) *Collector {
	return &Collector{
		channels:      channels,
		startTime:     time.Now(),
		cacheDuration: 10 * time.Second,
	}
}

// Report returns the current health snapshot, serving a cached value
// when one is still fresh.
func (c *Collector) Report() *Report {
	c.mu.RLock()
	if c.cached != nil && time.Now().Before(c.cacheExpiry) {
		cached := *c.cached
		c.mu.RUnlock()
		return &cached
	}
	c.mu.RUnlock()

	report := c.collect()

	c.mu.Lock()
	c.cached = report
	c.cacheExpiry = time.Now().Add(c.cacheDuration)
	c.mu.Unlock()

	return report
}

func (c *Collector) collect() *Report {
	report := &Report{
		Timestamp: time.Now(),
		Process:   c.collectProcessHealth(),
	}

	for name, ch := range c.channels {
		s := ch.Stats()
		report.Channels = append(report.Channels, ChannelHealth{
			Name:            name,
			InFlightBatches: s.InFlightBatches,
			BulkRequests:    s.BulkRequests,
			Retries:         s.Retries,
			Rejections:      s.Rejections,
		})
	}
	sort.Slice(report.Channels, func(i, j int) bool { return report.Channels[i].Name < report.Channels[j].Name })

	return report
}

func (c *Collector) collectProcessHealth() ProcessHealth {
	health := ProcessHealth{
		Status:        "healthy",
		Goroutines:    runtime.NumGoroutine(),
		UptimeSeconds: int64(time.Since(c.startTime).Seconds()),
	}

	proc, err := process.NewProcess(int32(os.Getpid()))
	if err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			health.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil {
			health.MemoryMB = float64(mem.RSS) / (1024 * 1024)
		}
		if memPct, err := proc.MemoryPercent(); err == nil {
			health.MemoryPercent = memPct
		}
	}

	if health.MemoryPercent > 90 || health.CPUPercent > 90 {
		health.Status = "degraded"
	}

	return health
}
