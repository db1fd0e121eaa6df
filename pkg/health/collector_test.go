package health

import (
	"testing"
	"time"

	"github.com/elastic/go-ingest/pkg/ingest"
)

type fakeStatsProvider struct {
	stats ingest.Stats
}

func (f fakeStatsProvider) Stats() ingest.Stats { return f.stats }

func TestCollector_Report_MergesChannelsAndProcess(t *testing.T) {
	c := NewCollector(map[string]ChannelStatsProvider{
		"logs":    fakeStatsProvider{ingest.Stats{InFlightBatches: 1, BulkRequests: 10, Retries: 2, Rejections: 1}},
		"metrics": fakeStatsProvider{ingest.Stats{InFlightBatches: 0, BulkRequests: 5}},
	})

	report := c.Report()

	if len(report.Channels) != 2 {
		t.Fatalf("expected 2 channels, got %d", len(report.Channels))
	}
	if report.Channels[0].Name != "logs" || report.Channels[1].Name != "metrics" {
		t.Errorf("expected channels sorted by name, got %+v", report.Channels)
	}
	if report.Channels[0].BulkRequests != 10 {
		t.Errorf("expected logs.BulkRequests=10, got %d", report.Channels[0].BulkRequests)
	}
	if report.Process.Status == "" {
		t.Error("expected a non-empty process status")
	}
	if report.Process.Goroutines == 0 {
		t.Error("expected a non-zero goroutine count")
	}
}

func TestCollector_Report_ServesCachedValueWithinTTL(t *testing.T) {
	c := NewCollector(map[string]ChannelStatsProvider{
		"logs": fakeStatsProvider{ingest.Stats{BulkRequests: 1}},
	})
	c.cacheDuration = time.Hour

	first := c.Report()
	c.channels["logs"] = fakeStatsProvider{ingest.Stats{BulkRequests: 999}}
	second := c.Report()

	if second.Channels[0].BulkRequests != first.Channels[0].BulkRequests {
		t.Errorf("expected cached report to be reused, got fresh value %d", second.Channels[0].BulkRequests)
	}
}

func TestCollector_Report_RefreshesAfterExpiry(t *testing.T) {
	c := NewCollector(map[string]ChannelStatsProvider{
		"logs": fakeStatsProvider{ingest.Stats{BulkRequests: 1}},
	})
	c.cacheDuration = time.Millisecond

	first := c.Report()
	time.Sleep(5 * time.Millisecond)
	c.channels["logs"] = fakeStatsProvider{ingest.Stats{BulkRequests: 42}}
	second := c.Report()

	if second.Channels[0].BulkRequests != 42 {
		t.Errorf("expected refreshed report after TTL expiry, got %d (first was %d)", second.Channels[0].BulkRequests, first.Channels[0].BulkRequests)
	}
}
