package flurry

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// metrics aggregates results across workers. Latencies go into an HDR
// histogram (microsecond resolution, 1us..60s) so percentiles stay cheap
// at high request counts.
type metrics struct {
	mu           sync.Mutex
	successes    int64
	failures     int64
	statusCounts map[int]int64
	histogram    *hdrhistogram.Histogram
}

func newMetrics() *metrics {
	return &metrics{
		statusCounts: make(map[int]int64),
		histogram:    hdrhistogram.New(1, 60_000_000, 3),
	}
}

func (m *metrics) record(status int, duration time.Duration, err error) {
	latencyUs := duration.Microseconds()
	if latencyUs < 1 {
		latencyUs = 1
	}
	if latencyUs > 60_000_000 {
		latencyUs = 60_000_000
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if err != nil {
		m.failures++
		return
	}

	m.statusCounts[status]++
	if status >= 200 && status < 300 {
		m.successes++
	} else {
		m.failures++
	}
	_ = m.histogram.RecordValue(latencyUs)
}

func (m *metrics) aggregate(elapsed time.Duration) *Aggregate {
	m.mu.Lock()
	defer m.mu.Unlock()

	agg := &Aggregate{
		Successes:    m.successes,
		Failures:     m.failures,
		Elapsed:      elapsed,
		StatusCounts: make(map[int]int64, len(m.statusCounts)),
	}
	for k, v := range m.statusCounts {
		agg.StatusCounts[k] = v
	}

	if m.histogram.TotalCount() > 0 {
		agg.Min = time.Duration(m.histogram.Min()) * time.Microsecond
		agg.Max = time.Duration(m.histogram.Max()) * time.Microsecond
		agg.Mean = time.Duration(m.histogram.Mean()) * time.Microsecond
		agg.P50 = time.Duration(m.histogram.ValueAtQuantile(50)) * time.Microsecond
		agg.P95 = time.Duration(m.histogram.ValueAtQuantile(95)) * time.Microsecond
		agg.P99 = time.Duration(m.histogram.ValueAtQuantile(99)) * time.Microsecond
	}

	return agg
}
