package stress

import (
	"maps"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Latencies are recorded in microseconds, from 1µs to 60s.
const (
	minLatencyUs = 1
	maxLatencyUs = 60_000_000
)

func newHistogram() *hdrhistogram.Histogram {
	return hdrhistogram.New(minLatencyUs, maxLatencyUs, 3)
}

func latencyUs(d time.Duration) int64 {
	return min(max(d.Microseconds(), minLatencyUs), maxLatencyUs)
}

func quantile(h *hdrhistogram.Histogram, q float64) time.Duration {
	return time.Duration(h.ValueAtQuantile(q)) * time.Microsecond
}

// Metrics collects and aggregates stress run metrics. It is safe for
// concurrent use.
type Metrics struct {
	mu sync.RWMutex

	totalRequests   atomic.Int64
	successRequests atomic.Int64
	errorRequests   atomic.Int64
	timeoutRequests atomic.Int64
	inFlight        atomic.Int32

	histogram   *hdrhistogram.Histogram
	targets     map[string]*TargetMetrics
	statusCodes map[int]int64

	timeSeries    []TimePoint
	lastTimePoint time.Time

	startTime time.Time
	endTime   time.Time
}

// TargetMetrics holds the counters of one named target.
type TargetMetrics struct {
	Name      string
	Total     atomic.Int64
	Success   atomic.Int64
	Errors    atomic.Int64
	Histogram *hdrhistogram.Histogram
	mu        sync.Mutex
}

// TimePoint represents a point in time for the time series
type TimePoint struct {
	Timestamp time.Time
	Requests  int64
	Errors    int64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	InFlight  int32
	RPS       float64
}

func NewMetrics() *Metrics {
	return &Metrics{
		histogram:   newHistogram(),
		targets:     make(map[string]*TargetMetrics),
		statusCodes: make(map[int]int64),
		timeSeries:  make([]TimePoint, 0, 1000),
	}
}

// Start marks the beginning of the run
func (m *Metrics) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startTime = time.Now()
	m.lastTimePoint = m.startTime
}

// Stop marks the end of the run
func (m *Metrics) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.endTime = time.Now()
}

// Record records a completed dispatch. A non-nil err counts as a failure.
func (m *Metrics) Record(name string, duration time.Duration, err error) {
	m.totalRequests.Add(1)
	if err != nil {
		m.errorRequests.Add(1)
	} else {
		m.successRequests.Add(1)
	}

	m.mu.Lock()
	_ = m.histogram.RecordValue(latencyUs(duration))
	m.mu.Unlock()

	if name == "" {
		return
	}
	tm := m.target(name)
	tm.Total.Add(1)
	if err != nil {
		tm.Errors.Add(1)
	} else {
		tm.Success.Add(1)
	}

	tm.mu.Lock()
	_ = tm.Histogram.RecordValue(latencyUs(duration))
	tm.mu.Unlock()
}

// RecordTimeout records a dispatch cut short by the end of the run or a
// client timeout. It counts as an error but has no latency.
func (m *Metrics) RecordTimeout(name string) {
	m.timeoutRequests.Add(1)
	m.RecordFailure(name)
}

// RecordFailure records a dispatch that failed before a response arrived,
// for example because its request could not be resolved.
func (m *Metrics) RecordFailure(name string) {
	m.totalRequests.Add(1)
	m.errorRequests.Add(1)

	if name != "" {
		tm := m.target(name)
		tm.Total.Add(1)
		tm.Errors.Add(1)
	}
}

// RecordStatus counts a response status code.
func (m *Metrics) RecordStatus(code int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statusCodes[code]++
}

func (m *Metrics) target(name string) *TargetMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()

	tm, ok := m.targets[name]
	if !ok {
		tm = &TargetMetrics{Name: name, Histogram: newHistogram()}
		m.targets[name] = tm
	}
	return tm
}

func (m *Metrics) Begin() { m.inFlight.Add(1) }
func (m *Metrics) End()   { m.inFlight.Add(-1) }

// Snapshot captures current metrics for time series
func (m *Metrics) Snapshot() TimePoint {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := now.Sub(m.lastTimePoint).Seconds()
	if elapsed == 0 {
		elapsed = 1
	}

	total := m.totalRequests.Load()
	var prevTotal int64
	if len(m.timeSeries) > 0 {
		prevTotal = m.timeSeries[len(m.timeSeries)-1].Requests
	}

	return TimePoint{
		Timestamp: now,
		Requests:  total,
		Errors:    m.errorRequests.Load(),
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		InFlight:  m.inFlight.Load(),
		RPS:       float64(total-prevTotal) / elapsed,
	}
}

// AddTimePoint adds a time point to the series
func (m *Metrics) AddTimePoint(point TimePoint) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.timeSeries = append(m.timeSeries, point)
	m.lastTimePoint = point.Timestamp
}

// Summary is the final account of a run.
type Summary struct {
	Duration      time.Duration
	TotalRequests int64
	SuccessCount  int64
	ErrorCount    int64
	TimeoutCount  int64

	RPS         float64
	SuccessRate float64
	ErrorRate   float64

	P50    time.Duration
	P95    time.Duration
	P99    time.Duration
	Min    time.Duration
	Max    time.Duration
	Mean   time.Duration
	StdDev time.Duration

	StatusCodes map[int]int64
	Targets     map[string]*TargetSummary
	TimeSeries  []TimePoint
}

type TargetSummary struct {
	Name    string
	Total   int64
	Success int64
	Errors  int64
	P50     time.Duration
	P95     time.Duration
	P99     time.Duration
	Mean    time.Duration
}

func ratio(n, total int64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// GetSummary returns the metrics summary
func (m *Metrics) GetSummary() *Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	duration := m.endTime.Sub(m.startTime)
	if m.endTime.IsZero() {
		duration = time.Since(m.startTime)
	}

	total := m.totalRequests.Load()
	success := m.successRequests.Load()
	errs := m.errorRequests.Load()

	var rps float64
	if duration > 0 {
		rps = float64(total) / duration.Seconds()
	}

	summary := &Summary{
		Duration:      duration,
		TotalRequests: total,
		SuccessCount:  success,
		ErrorCount:    errs,
		TimeoutCount:  m.timeoutRequests.Load(),
		RPS:           rps,
		SuccessRate:   ratio(success, total),
		ErrorRate:     ratio(errs, total),
		P50:           quantile(m.histogram, 50),
		P95:           quantile(m.histogram, 95),
		P99:           quantile(m.histogram, 99),
		Min:           time.Duration(m.histogram.Min()) * time.Microsecond,
		Max:           time.Duration(m.histogram.Max()) * time.Microsecond,
		Mean:          time.Duration(m.histogram.Mean()) * time.Microsecond,
		StdDev:        time.Duration(m.histogram.StdDev()) * time.Microsecond,
		StatusCodes:   maps.Clone(m.statusCodes),
		Targets:       make(map[string]*TargetSummary, len(m.targets)),
		TimeSeries:    m.timeSeries,
	}

	for name, tm := range m.targets {
		tm.mu.Lock()
		summary.Targets[name] = &TargetSummary{
			Name:    name,
			Total:   tm.Total.Load(),
			Success: tm.Success.Load(),
			Errors:  tm.Errors.Load(),
			P50:     quantile(tm.Histogram, 50),
			P95:     quantile(tm.Histogram, 95),
			P99:     quantile(tm.Histogram, 99),
			Mean:    time.Duration(tm.Histogram.Mean()) * time.Microsecond,
		}
		tm.mu.Unlock()
	}

	return summary
}

// CurrentStats returns current statistics for real-time display
type CurrentStats struct {
	Elapsed   time.Duration
	Total     int64
	Success   int64
	Errors    int64
	RPS       float64
	P50       time.Duration
	P95       time.Duration
	P99       time.Duration
	Max       time.Duration
	InFlight  int32
	ErrorRate float64
}

func (m *Metrics) GetCurrentStats() CurrentStats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	elapsed := time.Since(m.startTime)
	total := m.totalRequests.Load()
	errs := m.errorRequests.Load()

	var rps float64
	if elapsed > 0 {
		rps = float64(total) / elapsed.Seconds()
	}

	return CurrentStats{
		Elapsed:   elapsed,
		Total:     total,
		Success:   m.successRequests.Load(),
		Errors:    errs,
		RPS:       rps,
		P50:       quantile(m.histogram, 50),
		P95:       quantile(m.histogram, 95),
		P99:       quantile(m.histogram, 99),
		Max:       time.Duration(m.histogram.Max()) * time.Microsecond,
		InFlight:  m.inFlight.Load(),
		ErrorRate: ratio(errs, total),
	}
}

// EvaluateThresholds checks s against t. Only configured thresholds produce
// a result.
func (s *Summary) EvaluateThresholds(t Thresholds) []ThresholdResult {
	var results []ThresholdResult

	latency := func(name string, limit, actual time.Duration) {
		if limit > 0 {
			results = append(results, ThresholdResult{
				Name:     name,
				Passed:   actual <= limit,
				Expected: "< " + limit.String(),
				Actual:   actual.String(),
			})
		}
	}
	latency("p50", t.P50, s.P50)
	latency("p95", t.P95, s.P95)
	latency("p99", t.P99, s.P99)
	latency("max latency", t.MaxLatency, s.Max)

	if t.ErrorRate > 0 {
		results = append(results, ThresholdResult{
			Name:     "error rate",
			Passed:   s.ErrorRate <= t.ErrorRate,
			Expected: "< " + formatPercent(t.ErrorRate),
			Actual:   formatPercent(s.ErrorRate),
		})
	}

	if t.MinRPS > 0 {
		results = append(results, ThresholdResult{
			Name:     "min RPS",
			Passed:   s.RPS >= t.MinRPS,
			Expected: "> " + formatFloat(t.MinRPS),
			Actual:   formatFloat(s.RPS),
		})
	}

	return results
}

func formatPercent(f float64) string {
	return formatFloat(f*100) + "%"
}

func formatFloat(f float64) string {
	if f == float64(int(f)) {
		return strconv.Itoa(int(f))
	}
	return strconv.FormatFloat(f, 'f', 2, 64)
}
