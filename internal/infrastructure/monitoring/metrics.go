package monitoring

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "pipebench"

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Run metrics
	RunsTotal          *prometheus.CounterVec
	RunDuration        prometheus.Histogram
	RunInProgress      prometheus.Gauge
	Throughput         prometheus.Gauge
	BaselineThroughput prometheus.Gauge
	VerifyErrors       prometheus.Counter
	GuardState         prometheus.Gauge

	// Live run metrics
	QueueDepth     *prometheus.GaugeVec
	StageProcessed *prometheus.GaugeVec
	ItemsReceived  prometheus.Gauge

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	Uptime    prometheus.Gauge
	startTime time.Time
	stop      chan struct{}
	closeOnce sync.Once

	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	RunsCompleted int64   `json:"runs_completed"`
	RunsAborted   int64   `json:"runs_aborted"`
	LastMpps      float64 `json:"last_mpps"`
	LastBaseline  float64 `json:"last_baseline_mpps"`
	TotalErrors   int64   `json:"total_errors"`
	Subscribers   int64   `json:"subscribers"`
	TotalRequests int64   `json:"total_requests"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector with its own registry, including the
// Go runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		stop:      make(chan struct{}),

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"method", "path"},
		),

		RunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of benchmark runs by outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_elapsed_seconds",
				Help:      "Timed region of completed runs in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 16),
			},
		),
		RunInProgress: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_in_progress",
				Help:      "1 while a run is executing",
			},
		),
		Throughput: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "throughput_mpps",
				Help:      "Throughput of the last completed run in million items per second",
			},
		),
		BaselineThroughput: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "baseline_throughput_mpps",
				Help:      "Single-threaded throughput of the last completed run",
			},
		),
		VerifyErrors: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "verify_errors_total",
				Help:      "Items that failed verification across all runs",
			},
		),

		QueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "queue_depth",
				Help:      "Sampled occupancy of each queue of the live run",
			},
			[]string{"queue"},
		),
		StageProcessed: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stage_processed_items",
				Help:      "Items transformed by each stage of the live run",
			},
			[]string{"stage"},
		),
		GuardState: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "run_guard_state",
				Help:      "Stall guard state (0 closed, 1 trial, 2 open)",
			},
		),
		ItemsReceived: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "items_received",
				Help:      "Items drained by the consumer of the live run",
			},
		),

		WSConnections: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ws_connections",
				Help:      "Number of live feed subscribers",
			},
		),
		WSMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ws_messages_total",
				Help:      "Live feed messages sent",
			},
			[]string{"type"},
		),

		Uptime: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "uptime_seconds",
				Help:      "Process uptime in seconds",
			},
		),
	}

	go m.updateUptime()

	return m
}

// Registry returns the registry all metrics are registered with.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Close stops the uptime updater.
func (m *Metrics) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
}

func (m *Metrics) updateUptime() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Uptime.Set(time.Since(m.startTime).Seconds())
		}
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.mu.Unlock()
}

// RunStarted marks a run as executing.
func (m *Metrics) RunStarted() {
	m.RunInProgress.Set(1)
	m.ItemsReceived.Set(0)
	m.QueueDepth.Reset()
	m.StageProcessed.Reset()
}

// RecordRun records the outcome of a finished run. Throughput figures are
// only taken from completed runs.
func (m *Metrics) RecordRun(outcome string, elapsed time.Duration, mpps, baselineMpps float64, errors int) {
	m.RunInProgress.Set(0)
	m.RunsTotal.WithLabelValues(outcome).Inc()
	m.VerifyErrors.Add(float64(errors))

	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshot.TotalErrors += int64(errors)
	if outcome != OutcomeCompleted {
		m.snapshot.RunsAborted++
		return
	}
	m.RunDuration.Observe(elapsed.Seconds())
	m.Throughput.Set(mpps)
	m.BaselineThroughput.Set(baselineMpps)
	m.snapshot.RunsCompleted++
	m.snapshot.LastMpps = mpps
	m.snapshot.LastBaseline = baselineMpps
}

// Run outcomes.
const (
	OutcomeCompleted = "completed"
	OutcomeAborted   = "aborted"
	OutcomeRejected  = "rejected"
)

// SetLive updates the sampled state of the live run.
func (m *Metrics) SetLive(depths []int, processed []int64, received int64) {
	for i, d := range depths {
		m.QueueDepth.WithLabelValues(strconv.Itoa(i)).Set(float64(d))
	}
	for i, p := range processed {
		m.StageProcessed.WithLabelValues(strconv.Itoa(i)).Set(float64(p))
	}
	m.ItemsReceived.Set(float64(received))
}

// RecordWSMessage records a live feed message
func (m *Metrics) RecordWSMessage(msgType string) {
	m.WSMessages.WithLabelValues(msgType).Inc()
}

// IncWSConnections increments live feed subscribers
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.Subscribers++
	m.mu.Unlock()
}

// DecWSConnections decrements live feed subscribers
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.Subscribers--
	m.mu.Unlock()
}

// Snapshot returns the current values for the JSON API.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
