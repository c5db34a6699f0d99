package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Frame drop reasons
const (
	DropThrottled  = "throttled"
	DropSuperseded = "superseded"
	DropDecode     = "decode"
)

// Session teardown reasons
const (
	TeardownDisconnect    = "disconnect"
	TeardownProtocolError = "protocol_error"
	TeardownSendFailed    = "send_failed"
	TeardownReplaced      = "replaced"
	TeardownPanic         = "panic"
)

// Metrics provides observability for the session pipeline.
// All methods are safe to call on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	FramesReceived   prometheus.Counter
	FramesDropped    *prometheus.CounterVec
	FramesProcessed  *prometheus.CounterVec
	StageLatency     *prometheus.HistogramVec
	InferenceErrors  *prometheus.CounterVec
	ProductsAdded    prometheus.Counter
	Checkouts        *prometheus.CounterVec
	ActiveSessions   prometheus.Gauge
	SessionTeardowns *prometheus.CounterVec
}

// New creates a Metrics instance on its own registry, so several servers can
// coexist in one process (tests).
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		FramesReceived: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_frames_received_total",
			Help: "Frames received from kiosk connections",
		}),

		FramesDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_frames_dropped_total",
			Help: "Frames discarded before reaching a stage",
		}, []string{"reason"}), // reason: "throttled", "superseded", "decode"

		FramesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_frames_processed_total",
			Help: "Frames processed by a pipeline stage",
		}, []string{"stage"}),

		StageLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kiosk_stage_duration_seconds",
			Help:    "Duration of a pipeline stage including inference",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"stage"}),

		InferenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_inference_errors_total",
			Help: "Failed inference calls by stage",
		}, []string{"stage"}),

		ProductsAdded: factory.NewCounter(prometheus.CounterOpts{
			Name: "kiosk_products_added_total",
			Help: "Detected products forwarded to carts",
		}),

		Checkouts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_checkouts_total",
			Help: "Checkout attempts by result",
		}, []string{"result"}), // result: "committed", "rejected", "failed"

		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kiosk_active_sessions",
			Help: "Live kiosk sessions",
		}),

		SessionTeardowns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kiosk_session_teardowns_total",
			Help: "Session teardowns by reason",
		}, []string{"reason"}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) FrameReceived() {
	if m != nil {
		m.FramesReceived.Inc()
	}
}

func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.FramesDropped.WithLabelValues(reason).Inc()
	}
}

// FrameProcessed records a frame that ran through stage and how long it took
func (m *Metrics) FrameProcessed(stage string, d time.Duration) {
	if m != nil {
		m.FramesProcessed.WithLabelValues(stage).Inc()
		m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
	}
}

func (m *Metrics) InferenceError(stage string) {
	if m != nil {
		m.InferenceErrors.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) ProductAdded() {
	if m != nil {
		m.ProductsAdded.Inc()
	}
}

func (m *Metrics) Checkout(result string) {
	if m != nil {
		m.Checkouts.WithLabelValues(result).Inc()
	}
}

func (m *Metrics) SetActiveSessions(n int) {
	if m != nil {
		m.ActiveSessions.Set(float64(n))
	}
}

func (m *Metrics) SessionTornDown(reason string) {
	if m != nil {
		m.SessionTeardowns.WithLabelValues(reason).Inc()
	}
}
