package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics of QR transport sessions
type Metrics struct {
	SessionsTotal        *prometheus.CounterVec
	SessionDuration      *prometheus.HistogramVec
	FramesDisplayedTotal prometheus.Counter
	SymbolsReceivedTotal *prometheus.CounterVec
	SubmissionsTotal     *prometheus.CounterVec
}

// NewMetrics registers the transport metrics on reg. A nil reg keeps them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "airgap_sessions_total",
			Help: "QR transport sessions by outcome",
		}, []string{"outcome"}),
		SessionDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "airgap_session_duration_seconds",
			Help:    "Time from first displayed frame to the session outcome",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		FramesDisplayedTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "airgap_frames_displayed_total",
			Help: "Frames pushed to the display",
		}),
		SymbolsReceivedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "airgap_symbols_received_total",
			Help: "Scanned frames by ingest result",
		}, []string{"result"}),
		SubmissionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "airgap_submissions_total",
			Help: "Signed extrinsics submitted to the chain by result",
		}, []string{"result"}),
	}
}
