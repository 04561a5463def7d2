package upload

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts Gatekeeper outcomes. A nil *Metrics records nothing.
type Metrics struct {
	accepted *prometheus.CounterVec
	rejected *prometheus.CounterVec
	size     prometheus.Histogram
}

// NewMetrics registers the upload collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		accepted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialbbs",
			Subsystem: "upload",
			Name:      "accepted_total",
			Help:      "Uploaded files accepted and stored, by form field",
		}, []string{"field"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "socialbbs",
			Subsystem: "upload",
			Name:      "rejected_total",
			Help:      "Upload requests rejected, by error code and kind",
		}, []string{"code", "kind"}),
		size: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "socialbbs",
			Subsystem: "upload",
			Name:      "file_size_bytes",
			Help:      "Size of accepted files",
			Buckets:   []float64{16 << 10, 128 << 10, 512 << 10, 1 << 20, 2 << 20, 5 << 20},
		}),
	}
}

func (m *Metrics) observeAccepted(f StoredFile) {
	if m == nil {
		return
	}
	m.accepted.WithLabelValues(f.Field).Inc()
	m.size.Observe(float64(f.Size))
}

func (m *Metrics) observeRejected(e *Error) {
	if m == nil {
		return
	}
	m.rejected.WithLabelValues(string(e.Code), e.Kind().String()).Inc()
}
