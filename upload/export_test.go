package upload

import "github.com/prometheus/client_golang/prometheus"

func AcceptedCounter(g *Gatekeeper, field string) prometheus.Collector {
	return g.metrics.accepted.WithLabelValues(field)
}

func RejectedCounter(g *Gatekeeper, code, kind string) prometheus.Collector {
	return g.metrics.rejected.WithLabelValues(code, kind)
}
