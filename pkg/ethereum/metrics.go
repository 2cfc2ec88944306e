package ethereum

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	failoversTotal *prometheus.CounterVec
}

var (
	metricsInstance *Metrics
	once            sync.Once
)

func GetMetricsInstance(namespace string) *Metrics {
	once.Do(func() {
		metricsInstance = &Metrics{
			failoversTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "source_failovers_total",
				Help:      "Total number of requests a source failed and passed to the next one",
			}, []string{"source", "operation"}),
		}

		prometheus.MustRegister(metricsInstance.failoversTotal)
	})

	return metricsInstance
}

func (m *Metrics) IncFailovers(source, operation string) {
	if m == nil || m.failoversTotal == nil {
		return
	}

	m.failoversTotal.WithLabelValues(source, operation).Inc()
}
