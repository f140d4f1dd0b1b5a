package server

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"shootboard/internal/domain"
	"shootboard/internal/repo"
)

type metrics struct {
	requests *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "shootboard",
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Store operations served over HTTP by kind, operation and outcome.",
		}, []string{"kind", "op", "outcome"}),
	}
	if err := reg.Register(m.requests); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		m.requests = are.ExistingCollector.(*prometheus.CounterVec)
	}
	return m, nil
}

func (m *metrics) observe(k domain.Kind, op string, err error) {
	m.requests.WithLabelValues(string(k), op, outcome(err)).Inc()
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, repo.ErrNotFound):
		return "not_found"
	default:
		return "error"
	}
}
