package dispatcher

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/nextlevelbuilder/botsim/pkg/botapi"
)

// Outcome label values of botsim_api_calls_total.
const (
	outcomeOK    = "ok"
	outcomeError = "error"
)

// metrics holds the collectors of one server. Each server owns its registry so
// parallel tests never share counters.
type metrics struct {
	registry *prometheus.Registry

	// calls counts dispatched calls by method and outcome. Unknown methods are
	// folded into "unsupported" to keep label cardinality bounded.
	calls *prometheus.CounterVec

	// errors counts failed calls by error kind.
	errors *prometheus.CounterVec
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsim_api_calls_total",
				Help: "Total number of Bot API calls handled by the simulator.",
			},
			[]string{"method", "outcome"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botsim_api_errors_total",
				Help: "Total number of failed Bot API calls by error kind.",
			},
			[]string{"kind"},
		),
	}
	m.registry.MustRegister(m.calls, m.errors)
	return m
}

func (m *metrics) observe(method string, err error) {
	if err == nil {
		m.calls.WithLabelValues(method, outcomeOK).Inc()
		return
	}
	m.calls.WithLabelValues(method, outcomeError).Inc()
	kind := botapi.KindInternal
	if e, ok := botapi.AsError(err); ok {
		kind = e.Kind
	}
	m.errors.WithLabelValues(string(kind)).Inc()
}
