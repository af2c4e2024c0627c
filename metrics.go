package asynclife

import (
	"github.com/prometheus/client_golang/prometheus"
)

// MetricsBridge subscribes to Service and AsyncOperation state events and
// republishes them as Prometheus counters/gauges. It is an additive
// consumer of the same listener protocol every other observer uses, not a
// privileged hook wired into the state machines themselves — registering
// one is exactly like registering any other EventSink.
type MetricsBridge struct {
	serviceTransitions   *prometheus.CounterVec
	serviceState         *prometheus.GaugeVec
	operationTransitions *prometheus.CounterVec
}

// NewMetricsBridge creates a MetricsBridge and registers its collectors
// with reg. Passing prometheus.DefaultRegisterer matches the common case of
// a process-wide /metrics endpoint.
func NewMetricsBridge(reg prometheus.Registerer) *MetricsBridge {
	m := &MetricsBridge{
		serviceTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asynclife",
			Subsystem: "service",
			Name:      "transitions_total",
			Help:      "Total number of Service state transitions.",
		}, []string{"name", "from", "to"}),
		serviceState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "asynclife",
			Subsystem: "service",
			Name:      "state",
			Help:      "Current public state of a Service (0=Stopped,2=Running,4=Failed).",
		}, []string{"name"}),
		operationTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "asynclife",
			Subsystem: "operation",
			Name:      "transitions_total",
			Help:      "Total number of AsyncOperation state transitions.",
		}, []string{"name", "to"}),
	}
	reg.MustRegister(m.serviceTransitions, m.serviceState, m.operationTransitions)
	return m
}

// ObserveService registers this bridge as a listener on svc.
func (m *MetricsBridge) ObserveService(svc *Service) {
	svc.AddStateChangeListener(ServiceListenerFunc(func(target *Service, from, to State) {
		m.serviceTransitions.WithLabelValues(target.Name(), from.String(), to.String()).Inc()
		m.serviceState.WithLabelValues(target.Name()).Set(float64(to))
	}))
}

// ObserveOperation registers this bridge as a listener on op.
func (m *MetricsBridge) ObserveOperation(op *AsyncOperation) {
	op.AddStateChangeListener(EventSinkFunc(func(ev Event) {
		toVal, ok := ev.Get("to")
		if !ok {
			return
		}
		m.operationTransitions.WithLabelValues(op.Name(), toVal.(State).String()).Inc()
	}))
}
