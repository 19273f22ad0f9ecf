package metrics

import (
	"errors"
	"time"

	"beershop/pkg/customerrors"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	//Request duration histogram with method, route, and status labels
	RequestDuration *prometheus.HistogramVec
	//Login attempts counter
	LoginAttempts *prometheus.CounterVec
	//Total errors counter with error kind label
	TotalErrors *prometheus.CounterVec
	//Database query duration histogram with query type and status labels
	DbQueryDuration *prometheus.HistogramVec
	//Requests stopped by a gate, labelled by gate and error kind
	GateRejections *prometheus.CounterVec
	//Outbound calls made on behalf of clients, labelled by result
	OutboundRequests *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name: "request_duration_seconds",
			Help: "Duration of HTTP requests in seconds."},
			[]string{"method", "route", "status"},
		),
		LoginAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts.",
		},
			[]string{"status"},
		),
		TotalErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "total_errors_total",
				Help: "Number of total errors.",
			},
			[]string{"error_type"},
		),
		DbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Duration of database queries in seconds.",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
			[]string{"query_type", "status"},
		),
		GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gate_rejections_total",
			Help: "Requests terminated by a policy gate.",
		},
			[]string{"gate", "kind"},
		),
		OutboundRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "outbound_requests_total",
			Help: "Outbound requests issued or refused by the SSRF guard.",
		},
			[]string{"result"},
		),
	}
	reg.MustRegister(
		m.RequestDuration,
		m.LoginAttempts,
		m.TotalErrors,
		m.DbQueryDuration,
		m.GateRejections,
		m.OutboundRequests,
	)
	return m
}

// ObserveDB records the duration and status of one repository call.
func (m *Metrics) ObserveDB(queryName string, start time.Time, err error) {
	if m == nil {
		return
	}
	duration := time.Since(start).Seconds()

	status := "ok"
	if err != nil {
		switch {
		case errors.Is(err, customerrors.ErrNotFound), errors.Is(err, customerrors.ErrSessionNotFound):
			status = "not_found"
		case errors.Is(err, customerrors.ErrDuplicate):
			status = "duplicate"
		default:
			status = "error"
		}
	}

	m.DbQueryDuration.WithLabelValues(queryName, status).Observe(duration)
}

// ObserveGate counts a request rejected by gate.
func (m *Metrics) ObserveGate(gate string, err error) {
	if m == nil {
		return
	}
	m.GateRejections.WithLabelValues(gate, string(customerrors.KindOf(err))).Inc()
}

// ObserveLogin counts a login attempt by outcome.
func (m *Metrics) ObserveLogin(err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = string(customerrors.KindOf(err))
	}
	m.LoginAttempts.WithLabelValues(status).Inc()
}

// ObserveOutbound counts an outbound fetch by outcome.
func (m *Metrics) ObserveOutbound(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = string(customerrors.KindOf(err))
	}
	m.OutboundRequests.WithLabelValues(result).Inc()
}
