// Package metrics собирает метрики Prometheus по переходам состояний, котировкам и фоновым задачам.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics хранит счётчики сервиса. Методы допускают nil-получатель.
type Metrics struct {
	transitions         *prometheus.CounterVec
	rejections          *prometheus.CounterVec
	quotesSubmitted     prometheus.Counter
	rfqsAutoClosed      prometheus.Counter
	jobDuration         *prometheus.HistogramVec
	notificationsFailed prometheus.Counter
}

// New создаёт метрики с префиксом namespace и регистрирует их в reg.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "State transitions by entity.",
			},
			[]string{"entity", "from", "to"},
		),
		rejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rejections_total",
				Help:      "Rejected operations by entity and error kind.",
			},
			[]string{"entity", "kind"},
		),
		quotesSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_submitted_total",
			Help:      "Vendor quotes accepted for an RFQ.",
		}),
		rfqsAutoClosed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rfqs_auto_closed_total",
			Help:      "RFQs closed after their closing date.",
		}),
		jobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "job_duration_seconds",
				Help:      "Duration of scheduled jobs.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"job"},
		),
		notificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_failed_total",
			Help:      "Notifications that could not be delivered.",
		}),
	}

	reg.MustRegister(
		m.transitions,
		m.rejections,
		m.quotesSubmitted,
		m.rfqsAutoClosed,
		m.jobDuration,
		m.notificationsFailed,
	)
	return m
}

// Transition учитывает переход сущности из одного состояния в другое.
func (m *Metrics) Transition(entity, from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(entity, from, to).Inc()
}

// Rejection учитывает отказ в операции.
func (m *Metrics) Rejection(entity, kind string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(entity, kind).Inc()
}

func (m *Metrics) QuoteSubmitted() {
	if m == nil {
		return
	}
	m.quotesSubmitted.Inc()
}

func (m *Metrics) RFQAutoClosed() {
	if m == nil {
		return
	}
	m.rfqsAutoClosed.Inc()
}

func (m *Metrics) NotificationFailed() {
	if m == nil {
		return
	}
	m.notificationsFailed.Inc()
}

// ObserveJob записывает длительность задачи, начатой в start.
func (m *Metrics) ObserveJob(job string, start time.Time) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}
