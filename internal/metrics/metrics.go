// Package metrics собирает метрики движка наград в собственный реестр Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rewards"

// Metrics: все метрики сервиса.
type Metrics struct {
	registry *prometheus.Registry

	issued        *prometheus.CounterVec
	issuedCoins   *prometheus.CounterVec
	denied        *prometheus.CounterVec
	failures      *prometheus.CounterVec
	compensations *prometheus.CounterVec
	poolBalance   prometheus.Gauge
	pending       prometheus.Gauge

	requests  *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// New создаёт и регистрирует метрики.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issued_total",
			Help:      "Выданные ежедневные награды.",
		}, []string{"kind"}),
		issuedCoins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "issued_coins_total",
			Help:      "Монеты, выплаченные из пула.",
		}, []string{"kind"}),
		denied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "denied_total",
			Help:      "Штатные отказы в награде по причинам.",
		}, []string{"kind", "status"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_total",
			Help:      "Сбои выдачи по шагу, на котором они произошли.",
		}, []string{"kind", "step"}),
		compensations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Компенсирующие операции (откаты пула и кошельков).",
		}, []string{"step"}),
		poolBalance: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_balance",
			Help:      "Текущий баланс общего пула.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_commits",
			Help:      "Отложенные награды, ожидающие срабатывания таймера.",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP-запросы к API.",
		}, []string{"route", "method", "status"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Длительность HTTP-запросов.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		m.issued, m.issuedCoins, m.denied, m.failures, m.compensations,
		m.poolBalance, m.pending, m.requests, m.durations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler отдаёт метрики для /metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Issued(kind string, amount int64) {
	m.issued.WithLabelValues(kind).Inc()
	m.issuedCoins.WithLabelValues(kind).Add(float64(amount))
}

func (m *Metrics) Denied(kind, status string) {
	m.denied.WithLabelValues(kind, status).Inc()
}

func (m *Metrics) Failure(kind, step string) {
	m.failures.WithLabelValues(kind, step).Inc()
}

func (m *Metrics) Compensation(step string) {
	m.compensations.WithLabelValues(step).Inc()
}

// ObservePoolBalance обновляет баланс пула.
func (m *Metrics) ObservePoolBalance(balance int64) {
	m.poolBalance.Set(float64(balance))
}

// SetPending обновляет число ожидающих наград.
func (m *Metrics) SetPending(n int) {
	m.pending.Set(float64(n))
}

// ObserveRequest учитывает один HTTP-запрос.
func (m *Metrics) ObserveRequest(route, method string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	m.durations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}
