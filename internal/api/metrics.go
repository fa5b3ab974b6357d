package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics are the conversion counters exposed on /metrics.
type Metrics struct {
	registry     *prometheus.Registry
	Conversions  *prometheus.CounterVec
	Files        *prometheus.CounterVec
	Transactions *prometheus.CounterVec
}

// NewMetrics registers the counters on reg. A nil reg gets a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		registry: reg,
		Conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_converter",
			Name:      "conversions_total",
			Help:      "Convert requests by bank and outcome.",
		}, []string{"bank", "outcome"}),
		Files: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_converter",
			Name:      "files_total",
			Help:      "Statement files received by bank.",
		}, []string{"bank"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "statement_converter",
			Name:      "transactions_total",
			Help:      "Transactions produced by bank.",
		}, []string{"bank"}),
	}
	reg.MustRegister(m.Conversions, m.Files, m.Transactions)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}
