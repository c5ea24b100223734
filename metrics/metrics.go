// Package metrics exposes Prometheus counters for relay operations and a
// standalone metrics server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ProposalsTotal counts accepted message proposals.
	ProposalsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_proposals_total",
		Help: "Number of accepted message proposals",
	})

	// AttestationsTotal counts recorded attestations.
	AttestationsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_attestations_total",
		Help: "Number of recorded attestations",
	})

	// ExecutionsTotal counts successfully executed messages.
	ExecutionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_executions_total",
		Help: "Number of executed messages",
	})

	// DeliveryFailuresTotal counts destination handler delivery failures.
	DeliveryFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "relay_delivery_failures_total",
		Help: "Number of failed destination deliveries",
	})
)

// MetricsServer serves the Prometheus scrape endpoint on a dedicated address.
type MetricsServer struct {
	srv *http.Server
}

// New creates a metrics server listening on addr.
func New(addr string) (*MetricsServer, error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &MetricsServer{
		srv: &http.Server{Addr: addr, Handler: mux},
	}, nil
}

// ListenAndServe blocks serving the scrape endpoint.
func (m *MetricsServer) ListenAndServe() error {
	return m.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics server.
func (m *MetricsServer) Shutdown(ctx context.Context) error {
	return m.srv.Shutdown(ctx)
}
