package monitor

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// Metrics holds the prometheus instruments for the decoy.
type Metrics struct {
	connectionsTotal  prometheus.Counter
	activeConnections prometheus.Gauge
	handshakesTotal   *prometheus.CounterVec
	repliesTotal      *prometheus.CounterVec
	protocolErrors    prometheus.Counter
}

// NewMetrics registers the instruments with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connectionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fakemc",
			Name:      "connections_total",
			Help:      "Total accepted connections",
		}),
		activeConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "fakemc",
			Name:      "active_connections",
			Help:      "Sessions currently in flight",
		}),
		handshakesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fakemc",
			Name:      "handshakes_total",
			Help:      "Decoded handshakes by declared intent",
		}, []string{"intent"}),
		repliesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fakemc",
			Name:      "replies_total",
			Help:      "Outbound reply packets by kind",
		}, []string{"kind"}),
		protocolErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "fakemc",
			Name:      "protocol_errors_total",
			Help:      "Sessions aborted by malformed or unexpected input",
		}),
	}
}

// ConnectionOpened records an accepted connection.
func (m *Metrics) ConnectionOpened() {
	m.connectionsTotal.Inc()
	m.activeConnections.Inc()
}

// ConnectionClosed records a finished session.
func (m *Metrics) ConnectionClosed() {
	m.activeConnections.Dec()
}

// Handshake records a decoded handshake with its intent label
// ("status", "login" or "other").
func (m *Metrics) Handshake(intent string) {
	m.handshakesTotal.WithLabelValues(intent).Inc()
}

// Reply records an outbound reply packet ("status", "pong" or "kick").
func (m *Metrics) Reply(kind string) {
	m.repliesTotal.WithLabelValues(kind).Inc()
}

// ProtocolError records a session aborted on bad input.
func (m *Metrics) ProtocolError() {
	m.protocolErrors.Inc()
}

// Serve exposes the metrics and health endpoints until ctx is cancelled.
func Serve(ctx context.Context, cfg *config.Config, logger zerolog.Logger, gatherer prometheus.Gatherer) error {
	log := logger.With().Str("component", "monitor").Logger()

	r := chi.NewRouter()
	r.Get(cfg.Monitoring.HealthCheckPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle(cfg.Monitoring.MetricsPath, promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              cfg.GetMetricsAddress(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("address", srv.Addr).Msg("metrics endpoint listening")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
