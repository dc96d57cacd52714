package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Registry holds the search metric vectors. One Registry may back any number
// of collectors; they are told apart by the strategy label.
type Registry struct {
	simulations *prometheus.CounterVec
	playouts    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	iterations  prometheus.Counter
	loss        prometheus.Gauge
}

func NewRegistry(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)
	return &Registry{
		simulations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkers",
			Subsystem: "search",
			Name:      "simulations_total",
			Help:      "Completed MCTS simulations",
		}, []string{"strategy"}),
		playouts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkers",
			Subsystem: "search",
			Name:      "playouts_total",
			Help:      "Rollouts by how they ended",
		}, []string{"strategy", "end"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkers",
			Subsystem: "search",
			Name:      "decision_duration_seconds",
			Help:      "Time spent choosing one move",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"strategy"}),
		iterations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "checkers",
			Subsystem: "training",
			Name:      "iterations_total",
			Help:      "Completed self-play training iterations",
		}),
		loss: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "checkers",
			Subsystem: "training",
			Name:      "loss",
			Help:      "Joint policy and value loss of the last training step",
		}),
	}
}

// ObserveTraining records one finished training iteration.
func (r *Registry) ObserveTraining(loss float64) {
	r.iterations.Inc()
	r.loss.Set(loss)
}

type prometheusCollector struct {
	Collector
	registry *Registry
	strategy string
}

// NewPrometheusCollector returns a collector that also exports its events
// to the registry.
func NewPrometheusCollector(registry *Registry) Collector {
	return &prometheusCollector{Collector: NewCollector(), registry: registry}
}

func (m *prometheusCollector) Start(strategy string, simulations, rolloutDepth int) {
	m.strategy = strategy
	m.Collector.Start(strategy, simulations, rolloutDepth)
}

func (m *prometheusCollector) AddSimulation() {
	m.Collector.AddSimulation()
	m.registry.simulations.WithLabelValues(m.strategy).Inc()
}

func (m *prometheusCollector) AddFullPlayout() {
	m.Collector.AddFullPlayout()
	m.registry.playouts.WithLabelValues(m.strategy, "terminal").Inc()
}

func (m *prometheusCollector) AddTruncatedPlayout() {
	m.Collector.AddTruncatedPlayout()
	m.registry.playouts.WithLabelValues(m.strategy, "truncated").Inc()
}

func (m *prometheusCollector) AddDegeneratePlayout() {
	m.Collector.AddDegeneratePlayout()
	m.registry.playouts.WithLabelValues(m.strategy, "degenerate").Inc()
}

func (m *prometheusCollector) Complete() SearchMetric {
	metric := m.Collector.Complete()
	m.registry.duration.WithLabelValues(m.strategy).Observe(metric.Duration.Seconds())
	return metric
}

// Serve exposes the gatherer on /metrics until ctx is cancelled.
func Serve(ctx context.Context, address string, gatherer prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: address, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdown); err != nil {
			log.Warn().Err(err).Msg("metrics server shutdown")
		}
	}()

	log.Info().Msgf("serving metrics on %s/metrics", address)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
