package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/Badsnus/mediashare-bot/internal/domain/service"
	"github.com/Badsnus/mediashare-bot/pkg/logger/types"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// Reconciler exposes the outcome of reconciliation cycles
type Reconciler struct {
	registry *prometheus.Registry

	cycles        prometheus.Counter
	records       *prometheus.CounterVec
	failures      prometheus.Counter
	activeRecords prometheus.Gauge
	duration      prometheus.Histogram
	lastSuccess   prometheus.Gauge
}

func NewReconciler() *Reconciler {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Reconciler{
		registry: registry,
		cycles: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "cycles_total",
			Help:      "Completed reconciliation cycles.",
		}),
		records: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "records_total",
			Help:      "Entitlements handled by reconciliation, by outcome.",
		}, []string{"outcome"}),
		failures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "failures_total",
			Help:      "Failed external calls during reconciliation.",
		}),
		activeRecords: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "active_entitlements",
			Help:      "Non-archived entitlements seen by the last cycle.",
		}),
		duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "cycle_duration_seconds",
			Help:      "Reconciliation cycle duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		lastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "mediashare",
			Subsystem: "reconciler",
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle.",
		}),
	}
}

func (r *Reconciler) ObserveCycle(summary service.Summary, duration time.Duration) {
	r.cycles.Inc()
	r.records.WithLabelValues("expired").Add(float64(summary.Expired))
	r.records.WithLabelValues("removed").Add(float64(summary.Removed))
	r.records.WithLabelValues("warned").Add(float64(summary.Warned))
	r.records.WithLabelValues("unprovisioned").Add(float64(summary.Unprovisioned))
	r.failures.Add(float64(summary.Failures))
	r.activeRecords.Set(float64(summary.Total))
	r.duration.Observe(duration.Seconds())
	r.lastSuccess.SetToCurrentTime()
}

func (r *Reconciler) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is done
func (r *Reconciler) Serve(ctx context.Context, addr string, logger *types.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("failed to shut down metrics server: %v", err)
		}
	}()

	go func() {
		logger.Infof("Metrics endpoint listening (addr=%s)", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("metrics server stopped: %v", err)
		}
	}()
}
