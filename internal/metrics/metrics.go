// Package metrics exposes magpies' own Prometheus metrics: ingestion, poll
// runs and view build latency.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "magpies"

// Recorder holds every collector, registered on its own registry so tests
// and multiple engines do not collide.
type Recorder struct {
	registry *prometheus.Registry

	// LinesTotal counts input lines by result (ok, rejected, partial).
	LinesTotal *prometheus.CounterVec

	// SamplesTotal counts samples ingested into the store.
	SamplesTotal prometheus.Counter

	// RejectedLeavesTotal counts metric leaves dropped as non-finite.
	RejectedLeavesTotal prometheus.Counter

	KnownTargets prometheus.Gauge
	KnownPaths   prometheus.Gauge

	// ViewBuildDurationSeconds is the time spent building one view model.
	ViewBuildDurationSeconds prometheus.Histogram

	// PollRunsTotal counts command invocations by target and status.
	PollRunsTotal *prometheus.CounterVec

	PollDurationSeconds *prometheus.HistogramVec

	// NavigationTotal counts applied navigation commands by command.
	NavigationTotal *prometheus.CounterVec
}

func New() *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		registry: reg,
		LinesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "input_lines_total",
				Help:      "Total number of input lines by result.",
			},
			[]string{"result"},
		),
		SamplesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "samples_total",
			Help:      "Total number of samples ingested.",
		}),
		RejectedLeavesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejected_leaves_total",
			Help:      "Total number of metric leaves rejected as non-finite numbers.",
		}),
		KnownTargets: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_targets",
			Help:      "Number of distinct targets seen.",
		}),
		KnownPaths: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "known_paths",
			Help:      "Number of distinct metric paths seen.",
		}),
		ViewBuildDurationSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "view_build_duration_seconds",
			Help:      "View model build duration in seconds.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2.5, 10), // 100µs to ~380ms
		}),
		PollRunsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "poll_runs_total",
				Help:      "Total number of poll command runs by target and status.",
			},
			[]string{"target", "status"},
		),
		PollDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "poll_duration_seconds",
				Help:      "Poll command duration in seconds.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"target"},
		),
		NavigationTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "navigation_commands_total",
				Help:      "Total number of navigation commands by command and status.",
			},
			[]string{"command", "status"},
		),
	}
}

func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
