package telemetry

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"pybake/internal/logging"
)

var (
	Runs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybake_runs_total",
		Help: "Orchestrator runs by mode and outcome (ok, partial, failed).",
	}, []string{"mode", "status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pybake_run_duration_seconds",
		Help:    "Wall time of orchestrator runs, including waiting for tools.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"mode"})

	ToolInvocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybake_tool_invocations_total",
		Help: "External tool invocations by tool and outcome.",
	}, []string{"tool", "status"})

	Artifacts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pybake_artifacts_total",
		Help: "Artifacts returned to callers.",
	}, []string{"mode"})
)

func RecordRun(mode, status string, d time.Duration, artifacts int) {
	Runs.WithLabelValues(mode, status).Inc()
	RunDuration.WithLabelValues(mode).Observe(d.Seconds())
	Artifacts.WithLabelValues(mode).Add(float64(artifacts))
}

func RecordTool(tool string, ok bool) {
	status := "ok"
	if !ok {
		status = "failed"
	}
	ToolInvocations.WithLabelValues(tool, status).Inc()
}

// Expose serves /metrics on port in the background. The returned server is
// nil when port is 0.
func Expose(port int) *http.Server {
	if port == 0 {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.L().Error("metrics server", "err", err)
		}
	}()
	return srv
}
