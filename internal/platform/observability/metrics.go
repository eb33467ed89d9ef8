// Package observability holds the process-wide Prometheus collectors.
package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	transitionCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tempo",
		Subsystem: "timer",
		Name:      "transitions_total",
		Help:      "Session state transitions, labeled by transition and outcome.",
	}, []string{"transition", "outcome"})

	trackedSeconds = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tempo",
		Subsystem: "timer",
		Name:      "tracked_seconds_total",
		Help:      "Net tracked seconds of finished sessions, labeled by session type.",
	}, []string{"type"})

	learnCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tempo",
		Subsystem: "profile",
		Name:      "learn_total",
		Help:      "LearnFromSession outcomes.",
	}, []string{"outcome"})

	learnRetries = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "tempo",
		Subsystem: "profile",
		Name:      "learn_version_retries_total",
		Help:      "Profile saves retried after an optimistic-concurrency conflict.",
	})

	learnScore = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "tempo",
		Subsystem: "profile",
		Name:      "session_score",
		Help:      "Productivity score derived from learned sessions.",
		Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
	})

	publishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tempo",
		Subsystem: "events",
		Name:      "published_total",
		Help:      "Session events handed to the publisher, labeled by outcome.",
	}, []string{"outcome"})
)

func init() {
	prometheus.MustRegister(transitionCounter, trackedSeconds, learnCounter, learnRetries, learnScore, publishCounter)
}

func RecordTransition(transition string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	transitionCounter.WithLabelValues(transition, outcome).Inc()
}

func RecordTracked(sessionType string, d time.Duration) {
	if d <= 0 {
		return
	}
	trackedSeconds.WithLabelValues(sessionType).Add(d.Seconds())
}

func RecordLearn(outcome string, score float64) {
	learnCounter.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		learnScore.Observe(score)
	}
}

func RecordLearnRetry() {
	learnRetries.Inc()
}

func RecordPublish(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	publishCounter.WithLabelValues(outcome).Inc()
}

// Handler exposes the default registry with a liveness probe.
func Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return mux
}
