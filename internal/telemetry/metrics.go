package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики пайплайна и batch-менеджера.
//
// Экспортируются через /metrics (promhttp) в main.
var (
	// RunsDecided — вердикты quality gate по типам решений.
	RunsDecided = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restavrator_runs_decided_total",
		Help: "Quality gate decisions by type.",
	}, []string{"decision"})

	// RunsFailed — run'ы, упавшие до вердикта (ошибка этапа).
	RunsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restavrator_runs_failed_total",
		Help: "Runs failed before reaching the quality gate, by stage.",
	}, []string{"stage"})

	// StageDuration — длительность этапов пайплайна.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "restavrator_stage_duration_seconds",
		Help:    "Pipeline stage duration in seconds.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"stage"})

	// BatchesFinished — завершённые batch-задания по итоговым статусам.
	BatchesFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restavrator_batches_finished_total",
		Help: "Finished batch jobs by terminal status.",
	}, []string{"status"})

	// ActiveBatches — текущее число обрабатываемых batch-заданий.
	ActiveBatches = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "restavrator_active_batches",
		Help: "Batch jobs currently being processed.",
	})

	// CapabilityRetries — повторы вызовов capability после transient-ошибок.
	CapabilityRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "restavrator_capability_retries_total",
		Help: "Capability call retries after transient errors, by stage.",
	}, []string{"stage"})
)
