package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики движка анкет. Регистрируются в глобальном реестре
// и отдаются на /metrics.
var (
	// TemplateEditsTotal - структурные изменения шаблонов по операциям.
	// result: ok, rejected, stale, error.
	TemplateEditsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_template_edits_total",
		Help: "Template structural edits by operation and result",
	}, []string{"operation", "result"})

	// AnswersTotal - отправленные ответы. result: ok, invalid, error.
	AnswersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_answers_total",
		Help: "Submitted answers by result",
	}, []string{"result"})

	// EvaluationDuration - длительность вычисления анкеты.
	EvaluationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "questionary_evaluation_duration_seconds",
		Help:    "Time spent evaluating a questionary",
		Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12),
	})

	// EvaluationDiagnosticsTotal - поля, которые не удалось вычислить.
	EvaluationDiagnosticsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "questionary_evaluation_diagnostics_total",
		Help: "Fields degraded to inactive during evaluation",
	})

	// EventsPublishedTotal - опубликованные события по типу.
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_events_published_total",
		Help: "Domain events published by type and result",
	}, []string{"type", "result"})

	// EventsConsumedTotal - обработанные потребителем события.
	EventsConsumedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_events_consumed_total",
		Help: "Domain events consumed by type and result",
	}, []string{"type", "result"})

	// BrokerReconnectsTotal - попытки восстановить соединение с RabbitMQ.
	BrokerReconnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_broker_reconnects_total",
		Help: "RabbitMQ reconnect attempts by result",
	}, []string{"result"})

	// HTTPRequestsTotal - HTTP запросы API.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "questionary_api_http_requests_total",
		Help: "Total HTTP requests handled by questionary-api",
	}, []string{"method", "status"})
)
