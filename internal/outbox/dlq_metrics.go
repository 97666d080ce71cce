package outbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	dlqProcessedCounter = newDLQCounter("messages_processed_total", "Number of DLQ entries handled by the manager, whether requeued or quarantined.")
	dlqRequeuedCounter  = newDLQCounter("messages_requeued_total", "Number of DLQ entries reinserted into the primary outbox.")
	dlqQuarantined      = newDLQCounter("messages_quarantined_total", "Number of DLQ entries quarantined after exhausting retries.")
	dlqRetryCounter     = newDLQCounter("retry_scheduled_total", "Number of times a DLQ entry was scheduled for a future retry.")

	dlqBacklogGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "activity_directory",
		Subsystem: "dlq",
		Name:      "entries",
		Help:      "Current number of DLQ entries, split into pending and quarantined.",
	}, []string{"state"})
)

func newDLQCounter(name, help string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "activity_directory",
		Subsystem: "dlq",
		Name:      name,
		Help:      help,
	}, []string{"topic", "event_type"})
}

func init() {
	prometheus.MustRegister(dlqProcessedCounter, dlqRequeuedCounter, dlqQuarantined, dlqRetryCounter, dlqBacklogGauge)
}

func recordDLQProcessed(entry dlqEntry) {
	dlqProcessedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
}

func recordDLQRequeued(entry dlqEntry) {
	dlqRequeuedCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
}

func recordDLQQuarantined(entry dlqEntry) {
	dlqQuarantined.WithLabelValues(entry.Topic, entry.EventType).Inc()
}

func recordDLQRetry(entry dlqEntry) {
	dlqRetryCounter.WithLabelValues(entry.Topic, entry.EventType).Inc()
}

func updateBacklogGauge(ctx context.Context, pool *pgxpool.Pool) {
	var pending, quarantined int
	row := pool.QueryRow(ctx, `SELECT
	        COUNT(*) FILTER (WHERE quarantined_at IS NULL),
	        COUNT(*) FILTER (WHERE quarantined_at IS NOT NULL)
	    FROM outbox_dlq`)
	if err := row.Scan(&pending, &quarantined); err != nil {
		return
	}
	dlqBacklogGauge.WithLabelValues("pending").Set(float64(pending))
	dlqBacklogGauge.WithLabelValues("quarantined").Set(float64(quarantined))
}
